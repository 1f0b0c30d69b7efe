package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/locator"
	"github.com/dtnitsch/web-locator/pkg/pagination"
	"github.com/dtnitsch/web-locator/pkg/structural"
	"golang.org/x/net/html"
)

func fieldFailure(err error) models.FieldResult {
	return models.FieldResult{Outcome: models.OutcomeOf(err), Error: models.NewErrorInfo(err)}
}

func fieldsFailure(err error) models.FieldsResult {
	return models.FieldsResult{Outcome: models.OutcomeOf(err), Fields: []models.FieldResult{}, Error: models.NewErrorInfo(err)}
}

func groupsFailure(err error) models.GroupsResult {
	return models.GroupsResult{Outcome: models.OutcomeOf(err), Groups: []models.GroupDescriptor{}, Error: models.NewErrorInfo(err)}
}

func paginationFailure(err error) models.PaginationResult {
	return pagination.Report{Err: err, Pass: pagination.PassNone}.Model()
}

// LocateField returns the field locator for n inside the current container.
// A warm locator from an earlier call that still matches n is returned
// without rebuilding.
func (e *Engine) LocateField(n *html.Node, warm []string) (res models.FieldResult) {
	defer trap(e, "LocateField", &res, fieldFailure)
	if err := e.check(n); err != nil {
		return fieldFailure(err)
	}
	if e.container == "" {
		return fieldFailure(fmt.Errorf("%w: no container set", models.ErrNotFound))
	}

	instances, err := e.builder.Instances(e.container)
	if err != nil {
		return fieldFailure(err)
	}
	for _, w := range warm {
		nodes := e.warmMatches(instances, w)
		if !slices.Contains(nodes, n) {
			continue
		}
		e.logger.Debug("warm field locator reused", "locator", w)
		return models.FieldResult{
			Outcome:   models.OutcomeOK,
			Container: e.container,
			Relative:  strings.TrimPrefix(w, e.container+"/"),
			Locator:   models.LocatorResult{Primary: w},
			Matched:   len(nodes),
			Instances: len(instances),
			FromWarm:  true,
		}
	}

	f, err := e.builder.Build(e.container, n, e.fallbacks)
	if err != nil {
		r := fieldFailure(err)
		r.Container = e.container
		return r
	}
	return fieldResult(e.container, f)
}

// warmMatches resolves a stored field locator: absolute XPath against the
// document, relative paths against each instance.
func (e *Engine) warmMatches(instances []*html.Node, w string) []*html.Node {
	if locator.Sniff(w) == locator.XPath {
		nodes, _ := e.ev.Resolve(e.doc.Root, w)
		return nodes
	}
	var out []*html.Node
	for _, inst := range instances {
		if nodes, err := e.ev.QueryXPath(inst, w); err == nil {
			out = append(out, nodes...)
		}
	}
	return out
}

// FieldsFor discovers every field of the container's first instance.
func (e *Engine) FieldsFor(container string) (res models.FieldsResult) {
	defer trap(e, "FieldsFor", &res, fieldsFailure)
	if e.doc == nil {
		return fieldsFailure(fmt.Errorf("%w: no document loaded", models.ErrNotFound))
	}
	if container == "" {
		container = e.container
	}
	fields, err := e.builder.Fields(container, e.fallbacks)
	if err != nil {
		r := fieldsFailure(err)
		r.Container = container
		return r
	}
	res = models.FieldsResult{Outcome: models.OutcomeOK, Container: container, Fields: make([]models.FieldResult, 0, len(fields))}
	for _, f := range fields {
		res.Fields = append(res.Fields, fieldResult(container, f))
	}
	return res
}

func fieldResult(container string, f structural.Field) models.FieldResult {
	r := models.FieldResult{
		Outcome:   models.OutcomeOK,
		Container: container,
		Relative:  f.Relative,
		Locator:   f.Locator,
		Matched:   f.Matched,
		Instances: f.Instances,
		Partial:   f.Partial(),
	}
	if r.Partial {
		diag := &models.Diagnostics{}
		diag.Count("matched_instances", f.Matched)
		diag.Count("diverged_samples", f.Diverged)
		diag.AddNote(fmt.Sprintf("field matched %d of %d instances", f.Matched, f.Instances))
		r.Diagnostics = diag
	}
	return r
}

// DetectGroups returns the repeated-record groups of the document.
func (e *Engine) DetectGroups() (res models.GroupsResult) {
	defer trap(e, "DetectGroups", &res, groupsFailure)
	if e.doc == nil {
		return groupsFailure(fmt.Errorf("%w: no document loaded", models.ErrNotFound))
	}
	groups := e.groups.Detect()
	res = models.GroupsResult{Outcome: models.OutcomeOK, Groups: make([]models.GroupDescriptor, 0, len(groups))}
	for _, g := range groups {
		res.Groups = append(res.Groups, e.groups.Describe(g, e.fallbacks))
	}
	return res
}

// DetectPagination classifies the page advance of the list matched by
// container, or by the current container when empty.
func (e *Engine) DetectPagination(container string, opts pagination.Options) (res models.PaginationResult) {
	defer trap(e, "DetectPagination", &res, paginationFailure)
	if e.doc == nil {
		return paginationFailure(fmt.Errorf("%w: no document loaded", models.ErrNotFound))
	}
	if container == "" {
		container = e.container
	}
	report := e.pager.Detect(container, opts)
	e.logger.Debug("pagination detected", "container", container, "type", report.Result.Type(), "pass", report.Pass)
	return report.Model()
}
