// Package group clusters structurally similar elements into repeated-record
// groups and builds locators matching each group's member set.
package group

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/cache"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/fingerprint"
	"github.com/dtnitsch/web-locator/pkg/locator"
	"github.com/dtnitsch/web-locator/pkg/session"
	"golang.org/x/net/html"
)

// Config bounds detection.
type Config struct {
	Threshold       float64
	MaxCandidates   int
	ScanLimit       int
	AnchorAttribute string
}

// ConfigFrom maps engine settings onto a detector config.
func ConfigFrom(e models.EngineConfig) Config {
	e.Defaults()
	return Config{
		Threshold:       e.GroupThreshold,
		MaxCandidates:   e.MaxGroupCandidates,
		ScanLimit:       e.MaxScanElements,
		AnchorAttribute: e.AnchorAttribute,
	}
}

// Group is one set of repeated records.
type Group struct {
	Representative *html.Node
	Members        []*html.Node
	Fingerprint    fingerprint.Fingerprint
	FromTable      bool
}

// Contains reports whether n is a member.
func (g Group) Contains(n *html.Node) bool {
	return slices.Contains(g.Members, n)
}

// Detector finds groups in one document. Results are kept until the
// document changes or Reset is called.
type Detector struct {
	ev      *locator.Evaluator
	fp      *fingerprint.Engine
	cfg     Config
	anchors *session.Session
	logger  *slog.Logger

	meaningful  *cache.WeakMemo[html.Node, bool]
	descendants *cache.WeakMemo[html.Node, cache.WeakNodes]

	doc    *dom.Document
	groups []Group
}

// New returns a detector. Nil caches are created.
func New(ev *locator.Evaluator, fp *fingerprint.Engine, cfg Config, anchors *session.Session, meaningful *cache.WeakMemo[html.Node, bool], descendants *cache.WeakMemo[html.Node, cache.WeakNodes], logger *slog.Logger) *Detector {
	if fp == nil {
		fp = fingerprint.New(cfg.AnchorAttribute)
	}
	if meaningful == nil {
		meaningful = cache.NewWeakMemo[html.Node, bool]()
	}
	if descendants == nil {
		descendants = cache.NewWeakMemo[html.Node, cache.WeakNodes]()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = fingerprint.DefaultThreshold
	}
	return &Detector{
		ev: ev, fp: fp, cfg: cfg, anchors: anchors, logger: logger,
		meaningful: meaningful, descendants: descendants,
	}
}

// Reset drops the cached groups.
func (d *Detector) Reset() {
	d.doc = nil
	d.groups = nil
}

// Detect returns the groups of the evaluator's document, in document order
// of their representatives. Every element joins at most one group.
func (d *Detector) Detect() []Group {
	doc := d.ev.Document()
	if d.doc == doc && d.groups != nil {
		return d.groups
	}

	processed := make(map[*html.Node]bool)
	groups := d.tableGroups(doc, processed)
	groups = append(groups, d.cluster(d.candidates(doc, processed), processed)...)
	slices.SortStableFunc(groups, func(a, b Group) int {
		switch {
		case a.Representative == b.Representative:
			return 0
		case dom.DocumentOrder(a.Representative, b.Representative):
			return -1
		}
		return 1
	})

	d.logger.Debug("groups detected", "count", len(groups))
	d.doc, d.groups = doc, groups
	if d.groups == nil {
		d.groups = []Group{}
	}
	return d.groups
}

// GroupOf returns the group whose member is n or the nearest ancestor of n.
func (d *Detector) GroupOf(n *html.Node) (Group, bool) {
	groups := d.Detect()
	for a := n; a != nil; a = dom.ParentElement(a) {
		for _, g := range groups {
			if g.Contains(a) {
				return g, true
			}
		}
	}
	return Group{}, false
}

// tableGroups forces the visible body rows of each table into one group.
func (d *Detector) tableGroups(doc *dom.Document, processed map[*html.Node]bool) []Group {
	var groups []Group
	dom.Walk(doc.Root, d.cfg.ScanLimit, func(n *html.Node, _ int) bool {
		if !doc.Visible(n) {
			return false
		}
		if dom.Tag(n) != "table" {
			return true
		}
		rows := bodyRows(doc, n)
		if len(rows) < 2 || !d.Meaningful(rows[0]) {
			return true
		}
		for _, r := range rows {
			processed[r] = true
		}
		groups = append(groups, Group{
			Representative: rows[0],
			Members:        rows,
			Fingerprint:    d.fp.Of(rows[0]),
			FromTable:      true,
		})
		return true
	})
	return groups
}

// bodyRows returns the visible rows of a table outside its thead. A leading
// row holding only th cells is treated as the header.
func bodyRows(doc *dom.Document, table *html.Node) []*html.Node {
	var rows []*html.Node
	for _, c := range dom.Children(table) {
		switch dom.Tag(c) {
		case "tbody", "tfoot":
			rows = append(rows, dom.Children(c)...)
		case "tr":
			rows = append(rows, c)
		}
	}
	rows = slices.DeleteFunc(rows, func(r *html.Node) bool {
		return dom.Tag(r) != "tr" || !doc.Visible(r)
	})
	if len(rows) > 0 && headerOnly(rows[0]) {
		rows = rows[1:]
	}
	return rows
}

func headerOnly(row *html.Node) bool {
	cells := dom.Children(row)
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if dom.Tag(c) != "th" {
			return false
		}
	}
	return true
}

var skipTags = map[string]bool{"html": true, "head": true, "body": true}

// candidates lists visible light-DOM elements of the top document.
func (d *Detector) candidates(doc *dom.Document, processed map[*html.Node]bool) []*html.Node {
	var out []*html.Node
	dom.Walk(doc.Root, d.cfg.ScanLimit, func(n *html.Node, _ int) bool {
		if len(out) >= d.cfg.MaxCandidates {
			return false
		}
		tag := dom.Tag(n)
		if dom.IsNonRendered(tag) || !doc.Visible(n) {
			return false
		}
		if !skipTags[tag] && !processed[n] {
			out = append(out, n)
		}
		return true
	})
	return out
}

// cluster greedily grows a group around each unprocessed seed from the
// later same-tag candidates meeting the similarity threshold.
func (d *Detector) cluster(cands []*html.Node, processed map[*html.Node]bool) []Group {
	byTag := make(map[string][]*html.Node)
	for _, n := range cands {
		byTag[n.Data] = append(byTag[n.Data], n)
	}

	var groups []Group
	for _, seed := range cands {
		if processed[seed] {
			continue
		}
		seedFP := d.fp.Of(seed)
		members := []*html.Node{seed}
		for _, other := range byTag[seed.Data] {
			if other == seed || processed[other] || related(other, members) {
				continue
			}
			if fingerprint.Similarity(seedFP, d.fp.Of(other)) >= d.cfg.Threshold {
				members = append(members, other)
			}
		}
		if len(members) < 2 || !d.Meaningful(seed) {
			processed[seed] = true
			continue
		}
		for _, m := range members {
			processed[m] = true
		}
		groups = append(groups, Group{Representative: seed, Members: members, Fingerprint: seedFP})
	}
	return groups
}

// related reports whether n is an ancestor or descendant of any member.
func related(n *html.Node, members []*html.Node) bool {
	for _, m := range members {
		if dom.IsAncestor(m, n) || dom.IsAncestor(n, m) {
			return true
		}
	}
	return false
}

// Meaningful reports whether n has a descendant worth extracting: a link
// with an href, an image with a source, an svg graphic, or visible text.
func (d *Detector) Meaningful(n *html.Node) bool {
	return d.meaningful.GetOrCompute(n, func() bool {
		doc := d.ev.Document()
		if dom.OwnText(n) != "" {
			return true
		}
		for _, c := range d.descendantsOf(n) {
			if !doc.Visible(c) {
				continue
			}
			switch dom.Tag(c) {
			case "a":
				if dom.Attr(c, "href") != "" {
					return true
				}
			case "img":
				if dom.Attr(c, "src") != "" {
					return true
				}
			case "svg":
				return true
			}
			if dom.OwnText(c) != "" {
				return true
			}
		}
		return false
	})
}

// descendantsOf lists n's descendants, entering the shadow root of custom
// elements.
func (d *Detector) descendantsOf(n *html.Node) []*html.Node {
	if w, ok := d.descendants.Get(n); ok {
		if nodes, live := w.Resolve(); live {
			return nodes
		}
	}
	doc := d.ev.Document()
	var out []*html.Node
	var collect func(root *html.Node, depth int)
	collect = func(root *html.Node, depth int) {
		dom.Walk(root, d.cfg.ScanLimit, func(c *html.Node, _ int) bool {
			if c != root {
				out = append(out, c)
			}
			if sr := doc.ShadowRoot(c); sr != nil && strings.Contains(dom.Tag(c), "-") && depth < 4 {
				collect(sr, depth+1)
			}
			return true
		})
	}
	collect(n, 0)
	d.descendants.Put(n, cache.MakeWeakNodes(out))
	return out
}

// Describe returns the wire form of g with its locator and member boxes.
func (d *Detector) Describe(g Group, fallback bool) models.GroupDescriptor {
	doc := d.ev.Document()
	desc := models.GroupDescriptor{
		Tag:         dom.Tag(g.Representative),
		Signature:   g.Fingerprint.Signature,
		MemberCount: len(g.Members),
		FromTable:   g.FromTable,
		Locator:     d.Locator(g, fallback),
	}
	for _, m := range g.Members {
		b := doc.Box(m)
		desc.Boxes = append(desc.Boxes, models.Box{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height})
	}
	return desc
}

// Locator builds the group-level locator. Primary is set only when it
// matches exactly the member set. An over-matching expression is kept as
// the sole alternative, and the anchor union is written only when
// fallback is requested.
func (d *Detector) Locator(g Group, fallback bool) models.LocatorResult {
	var res models.LocatorResult
	expr, err := d.expression(g)
	switch {
	case err == nil:
		res.Primary = expr
	case expr != "":
		d.logger.Debug("group locator not exact", "tag", dom.Tag(g.Representative), "error", err)
		res.Alternatives = []string{expr}
	default:
		d.logger.Debug("group locator not exact", "tag", dom.Tag(g.Representative), "error", err)
	}
	if fallback && d.anchors != nil {
		values := make([]string, len(g.Members))
		for i, m := range g.Members {
			values[i] = d.anchors.Anchor(m)
		}
		res.Fallback = d.anchors.UnionXPath(values)
	}
	return res
}

// expression returns //tag[shared predicates], prefixed by the shared
// parent's step when the bare form over-matches. On error the bare form is
// still returned.
func (d *Detector) expression(g Group) (string, error) {
	tag := dom.Tag(g.Representative)
	step := tag
	if preds := d.memberPredicates(g.Members); len(preds) > 0 {
		step += "[" + strings.Join(preds, " and ") + "]"
	}
	expr := "//" + step
	if d.exact(expr, g.Members) {
		return expr, nil
	}

	parent := sharedParent(g.Members)
	if parent == nil {
		return expr, fmt.Errorf("%w: %s over-matches and members have no common parent", models.ErrNotFound, expr)
	}
	for _, ps := range parentSteps(parent) {
		expr := "//" + ps + "/" + step
		if d.exact(expr, g.Members) {
			return expr, nil
		}
	}
	return expr, fmt.Errorf("%w: no exact expression for %d <%s> members", models.ErrNotFound, len(g.Members), tag)
}

// memberPredicates lists the class, attribute and child-count tests every
// member satisfies.
func (d *Detector) memberPredicates(members []*html.Node) []string {
	rep := members[0]
	var preds []string

	classes := locator.Quotable(dom.StableClasses(rep))
	for _, m := range members[1:] {
		other := dom.StableClasses(m)
		classes = slices.DeleteFunc(classes, func(c string) bool { return !slices.Contains(other, c) })
	}
	if len(classes) > 0 {
		preds = append(preds, locator.ClassPredicate(classes))
	}

	for _, a := range rep.Attr {
		k := strings.ToLower(a.Key)
		if !d.describingAttr(k, a.Val) {
			continue
		}
		lit, ok := locator.Literal(a.Val)
		if !ok {
			continue
		}
		same := true
		for _, m := range members[1:] {
			if !dom.HasAttr(m, k) || dom.Attr(m, k) != a.Val {
				same = false
				break
			}
		}
		if same {
			preds = append(preds, "@"+k+"="+lit)
		}
	}

	count := len(dom.Children(rep))
	uniform := count > 0
	for _, m := range members[1:] {
		if len(dom.Children(m)) != count {
			uniform = false
			break
		}
	}
	if uniform {
		preds = append(preds, fmt.Sprintf("count(*)=%d", count))
	}
	return preds
}

func (d *Detector) describingAttr(name, value string) bool {
	switch {
	case name == "id" || name == "class" || name == "style" || name == d.cfg.AnchorAttribute:
		return false
	case strings.HasPrefix(name, "on"):
		return false
	case dom.IsVolatileToken(name) || dom.IsVolatileToken(value):
		return false
	}
	return true
}

func (d *Detector) exact(expr string, members []*html.Node) bool {
	doc := d.ev.Document()
	nodes, err := d.ev.QueryXPath(doc.Root, expr)
	if err != nil || len(nodes) != len(members) {
		return false
	}
	for _, n := range nodes {
		if !slices.Contains(members, n) {
			return false
		}
	}
	return true
}

func sharedParent(members []*html.Node) *html.Node {
	parent := dom.ParentElement(members[0])
	if parent == nil {
		return nil
	}
	for _, m := range members[1:] {
		if dom.ParentElement(m) != parent {
			return nil
		}
	}
	return parent
}

// parentSteps lists the steps tried for the shared parent, narrowest first.
func parentSteps(parent *html.Node) []string {
	tag := dom.Tag(parent)
	var steps []string
	if id := dom.Attr(parent, "id"); dom.IsStableID(id) {
		if lit, ok := locator.Literal(id); ok {
			steps = append(steps, tag+"[@id="+lit+"]")
		}
	}
	if classes := locator.Quotable(dom.StableClasses(parent)); len(classes) > 0 {
		steps = append(steps, tag+"["+locator.ClassPredicate(classes)+"]")
	}
	return steps
}
