package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dtnitsch/web-locator/internal/common"
	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/manifest"
	"github.com/dtnitsch/web-locator/pkg/pagination"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// Analyses a batch can run on each input.
const (
	ModeGroups     = "groups"
	ModePagination = "paginate"
	ModeFields     = "fields"
)

var modes = []string{ModeGroups, ModePagination, ModeFields}

// Options selects what a batch computes.
type Options struct {
	Mode        string
	Container   string
	Concurrency int
	Fallbacks   bool
}

// Report is the result for one input.
type Report struct {
	Input      string                   `json:"input" yaml:"input"`
	Outcome    models.Outcome           `json:"outcome" yaml:"outcome"`
	Groups     *models.GroupsResult     `json:"groups,omitempty" yaml:"groups,omitempty"`
	Pagination *models.PaginationResult `json:"pagination,omitempty" yaml:"pagination,omitempty"`
	Fields     *models.FieldsResult     `json:"fields,omitempty" yaml:"fields,omitempty"`
	Error      string                   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary is printed when a batch finishes.
type Summary struct {
	RunID     int64    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	ReportDir string   `json:"report_dir,omitempty" yaml:"report_dir,omitempty"`
	Manifest  string   `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	TopGroups []string `json:"top_groups,omitempty" yaml:"top_groups,omitempty"`
	Total     int      `json:"total" yaml:"total"`
	Succeeded int      `json:"succeeded" yaml:"succeeded"`
	Failed    int      `json:"failed" yaml:"failed"`
	Reports   []Report `json:"reports" yaml:"reports"`
}

func BatchAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no inputs given: pass URLs or glob patterns")
	}
	opts := Options{
		Mode:        c.String("mode"),
		Container:   c.String("container"),
		Concurrency: c.Int("concurrency"),
		Fallbacks:   c.Bool("fallbacks"),
	}
	if err := opts.validate(); err != nil {
		return err
	}

	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()
	if env.Live() {
		// one live tab at a time
		opts.Concurrency = 1
	}

	inputs, err := Expand(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs matched %s", strings.Join(c.Args().Slice(), " "))
	}
	env.Logger.Info("batch started", "inputs", len(inputs), "mode", opts.Mode, "concurrency", opts.Concurrency)

	reports, err := Run(c.Context, env, inputs, opts)
	if err != nil {
		return err
	}
	summary := summarize(reports)

	if !c.Bool("no-db") {
		if err := record(env, c.String("out"), opts.Mode, &summary); err != nil {
			env.Logger.Warn("failed to record run", "error", err)
		}
	}
	env.Logger.Info("batch finished", "succeeded", summary.Succeeded, "failed", summary.Failed)
	return env.Print(summary)
}

func (o *Options) validate() error {
	switch o.Mode {
	case ModeGroups:
	case ModePagination, ModeFields:
		if o.Container == "" {
			return fmt.Errorf("mode %q needs --container", o.Mode)
		}
	default:
		if s, ok := common.Suggest(o.Mode, modes); ok {
			return fmt.Errorf("unknown mode %q, did you mean %q?", o.Mode, s)
		}
		return fmt.Errorf("unknown mode %q (want one of %s)", o.Mode, strings.Join(modes, ", "))
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return nil
}

// Expand resolves glob patterns to files. URLs pass through unchanged.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var inputs []string
	for _, p := range patterns {
		if common.IsURL(p) {
			if !seen[p] {
				seen[p] = true
				inputs = append(inputs, p)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				inputs = append(inputs, m)
			}
		}
	}
	return inputs, nil
}

// Run analyzes every input with one engine per document. Reports keep the
// input order.
func Run(ctx context.Context, env *common.Env, inputs []string, opts Options) ([]Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	reports := make([]Report, len(inputs))
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = analyze(ctx, env, input, opts)
			env.Logger.Debug("input analyzed", "input", input, "outcome", reports[i].Outcome, "done", done.Add(1))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func analyze(ctx context.Context, env *common.Env, input string, opts Options) Report {
	rep := Report{Input: input}
	doc, scroller, err := env.Load(ctx, input)
	if err != nil {
		rep.Outcome = models.OutcomeNotFound
		rep.Error = err.Error()
		return rep
	}

	e := env.NewEngine()
	e.SetDocument(doc)
	if scroller != nil {
		e.SetScroller(scroller)
	}
	e.RequestFallbacks(opts.Fallbacks)
	defer e.Cleanup()

	switch opts.Mode {
	case ModeGroups:
		res := e.DetectGroups()
		rep.Groups, rep.Outcome = &res, res.Outcome
		rep.Error = errorMessage(res.Error)
	case ModePagination:
		res := e.DetectPagination(opts.Container, pagination.Options{})
		rep.Pagination, rep.Outcome = &res, res.Outcome
		rep.Error = errorMessage(res.Error)
	case ModeFields:
		res := e.FieldsFor(opts.Container)
		rep.Fields, rep.Outcome = &res, res.Outcome
		rep.Error = errorMessage(res.Error)
	}
	return rep
}

func errorMessage(info *models.ErrorInfo) string {
	if info == nil {
		return ""
	}
	return info.Message
}

func summarize(reports []Report) Summary {
	s := Summary{Total: len(reports), Reports: reports}
	for _, r := range reports {
		if r.Outcome == models.OutcomeOK {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// record stores the run in the database and writes one report file per
// input under outDir.
func record(env *common.Env, outDir, mode string, s *Summary) error {
	database, err := env.OpenDB()
	if err != nil {
		return err
	}
	defer database.Close()

	run, err := database.CreateRun(mode, s.Total)
	if err != nil {
		return err
	}
	s.RunID = run.RunID
	s.ReportDir = filepath.Join(outDir, run.ReportDir)

	results := make([]manifest.InputResult, 0, len(s.Reports))
	for _, r := range s.Reports {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		path, err := env.Storage().SaveReport(s.ReportDir, reportName(r.Input), data)
		if err != nil {
			return err
		}
		if err := database.InsertRunResult(run.RunID, r.Input, string(r.Outcome), r.Error); err != nil {
			return err
		}
		results = append(results, inputResult(r, path))
	}
	if err := database.UpdateRunStats(run.RunID, s.Succeeded, s.Failed); err != nil {
		return err
	}

	m := manifest.Build(run.RunID, mode, results, env.Storage())
	s.Manifest, err = manifest.Save(m, s.ReportDir, env.Storage())
	if err != nil {
		return err
	}
	s.TopGroups = m.TopGroups
	return nil
}

func inputResult(r Report, path string) manifest.InputResult {
	res := manifest.InputResult{
		Input:      r.Input,
		ReportFile: path,
		Outcome:    string(r.Outcome),
		Error:      r.Error,
	}
	if r.Groups != nil {
		for _, g := range r.Groups.Groups {
			res.GroupSelectors = append(res.GroupSelectors, g.Locator.Primary)
		}
	}
	if r.Fields != nil {
		res.FieldCount = len(r.Fields.Fields)
	}
	if r.Pagination != nil {
		res.Pagination = string(r.Pagination.Type)
	}
	return res
}

// reportName derives a stable file name for an input.
func reportName(input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	return fmt.Sprintf("%s-%s.json", base, common.ContentHash([]byte(input))[:8])
}
