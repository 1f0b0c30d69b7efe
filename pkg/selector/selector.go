// Package selector finds the cheapest unique CSS selector for an element.
//
// The search ascends from the target, ranking candidates per level (stable
// id, allow-listed attribute, class tokens, tag, wildcard), enumerates
// combinations cheapest first until one is unique in the target's tree, then
// drops interior segments while the selector still resolves to the target.
// Targets inside shadow roots or frame documents get their host's selector
// joined with " >>> ".
package selector

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/cache"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/locator"
	"golang.org/x/net/html"
)

// Config bounds the search. It is copied into every search.
type Config struct {
	SeedMinLength      int
	OptimizedMinLength int
	Threshold          int
	MaxTries           int
	OptimizeBudget     time.Duration
	MaxCrossings       int
	MaxAscent          int
	Attributes         []string
	AnchorAttribute    string
}

// ConfigFrom maps engine settings onto a finder config.
func ConfigFrom(e models.EngineConfig) Config {
	e.Defaults()
	return Config{
		SeedMinLength:      e.SeedMinLength,
		OptimizedMinLength: e.OptimizedMinLength,
		Threshold:          e.CombinationThreshold,
		MaxTries:           e.MaxOptimizeTries,
		OptimizeBudget:     e.OptimizeBudget,
		MaxCrossings:       e.MaxBoundaryCrossings,
		MaxAscent:          e.MaxAscentDepth,
		Attributes:         DefaultAttributes,
		AnchorAttribute:    e.AnchorAttribute,
	}
}

// Result is a selector for one element.
type Result struct {
	Selector string
	Penalty  float64
	Segments int
	IsShadow bool
	IsFrame  bool
}

// Finder computes selectors against one document.
type Finder struct {
	doc    *dom.Document
	ev     *locator.Evaluator
	cfg    Config
	ascent *cache.WeakMemo[html.Node, cache.WeakNodes]
	logger *slog.Logger
}

// New returns a finder evaluating uniqueness through ev. ascent may be nil.
func New(ev *locator.Evaluator, cfg Config, ascent *cache.WeakMemo[html.Node, cache.WeakNodes], logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	if ascent == nil {
		ascent = cache.NewWeakMemo[html.Node, cache.WeakNodes]()
	}
	if len(cfg.Attributes) == 0 {
		cfg.Attributes = DefaultAttributes
	}
	return &Finder{doc: ev.Document(), ev: ev, cfg: cfg, ascent: ascent, logger: logger}
}

// Find returns the selector of target. Errors wrap models.ErrNotFound,
// ErrExhausted, ErrUnsupported or ErrStale.
func (f *Finder) Find(target *html.Node) (Result, error) {
	return f.find(target, 0)
}

func (f *Finder) find(target *html.Node, crossings int) (Result, error) {
	if !dom.IsElement(target) {
		return Result{}, fmt.Errorf("%w: not an element", models.ErrUnsupported)
	}
	root := dom.TreeRoot(target)
	host := f.doc.Host(root)
	if host == nil && root != f.doc.Root {
		return Result{}, fmt.Errorf("%w: node is detached", models.ErrStale)
	}

	s := search{
		cfg:    f.cfg,
		root:   root,
		target: target,
		ev:     f.ev,
		cands: func(n *html.Node) []segment {
			return candidates(n, f.cfg.Attributes, f.cfg.AnchorAttribute)
		},
		passes: []pass{passAll, passTwo, passOne},
		ascent: f.ascentOf(target),
	}
	out := s.run()
	if out.path == nil {
		if out.skipped > 0 {
			f.logger.Debug("selector search exhausted", "tag", dom.Tag(target), "skipped_passes", out.skipped)
			return Result{}, fmt.Errorf("%w: %d of %d passes over the combination threshold", models.ErrExhausted, out.skipped, out.attempted)
		}
		return Result{}, fmt.Errorf("%w: no unique selector for <%s>", models.ErrNotFound, dom.Tag(target))
	}

	inner := Result{
		Selector: out.path.selector(),
		Penalty:  out.path.penalty(),
		Segments: len(out.path),
	}
	if host == nil {
		return inner, nil
	}
	return f.joinHost(host, root, inner, crossings)
}

// joinHost prefixes an inner-tree result with its host's selector.
func (f *Finder) joinHost(host, root *html.Node, inner Result, crossings int) (Result, error) {
	if crossings+1 > f.cfg.MaxCrossings {
		return Result{}, fmt.Errorf("%w: more than %d boundary crossings", models.ErrNotFound, f.cfg.MaxCrossings)
	}
	outer, err := f.find(host, crossings+1)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Selector: outer.Selector + locator.ScopeSeparator + inner.Selector,
		Penalty:  outer.Penalty + inner.Penalty,
		Segments: outer.Segments + inner.Segments,
		IsShadow: outer.IsShadow || f.doc.IsShadowRoot(root),
		IsFrame:  outer.IsFrame || f.doc.IsFrameRoot(root),
	}, nil
}

// HostPrefix returns the selector that scopes into the tree containing n,
// ending in " >>> ", or "" for the top document.
func (f *Finder) HostPrefix(n *html.Node) (string, error) {
	root := dom.TreeRoot(n)
	host := f.doc.Host(root)
	if host == nil {
		return "", nil
	}
	outer, err := f.find(host, 1)
	if err != nil {
		return "", err
	}
	return outer.Selector + locator.ScopeSeparator, nil
}

func (f *Finder) ascentOf(target *html.Node) []*html.Node {
	if w, ok := f.ascent.Get(target); ok {
		if nodes, live := w.Resolve(); live {
			return nodes
		}
	}
	nodes := ascentPath(target, f.cfg.MaxAscent)
	f.ascent.Put(target, cache.MakeWeakNodes(nodes))
	return nodes
}

// Locate returns the point LocatorResult for target: the general selector
// as primary plus the strategy alternatives and their chain. No fallback
// anchor is assigned here.
func (f *Finder) Locate(target *html.Node) (models.LocatorResult, error) {
	res, err := f.Find(target)
	if err != nil {
		return models.LocatorResult{}, err
	}
	strategies := f.Strategies(target)
	strategies[StrategyGeneral] = res.Selector
	return models.LocatorResult{
		Primary:      res.Selector,
		IsShadow:     res.IsShadow,
		IsFrame:      res.IsFrame,
		Alternatives: Ordered(strategies),
		Chain:        Chain(strategies),
	}, nil
}
