// Package engine is the facade callers drive: it owns the analyzed
// document, the caches shared by every component, and the capture modes.
//
// The locate and detect entry points never panic and never return an error.
// Failures are reported through the Outcome of the returned result.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/cache"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/fingerprint"
	"github.com/dtnitsch/web-locator/pkg/group"
	"github.com/dtnitsch/web-locator/pkg/locator"
	"github.com/dtnitsch/web-locator/pkg/pagination"
	"github.com/dtnitsch/web-locator/pkg/selector"
	"github.com/dtnitsch/web-locator/pkg/session"
	"github.com/dtnitsch/web-locator/pkg/structural"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Engine analyzes one document at a time. It is not safe for concurrent
// use; run one engine per document when working in parallel.
type Engine struct {
	cfg    models.EngineConfig
	logger *slog.Logger
	policy *bluemonday.Policy

	doc     *dom.Document
	anchors *session.Session

	// strong memos, cleared by Cleanup
	ids     *cache.Identity
	results *cache.Memo[cache.WeakNodes]
	shared  *cache.Memo[[]string]

	// weak memos
	ascent      *cache.WeakMemo[html.Node, cache.WeakNodes]
	leaves      *cache.WeakMemo[html.Node, cache.WeakNodes]
	descendants *cache.WeakMemo[html.Node, cache.WeakNodes]
	meaningful  *cache.WeakMemo[html.Node, bool]

	ev      *locator.Evaluator
	finder  *selector.Finder
	builder *structural.Builder
	fp      *fingerprint.Engine
	groups  *group.Detector
	pager   *pagination.Detector

	scroller  pagination.Scroller
	listMode  bool
	pageMode  bool
	container string
	fallbacks bool
}

// New returns an engine with no document loaded.
func New(cfg models.EngineConfig, logger *slog.Logger) *Engine {
	cfg.Defaults()
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		policy:      bluemonday.UGCPolicy(),
		anchors:     session.New(cfg.AnchorAttribute),
		ids:         cache.NewIdentity(),
		results:     cache.NewMemo[cache.WeakNodes](),
		shared:      cache.NewMemo[[]string](),
		ascent:      cache.NewWeakMemo[html.Node, cache.WeakNodes](),
		leaves:      cache.NewWeakMemo[html.Node, cache.WeakNodes](),
		descendants: cache.NewWeakMemo[html.Node, cache.WeakNodes](),
		meaningful:  cache.NewWeakMemo[html.Node, bool](),
		fp:          fingerprint.New(cfg.AnchorAttribute),
	}
	e.anchors.OnAssign = func(*html.Node) {
		if e.ev != nil {
			e.ev.Forget()
		}
	}
	return e
}

// Document returns the analyzed document, or nil.
func (e *Engine) Document() *dom.Document {
	return e.doc
}

// Session returns the anchor session.
func (e *Engine) Session() *session.Session {
	return e.anchors
}

// SetDocument switches the analyzed document. Document-keyed state is
// rebuilt only when the reference changes.
func (e *Engine) SetDocument(doc *dom.Document) {
	if doc == e.doc {
		return
	}
	e.Cleanup()
	e.doc = doc
	if doc == nil {
		e.ev, e.finder, e.builder, e.groups, e.pager = nil, nil, nil, nil, nil
		return
	}

	e.ev = locator.NewEvaluator(doc, e.cfg.UseNativeXPath(), e.ids, e.results)
	e.finder = selector.New(e.ev, selector.ConfigFrom(e.cfg), e.ascent, e.logger)
	e.builder = structural.New(e.ev, structural.ConfigFrom(e.cfg), e.anchors, e.ids, e.shared, e.leaves, e.logger)
	e.groups = group.New(e.ev, e.fp, group.ConfigFrom(e.cfg), e.anchors, e.meaningful, e.descendants, e.logger)
	e.pager = pagination.New(e.ev, e.finder, pagination.ConfigFrom(e.cfg), e.scroller, e.logger)
	e.logger.Debug("document loaded", "url", doc.URL, "language", doc.Language)
}

// SetScroller installs the caller's scroll-into-view hook.
func (e *Engine) SetScroller(s pagination.Scroller) {
	e.scroller = s
	if e.pager != nil {
		e.pager.SetScroller(s)
	}
}

// Cleanup clears every memo. Callers invoke it on mode switches and at
// session end; SetDocument calls it when the document changes.
func (e *Engine) Cleanup() {
	e.ids.Clear()
	e.results.Clear()
	e.shared.Clear()
	e.ascent.Clear()
	e.leaves.Clear()
	e.descendants.Clear()
	e.meaningful.Clear()
	e.fp.Clear()
	if e.groups != nil {
		e.groups.Reset()
	}
}

// EnableListCapture switches hover to list mode.
func (e *Engine) EnableListCapture() {
	e.listMode = true
	e.pageMode = false
}

// DisableListCapture leaves list mode and forgets the container.
func (e *Engine) DisableListCapture() {
	e.listMode = false
	e.container = ""
}

// SetContainer sets the container locator used in list mode.
func (e *Engine) SetContainer(container string) {
	e.container = container
}

// Container returns the current container locator.
func (e *Engine) Container() string {
	return e.container
}

// EnablePaginationCapture switches hover to pagination-control mode.
func (e *Engine) EnablePaginationCapture() {
	e.pageMode = true
	e.listMode = false
}

// DisablePaginationCapture leaves pagination mode.
func (e *Engine) DisablePaginationCapture() {
	e.pageMode = false
}

// RequestFallbacks turns anchor fallbacks on or off. Anchors are written
// into the document only while fallbacks are requested.
func (e *Engine) RequestFallbacks(on bool) {
	e.fallbacks = on
}

// Resolve evaluates a CSS or XPath expression against the document.
func (e *Engine) Resolve(expr string) ([]*html.Node, error) {
	if e.doc == nil {
		return nil, fmt.Errorf("%w: no document loaded", models.ErrNotFound)
	}
	return e.ev.Resolve(e.doc.Root, expr)
}
