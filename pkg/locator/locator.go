// Package locator evaluates the selector and XPath expressions the engine
// emits against a dom.Document.
package locator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/cache"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"golang.org/x/net/html"
)

// Kind is the expression language of a locator.
type Kind int

const (
	CSS Kind = iota
	XPath
)

func (k Kind) String() string {
	if k == XPath {
		return "xpath"
	}
	return "css"
}

// ScopeSeparator joins a host's selector to a selector inside its shadow
// root or frame document.
const ScopeSeparator = " >>> "

// Sniff reports the language of expr: XPath when it starts with "//" or
// "(//", CSS otherwise.
func Sniff(expr string) Kind {
	e := strings.TrimSpace(expr)
	if strings.HasPrefix(e, "//") || strings.HasPrefix(e, "(//") {
		return XPath
	}
	return CSS
}

// Evaluator runs expressions against one document and memoizes results per
// (context node, expression).
type Evaluator struct {
	doc    *dom.Document
	native bool

	ids     *cache.Identity
	results *cache.Memo[cache.WeakNodes]

	mu       sync.Mutex
	compiled map[string]cascadia.Sel
}

// NewEvaluator returns an evaluator for doc. When native is false XPath
// always goes through the built-in evaluator.
func NewEvaluator(doc *dom.Document, native bool, ids *cache.Identity, results *cache.Memo[cache.WeakNodes]) *Evaluator {
	if ids == nil {
		ids = cache.NewIdentity()
	}
	if results == nil {
		results = cache.NewMemo[cache.WeakNodes]()
	}
	return &Evaluator{
		doc:      doc,
		native:   native,
		ids:      ids,
		results:  results,
		compiled: make(map[string]cascadia.Sel),
	}
}

// Document returns the document the evaluator runs against.
func (e *Evaluator) Document() *dom.Document { return e.doc }

// Forget drops memoized results. Call after mutating attributes that
// expressions may test.
func (e *Evaluator) Forget() {
	e.results.Clear()
}

// Query returns every element matching expr under ctx in document order.
// Comma-separated CSS alternatives are unioned.
func (e *Evaluator) Query(ctx *html.Node, expr string) ([]*html.Node, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || ctx == nil {
		return nil, nil
	}
	if Sniff(expr) == XPath {
		return e.QueryXPath(ctx, expr)
	}
	return e.memoized("css", ctx, expr, e.cssUnion)
}

// QueryXPath evaluates expr as XPath with ctx as the root: relative paths
// such as "div[2]/span" and absolute ones both start at ctx.
func (e *Evaluator) QueryXPath(ctx *html.Node, expr string) ([]*html.Node, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || ctx == nil {
		return nil, nil
	}
	return e.memoized("xpath", ctx, expr, e.xpath)
}

func (e *Evaluator) memoized(kind string, ctx *html.Node, expr string, eval func(*html.Node, string) ([]*html.Node, error)) ([]*html.Node, error) {
	key := cache.Key(kind, e.ids.Token(ctx), expr)
	if w, ok := e.results.Get(key); ok {
		if nodes, live := w.Resolve(); live {
			return nodes, nil
		}
	}
	nodes, err := eval(ctx, expr)
	if err != nil {
		return nil, err
	}
	e.results.Put(key, cache.MakeWeakNodes(nodes))
	return nodes, nil
}

// Resolve returns the matches of the first comma-separated alternative that
// matches anything. It is how fallback chains are replayed.
func (e *Evaluator) Resolve(ctx *html.Node, expr string) ([]*html.Node, error) {
	if Sniff(expr) == XPath {
		return e.Query(ctx, expr)
	}
	alts := SplitTopLevel(expr, ',')
	var firstErr error
	for _, alt := range alts {
		nodes, err := e.Query(ctx, alt)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(nodes) > 0 {
			return nodes, nil
		}
	}
	return nil, firstErr
}

// Count returns the number of matches of expr under ctx.
func (e *Evaluator) Count(ctx *html.Node, expr string) (int, error) {
	nodes, err := e.Query(ctx, expr)
	return len(nodes), err
}

// Unique reports whether expr matches exactly target under ctx.
func (e *Evaluator) Unique(ctx *html.Node, expr string, target *html.Node) bool {
	nodes, err := e.Query(ctx, expr)
	return err == nil && len(nodes) == 1 && nodes[0] == target
}

func (e *Evaluator) cssUnion(ctx *html.Node, expr string) ([]*html.Node, error) {
	alts := SplitTopLevel(expr, ',')
	if len(alts) == 1 {
		return e.cssScoped(ctx, alts[0])
	}
	seen := make(map[*html.Node]bool)
	var all []*html.Node
	for _, alt := range alts {
		nodes, err := e.cssScoped(ctx, alt)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if !seen[n] {
				seen[n] = true
				all = append(all, n)
			}
		}
	}
	return inDocumentOrder(e.doc, all), nil
}

// cssScoped evaluates one alternative, crossing into shadow roots and frame
// documents at each " >>> ".
func (e *Evaluator) cssScoped(ctx *html.Node, expr string) ([]*html.Node, error) {
	segments := splitScopes(expr)
	contexts := []*html.Node{ctx}
	for i, seg := range segments {
		sel, err := e.compile(seg)
		if err != nil {
			return nil, err
		}
		var next []*html.Node
		for _, c := range contexts {
			next = append(next, cascadia.QueryAll(c, sel)...)
		}
		if i == len(segments)-1 {
			return next, nil
		}
		contexts = contexts[:0]
		for _, host := range next {
			if inner := e.doc.Inner(host); inner != nil {
				contexts = append(contexts, inner)
			}
		}
		if len(contexts) == 0 {
			return nil, nil
		}
	}
	return nil, nil
}

func (e *Evaluator) compile(expr string) (cascadia.Sel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sel, ok := e.compiled[expr]; ok {
		return sel, nil
	}
	sel, err := cascadia.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: css %q: %v", models.ErrUnsupported, expr, err)
	}
	e.compiled[expr] = sel
	return sel, nil
}

func (e *Evaluator) xpath(ctx *html.Node, expr string) (nodes []*html.Node, err error) {
	if e.native {
		nodes, err = nativeXPath(ctx, expr)
		if err == nil {
			return elementsOnly(nodes), nil
		}
	}
	return EvaluateXPath(ctx, expr)
}

func nativeXPath(ctx *html.Node, expr string) (nodes []*html.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: xpath %q: %v", models.ErrUnsupported, expr, r)
		}
	}()
	return htmlquery.QueryAll(ctx, expr)
}

func elementsOnly(nodes []*html.Node) []*html.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if dom.IsElement(n) {
			out = append(out, n)
		}
	}
	return out
}

// SplitTopLevel splits s on sep outside quotes, brackets and parentheses.
func SplitTopLevel(s string, sep rune) []string {
	var out []string
	depth := 0
	var quote rune
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			depth--
		case r == sep && depth == 0:
			if part := strings.TrimSpace(s[start:i]); part != "" {
				out = append(out, part)
			}
			start = i + len(string(r))
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		out = append(out, part)
	}
	return out
}

func splitScopes(expr string) []string {
	var out []string
	rest := expr
	for {
		i := indexTopLevel(rest, ScopeSeparator)
		if i < 0 {
			out = append(out, strings.TrimSpace(rest))
			return out
		}
		out = append(out, strings.TrimSpace(rest[:i]))
		rest = rest[i+len(ScopeSeparator):]
	}
}

func indexTopLevel(s, sub string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case depth == 0 && strings.HasPrefix(s[i:], sub):
			return i
		}
	}
	return -1
}

// inDocumentOrder sorts nodes that may live in several trees: nodes of the
// same tree keep document order, trees follow first appearance.
func inDocumentOrder(doc *dom.Document, nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	want := make(map[*html.Node]bool, len(nodes))
	var roots []*html.Node
	seenRoot := make(map[*html.Node]bool)
	for _, n := range nodes {
		want[n] = true
		r := dom.TreeRoot(n)
		if !seenRoot[r] {
			seenRoot[r] = true
			roots = append(roots, r)
		}
	}
	out := make([]*html.Node, 0, len(nodes))
	for _, r := range roots {
		dom.Walk(r, 0, func(n *html.Node, _ int) bool {
			if want[n] {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}
