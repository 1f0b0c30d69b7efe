package selector

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/locator"
	"github.com/dtnitsch/web-locator/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const catalogPage = `<html><body>
<header id="top"><nav><a href="/">Home</a><a href="/about" title="About us">About</a></nav></header>
<main>
  <form id="search" action="/s">
    <input name="q" placeholder="Search products">
    <input type="submit" data-testid="search-submit" value="Go">
  </form>
  <ul class="results">
    <li class="card item-482913"><h3 class="title">Alpha</h3><span class="price">$1</span><a href="/p/1">View</a></li>
    <li class="card item-771204"><h3 class="title">Beta</h3><span class="price">$2</span><a href="/p/2">View</a></li>
    <li class="card"><h3 class="title">Gamma</h3><span class="price">$3</span><a href="/p/3">View</a></li>
  </ul>
  <div><div><span>deep</span></div></div>
  <div><div><span>deep</span></div></div>
</main>
<shop-cart id="cart"><template shadowrootmode="open"><div class="cart"><button aria-label="Checkout">Pay</button></div></template></shop-cart>
<iframe id="ads" srcdoc="&lt;div class='ad'&gt;&lt;a href='/promo'&gt;Promo&lt;/a&gt;&lt;/div&gt;"></iframe>
</body></html>`

func setup(t *testing.T, src string) (*dom.Document, *Finder, *locator.Evaluator) {
	t.Helper()
	p := &parser.Parser{}
	doc, err := p.Parse(models.ParseRequest{HTML: src, SkipReadability: true})
	require.NoError(t, err)
	ev := locator.NewEvaluator(doc, true, nil, nil)
	return doc, New(ev, ConfigFrom(models.EngineConfig{}), nil, nil), ev
}

func first(t *testing.T, ev *locator.Evaluator, ctx *html.Node, expr string) *html.Node {
	t.Helper()
	nodes, err := ev.Query(ctx, expr)
	require.NoError(t, err)
	require.NotEmpty(t, nodes, expr)
	return nodes[0]
}

func TestFindStableID(t *testing.T) {
	doc, f, ev := setup(t, catalogPage)
	res, err := f.Find(first(t, ev, doc.Root, "form"))
	require.NoError(t, err)
	assert.Equal(t, "#search", res.Selector)
	assert.Zero(t, res.Penalty)
}

func TestFindIsUniqueForEveryElement(t *testing.T) {
	doc, f, ev := setup(t, catalogPage)
	for _, n := range dom.Elements(doc.Root, 0) {
		res, err := f.Find(n)
		if err != nil {
			continue
		}
		nodes, qerr := ev.Query(doc.Root, res.Selector)
		require.NoError(t, qerr, res.Selector)
		require.Len(t, nodes, 1, res.Selector)
		assert.Same(t, n, nodes[0], res.Selector)
	}
}

func TestFindSkipsVolatileClasses(t *testing.T) {
	doc, f, ev := setup(t, catalogPage)
	items, err := ev.Query(doc.Root, "li.card")
	require.NoError(t, err)
	require.Len(t, items, 3)

	for _, item := range items {
		res, err := f.Find(item)
		require.NoError(t, err)
		assert.NotContains(t, res.Selector, "482913")
		assert.NotContains(t, res.Selector, "771204")
	}
}

func TestFindIdenticalSubtreesUseOrdinals(t *testing.T) {
	doc, f, ev := setup(t, catalogPage)
	spans, err := ev.Query(doc.Root, "main > div span")
	require.NoError(t, err)
	require.Len(t, spans, 2)

	a, err := f.Find(spans[0])
	require.NoError(t, err)
	b, err := f.Find(spans[1])
	require.NoError(t, err)
	assert.NotEqual(t, a.Selector, b.Selector)
	assert.Contains(t, a.Selector+b.Selector, ":nth-of-type(")
}

func TestOptimizeNeverRegresses(t *testing.T) {
	doc, f, ev := setup(t, catalogPage)
	target := first(t, ev, doc.Root, "li.card:nth-of-type(2) span.price")

	s := search{
		cfg:    f.cfg,
		root:   doc.Root,
		target: target,
		ev:     ev,
		cands: func(n *html.Node) []segment {
			return candidates(n, f.cfg.Attributes, f.cfg.AnchorAttribute)
		},
		ascent: ascentPath(target, f.cfg.MaxAscent),
	}
	found, _ := s.bottomUp(passAll)
	require.NotNil(t, found)

	optimized := s.optimize(found)
	assert.LessOrEqual(t, len(optimized), len(found))
	assert.LessOrEqual(t, optimized.penalty(), found.penalty())
	assert.True(t, ev.Unique(doc.Root, optimized.selector(), target))
}

func TestOptimizeStopsAtDeadline(t *testing.T) {
	doc, f, ev := setup(t, catalogPage)
	target := first(t, ev, doc.Root, "li.card:nth-of-type(2) span.price")

	s := search{
		cfg:    f.cfg,
		root:   doc.Root,
		target: target,
		ev:     ev,
		cands: func(n *html.Node) []segment {
			return candidates(n, f.cfg.Attributes, f.cfg.AnchorAttribute)
		},
		ascent: ascentPath(target, f.cfg.MaxAscent),
	}
	found, _ := s.bottomUp(passAll)
	require.NotNil(t, found)

	assert.Equal(t, found, s.optimizeWithin(found, time.Now().Add(-time.Second)))
}

func TestConfigFromBoundsOptimizer(t *testing.T) {
	cfg := ConfigFrom(models.EngineConfig{})
	assert.Equal(t, 2000, cfg.MaxTries)
	assert.Equal(t, 25*time.Millisecond, cfg.OptimizeBudget)
}

func TestCombinationsCheapestFirst(t *testing.T) {
	stack := [][]segment{
		{{name: "#a", penalty: 0}, {name: ".b", penalty: 1}, {name: "p", penalty: 2}},
		{{name: ".c", penalty: 1}, {name: "div", penalty: 2}},
	}
	var penalties []float64
	for p := range combinations(stack) {
		penalties = append(penalties, p.penalty())
	}
	require.Len(t, penalties, 6)
	for i := 1; i < len(penalties); i++ {
		assert.LessOrEqual(t, penalties[i-1], penalties[i])
	}
}

func TestFindCrossesShadowAndFrame(t *testing.T) {
	doc, f, ev := setup(t, catalogPage)

	cart := first(t, ev, doc.Root, "#cart >>> button")
	res, err := f.Find(cart)
	require.NoError(t, err)
	assert.True(t, res.IsShadow)
	assert.False(t, res.IsFrame)
	assert.Contains(t, res.Selector, locator.ScopeSeparator)
	assert.True(t, ev.Unique(doc.Root, res.Selector, cart))

	promo := first(t, ev, doc.Root, "#ads >>> a")
	res, err = f.Find(promo)
	require.NoError(t, err)
	assert.True(t, res.IsFrame)
	assert.True(t, ev.Unique(doc.Root, res.Selector, promo))
}

func TestFindOutcomes(t *testing.T) {
	_, f, _ := setup(t, catalogPage)

	_, err := f.Find(&html.Node{Type: html.TextNode, Data: "x"})
	assert.True(t, errors.Is(err, models.ErrUnsupported))

	detached, perr := html.Parse(strings.NewReader("<p>orphan</p>"))
	require.NoError(t, perr)
	p := dom.Elements(detached, 0)[3] // html, head, body, p
	require.Equal(t, "p", dom.Tag(p))
	_, err = f.Find(p)
	assert.True(t, errors.Is(err, models.ErrStale))
	assert.Equal(t, models.OutcomeStale, models.OutcomeOf(err))
}

func TestStrategiesAndChain(t *testing.T) {
	doc, f, ev := setup(t, catalogPage)

	submit := first(t, ev, doc.Root, `input[type="submit"]`)
	got := f.Strategies(submit)
	assert.Equal(t, `input[data-testid="search-submit"]`, got[StrategyTestID])

	query := first(t, ev, doc.Root, `input[name="q"]`)
	got = f.Strategies(query)
	require.NotEmpty(t, got[StrategyForm])
	assert.True(t, ev.Unique(doc.Root, got[StrategyForm], query))

	about := first(t, ev, doc.Root, `a[title]`)
	res, err := f.Locate(about)
	require.NoError(t, err)
	require.NotEmpty(t, res.Alternatives)
	assert.Equal(t, `a[href="/about"]`, res.Alternatives[0], "href outranks accessibility and general")
	assert.Equal(t, strings.Join(res.Alternatives, ", "), res.Chain)

	nodes, err := ev.Resolve(doc.Root, res.Chain)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Same(t, about, nodes[0])
}

func TestChainOrderAndDedup(t *testing.T) {
	tests := []struct {
		name string
		in   map[Strategy]string
		want string
	}{
		{
			name: "priority order",
			in:   map[Strategy]string{StrategyGeneral: "li > a", StrategyTestID: `[data-testid="x"]`, StrategyHref: `a[href="/x"]`},
			want: `[data-testid="x"], a[href="/x"], li > a`,
		},
		{
			name: "duplicates removed",
			in:   map[Strategy]string{StrategyID: "#x", StrategyGeneral: "#x"},
			want: "#x",
		},
		{name: "empty", in: map[Strategy]string{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chain(tt.in))
		})
	}
}

func TestCSSEscape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"main", "main"},
		{"1col", `\31 col`},
		{"-2x", `-\32 x`},
		{"a:b", `a\:b`},
		{"w-1/2", `w-1\/2`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, cssEscape(tt.in))
		})
	}
}
