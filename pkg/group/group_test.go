package group

import (
	"strings"
	"testing"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/locator"
	"github.com/dtnitsch/web-locator/pkg/parser"
	"github.com/dtnitsch/web-locator/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const catalog = `<html><body>
<h1>Catalog</h1>
<ul id="results">
<li class="card c-9f3a21b7"><a href="/a">Alpha</a><span class="meta">2 days</span></li>
<li class="card c-77ab1e0d"><a href="/b">Bravo</a><span class="meta">1 hour</span></li>
<li class="card"><a href="/c">Charlie</a><span class="meta">3 weeks</span></li>
</ul>
<table><thead><tr><th>Name</th><th>Qty</th></tr></thead>
<tbody>
<tr><td>Apple</td><td>3</td></tr>
<tr><td>Banana</td><td>12</td></tr>
<tr><td colspan="2"><a href="/more">more fruit</a></td></tr>
</tbody></table>
<div class="spacer"></div><div class="spacer"></div>
<x-card><template shadowrootmode="open"><a href="/x">X</a></template></x-card>
</body></html>`

type fixture struct {
	doc *dom.Document
	ev  *locator.Evaluator
	det *Detector
}

func setup(t *testing.T, src string) fixture {
	t.Helper()
	p := &parser.Parser{}
	doc, err := p.Parse(models.ParseRequest{HTML: src, SkipReadability: true})
	require.NoError(t, err)
	ev := locator.NewEvaluator(doc, true, nil, nil)
	anchors := session.New("")
	anchors.OnAssign = func(*html.Node) { ev.Forget() }
	return fixture{doc: doc, ev: ev, det: New(ev, nil, ConfigFrom(models.EngineConfig{}), anchors, nil, nil, nil)}
}

func (f fixture) query(t *testing.T, expr string) []*html.Node {
	t.Helper()
	nodes, err := f.ev.Query(f.doc.Root, expr)
	require.NoError(t, err)
	return nodes
}

func find(groups []Group, match func(Group) bool) (Group, bool) {
	for _, g := range groups {
		if match(g) {
			return g, true
		}
	}
	return Group{}, false
}

func TestDetectCards(t *testing.T) {
	f := setup(t, catalog)
	cards := f.query(t, "li.card")
	require.Len(t, cards, 3)

	g, ok := find(f.det.Detect(), func(g Group) bool { return g.Representative == cards[0] })
	require.True(t, ok)
	assert.Equal(t, cards, g.Members)
	assert.False(t, g.FromTable)

	loc := f.det.Locator(g, false)
	assert.Equal(t, "//li[contains(@class,'card') and count(*)=2]", loc.Primary)
	assert.Empty(t, loc.Fallback)
	assert.Equal(t, cards, f.query(t, loc.Primary))
}

func TestDetectTableRowsBypassSimilarity(t *testing.T) {
	f := setup(t, catalog)
	rows := f.query(t, "tbody > tr")
	require.Len(t, rows, 3)

	g, ok := find(f.det.Detect(), func(g Group) bool { return g.FromTable })
	require.True(t, ok)
	assert.Equal(t, rows, g.Members, "the colspan row joins despite its different shape")
	assert.Equal(t, "tr", g.Fingerprint.Tag)

	header := f.query(t, "thead > tr")[0]
	_, grouped := f.det.GroupOf(header)
	assert.False(t, grouped)
}

func TestDetectExclusiveAndReproducible(t *testing.T) {
	f := setup(t, catalog)
	first := f.det.Detect()
	require.NotEmpty(t, first)

	seen := make(map[*html.Node]bool)
	for _, g := range first {
		assert.GreaterOrEqual(t, len(g.Members), 2)
		for _, m := range g.Members {
			assert.False(t, seen[m], "<%s> appears in two groups", dom.Tag(m))
			seen[m] = true
		}
	}

	membership := func(groups []Group) [][]*html.Node {
		out := make([][]*html.Node, len(groups))
		for i, g := range groups {
			out[i] = g.Members
		}
		return out
	}
	f.det.Reset()
	assert.Equal(t, membership(first), membership(f.det.Detect()))
}

func TestDetectSkipsEmptyElements(t *testing.T) {
	f := setup(t, catalog)
	spacers := f.query(t, "div.spacer")
	require.Len(t, spacers, 2)

	for _, s := range spacers {
		assert.False(t, f.det.Meaningful(s))
		_, grouped := f.det.GroupOf(s)
		assert.False(t, grouped)
	}
}

func TestMeaningfulEntersCustomElementShadow(t *testing.T) {
	f := setup(t, catalog)
	host := f.query(t, "x-card")[0]
	assert.True(t, f.det.Meaningful(host))
}

func TestGroupOfMember(t *testing.T) {
	f := setup(t, catalog)
	meta := f.query(t, "li.card:nth-of-type(2) span.meta")[0]
	g, ok := f.det.GroupOf(meta)
	require.True(t, ok)
	assert.True(t, g.Contains(meta))
	assert.Len(t, g.Members, 3)
}

const twoLists = `<html><body>
<ul id="list">
<li class="x"><a href="/1">One</a><span>first</span></li>
<li class="x"><a href="/2">Two</a><span>second</span></li>
</ul>
<ul class="promos">
<li class="x extra other" title="promo"><img src="p.png"><img src="q.png"></li>
</ul>
</body></html>`

func TestLocatorPrefixesSharedParent(t *testing.T) {
	f := setup(t, twoLists)
	items := f.query(t, "#list > li")
	require.Len(t, items, 2)

	g, ok := f.det.GroupOf(items[0])
	require.True(t, ok)
	require.Equal(t, items, g.Members)

	loc := f.det.Locator(g, false)
	assert.Equal(t, "//ul[@id='list']/li[contains(@class,'x') and count(*)=2]", loc.Primary)
	assert.Equal(t, items, f.query(t, loc.Primary))
}

func TestLocatorAnchorUnion(t *testing.T) {
	f := setup(t, catalog)
	cards := f.query(t, "li.card")
	g, ok := f.det.GroupOf(cards[1])
	require.True(t, ok)

	loc := f.det.Locator(g, true)
	require.NotEmpty(t, loc.Fallback)
	assert.Contains(t, loc.Fallback, " or ")
	assert.Equal(t, cards, f.query(t, loc.Fallback))

	again := f.det.Locator(g, true)
	assert.Equal(t, loc.Fallback, again.Fallback, "anchors are idempotent")

	desc := f.det.Describe(g, false)
	assert.Equal(t, 3, desc.MemberCount)
	assert.Len(t, desc.Boxes, 3)
	assert.Equal(t, "li", desc.Tag)
}

func TestLocatorWithoutExactExpression(t *testing.T) {
	f := setup(t, catalog)
	cards := f.query(t, "li.card")
	g := Group{Representative: cards[0], Members: cards[:2]}

	loc := f.det.Locator(g, false)
	assert.Empty(t, loc.Primary)
	assert.Empty(t, loc.Fallback)
	require.Len(t, loc.Alternatives, 1)
	assert.Equal(t, cards, f.query(t, loc.Alternatives[0]), "alternative over-matches")
	for _, n := range cards {
		for _, a := range n.Attr {
			assert.False(t, strings.HasPrefix(a.Key, "data-"), "unrequested anchor %s", a.Key)
		}
	}

	loc = f.det.Locator(g, true)
	assert.Empty(t, loc.Primary)
	require.NotEmpty(t, loc.Fallback, "anchor union stands in for an inexact primary")
	assert.Equal(t, cards[:2], f.query(t, loc.Fallback))
}
