package fingerprint

import (
	"testing"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const page = `<html><body>
<table id="t"><thead><tr><th class="h">Name</th><th>Qty</th></tr></thead>
<tbody>
<tr class="row"><td class="name">Apple</td><td>3</td></tr>
<tr class="row"><td class="name">Banana split deluxe</td><td>12</td></tr>
</tbody></table>
<ul>
<li class="card c-9f3a21b7" data-tracking="x1" aria-label="one" onclick="go()"><a href="/a">Alpha</a><span class="meta">2 days</span></li>
<li class="card c-77ab1e0d" data-tracking="x2" aria-label="two"><a href="/b">Bravo, a longer title</a><span class="meta">1 hour</span></li>
<li class="card featured"><img src="x.png"><span class="meta"></span></li>
</ul>
<div class="card">not a list item</div>
</body></html>`

func load(t *testing.T) *dom.Document {
	t.Helper()
	p := &parser.Parser{}
	doc, err := p.Parse(models.ParseRequest{HTML: page, SkipReadability: true})
	require.NoError(t, err)
	return doc
}

func byTag(doc *dom.Document, tag string) []*html.Node {
	var out []*html.Node
	for _, n := range dom.Elements(doc.Root, 0) {
		if dom.Tag(n) == tag {
			out = append(out, n)
		}
	}
	return out
}

func TestSignatureIgnoresValues(t *testing.T) {
	doc := load(t)
	e := New(models.DefaultAnchorAttribute)

	rows := byTag(doc, "tr")
	require.Len(t, rows, 3)
	assert.Equal(t, e.Of(rows[1]).Signature, e.Of(rows[2]).Signature, "body rows differ only in cell text")
	assert.Equal(t, "td.name,td", e.Of(rows[1]).ChildShape)

	items := byTag(doc, "li")
	require.Len(t, items, 3)
	a, b := e.Of(items[0]), e.Of(items[1])
	assert.Equal(t, a.Signature, b.Signature, "volatile classes and handlers are ignored")
	assert.Equal(t, "card", a.ClassSignature)
	assert.Equal(t, "aria-label", a.AttrSignature)
	assert.Equal(t, "a:T,span.meta:T", a.ChildShape)
}

func TestTableShapeUsesHeader(t *testing.T) {
	doc := load(t)
	e := New(models.DefaultAnchorAttribute)
	table := byTag(doc, "table")[0]
	assert.Equal(t, "table:th.h,th", e.Of(table).ChildShape)
}

func TestFingerprintDeterministic(t *testing.T) {
	doc := load(t)
	items := byTag(doc, "li")

	first := New(models.DefaultAnchorAttribute).Of(items[0])
	e := New(models.DefaultAnchorAttribute)
	for range 3 {
		assert.Equal(t, first, e.Of(items[0]))
	}
	e.Clear()
	assert.Equal(t, first, e.Of(items[0]))
}

func TestAnchorAttributeIgnored(t *testing.T) {
	doc := load(t)
	e := New(models.DefaultAnchorAttribute)
	item := byTag(doc, "li")[1]
	before := e.Of(item).Signature

	dom.SetAttr(item, models.DefaultAnchorAttribute, "abc-1")
	assert.Equal(t, before, New(models.DefaultAnchorAttribute).Of(item).Signature)
}

func TestTextStats(t *testing.T) {
	doc := load(t)
	e := New(models.DefaultAnchorAttribute)
	items := byTag(doc, "li")

	st := e.Of(items[0]).Text
	assert.True(t, st.HasText)
	assert.Equal(t, 1, st.Links)
	assert.Equal(t, 0, st.Images)
	assert.Equal(t, 20, st.Length)

	img := e.Of(items[2]).Text
	assert.False(t, img.HasText)
	assert.Equal(t, 1, img.Images)
	assert.Equal(t, 0, img.Length)
}

func TestSimilarity(t *testing.T) {
	doc := load(t)
	e := New(models.DefaultAnchorAttribute)
	items := byTag(doc, "li")
	div := byTag(doc, "div")[0]
	rows := byTag(doc, "tr")

	tests := []struct {
		name    string
		a, b    *html.Node
		atLeast float64
		below   float64
	}{
		{name: "same record shape", a: items[0], b: items[1], atLeast: 0.95, below: 1.01},
		{name: "identical node", a: items[0], b: items[0], atLeast: 1, below: 1.01},
		{name: "different tags", a: items[0], b: div, atLeast: 0, below: 0.01},
		{name: "diverging children", a: items[0], b: items[2], atLeast: 0, below: DefaultThreshold},
		{name: "body rows", a: rows[1], b: rows[2], atLeast: DefaultThreshold, below: 1.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(e.Of(tt.a), e.Of(tt.b))
			assert.GreaterOrEqual(t, got, tt.atLeast)
			assert.Less(t, got, tt.below)
			assert.InDelta(t, got, Similarity(e.Of(tt.b), e.Of(tt.a)), 1e-9, "symmetric")
		})
	}
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 1.0, overlap(nil, nil))
	assert.Equal(t, 0.0, overlap([]string{"a"}, nil))
	assert.InDelta(t, 1.0/3, overlap([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
}
