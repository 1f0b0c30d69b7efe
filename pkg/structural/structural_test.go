package structural

import (
	"errors"
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

const listing = `<html><body><ul>
<li class="item"><h3 class="title">Alpha</h3><span class="price">$1</span><div><p>a1</p><p>a2</p></div><span class="val">x</span><span class="val">y</span><a href="/1">View</a></li>
<li class="item"><h3 class="title">Beta</h3><span class="price sale item-482913">$2</span><div><p>b1</p><p>b2</p></div><span class="val">x</span><span class="val">y</span><a href="/2">View</a></li>
<li class="item"><h3 class="title">Gamma</h3><span class="price">$3</span><div><p>c1</p><p>c2</p></div><span class="val">x</span><span class="val">y</span><a href="/3">View</a></li>
</ul><p id="outside">elsewhere</p></body></html>`

const container = "//li[contains(@class,'item')]"

func setup(t *testing.T, cfg Config) (*dom.Document, *Builder, *locator.Evaluator) {
	t.Helper()
	p := &parser.Parser{}
	doc, err := p.Parse(models.ParseRequest{HTML: listing, SkipReadability: true})
	require.NoError(t, err)
	ev := locator.NewEvaluator(doc, true, nil, nil)
	anchors := session.New("")
	anchors.OnAssign = func(*html.Node) { ev.Forget() }
	return doc, New(ev, cfg, anchors, nil, nil, nil, nil), ev
}

func defaults() Config {
	return ConfigFrom(models.EngineConfig{})
}

func query(t *testing.T, ev *locator.Evaluator, ctx *html.Node, expr string) []*html.Node {
	t.Helper()
	nodes, err := ev.Query(ctx, expr)
	require.NoError(t, err)
	return nodes
}

func TestBuildGeneralizesSharedClasses(t *testing.T) {
	doc, b, ev := setup(t, defaults())
	target := query(t, ev, doc.Root, "li.item:nth-of-type(2) span.price")[0]

	f, err := b.Build(container, target, false)
	require.NoError(t, err)
	assert.Equal(t, "span[contains(@class,'price')]", f.Relative)
	assert.Equal(t, 3, f.Matched)
	assert.Equal(t, 3, f.Instances)

	prices := query(t, ev, doc.Root, f.Locator.Primary)
	require.Len(t, prices, 3)
	assert.Equal(t, []string{"$1", "$2", "$3"}, []string{dom.Text(prices[0], 0), dom.Text(prices[1], 0), dom.Text(prices[2], 0)})
}

func TestBuildStepKinds(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "forced ordinals", target: "li.item:nth-of-type(1) div > p:nth-of-type(2)", want: "div[1]/p[2]"},
		{name: "colliding classes", target: "li.item:nth-of-type(3) span.val:nth-of-type(3)", want: "span[contains(@class,'val')][2]"},
		{name: "plain class", target: "li.item:nth-of-type(1) h3", want: "h3[contains(@class,'title')]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, b, ev := setup(t, defaults())
			target := query(t, ev, doc.Root, tt.target)
			require.Len(t, target, 1)

			f, err := b.Build(container, target[0], false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Relative)
			assert.Equal(t, 3, f.Matched)
		})
	}
}

func TestBuildFallbackResolves(t *testing.T) {
	doc, b, ev := setup(t, defaults())
	target := query(t, ev, doc.Root, "li.item:nth-of-type(2) div > p:nth-of-type(1)")[0]

	f, err := b.Build(container, target, true)
	require.NoError(t, err)
	require.NotEmpty(t, f.Locator.Fallback)
	assert.Contains(t, f.Locator.Fallback, "@data-locator-anchor=")

	nodes := query(t, ev, doc.Root, f.Locator.Fallback)
	require.Len(t, nodes, 1)
	assert.Same(t, target, nodes[0])

	again, err := b.Build(container, target, true)
	require.NoError(t, err)
	assert.Equal(t, f.Locator.Fallback, again.Locator.Fallback, "anchors are reused")
}

func TestBuildCSSContainer(t *testing.T) {
	doc, b, ev := setup(t, defaults())
	target := query(t, ev, doc.Root, "li.item:nth-of-type(3) a")[0]

	f, err := b.Build("ul > li.item", target, false)
	require.NoError(t, err)
	assert.Equal(t, f.Relative, f.Locator.Primary)
	assert.Equal(t, 3, f.Matched)
}

func TestBuildOutcomes(t *testing.T) {
	doc, b, ev := setup(t, defaults())
	outside := query(t, ev, doc.Root, "#outside")[0]

	_, err := b.Build(container, outside, false)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = b.Build("//table[contains(@class,'none')]", outside, false)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	cfg := defaults()
	cfg.DepthCap = 1
	doc, b, ev = setup(t, cfg)
	deep := query(t, ev, doc.Root, "li.item:nth-of-type(1) div > p:nth-of-type(1)")[0]
	_, err = b.Build(container, deep, false)
	assert.True(t, errors.Is(err, models.ErrExhausted))
}

func TestFields(t *testing.T) {
	_, b, _ := setup(t, defaults())
	fields, err := b.Fields(container, false)
	require.NoError(t, err)

	var rels []string
	for _, f := range fields {
		rels = append(rels, f.Relative)
	}
	assert.Equal(t, []string{
		"h3[contains(@class,'title')]",
		"span[contains(@class,'price')]",
		"div[1]/p[1]",
		"div[1]/p[2]",
		"span[contains(@class,'val')][1]",
		"span[contains(@class,'val')][2]",
		"a[1]",
	}, rels)
}

func TestFieldsPerParentCap(t *testing.T) {
	cfg := defaults()
	cfg.MaxFieldsPerParent = 2
	_, b, _ := setup(t, cfg)

	fields, err := b.Fields(container, false)
	require.NoError(t, err)
	require.Len(t, fields, 4, "two direct leaves of the item plus two under the div")
}

func TestBuildReportsPartialMatch(t *testing.T) {
	p := &parser.Parser{}
	doc, err := p.Parse(models.ParseRequest{HTML: `<html><body><ul>
<li class="item"><span>Alpha</span><span>new</span></li>
<li class="item"><span>Beta</span></li>
<li class="item"><span>Gamma</span></li>
</ul></body></html>`, SkipReadability: true})
	require.NoError(t, err)
	ev := locator.NewEvaluator(doc, true, nil, nil)
	b := New(ev, defaults(), nil, nil, nil, nil, nil)
	badge := query(t, ev, doc.Root, "li.item:nth-of-type(1) span:nth-of-type(2)")[0]

	f, err := b.Build(container, badge, false)
	require.NoError(t, err)
	assert.Equal(t, "span[2]", f.Relative)
	assert.Equal(t, 1, f.Matched)
	assert.Equal(t, 3, f.Instances)
	assert.Equal(t, 2, f.Diverged)
	assert.True(t, f.Partial())

	full, err := b.Build(container, query(t, ev, doc.Root, "li.item:nth-of-type(2) span")[0], false)
	require.NoError(t, err)
	assert.False(t, full.Partial())
	assert.Zero(t, full.Diverged)
}
