package locator

import (
	"errors"
	"testing"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const listingPage = `<html><body>
<ul id="results">
  <li class="item item-482913"><a href="/a" class="title">Alpha</a><span class="price">$1</span></li>
  <li class="item item-771204"><a href="/b" class="title">Beta</a><span class="price">$2</span></li>
  <li class="item featured"><a href="/c" class="title">Gamma</a><span class="price">$3</span><span class="badge">new</span></li>
</ul>
<my-widget id="w"><template shadowrootmode="open"><button class="buy" data-testid="buy">Buy</button></template></my-widget>
<iframe id="f" srcdoc="&lt;p class='inner'&gt;framed&lt;/p&gt;"></iframe>
</body></html>`

func loadDoc(t *testing.T, src string) *dom.Document {
	t.Helper()
	p := &parser.Parser{}
	doc, err := p.Parse(models.ParseRequest{HTML: src, SkipReadability: true})
	require.NoError(t, err)
	return doc
}

func tags(nodes []*html.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = dom.Tag(n) + ":" + dom.Text(n, 20)
	}
	return out
}

func TestSniff(t *testing.T) {
	tests := []struct {
		expr string
		want Kind
	}{
		{"//li", XPath},
		{"  (//li)[2]", XPath},
		{"ul > li", CSS},
		{"#results", CSS},
		{"/html/body", CSS},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, Sniff(tt.expr))
		})
	}
}

func TestQueryCSS(t *testing.T) {
	doc := loadDoc(t, listingPage)
	ev := NewEvaluator(doc, true, nil, nil)

	nodes, err := ev.Query(doc.Root, "li.item > span.price")
	require.NoError(t, err)
	assert.Equal(t, []string{"span:$1", "span:$2", "span:$3"}, tags(nodes))

	nodes, err = ev.Query(doc.Root, "span.badge, a.title")
	require.NoError(t, err)
	assert.Len(t, nodes, 4, "comma alternatives are unioned")
	assert.Equal(t, "a:Alpha", tags(nodes)[0], "union keeps document order")
}

func TestQueryCrossesScopes(t *testing.T) {
	doc := loadDoc(t, listingPage)
	ev := NewEvaluator(doc, true, nil, nil)

	nodes, err := ev.Query(doc.Root, "button.buy")
	require.NoError(t, err)
	assert.Empty(t, nodes, "plain selectors stop at the shadow boundary")

	nodes, err = ev.Query(doc.Root, "#w >>> button.buy")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "buy", dom.Attr(nodes[0], "data-testid"))

	nodes, err = ev.Query(doc.Root, "#f >>> p.inner")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "framed", dom.Text(nodes[0], 0))
}

func TestResolveFallbackChain(t *testing.T) {
	doc := loadDoc(t, listingPage)
	ev := NewEvaluator(doc, true, nil, nil)

	nodes, err := ev.Resolve(doc.Root, `[data-testid="gone"], li.featured span.badge, span.price`)
	require.NoError(t, err)
	require.Len(t, nodes, 1, "first alternative with matches wins")
	assert.Equal(t, "new", dom.Text(nodes[0], 0))
}

func TestQueryUnsupported(t *testing.T) {
	doc := loadDoc(t, listingPage)
	ev := NewEvaluator(doc, false, nil, nil)

	_, err := ev.Query(doc.Root, "li[[")
	assert.True(t, errors.Is(err, models.ErrUnsupported))

	_, err = ev.Query(doc.Root, "//li[starts-with(@class,'item')]")
	assert.True(t, errors.Is(err, models.ErrUnsupported))
}

func TestXPathNativeAndFallbackAgree(t *testing.T) {
	doc := loadDoc(t, listingPage)
	native := NewEvaluator(doc, true, nil, nil)
	fallback := NewEvaluator(doc, false, nil, nil)

	exprs := []string{
		"//li",
		"//li[contains(@class,'item')]",
		"//ul/li[2]/a",
		"(//li)[3]",
		"(//span[contains(@class,'price')])[2]",
		"//li[contains(@class,'item') and count(*)=3]",
		"//a[@href='/b']",
		"//*[@href='/a' or @href='/c']",
		"//li/span[@class]",
		"//li[contains(@class,'item')][3]/span[2]",
		"//ul[@id=\"results\"]//span",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			want, err := native.Query(doc.Root, expr)
			require.NoError(t, err)
			got, err := fallback.Query(doc.Root, expr)
			require.NoError(t, err)
			assert.Equal(t, tags(want), tags(got))
			assert.NotEmpty(t, got)
		})
	}
}

func TestRelativeXPathFromContainer(t *testing.T) {
	doc := loadDoc(t, listingPage)
	items, err := NewEvaluator(doc, true, nil, nil).Query(doc.Root, "//li")
	require.NoError(t, err)
	require.Len(t, items, 3)

	for _, native := range []bool{true, false} {
		ev := NewEvaluator(doc, native, nil, nil)
		got, err := ev.QueryXPath(items[1], "span[contains(@class,'price')]")
		require.NoError(t, err)
		assert.Equal(t, []string{"span:$2"}, tags(got))

		got, err = ev.QueryXPath(items[2], ".//span[2]")
		require.NoError(t, err)
		assert.Equal(t, []string{"span:new"}, tags(got))
	}
}

func TestSplitTopLevel(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "a, b", want: []string{"a", "b"}},
		{in: `[title="x, y"], b`, want: []string{`[title="x, y"]`, "b"}},
		{in: "li:not(.a, .b), p", want: []string{"li:not(.a, .b)", "p"}},
		{in: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitTopLevel(tt.in, ','))
		})
	}
}

func TestQueryMemoForget(t *testing.T) {
	doc := loadDoc(t, listingPage)
	ev := NewEvaluator(doc, true, nil, nil)

	nodes, err := ev.Query(doc.Root, `[data-locator-anchor="x-1"]`)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	li, err := ev.Query(doc.Root, "li.featured")
	require.NoError(t, err)
	dom.SetAttr(li[0], "data-locator-anchor", "x-1")
	ev.Forget()

	nodes, err = ev.Query(doc.Root, `[data-locator-anchor="x-1"]`)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"price", "'price'", true},
		{"it's", `"it's"`, true},
		{`a'b"c`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Literal(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []string{"a", "b"}, Quotable([]string{"a", `x'"y`, "b"}))
	assert.Equal(t, "contains(@class,'a') and contains(@class,'b')", ClassPredicate([]string{"a", "b"}))
}
