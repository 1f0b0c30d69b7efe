package engine

import (
	"strings"
	"testing"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/pagination"
	"github.com/dtnitsch/web-locator/pkg/parser"
	"github.com/dtnitsch/web-locator/pkg/structural"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// Estimated layout, 24px per line:
//
//	h1        0-24
//	li        24-72, 72-120, 120-168 (b at the second line of each)
//	button    168-216, span 192-216
const shopPage = `<html><body>
<h1 id="title">Catalog</h1>
<ul id="results">
<li class="card">Alpha <b class="price">$1</b></li>
<li class="card">Beta <b class="price">$2</b></li>
<li class="card">Gamma <b class="price">$3</b></li>
</ul>
<button class="next"><span>Next</span></button>
</body></html>`

func load(t *testing.T, src string) *Engine {
	t.Helper()
	p := &parser.Parser{}
	doc, err := p.Parse(models.ParseRequest{HTML: src, SkipReadability: true})
	require.NoError(t, err)
	e := New(models.EngineConfig{}, nil)
	e.SetDocument(doc)
	return e
}

func query(t *testing.T, e *Engine, css string) *html.Node {
	t.Helper()
	nodes, err := e.ev.Query(e.doc.Root, css)
	require.NoError(t, err)
	require.NotEmpty(t, nodes, css)
	return nodes[0]
}

func TestLocateAtPoint(t *testing.T) {
	e := load(t, shopPage)

	res := e.LocateAtPoint(10, 10)
	require.Equal(t, models.OutcomeOK, res.Outcome)
	require.NotNil(t, res.Element)
	assert.Equal(t, "h1", res.Element.Tag)
	assert.Equal(t, "Catalog", res.Element.Text)
	assert.Contains(t, res.Element.HTMLPreview, "Catalog")
	assert.Equal(t, 24.0, res.Box.Height)

	nodes, err := e.ev.Resolve(e.doc.Root, res.Locator.Primary)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "h1", dom.Tag(nodes[0]))
	assert.Empty(t, res.Locator.Fallback)
	assert.False(t, dom.HasAttr(nodes[0], models.DefaultAnchorAttribute))
}

func TestLocateAtPointFailures(t *testing.T) {
	t.Run("no document", func(t *testing.T) {
		e := New(models.EngineConfig{}, nil)
		res := e.LocateAtPoint(10, 10)
		assert.Equal(t, models.OutcomeNotFound, res.Outcome)
		require.NotNil(t, res.Error)
		assert.Contains(t, res.Error.Message, "no document")
	})

	t.Run("outside the page", func(t *testing.T) {
		e := load(t, shopPage)
		res := e.LocateAtPoint(10, 5000)
		assert.Equal(t, models.OutcomeNotFound, res.Outcome)
		assert.NotNil(t, res.Diagnostics)
	})
}

func TestLocateElementRejects(t *testing.T) {
	e := load(t, shopPage)

	h1 := query(t, e, "h1")
	res := e.LocateElement(h1.FirstChild)
	assert.Equal(t, models.OutcomeUnsupported, res.Outcome)

	li := query(t, e, "li.card")
	li.Parent.RemoveChild(li)
	res = e.LocateElement(li)
	assert.Equal(t, models.OutcomeStale, res.Outcome)

	res = e.LocateElement(nil)
	assert.Equal(t, models.OutcomeNotFound, res.Outcome)
}

func TestFallbackAnchorsOnlyWhenRequested(t *testing.T) {
	e := load(t, shopPage)
	e.RequestFallbacks(true)

	res := e.LocateAtPoint(10, 10)
	require.Equal(t, models.OutcomeOK, res.Outcome)
	require.NotEmpty(t, res.Locator.Fallback)

	h1 := query(t, e, "h1")
	assert.True(t, dom.HasAttr(h1, models.DefaultAnchorAttribute))
	nodes, err := e.ev.Resolve(e.doc.Root, res.Locator.Fallback)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Same(t, h1, nodes[0])
	assert.NotContains(t, res.Element.Attributes, models.DefaultAnchorAttribute)
}

type panickingScroller struct{}

func (panickingScroller) ScrollIntoView(*html.Node) error {
	panic("scroll hook exploded")
}

func TestEntryPointsTrapPanics(t *testing.T) {
	e := load(t, shopPage)
	e.SetScroller(panickingScroller{})

	res := e.DetectPagination("#results > li", pagination.Options{})
	assert.Equal(t, models.OutcomeNotFound, res.Outcome)
	assert.Equal(t, models.PaginationNone, res.Type)
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Error.Message, "DetectPagination")

	assert.Equal(t, models.OutcomeOK, e.LocateAtPoint(10, 10).Outcome)
}

func TestHoverModes(t *testing.T) {
	e := load(t, shopPage)

	t.Run("point", func(t *testing.T) {
		res := e.Hover(10, 200)
		require.Equal(t, models.OutcomeOK, res.Outcome)
		assert.Equal(t, "span", res.Element.Tag)
		assert.Nil(t, res.Group)
	})

	t.Run("pagination control", func(t *testing.T) {
		e.EnablePaginationCapture()
		defer e.DisablePaginationCapture()

		res := e.Hover(10, 200)
		require.Equal(t, models.OutcomeOK, res.Outcome)
		assert.Equal(t, "button", res.Element.Tag)
	})

	t.Run("group", func(t *testing.T) {
		e.EnableListCapture()
		defer e.DisableListCapture()

		res := e.Hover(10, 30)
		require.Equal(t, models.OutcomeOK, res.Outcome)
		require.NotNil(t, res.Group)
		assert.Equal(t, "li", res.Group.Tag)
		assert.Equal(t, 3, res.Group.MemberCount)
		assert.Equal(t, "li", res.Element.Tag)
		assert.Len(t, res.Peers, 2)
	})

	t.Run("field", func(t *testing.T) {
		e.EnableListCapture()
		e.SetContainer("#results > li")
		defer e.DisableListCapture()

		res := e.Hover(10, 50)
		require.Equal(t, models.OutcomeOK, res.Outcome)
		assert.Equal(t, "b", res.Element.Tag)
		require.Len(t, res.Fields, 1)
		assert.NotEmpty(t, res.Locator.Primary)
		require.Len(t, res.Peers, 2)
		assert.Equal(t, "$2", res.Peers[0].Element.Text)
		assert.Equal(t, "$3", res.Peers[1].Element.Text)
	})

	assert.Empty(t, e.Container())
}

func TestLocateFieldWarm(t *testing.T) {
	e := load(t, shopPage)
	e.SetContainer("#results > li")
	price := query(t, e, "li.card b")

	cold := e.LocateField(price, nil)
	require.Equal(t, models.OutcomeOK, cold.Outcome)
	assert.False(t, cold.FromWarm)
	assert.Equal(t, 3, cold.Matched)
	assert.Equal(t, 3, cold.Instances)

	warm := e.LocateField(price, []string{"//nav/a", cold.Locator.Primary})
	require.Equal(t, models.OutcomeOK, warm.Outcome)
	assert.True(t, warm.FromWarm)
	assert.Equal(t, cold.Locator.Primary, warm.Locator.Primary)
	assert.Equal(t, 3, warm.Matched)
}

func TestLocateFieldNeedsContainer(t *testing.T) {
	e := load(t, shopPage)
	res := e.LocateField(query(t, e, "b"), nil)
	assert.Equal(t, models.OutcomeNotFound, res.Outcome)
}

func TestFieldsFor(t *testing.T) {
	e := load(t, shopPage)

	res := e.FieldsFor("#results > li")
	require.Equal(t, models.OutcomeOK, res.Outcome)
	require.NotEmpty(t, res.Fields)
	for _, f := range res.Fields {
		assert.Equal(t, "#results > li", f.Container)
		assert.Equal(t, 3, f.Instances)
	}

	missing := e.FieldsFor("article")
	assert.Equal(t, models.OutcomeNotFound, missing.Outcome)
	assert.NotNil(t, missing.Fields)
}

func TestDetectGroups(t *testing.T) {
	e := load(t, shopPage)

	res := e.DetectGroups()
	require.Equal(t, models.OutcomeOK, res.Outcome)
	require.NotEmpty(t, res.Groups)
	assert.Equal(t, "li", res.Groups[0].Tag)
	assert.Len(t, res.Groups[0].Boxes, 3)

	empty := load(t, `<html><body><p>solo</p></body></html>`)
	none := empty.DetectGroups()
	assert.Equal(t, models.OutcomeOK, none.Outcome)
	assert.NotNil(t, none.Groups)
	assert.Empty(t, none.Groups)
}

func TestDetectGroupsWritesNoAnchorsByDefault(t *testing.T) {
	e := load(t, `<html><body>
<ul><li class="row">One <i>a</i></li><li class="row">Two <i>b</i></li></ul>
<ol><li class="row">Three <i>c</i></li><li class="row">Four <i>d</i></li></ol>
</body></html>`)

	res := e.DetectGroups()
	require.Equal(t, models.OutcomeOK, res.Outcome)
	dom.Walk(e.doc.Root, 0, func(n *html.Node, _ int) bool {
		assert.False(t, dom.HasAttr(n, models.DefaultAnchorAttribute), "anchor on <%s>", dom.Tag(n))
		return true
	})
	for _, g := range res.Groups {
		assert.Empty(t, g.Locator.Fallback)
	}
}

func TestDetectPaginationUsesContainer(t *testing.T) {
	e := load(t, shopPage)
	e.SetContainer("#results > li")

	res := e.DetectPagination("", pagination.Options{})
	require.Equal(t, models.OutcomeOK, res.Outcome)
	assert.Equal(t, models.PaginationClickNext, res.Type)
	assert.NotEmpty(t, res.Selector)
}

func TestSetDocumentSwitches(t *testing.T) {
	e := load(t, shopPage)
	first := e.Document()
	before := e.DetectGroups()
	require.NotEmpty(t, before.Groups)

	e.SetDocument(first)
	assert.Same(t, first, e.Document())

	p := &parser.Parser{}
	other, err := p.Parse(models.ParseRequest{HTML: `<html><body><p>solo</p></body></html>`, SkipReadability: true})
	require.NoError(t, err)
	e.SetDocument(other)
	assert.Empty(t, e.DetectGroups().Groups)

	e.SetDocument(nil)
	assert.Equal(t, models.OutcomeNotFound, e.DetectGroups().Outcome)
}

func TestSnapshotPreviewIsSanitized(t *testing.T) {
	e := load(t, `<html><body><div id="x" onclick="steal()">Hi<script>alert(1)</script></div></body></html>`)
	res := e.LocateElement(query(t, e, "#x"))
	require.Equal(t, models.OutcomeOK, res.Outcome)
	assert.Contains(t, res.Element.HTMLPreview, "Hi")
	assert.False(t, strings.Contains(res.Element.HTMLPreview, "onclick"))
	assert.False(t, strings.Contains(res.Element.HTMLPreview, "<script"))
}

func TestRenderPreviewStopsAtLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for range 5000 {
		b.WriteString(`<p class="row">é paragraph text</p>`)
	}
	b.WriteString("</body></html>")
	e := load(t, b.String())
	body := query(t, e, "body")

	src, ok := renderPreview(body, previewSource)
	require.True(t, ok)
	assert.LessOrEqual(t, len(src), previewSource)
	assert.True(t, strings.HasPrefix(src, "<body>"))

	res := e.LocateElement(body)
	require.NotNil(t, res.Element)
	assert.NotEmpty(t, res.Element.HTMLPreview)
	assert.LessOrEqual(t, len([]rune(res.Element.HTMLPreview)), previewSanitized)
}

func TestFieldResultFlagsPartialMatch(t *testing.T) {
	r := fieldResult("li.item", structural.Field{Relative: "span[2]", Matched: 1, Instances: 3, Diverged: 2})
	assert.Equal(t, models.OutcomeOK, r.Outcome)
	assert.True(t, r.Partial)
	require.NotNil(t, r.Diagnostics)
	assert.Equal(t, 2, r.Diagnostics.Counts["diverged_samples"])
	assert.Contains(t, r.Diagnostics.Notes, "field matched 1 of 3 instances")

	whole := fieldResult("li.item", structural.Field{Relative: "b", Matched: 3, Instances: 3})
	assert.False(t, whole.Partial)
	assert.Nil(t, whole.Diagnostics)
}
