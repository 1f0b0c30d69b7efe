package parser

import (
	"testing"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func find(root *html.Node, tag string) *html.Node {
	for _, n := range dom.Elements(root, 0) {
		if dom.Tag(n) == tag {
			return n
		}
	}
	return nil
}

func TestParseAttachesShadowAndFrames(t *testing.T) {
	src := `<html><head><title>  Shop
	Page </title></head><body>
<my-card id="card"><template shadowrootmode="open"><button>Buy</button></template><span>light</span></my-card>
<iframe srcdoc="<p>inside</p>"></iframe>
</body></html>`

	p := &Parser{}
	doc, err := p.Parse(models.ParseRequest{URL: "https://shop.example/", HTML: src, SkipReadability: true})
	require.NoError(t, err)

	assert.Equal(t, "Shop Page", doc.Title)
	assert.Equal(t, "https://shop.example/", doc.URL)

	host := find(doc.Root, "my-card")
	require.NotNil(t, host)
	assert.Nil(t, find(host, "template"))
	sr := doc.ShadowRoot(host)
	require.NotNil(t, sr)
	btn := find(sr, "button")
	require.NotNil(t, btn)
	assert.True(t, doc.Attached(btn))
	assert.Nil(t, find(doc.Root, "button"), "shadow content stays out of the light tree")

	iframe := find(doc.Root, "iframe")
	frame := doc.FrameDocument(iframe)
	require.NotNil(t, frame)
	assert.Equal(t, "inside", dom.Text(find(frame, "p"), 0))
}

func TestParseViewportAndLayout(t *testing.T) {
	p := &Parser{}
	doc, err := p.Parse(models.ParseRequest{
		HTML:            `<html><body><h1>Title</h1><p>Body</p></body></html>`,
		ViewportWidth:   390,
		ViewportHeight:  844,
		SkipReadability: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 390.0, doc.Viewport.Width)
	assert.Equal(t, 844.0, doc.ScrollHeight)
	p1 := find(doc.Root, "p")
	assert.Equal(t, 24.0, doc.Box(p1).Y)
	assert.Equal(t, 390.0, doc.Box(p1).Width)
}

func TestParseDetectsLanguage(t *testing.T) {
	p := &Parser{}
	doc, err := p.Parse(models.ParseRequest{
		HTML: `<html><body><p>Der schnelle braune Fuchs springt über den faulen Hund und läuft
		danach weiter in den Wald, wo er sich unter einem großen Baum ausruht.</p></body></html>`,
		DetectLanguage:  true,
		SkipReadability: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "de", doc.Language)

	quiet, err := p.Parse(models.ParseRequest{HTML: `<p>Der schnelle braune Fuchs</p>`, SkipReadability: true})
	require.NoError(t, err)
	assert.Empty(t, quiet.Language)
}
