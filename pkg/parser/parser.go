package parser

import (
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/go-shiori/go-readability"
	"github.com/pemistahl/lingua-go"
	"golang.org/x/net/html"
)

type Parser struct{}

// detector is shared; lingua detectors are safe for concurrent use.
var detector = sync.OnceValue(func() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().FromLanguages(languages...).Build()
})

// languages the pagination lexicon covers; detection is limited to them.
var languages = []lingua.Language{
	lingua.English, lingua.Spanish, lingua.French, lingua.German,
	lingua.Portuguese, lingua.Italian, lingua.Dutch, lingua.Russian,
	lingua.Japanese, lingua.Chinese, lingua.Korean,
}

// Parse loads static HTML into a Document: declarative shadow roots and
// srcdoc frames are attached, title and language are filled, and a layout
// estimate is computed.
func (p *Parser) Parse(req models.ParseRequest) (*dom.Document, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(req.HTML))
	if err != nil {
		return nil, err
	}
	root := gq.Nodes[0]

	doc := dom.New(root)
	doc.URL = req.URL
	if req.ViewportWidth > 0 && req.ViewportHeight > 0 {
		doc.Viewport = dom.Rect{Width: float64(req.ViewportWidth), Height: float64(req.ViewportHeight)}
	}

	attachTrees(doc, root, 0)

	doc.Title = normalizeText(gq.Find("title").First().Text())
	if !req.SkipReadability {
		p.enrich(doc, req)
	}
	if req.DetectLanguage {
		doc.Language = p.detectLanguage(gq.Find("body").Text())
	}

	doc.EstimateLayout()
	return doc, nil
}

// enrich lets go-readability find the title and site name.
func (p *Parser) enrich(doc *dom.Document, req models.ParseRequest) {
	parsedURL, err := url.Parse(req.URL)
	if err != nil || req.URL == "" {
		parsedURL = &url.URL{Scheme: "https", Host: "localhost"}
	}
	readabilityParser := readability.NewParser()
	article, err := readabilityParser.Parse(strings.NewReader(req.HTML), parsedURL)
	if err != nil {
		return
	}
	if t := normalizeText(article.Title); t != "" {
		doc.Title = t
	}
	doc.SiteName = article.SiteName
}

func (p *Parser) detectLanguage(text string) string {
	text = dom.Truncate(normalizeText(text), 2000)
	if text == "" {
		return ""
	}
	lang, ok := detector().DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

// attachTrees moves declarative shadow DOM templates into shadow roots and
// parses iframe srcdoc content into frame documents.
func attachTrees(doc *dom.Document, parent *html.Node, depth int) {
	if depth > 256 {
		return
	}
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type != html.ElementNode {
			c = next
			continue
		}
		switch {
		case dom.Tag(c) == "template" && isShadowTemplate(c) && dom.IsElement(parent) && doc.ShadowRoot(parent) == nil:
			sr := &html.Node{Type: html.DocumentNode}
			for k := c.FirstChild; k != nil; {
				kn := k.NextSibling
				c.RemoveChild(k)
				sr.AppendChild(k)
				k = kn
			}
			parent.RemoveChild(c)
			doc.AttachShadow(parent, sr)
			attachTrees(doc, sr, depth+1)
		case dom.Tag(c) == "iframe" && dom.HasAttr(c, "srcdoc"):
			if frame, err := html.Parse(strings.NewReader(dom.Attr(c, "srcdoc"))); err == nil {
				doc.AttachFrame(c, frame)
				attachTrees(doc, frame, depth+1)
			}
			attachTrees(doc, c, depth+1)
		default:
			attachTrees(doc, c, depth+1)
		}
		c = next
	}
}

func isShadowTemplate(n *html.Node) bool {
	return dom.HasAttr(n, "shadowrootmode") || dom.HasAttr(n, "shadowroot")
}

// normalizeText collapses whitespace runs into single spaces.
func normalizeText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
