package engine

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/group"
	"golang.org/x/net/html"
)

const (
	snapshotText     = 200
	snapshotAttr     = 200
	previewSource    = 2000
	previewSanitized = 500
)

func pointFailure(err error) models.PointResult {
	return models.PointResult{
		Outcome:     models.OutcomeOf(err),
		Error:       models.NewErrorInfo(err),
		Diagnostics: &models.Diagnostics{Notes: []string{err.Error()}},
	}
}

// LocateAtPoint returns the point locator of the deepest element at (x, y).
func (e *Engine) LocateAtPoint(x, y float64) (res models.PointResult) {
	defer trap(e, "LocateAtPoint", &res, pointFailure)
	n, err := e.nodeAt(x, y)
	if err != nil {
		return pointFailure(err)
	}
	return e.locate(n)
}

// LocateElement returns the point locator of n.
func (e *Engine) LocateElement(n *html.Node) (res models.PointResult) {
	defer trap(e, "LocateElement", &res, pointFailure)
	return e.locate(n)
}

// Hover resolves (x, y) and answers according to the capture mode: field
// locators in list mode with a container, the enclosing group in list mode
// without one, the enclosing control in pagination mode, and a point
// locator otherwise.
func (e *Engine) Hover(x, y float64) (res models.PointResult) {
	defer trap(e, "Hover", &res, pointFailure)
	n, err := e.nodeAt(x, y)
	if err != nil {
		return pointFailure(err)
	}
	switch {
	case e.listMode && e.container != "":
		return e.hoverField(n)
	case e.listMode:
		return e.hoverGroup(n)
	case e.pageMode:
		return e.locate(clickableAncestor(n))
	}
	return e.locate(n)
}

func (e *Engine) nodeAt(x, y float64) (*html.Node, error) {
	if e.doc == nil {
		return nil, fmt.Errorf("%w: no document loaded", models.ErrNotFound)
	}
	n := e.doc.ElementFromPoint(x, y, e.cfg.MaxScanElements)
	if n == nil {
		return nil, fmt.Errorf("%w: no element at (%.0f, %.0f)", models.ErrNotFound, x, y)
	}
	return n, nil
}

// check rejects nodes the engine cannot locate.
func (e *Engine) check(n *html.Node) error {
	switch {
	case e.doc == nil:
		return fmt.Errorf("%w: no document loaded", models.ErrNotFound)
	case n == nil:
		return fmt.Errorf("%w: no node", models.ErrNotFound)
	case !dom.IsElement(n):
		return fmt.Errorf("%w: node is not an element", models.ErrUnsupported)
	case !e.doc.Attached(n):
		return fmt.Errorf("%w: node is no longer in the document", models.ErrStale)
	}
	return nil
}

func (e *Engine) locate(n *html.Node) models.PointResult {
	if err := e.check(n); err != nil {
		return pointFailure(err)
	}
	loc, err := e.finder.Locate(n)
	if err != nil {
		res := pointFailure(err)
		res.Element = e.snapshot(n)
		return res
	}
	if e.fallbacks {
		loc.Fallback = e.pointFallback(n)
	}
	e.logger.Debug("located element", "tag", dom.Tag(n), "selector", loc.Primary)
	return models.PointResult{
		Outcome: models.OutcomeOK,
		Locator: loc,
		Box:     toBox(e.doc.Box(n)),
		Element: e.snapshot(n),
	}
}

// pointFallback anchors n and scopes the anchor selector into n's tree.
func (e *Engine) pointFallback(n *html.Node) string {
	prefix, err := e.finder.HostPrefix(n)
	if err != nil {
		e.logger.Debug("host prefix unavailable", "error", err)
		return ""
	}
	return prefix + e.anchors.CSS(e.anchors.Anchor(n))
}

func (e *Engine) hoverField(n *html.Node) models.PointResult {
	if err := e.check(n); err != nil {
		return pointFailure(err)
	}
	f, err := e.builder.Build(e.container, n, e.fallbacks)
	if err != nil {
		e.logger.Debug("hover outside list field", "error", err)
		return e.locate(n)
	}
	res := models.PointResult{
		Outcome: models.OutcomeOK,
		Locator: f.Locator,
		Box:     toBox(e.doc.Box(n)),
		Element: e.snapshot(n),
		Fields:  []string{f.Locator.Primary},
	}
	instances, _ := e.builder.Instances(e.container)
	for _, inst := range instances {
		nodes, err := e.ev.QueryXPath(inst, f.Relative)
		if err != nil || len(nodes) == 0 || nodes[0] == n {
			continue
		}
		res.Peers = append(res.Peers, e.peer(nodes[0]))
	}
	return res
}

func (e *Engine) hoverGroup(n *html.Node) models.PointResult {
	if err := e.check(n); err != nil {
		return pointFailure(err)
	}
	g, ok := e.groups.GroupOf(n)
	if !ok {
		return e.locate(n)
	}
	member := memberOf(g, n)
	desc := e.groups.Describe(g, e.fallbacks)
	res := models.PointResult{
		Outcome: models.OutcomeOK,
		Locator: desc.Locator,
		Box:     toBox(e.doc.Box(member)),
		Element: e.snapshot(member),
		Group:   &desc,
	}
	for _, m := range g.Members {
		if m != member {
			res.Peers = append(res.Peers, e.peer(m))
		}
	}
	return res
}

func memberOf(g group.Group, n *html.Node) *html.Node {
	for a := n; a != nil; a = dom.ParentElement(a) {
		if g.Contains(a) {
			return a
		}
	}
	return n
}

// clickableAncestor returns the nearest link or button enclosing n, or n.
func clickableAncestor(n *html.Node) *html.Node {
	for a, hops := n, 0; a != nil && hops < 6; a, hops = dom.ParentElement(a), hops+1 {
		switch dom.Tag(a) {
		case "a", "button":
			return a
		}
		if r := dom.Attr(a, "role"); r == "button" || r == "link" {
			return a
		}
	}
	return n
}

func (e *Engine) peer(n *html.Node) models.Peer {
	box := toBox(e.doc.Box(n))
	return models.Peer{Element: *e.snapshot(n), Box: box}
}

// snapshot describes n for display. The preview is sanitized markup.
func (e *Engine) snapshot(n *html.Node) *models.ElementSnapshot {
	if !dom.IsElement(n) {
		return nil
	}
	s := &models.ElementSnapshot{
		Tag:     dom.Tag(n),
		ID:      dom.Attr(n, "id"),
		Classes: dom.Classes(n),
		Text:    dom.Text(n, snapshotText),
		Box:     toBox(e.doc.Box(n)),
	}
	for _, a := range n.Attr {
		if a.Key == e.anchors.Attr || a.Key == "class" || a.Key == "id" {
			continue
		}
		if s.Attributes == nil {
			s.Attributes = make(map[string]string)
		}
		s.Attributes[a.Key] = dom.Truncate(a.Val, snapshotAttr)
	}

	if src, ok := renderPreview(n, previewSource); ok {
		clean := e.policy.Sanitize(src)
		s.HTMLPreview = dom.Truncate(strings.TrimSpace(clean), previewSanitized)
	}
	return s
}

var errPreviewFull = errors.New("preview full")

// cappedBuffer refuses writes past limit bytes, which stops html.Render
// early on large subtrees.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := max(b.limit-b.buf.Len(), 0)
	if len(p) > room {
		b.buf.Write(p[:room])
		return room, errPreviewFull
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

func (b *cappedBuffer) WriteByte(c byte) error {
	_, err := b.Write([]byte{c})
	return err
}

// renderPreview renders at most limit bytes of n's markup.
func renderPreview(n *html.Node, limit int) (string, bool) {
	b := &cappedBuffer{limit: limit}
	if err := html.Render(b, n); err != nil && !errors.Is(err, errPreviewFull) {
		return "", false
	}
	return strings.ToValidUTF8(b.buf.String(), ""), true
}

func toBox(r dom.Rect) models.Box {
	return models.Box{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}
