package dom

import (
	"strings"

	"golang.org/x/net/html"
)

const estimatedLineHeight = 24

// Rect is a box in page coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// Bottom returns the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Right returns the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Empty reports a zero-area box.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether the point lies inside a non-empty box.
func (r Rect) Contains(x, y float64) bool {
	return !r.Empty() && x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Union returns the smallest box covering both; empty boxes are ignored.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x := min(r.X, o.X)
	y := min(r.Y, o.Y)
	return Rect{X: x, Y: y, Width: max(r.Right(), o.Right()) - x, Height: max(r.Bottom(), o.Bottom()) - y}
}

// Layout is the rendering state of one element.
type Layout struct {
	Box     Rect
	Visible bool
}

// SetLayout records the box and visibility of n. Callers with a live
// rendering use it to override the estimate.
func (d *Document) SetLayout(n *html.Node, l Layout) {
	d.layout[n] = l
}

// HasCapturedLayout reports whether boxes came from a real rendering.
func (d *Document) HasCapturedLayout() bool {
	return d.captured
}

// Box returns the bounding box of n (zero when unknown).
func (d *Document) Box(n *html.Node) Rect {
	return d.layout[n].Box
}

// Visible reports whether n renders.
func (d *Document) Visible(n *html.Node) bool {
	if !IsElement(n) {
		return false
	}
	if l, ok := d.layout[n]; ok {
		return l.Visible
	}
	for a := n; a != nil; a = d.ComposedParent(a) {
		if !selfVisible(a) {
			return false
		}
	}
	return true
}

func selfVisible(n *html.Node) bool {
	tag := Tag(n)
	if nonRendered[tag] {
		return false
	}
	if HasAttr(n, "hidden") {
		return false
	}
	if tag == "input" && strings.EqualFold(Attr(n, "type"), "hidden") {
		return false
	}
	style := strings.ToLower(strings.ReplaceAll(Attr(n, "style"), " ", ""))
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return false
	}
	return true
}

var replacedTags = map[string]bool{
	"img": true, "input": true, "button": true, "select": true, "textarea": true,
	"svg": true, "video": true, "canvas": true, "iframe": true, "picture": true,
}

// EstimateLayout assigns block-flow boxes in document order: each
// text-bearing or replaced element takes one line, parents cover their
// children. Shadow content is laid out before light children and frame
// documents inside their iframe.
func (d *Document) EstimateLayout() {
	d.layout = make(map[*html.Node]Layout)
	d.captured = false
	y := 0.0
	d.estimate(d.Root, &y, true, 0)
	d.ScrollHeight = max(y, d.Viewport.Height)
}

func (d *Document) estimate(parent *html.Node, y *float64, visible bool, depth int) {
	if depth > 256 {
		return
	}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		vis := visible && selfVisible(c)
		start := *y
		if vis {
			if OwnText(c) != "" || replacedTags[Tag(c)] {
				*y += estimatedLineHeight
			}
			if sr := d.shadows[c]; sr != nil {
				d.estimate(sr, y, vis, depth+1)
			}
			if fr := d.frames[c]; fr != nil {
				d.estimate(fr, y, vis, depth+1)
			}
			d.estimate(c, y, vis, depth+1)
		} else {
			d.estimate(c, y, false, depth+1)
		}
		d.layout[c] = Layout{
			Box:     Rect{X: 0, Y: start, Width: d.Viewport.Width, Height: *y - start},
			Visible: vis,
		}
	}
}

// ElementFromPoint returns the deepest visible element whose box contains
// the point, descending into shadow roots and frame documents.
func (d *Document) ElementFromPoint(x, y float64, limit int) *html.Node {
	return d.hit(d.Root, x, y, limit, 0)
}

func (d *Document) hit(root *html.Node, x, y float64, limit, crossings int) *html.Node {
	var best *html.Node
	bestDepth := -1
	Walk(root, limit, func(n *html.Node, depth int) bool {
		if !d.Visible(n) {
			return false
		}
		if d.Box(n).Contains(x, y) && depth >= bestDepth {
			best, bestDepth = n, depth
		}
		return true
	})
	if best == nil || crossings >= 4 {
		return best
	}
	if inner := d.Inner(best); inner != nil {
		if n := d.hit(inner, x, y, limit, crossings+1); n != nil {
			return n
		}
	}
	return best
}
