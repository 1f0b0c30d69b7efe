package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Snapshot is the JSON form of a page captured in a live browser.
type Snapshot struct {
	URL          string        `json:"url"`
	Title        string        `json:"title"`
	Viewport     SnapshotView  `json:"viewport"`
	ScrollHeight float64       `json:"scrollHeight"`
	Root         *SnapshotNode `json:"root"`
}

// SnapshotView is the viewport at capture time.
type SnapshotView struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	ScrollX float64 `json:"scrollX"`
	ScrollY float64 `json:"scrollY"`
}

// SnapshotNode is one captured node. Field names are kept short because
// snapshots of large pages cross the CDP boundary as a single string.
type SnapshotNode struct {
	Type     int             `json:"t"`
	Name     string          `json:"n,omitempty"`
	Attrs    [][2]string     `json:"a,omitempty"`
	Text     string          `json:"x,omitempty"`
	Box      []float64       `json:"b,omitempty"`
	Visible  bool            `json:"v,omitempty"`
	Index    int             `json:"i,omitempty"`
	Children []*SnapshotNode `json:"c,omitempty"`
	Shadow   *SnapshotNode   `json:"s,omitempty"`
	Frame    *SnapshotNode   `json:"f,omitempty"`
}

const (
	snapshotElement  = 1
	snapshotText     = 3
	snapshotDocument = 9
)

// FromSnapshot builds a Document whose layout comes from the capture.
func FromSnapshot(s *Snapshot) (*Document, error) {
	if s == nil || s.Root == nil {
		return nil, fmt.Errorf("snapshot has no root")
	}
	root := &html.Node{Type: html.DocumentNode}
	d := New(root)
	d.URL = s.URL
	d.Title = s.Title
	d.Viewport = Rect{X: s.Viewport.ScrollX, Y: s.Viewport.ScrollY, Width: s.Viewport.Width, Height: s.Viewport.Height}
	d.ScrollHeight = max(s.ScrollHeight, s.Viewport.Height)
	d.captured = true

	if err := d.importChildren(root, s.Root, 0); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) importChildren(parent *html.Node, sn *SnapshotNode, depth int) error {
	if depth > 512 {
		return fmt.Errorf("snapshot nesting exceeds %d levels", 512)
	}
	for _, c := range sn.Children {
		if c == nil {
			continue
		}
		switch c.Type {
		case snapshotText:
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: c.Text})
		case snapshotElement:
			el := d.importElement(c)
			parent.AppendChild(el)
			if err := d.importChildren(el, c, depth+1); err != nil {
				return err
			}
			if c.Shadow != nil {
				sr := &html.Node{Type: html.DocumentNode}
				if err := d.importChildren(sr, c.Shadow, depth+1); err != nil {
					return err
				}
				d.AttachShadow(el, sr)
			}
			if c.Frame != nil {
				fr := &html.Node{Type: html.DocumentNode}
				if err := d.importChildren(fr, c.Frame, depth+1); err != nil {
					return err
				}
				d.AttachFrame(el, fr)
			}
		case snapshotDocument:
			if err := d.importChildren(parent, c, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Document) importElement(c *SnapshotNode) *html.Node {
	name := strings.ToLower(c.Name)
	el := &html.Node{Type: html.ElementNode, Data: name, DataAtom: atom.Lookup([]byte(name))}
	for _, kv := range c.Attrs {
		el.Attr = append(el.Attr, html.Attribute{Key: strings.ToLower(kv[0]), Val: kv[1]})
	}
	var box Rect
	if len(c.Box) == 4 {
		box = Rect{X: c.Box[0], Y: c.Box[1], Width: c.Box[2], Height: c.Box[3]}
	}
	d.layout[el] = Layout{Box: box, Visible: c.Visible}
	d.index[el] = c.Index
	return el
}
