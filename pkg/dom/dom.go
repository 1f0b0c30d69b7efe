// Package dom models an analyzed page: x/net/html nodes plus the side
// tables a live browser would answer for us (shadow roots, frame documents,
// layout boxes, visibility).
//
// Shadow roots and frame documents are detached DocumentNodes. Queries run
// from one root never descend into another, the same way querySelectorAll
// stops at a shadow boundary.
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Document is one analyzed page and every shadow/frame tree reachable from it.
type Document struct {
	Root     *html.Node
	URL      string
	Title    string
	SiteName string
	Language string

	Viewport     Rect
	ScrollHeight float64

	layout   map[*html.Node]Layout
	captured bool
	index    map[*html.Node]int

	shadows    map[*html.Node]*html.Node // host -> shadow root
	hosts      map[*html.Node]*html.Node // shadow root -> host
	frames     map[*html.Node]*html.Node // iframe -> frame document
	frameHosts map[*html.Node]*html.Node // frame document -> iframe
}

// New wraps a parsed DocumentNode.
func New(root *html.Node) *Document {
	return &Document{
		Root:       root,
		Viewport:   Rect{Width: 1280, Height: 800},
		layout:     make(map[*html.Node]Layout),
		index:      make(map[*html.Node]int),
		shadows:    make(map[*html.Node]*html.Node),
		hosts:      make(map[*html.Node]*html.Node),
		frames:     make(map[*html.Node]*html.Node),
		frameHosts: make(map[*html.Node]*html.Node),
	}
}

// AttachShadow registers root as the shadow root of host.
func (d *Document) AttachShadow(host, root *html.Node) {
	d.shadows[host] = root
	d.hosts[root] = host
}

// AttachFrame registers root as the content document of the iframe.
func (d *Document) AttachFrame(iframe, root *html.Node) {
	d.frames[iframe] = root
	d.frameHosts[root] = iframe
}

// ShadowRoot returns the shadow root hosted by n, or nil.
func (d *Document) ShadowRoot(n *html.Node) *html.Node {
	return d.shadows[n]
}

// FrameDocument returns the content document of an iframe, or nil.
func (d *Document) FrameDocument(n *html.Node) *html.Node {
	return d.frames[n]
}

// IsShadowRoot reports whether root is a registered shadow root.
func (d *Document) IsShadowRoot(root *html.Node) bool {
	_, ok := d.hosts[root]
	return ok
}

// IsFrameRoot reports whether root is a registered frame document.
func (d *Document) IsFrameRoot(root *html.Node) bool {
	_, ok := d.frameHosts[root]
	return ok
}

// Host returns the element owning a shadow root or frame document, or nil
// for the top document.
func (d *Document) Host(root *html.Node) *html.Node {
	if h, ok := d.hosts[root]; ok {
		return h
	}
	return d.frameHosts[root]
}

// Inner returns the tree an element opens into: its shadow root or frame
// document, in that order of preference.
func (d *Document) Inner(n *html.Node) *html.Node {
	if sr := d.shadows[n]; sr != nil {
		return sr
	}
	return d.frames[n]
}

// ComposedParent returns the element parent of n, crossing out of shadow
// roots and frame documents to the owning host.
func (d *Document) ComposedParent(n *html.Node) *html.Node {
	if n == nil || n.Parent == nil {
		return nil
	}
	if IsElement(n.Parent) {
		return n.Parent
	}
	return d.Host(n.Parent)
}

// Attached reports whether n still belongs to this document, either directly
// or through a chain of attached hosts.
func (d *Document) Attached(n *html.Node) bool {
	for hops := 0; n != nil && hops < 32; hops++ {
		root := TreeRoot(n)
		if root == d.Root {
			return true
		}
		host := d.Host(root)
		if host == nil {
			return false
		}
		n = host
	}
	return false
}

// Roots returns the top document followed by every shadow root and frame
// document, in no particular order after the first.
func (d *Document) Roots() []*html.Node {
	roots := []*html.Node{d.Root}
	for _, r := range d.shadows {
		roots = append(roots, r)
	}
	for _, r := range d.frames {
		roots = append(roots, r)
	}
	return roots
}

// CaptureIndex returns the live-capture index of n when the document came
// from a browser snapshot.
func (d *Document) CaptureIndex(n *html.Node) (int, bool) {
	i, ok := d.index[n]
	return i, ok
}

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// Tag returns the lowercase tag name of an element.
func Tag(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr returns an attribute value, or "" when absent.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the attribute is present.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Classes returns the raw class tokens of an element.
func Classes(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// HasClass reports whether the class token is present.
func HasClass(n *html.Node, class string) bool {
	for _, c := range Classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

// Children returns the element children of n.
func Children(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// ParentElement returns the parent of n when it is an element, stopping at
// document and shadow roots.
func ParentElement(n *html.Node) *html.Node {
	if n == nil || !IsElement(n.Parent) {
		return nil
	}
	return n.Parent
}

// TreeRoot returns the topmost ancestor of n.
func TreeRoot(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}

// Depth counts element ancestors of n within its tree.
func Depth(n *html.Node) int {
	depth := 0
	for p := ParentElement(n); p != nil; p = ParentElement(p) {
		depth++
	}
	return depth
}

// IsAncestor reports whether a is a proper ancestor of n in the same tree.
func IsAncestor(a, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

// SameTagIndex returns the 1-based position of n among its same-tag element
// siblings and the number of such siblings.
func SameTagIndex(n *html.Node) (index, total int) {
	if n == nil || n.Parent == nil {
		return 1, 1
	}
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type != html.ElementNode || s.Data != n.Data {
			continue
		}
		total++
		if s == n {
			index = total
		}
	}
	return index, total
}

// NthSameTagChild returns the k-th (1-based) child of parent with the tag.
func NthSameTagChild(parent *html.Node, tag string, k int) *html.Node {
	if parent == nil {
		return nil
	}
	seen := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			seen++
			if seen == k {
				return c
			}
		}
	}
	return nil
}

// Walk visits elements under root in document order, depth first. fn
// returns false to skip a subtree. At most limit elements are visited
// (limit <= 0 means unbounded); the visit count is returned.
func Walk(root *html.Node, limit int, fn func(n *html.Node, depth int) bool) int {
	type frame struct {
		n     *html.Node
		depth int
	}
	if root == nil {
		return 0
	}
	var stack []frame
	push := func(parent *html.Node, depth int) {
		var kids []*html.Node
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				kids = append(kids, c)
			}
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], depth})
		}
	}
	if IsElement(root) {
		stack = append(stack, frame{root, 0})
	} else {
		push(root, 0)
	}

	visited := 0
	for len(stack) > 0 {
		if limit > 0 && visited >= limit {
			break
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++
		if fn(f.n, f.depth) {
			push(f.n, f.depth+1)
		}
	}
	return visited
}

// Elements returns the elements under root in document order, excluding
// root itself, bounded by limit.
func Elements(root *html.Node, limit int) []*html.Node {
	var out []*html.Node
	Walk(root, limit, func(n *html.Node, _ int) bool {
		if n != root {
			out = append(out, n)
		}
		return true
	})
	return out
}

// DocumentOrder reports whether a precedes b in a preorder walk of their
// common tree. Nodes in different trees compare false.
func DocumentOrder(a, b *html.Node) bool {
	if a == b {
		return false
	}
	pa, pb := ancestry(a), ancestry(b)
	if len(pa) == 0 || len(pb) == 0 || pa[0] != pb[0] {
		return false
	}
	i := 0
	for i < len(pa) && i < len(pb) && pa[i] == pb[i] {
		i++
	}
	if i == len(pa) {
		return true // a is an ancestor of b
	}
	if i == len(pb) {
		return false
	}
	for s := pa[i]; s != nil; s = s.NextSibling {
		if s == pb[i] {
			return true
		}
	}
	return false
}

func ancestry(n *html.Node) []*html.Node {
	var chain []*html.Node
	for ; n != nil; n = n.Parent {
		chain = append(chain, n)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// CommonAncestor returns the nearest element containing every node, or nil.
func CommonAncestor(nodes []*html.Node) *html.Node {
	if len(nodes) == 0 {
		return nil
	}
	common := ancestry(nodes[0])
	for _, n := range nodes[1:] {
		chain := ancestry(n)
		i := 0
		for i < len(common) && i < len(chain) && common[i] == chain[i] {
			i++
		}
		common = common[:i]
	}
	for i := len(common) - 1; i >= 0; i-- {
		if IsElement(common[i]) {
			return common[i]
		}
	}
	return nil
}
