package structural

import (
	"fmt"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/cache"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"golang.org/x/net/html"
)

// Fields discovers every meaningful leaf of the container's first instance
// and returns one deduplicated field locator per leaf. At most
// MaxFieldsPerParent leaves are taken under any one parent; the rest are
// dropped.
func (b *Builder) Fields(container string, fallback bool) ([]Field, error) {
	instances, err := b.Instances(container)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: container %q matches nothing", models.ErrNotFound, container)
	}
	item := instances[0]

	seen := make(map[string]bool)
	var fields []Field
	for _, leaf := range b.leavesOf(item) {
		f, err := b.build(container, instances, item, leaf, fallback)
		if err != nil {
			b.logger.Debug("field skipped", "tag", dom.Tag(leaf), "error", err)
			continue
		}
		if seen[f.Relative] {
			continue
		}
		seen[f.Relative] = true
		fields = append(fields, f)
	}
	return fields, nil
}

func (b *Builder) leavesOf(item *html.Node) []*html.Node {
	if w, ok := b.leaves.Get(item); ok {
		if nodes, live := w.Resolve(); live {
			return nodes
		}
	}
	doc := b.ev.Document()
	perParent := make(map[*html.Node]int)
	var out []*html.Node
	dom.Walk(item, b.cfg.ScanLimit, func(n *html.Node, depth int) bool {
		if n == item {
			return true
		}
		if depth > b.cfg.DepthCap || dom.IsNonRendered(dom.Tag(n)) || !doc.Visible(n) {
			return false
		}
		if !isFieldLeaf(n) {
			return true
		}
		parent := n.Parent
		if perParent[parent] >= b.cfg.MaxFieldsPerParent {
			return true
		}
		perParent[parent]++
		out = append(out, n)
		return true
	})
	b.leaves.Put(item, cache.MakeWeakNodes(out))
	return out
}

// isFieldLeaf reports whether n carries a value worth a field: its own
// text, a link target or an image source.
func isFieldLeaf(n *html.Node) bool {
	switch dom.Tag(n) {
	case "a":
		if dom.Attr(n, "href") != "" {
			return true
		}
	case "img":
		if dom.Attr(n, "src") != "" {
			return true
		}
	}
	return dom.OwnText(n) != ""
}
