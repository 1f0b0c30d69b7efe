package dom

import (
	"strings"

	"golang.org/x/net/html"
)

var nonRendered = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "meta": true, "link": true, "title": true, "base": true,
}

// IsNonRendered reports whether the tag never paints content.
func IsNonRendered(tag string) bool {
	return nonRendered[tag]
}

// Text returns the whitespace-normalized text content of n, skipping
// non-rendered elements. Collection stops once max runes are gathered
// (max <= 0 means unbounded).
func Text(n *html.Node, max int) string {
	var b strings.Builder
	var walk func(*html.Node) bool
	walk = func(c *html.Node) bool {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			b.WriteByte(' ')
			return max <= 0 || b.Len() < max*4
		case html.ElementNode:
			if nonRendered[Tag(c)] {
				return true
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			if !walk(k) {
				return false
			}
		}
		return true
	}
	if n != nil {
		walk(n)
	}
	out := normalizeSpace(b.String())
	if max > 0 {
		out = truncateRunes(out, max)
	}
	return out
}

// OwnText returns the normalized text of n's direct text children.
func OwnText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	}
	return normalizeSpace(b.String())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	return truncateRunes(s, max)
}
