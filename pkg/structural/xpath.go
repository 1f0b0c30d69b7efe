package structural

import (
	"strings"

	"github.com/dtnitsch/web-locator/pkg/dom"
	"golang.org/x/net/html"
)

// classTest mirrors locator.ClassPredicate, substring semantics included.
func classTest(classes []string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		attr := dom.Attr(n, "class")
		for _, c := range classes {
			if !strings.Contains(attr, c) {
				return false
			}
		}
		return true
	}
}
