// Package fingerprint computes structural signatures of elements and scores
// how alike two elements are.
//
// Signatures ignore leaf text, so records that differ only in their values
// share one signature.
package fingerprint

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/dtnitsch/web-locator/pkg/cache"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"golang.org/x/net/html"
)

const (
	maxDepth      = 20
	lengthBucket  = 20
	textScanRunes = 2000
	statsLimit    = 500
)

// Similarity weights. maxScore is their sum.
const (
	weightClasses    = 8.0
	weightShape      = 8.0
	weightShapeCount = 4.0
	weightAttrs      = 5.0
	weightDepth      = 2.0
	weightText       = 3.0
	maxScore         = weightClasses + weightShape + weightAttrs + weightDepth + weightText
)

// DefaultThreshold is the similarity at which two elements group together.
const DefaultThreshold = 0.7

// dataAllowlist names data-* attributes kept on ordinary tags.
var dataAllowlist = map[string]bool{
	"data-testid": true, "data-test": true, "data-qa": true, "data-cy": true,
	"data-type": true, "data-role": true, "data-component": true,
}

// TextStats summarizes an element's text and interactive descendants.
type TextStats struct {
	HasText bool `json:"has_text"`
	Length  int  `json:"length_bucket"`
	Links   int  `json:"links"`
	Images  int  `json:"images"`
	Buttons int  `json:"buttons"`
}

// Fingerprint is the structural summary of one element.
type Fingerprint struct {
	Tag            string    `json:"tag"`
	ClassSignature string    `json:"class_signature"`
	ChildShape     string    `json:"child_shape"`
	AttrSignature  string    `json:"attribute_signature"`
	Depth          int       `json:"depth"`
	Text           TextStats `json:"text"`
	ChildCount     int       `json:"child_count"`
	Signature      string    `json:"signature"`
}

// Engine computes fingerprints, memoized per node.
type Engine struct {
	anchorAttr string
	memo       *cache.WeakMemo[html.Node, Fingerprint]
}

// New returns an engine that ignores anchorAttr in attribute signatures.
func New(anchorAttr string) *Engine {
	return &Engine{anchorAttr: anchorAttr, memo: cache.NewWeakMemo[html.Node, Fingerprint]()}
}

// Clear drops memoized fingerprints.
func (e *Engine) Clear() {
	e.memo.Clear()
}

// Of returns the fingerprint of n.
func (e *Engine) Of(n *html.Node) Fingerprint {
	return e.memo.GetOrCompute(n, func() Fingerprint { return e.compute(n) })
}

func (e *Engine) compute(n *html.Node) Fingerprint {
	fp := Fingerprint{
		Tag:            dom.Tag(n),
		ClassSignature: dom.ClassSignature(n),
		ChildShape:     childShape(n),
		AttrSignature:  e.attrSignature(n),
		Depth:          min(dom.Depth(n), maxDepth),
		Text:           textStats(n),
		ChildCount:     len(dom.Children(n)),
	}
	fp.Signature = strings.Join([]string{fp.Tag, fp.ClassSignature, fp.ChildShape, fp.AttrSignature}, "|")
	return fp
}

// childShape describes the immediate children. Tables use their header or
// first row, rows use their cells, both without text so value-only
// differences keep the same shape.
func childShape(n *html.Node) string {
	switch dom.Tag(n) {
	case "table":
		if row := firstRow(n); row != nil {
			return "table:" + cellShape(row)
		}
		return "table:"
	case "tr":
		return cellShape(n)
	}
	parts := make([]string, 0, 8)
	for _, c := range dom.Children(n) {
		flag := "_"
		if dom.Text(c, 1) != "" {
			flag = "T"
		}
		parts = append(parts, shapeToken(c)+":"+flag)
	}
	return strings.Join(parts, ",")
}

func cellShape(row *html.Node) string {
	var parts []string
	for _, c := range dom.Children(row) {
		if t := dom.Tag(c); t == "td" || t == "th" {
			parts = append(parts, shapeToken(c))
		}
	}
	return strings.Join(parts, ",")
}

func shapeToken(n *html.Node) string {
	if cls := dom.ClassSignature(n); cls != "" {
		return dom.Tag(n) + "." + cls
	}
	return dom.Tag(n)
}

// firstRow returns the header row of a table, or its first row.
func firstRow(table *html.Node) *html.Node {
	var first *html.Node
	for _, section := range dom.Children(table) {
		switch dom.Tag(section) {
		case "thead":
			for _, r := range dom.Children(section) {
				if dom.Tag(r) == "tr" {
					return r
				}
			}
		case "tbody", "tfoot":
			if first == nil {
				for _, r := range dom.Children(section) {
					if dom.Tag(r) == "tr" {
						first = r
						break
					}
				}
			}
		case "tr":
			if first == nil {
				first = section
			}
		}
	}
	return first
}

// attrSignature lists the attribute names that describe structure: ids,
// styles, handlers, volatile and internal names are left out, as are data-*
// attributes on ordinary tags outside the allow-list.
func (e *Engine) attrSignature(n *html.Node) string {
	custom := strings.Contains(dom.Tag(n), "-")
	var names []string
	for _, a := range n.Attr {
		k := strings.ToLower(a.Key)
		switch {
		case k == "id" || k == "class" || k == "style" || k == e.anchorAttr:
		case strings.HasPrefix(k, "on"):
		case dom.IsVolatileToken(k):
		case strings.HasPrefix(k, "data-") && !custom && !dataAllowlist[k]:
		default:
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return strings.Join(slices.Compact(names), ",")
}

func textStats(n *html.Node) TextStats {
	text := dom.Text(n, textScanRunes)
	length := len([]rune(text))
	st := TextStats{
		HasText: length > 0,
		Length:  int(math.Round(float64(length)/lengthBucket)) * lengthBucket,
	}
	dom.Walk(n, statsLimit, func(c *html.Node, _ int) bool {
		if c == n {
			return true
		}
		switch dom.Tag(c) {
		case "a":
			if dom.HasAttr(c, "href") {
				st.Links++
			}
		case "img":
			st.Images++
		case "button":
			st.Buttons++
		case "input":
			if t := dom.Attr(c, "type"); t == "button" || t == "submit" {
				st.Buttons++
			}
		}
		return true
	})
	return st
}

// Similarity scores two fingerprints in [0, 1]. Different tags score 0.
func Similarity(a, b Fingerprint) float64 {
	if a.Tag != b.Tag {
		return 0
	}
	score := weightClasses * overlap(tokens(a.ClassSignature, "."), tokens(b.ClassSignature, "."))
	switch {
	case a.ChildShape == b.ChildShape:
		score += weightShape
	case a.ChildCount == b.ChildCount:
		score += weightShapeCount
	}
	score += weightAttrs * overlap(tokens(a.AttrSignature, ","), tokens(b.AttrSignature, ","))

	switch d := abs(a.Depth - b.Depth); {
	case d <= 1:
		score += weightDepth
	case d <= 2:
		score += weightDepth / 2
	}

	text := 0.0
	if a.Text.HasText == b.Text.HasText {
		text++
	}
	if abs(a.Text.Length-b.Text.Length) <= 40 {
		text++
	}
	if (a.Text.Links > 0) == (b.Text.Links > 0) && (a.Text.Images > 0) == (b.Text.Images > 0) {
		text++
	}
	score += min(text, weightText)

	return score / maxScore
}

// overlap is the Jaccard ratio of two token sets; two empty sets overlap
// fully.
func overlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	inter := 0
	union := len(set)
	for _, t := range b {
		if set[t] {
			inter++
			delete(set, t)
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokens(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
