package selector

import (
	"strings"

	"github.com/dtnitsch/web-locator/pkg/dom"
	"golang.org/x/net/html"
)

// Strategy names a narrower selector built from one attribute family.
type Strategy string

const (
	StrategyTestID        Strategy = "testid"
	StrategyID            Strategy = "id"
	StrategyHref          Strategy = "href"
	StrategyAccessibility Strategy = "accessibility"
	StrategyForm          Strategy = "form"
	StrategyRel           Strategy = "rel"
	StrategyGeneral       Strategy = "general"
)

// ChainOrder is the priority of strategies in a fallback chain, most
// specific first.
var ChainOrder = []Strategy{
	StrategyTestID, StrategyID, StrategyHref, StrategyAccessibility,
	StrategyForm, StrategyRel, StrategyGeneral,
}

var strategyAttributes = map[Strategy][]string{
	StrategyTestID:        {"data-testid", "data-test-id", "data-test", "data-qa", "data-cy"},
	StrategyHref:          {"href"},
	StrategyAccessibility: {"aria-label", "alt", "title"},
	StrategyForm:          {"name", "placeholder", "for"},
	StrategyRel:           {"rel"},
}

// Strategies returns the attribute-family selectors that uniquely match
// target. Families the target does not carry are absent.
func (f *Finder) Strategies(target *html.Node) map[Strategy]string {
	out := make(map[Strategy]string)
	if !dom.IsElement(target) {
		return out
	}
	prefix, err := f.HostPrefix(target)
	if err != nil {
		return out
	}
	root := dom.TreeRoot(target)

	if id := dom.Attr(target, "id"); id != "" && !startsWithDigit(id) {
		sel := "#" + cssEscape(id)
		if f.ev.Unique(root, sel, target) {
			out[StrategyID] = prefix + sel
		}
	}

	for _, st := range []Strategy{StrategyTestID, StrategyHref, StrategyAccessibility, StrategyForm, StrategyRel} {
		attrs := strategyAttributes[st]
		if !carriesAny(target, attrs) {
			continue
		}
		s := search{
			cfg:    f.cfg,
			root:   root,
			target: target,
			ev:     f.ev,
			cands:  attributeCandidates(attrs, target),
			passes: []pass{passAll, passTwo},
			ascent: f.ascentOf(target),
		}
		if res := s.run(); res.path != nil {
			out[st] = prefix + res.path.selector()
		}
	}
	return out
}

// attributeCandidates restricts candidates to tag-qualified attributes of
// one family. The leaf must carry one; ancestors may fall back to their tag.
func attributeCandidates(attrs []string, leaf *html.Node) func(n *html.Node) []segment {
	return func(n *html.Node) []segment {
		var out []segment
		tag := dom.Tag(n)
		if !plainTag.MatchString(tag) {
			tag = "*"
		}
		for _, a := range attrs {
			v := dom.Attr(n, a)
			if !dom.HasAttr(n, a) || !usableStrategyValue(a, v) {
				continue
			}
			out = append(out, segment{name: tag + attrSelector(a, v), penalty: penaltyAttr, kind: kindAttr})
		}
		if n != leaf {
			if tag == "*" {
				out = append(out, segment{name: tag, penalty: penaltyAny, kind: kindAny})
			} else {
				out = append(out, segment{name: tag, penalty: penaltyTag, kind: kindTag})
			}
		}
		return out
	}
}

func usableStrategyValue(attr, v string) bool {
	if attr == "href" {
		v = strings.TrimSpace(v)
		return v != "" && v != "#" && len(v) <= 200 && !strings.HasPrefix(v, "javascript:") && !strings.ContainsAny(v, "\n\r")
	}
	return usableValue(v)
}

func carriesAny(n *html.Node, attrs []string) bool {
	for _, a := range attrs {
		if dom.HasAttr(n, a) {
			return true
		}
	}
	return false
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// Ordered lists the non-empty strategy selectors in chain order, without
// duplicates.
func Ordered(results map[Strategy]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, st := range ChainOrder {
		sel := results[st]
		if sel == "" || seen[sel] {
			continue
		}
		seen[sel] = true
		out = append(out, sel)
	}
	return out
}

// Chain joins the strategy selectors into one comma-separated fallback
// chain. Replaying it picks the first alternative that matches.
func Chain(results map[Strategy]string) string {
	return strings.Join(Ordered(results), ", ")
}
