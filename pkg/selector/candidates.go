package selector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"golang.org/x/net/html"
)

// Candidate penalties.
const (
	penaltyID      = 0
	penaltyAttr    = 0.5
	penaltyClass   = 1
	penaltyTag     = 2
	penaltyAny     = 3
	penaltyOrdinal = 1
)

// DefaultAttributes is the allow-list of attributes usable as [attr="v"]
// candidates.
var DefaultAttributes = []string{
	"data-testid", "data-test-id", "data-test", "data-qa", "data-cy",
	"name", "aria-label", "role", "title", "alt", "placeholder", "for", "rel", "type",
}

var plainTag = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// segment is one path step: a compound selector for the element at level.
type segment struct {
	name    string
	penalty float64
	level   int
	ordinal bool
	kind    segmentKind
}

type segmentKind int

const (
	kindID segmentKind = iota
	kindAttr
	kindClass
	kindTag
	kindAny
)

// candidates returns the ranked candidates for n.
func candidates(n *html.Node, attrs []string, anchorAttr string) []segment {
	var out []segment

	if id := dom.Attr(n, "id"); id != "" && dom.IsStableID(id) {
		out = append(out, segment{name: "#" + cssEscape(id), penalty: penaltyID, kind: kindID})
	}
	for _, a := range attrs {
		if a == anchorAttr || !dom.HasAttr(n, a) {
			continue
		}
		v := dom.Attr(n, a)
		if !usableValue(v) {
			continue
		}
		out = append(out, segment{name: attrSelector(a, v), penalty: penaltyAttr, kind: kindAttr})
	}
	for _, c := range dom.StableClasses(n) {
		out = append(out, segment{name: "." + cssEscape(c), penalty: penaltyClass, kind: kindClass})
	}
	tag := dom.Tag(n)
	if plainTag.MatchString(tag) {
		out = append(out, segment{name: tag, penalty: penaltyTag, kind: kindTag})
	} else {
		out = append(out, segment{name: "*", penalty: penaltyAny, kind: kindAny})
	}
	return out
}

// usableValue rejects attribute values that make brittle or unreadable
// selectors.
func usableValue(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > 100 || strings.ContainsAny(v, "\n\r") {
		return false
	}
	if !strings.Contains(v, " ") && dom.IsVolatileToken(v) {
		return false
	}
	return true
}

// withOrdinal qualifies a candidate with the element's same-tag position.
// Ids are never qualified. Wildcards become the tag.
func withOrdinal(s segment, n *html.Node) (segment, bool) {
	if s.kind == kindID || s.ordinal {
		return s, false
	}
	if !dom.IsElement(n.Parent) {
		return s, false
	}
	idx, total := dom.SameTagIndex(n)
	if total < 2 || idx < 1 {
		return s, false
	}
	name := s.name
	if s.kind == kindAny {
		name = dom.Tag(n)
	}
	return segment{
		name:    fmt.Sprintf("%s:nth-of-type(%d)", name, idx),
		penalty: s.penalty + penaltyOrdinal,
		level:   s.level,
		ordinal: true,
		kind:    s.kind,
	}, true
}

// tagOrdinal is the widest single-level candidate: tag plus position.
func tagOrdinal(n *html.Node) segment {
	idx, _ := dom.SameTagIndex(n)
	return segment{
		name:    fmt.Sprintf("%s:nth-of-type(%d)", dom.Tag(n), idx),
		penalty: penaltyTag + penaltyOrdinal,
		ordinal: true,
		kind:    kindTag,
	}
}

// collides reports whether the candidate also matches a sibling of n.
func collides(s segment, n *html.Node) bool {
	if n.Parent == nil {
		return false
	}
	sel, err := cascadia.Parse(s.name)
	if err != nil {
		return true
	}
	for sib := n.Parent.FirstChild; sib != nil; sib = sib.NextSibling {
		if sib != n && sib.Type == html.ElementNode && sel.Match(sib) {
			return true
		}
	}
	return false
}

func attrSelector(name, value string) string {
	return fmt.Sprintf(`[%s="%s"]`, name, escapeString(value))
}

func escapeString(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(v)
}

// cssEscape escapes an identifier the way CSS.escape does for the ASCII
// range.
func cssEscape(ident string) string {
	var b strings.Builder
	for i, r := range ident {
		switch {
		case r == 0:
			b.WriteString(`\fffd `)
		case r < 0x20 || r == 0x7f:
			b.WriteString(`\` + strconv.FormatInt(int64(r), 16) + " ")
		case i == 0 && r >= '0' && r <= '9':
			b.WriteString(`\3` + string(r) + " ")
		case i == 1 && r >= '0' && r <= '9' && ident[0] == '-':
			b.WriteString(`\3` + string(r) + " ")
		case i == 0 && r == '-' && len(ident) == 1:
			b.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' ||
			r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			b.WriteString(`\` + string(r))
		}
	}
	return b.String()
}
