package dom

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var (
	longDigitRun    = regexp.MustCompile(`\d{4,}`)
	uuidLike        = regexp.MustCompile(`(?i)[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}`)
	scopingPrefixes = regexp.MustCompile(`^(?:ng-|_ng|svelte-|jsx-|css-|sc-|emotion-|data-v-|astro-|tw-[0-9a-f])`)
)

// IsVolatileToken reports whether a class or id token looks generated:
// long digit runs, uuid or hash shaped, or carrying a framework scoping
// prefix.
func IsVolatileToken(tok string) bool {
	if tok == "" {
		return true
	}
	if longDigitRun.MatchString(tok) || uuidLike.MatchString(tok) {
		return true
	}
	if scopingPrefixes.MatchString(tok) {
		return true
	}
	return looksHashed(tok)
}

func looksHashed(tok string) bool {
	rest := tok
	if i := strings.LastIndexAny(tok, "-_"); i >= 0 {
		rest = tok[i+1:]
	}
	if len(rest) < 5 {
		return false
	}
	var digits, lower, upper int
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'z':
			lower++
		case r >= 'A' && r <= 'Z':
			upper++
		default:
			return false
		}
	}
	letters := lower + upper
	if digits == 0 || letters == 0 {
		return false
	}
	return digits >= 2 || (upper > 0 && lower > 0)
}

// StableClasses returns the class tokens of n that are not volatile, in
// source order, without duplicates.
func StableClasses(n *html.Node) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range Classes(n) {
		if seen[c] || IsVolatileToken(c) {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ClassSignature returns the stable classes sorted and joined by ".".
func ClassSignature(n *html.Node) string {
	classes := StableClasses(n)
	sort.Strings(classes)
	return strings.Join(classes, ".")
}

// IsStableID reports whether an id can anchor a locator: present, not
// digit-leading, not volatile, no whitespace.
func IsStableID(id string) bool {
	if id == "" || strings.ContainsFunc(id, unicode.IsSpace) {
		return false
	}
	if r := rune(id[0]); r >= '0' && r <= '9' {
		return false
	}
	return !IsVolatileToken(id)
}
