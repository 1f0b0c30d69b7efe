package locator

import "strings"

// Literal quotes v as an XPath string literal: single quotes, or double
// quotes when v holds a single quote. Values holding both cannot be
// expressed.
func Literal(v string) (string, bool) {
	switch {
	case !strings.Contains(v, "'"):
		return "'" + v + "'", true
	case !strings.Contains(v, `"`):
		return `"` + v + `"`, true
	}
	return "", false
}

// Quotable drops tokens that cannot appear in an XPath literal.
func Quotable(tokens []string) []string {
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, ok := Literal(t); ok {
			out = append(out, t)
		}
	}
	return out
}

// ClassPredicate joins contains(@class,...) tests for each class with "and".
// Classes must be Quotable.
func ClassPredicate(classes []string) string {
	conds := make([]string, len(classes))
	for i, c := range classes {
		lit, _ := Literal(c)
		conds[i] = "contains(@class," + lit + ")"
	}
	return strings.Join(conds, " and ")
}
