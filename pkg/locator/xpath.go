package locator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"golang.org/x/net/html"
)

// EvaluateXPath evaluates the XPath subset the engine emits:
//   - (//path)[n]                 grouped positional selection
//   - //a/b, /a, a/b, .//a        absolute, descendant and relative steps
//   - name or *                   node tests
//   - contains(@class,'x')        substring test
//   - @a='v', @a                  attribute value / presence
//   - count(*)=n                  element child count
//   - [n]                         position among the step's matches
//
// Conditions inside one predicate are joined by "and", or all by "or".
// Anything else is reported as ErrUnsupported.
func EvaluateXPath(ctx *html.Node, expr string) ([]*html.Node, error) {
	q, err := parseXPath(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: xpath %q: %v", models.ErrUnsupported, expr, err)
	}
	return q.eval(ctx), nil
}

type xpathQuery struct {
	steps []xpathStep
	group int // (path)[group]; 0 when not grouped
}

type xpathStep struct {
	descendant bool
	name       string // "*" for any element
	preds      []xpathPredicate
}

type xpathPredicate struct {
	position int // > 0 for [n]
	conds    []xpathCond
	or       bool
}

type condKind int

const (
	condContainsClass condKind = iota
	condAttrEquals
	condAttrPresent
	condChildCount
)

type xpathCond struct {
	kind  condKind
	attr  string
	value string
	count int
}

func (q xpathQuery) eval(ctx *html.Node) []*html.Node {
	current := []*html.Node{ctx}
	for _, st := range q.steps {
		current = st.apply(current)
		if len(current) == 0 {
			return nil
		}
	}
	current = sortedByDocumentOrder(ctx, current)
	if q.group > 0 {
		if q.group > len(current) {
			return nil
		}
		return []*html.Node{current[q.group-1]}
	}
	return current
}

func (st xpathStep) apply(contexts []*html.Node) []*html.Node {
	seen := make(map[*html.Node]bool)
	var out []*html.Node
	visit := func(parent *html.Node) {
		for _, n := range st.children(parent) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	for _, c := range contexts {
		if !st.descendant {
			visit(c)
			continue
		}
		visit(c)
		dom.Walk(c, 0, func(n *html.Node, _ int) bool {
			if n != c {
				visit(n)
			}
			return true
		})
	}
	return out
}

// children returns the children of parent that pass the node test and every
// predicate, positions counted after the preceding predicates.
func (st xpathStep) children(parent *html.Node) []*html.Node {
	var matched []*html.Node
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (st.name == "*" || dom.Tag(c) == st.name) {
			matched = append(matched, c)
		}
	}
	for _, p := range st.preds {
		if len(matched) == 0 {
			return nil
		}
		if p.position > 0 {
			if p.position > len(matched) {
				return nil
			}
			matched = []*html.Node{matched[p.position-1]}
			continue
		}
		kept := matched[:0:0]
		for _, n := range matched {
			if p.match(n) {
				kept = append(kept, n)
			}
		}
		matched = kept
	}
	return matched
}

func (p xpathPredicate) match(n *html.Node) bool {
	if p.or {
		for _, c := range p.conds {
			if c.match(n) {
				return true
			}
		}
		return false
	}
	for _, c := range p.conds {
		if !c.match(n) {
			return false
		}
	}
	return true
}

func (c xpathCond) match(n *html.Node) bool {
	switch c.kind {
	case condContainsClass:
		return strings.Contains(dom.Attr(n, "class"), c.value)
	case condAttrEquals:
		return dom.HasAttr(n, c.attr) && dom.Attr(n, c.attr) == c.value
	case condAttrPresent:
		return dom.HasAttr(n, c.attr)
	case condChildCount:
		return len(dom.Children(n)) == c.count
	}
	return false
}

func sortedByDocumentOrder(ctx *html.Node, nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	want := make(map[*html.Node]bool, len(nodes))
	for _, n := range nodes {
		want[n] = true
	}
	out := make([]*html.Node, 0, len(nodes))
	dom.Walk(ctx, 0, func(n *html.Node, _ int) bool {
		if want[n] && n != ctx {
			out = append(out, n)
		}
		return true
	})
	return out
}

// xpathParser is a small recursive-descent parser over the expression text.
type xpathParser struct {
	s   string
	pos int
}

func parseXPath(expr string) (xpathQuery, error) {
	p := &xpathParser{s: strings.TrimSpace(expr)}
	var q xpathQuery
	grouped := p.consume("(")
	steps, err := p.path()
	if err != nil {
		return q, err
	}
	q.steps = steps
	if grouped {
		if !p.consume(")") || !p.consume("[") {
			return q, fmt.Errorf("malformed group at %d", p.pos)
		}
		n, ok := p.integer()
		if !ok || n < 1 || !p.consume("]") {
			return q, fmt.Errorf("group position expected at %d", p.pos)
		}
		q.group = n
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return q, fmt.Errorf("unexpected %q at %d", p.s[p.pos:], p.pos)
	}
	return q, nil
}

func (p *xpathParser) path() ([]xpathStep, error) {
	var steps []xpathStep
	p.consume(".")
	first := true
	for {
		descendant := false
		switch {
		case p.consume("//"):
			descendant = true
		case p.consume("/"):
		case first:
			// relative path: first step is a child step
		default:
			return steps, nil
		}
		first = false
		st, err := p.step()
		if err != nil {
			return nil, err
		}
		st.descendant = descendant
		steps = append(steps, st)
		if p.pos >= len(p.s) || p.s[p.pos] != '/' {
			if len(steps) == 0 {
				return nil, fmt.Errorf("empty path")
			}
			return steps, nil
		}
	}
}

func (p *xpathParser) step() (xpathStep, error) {
	var st xpathStep
	if p.consume("*") {
		st.name = "*"
	} else {
		name := p.name()
		if name == "" {
			return st, fmt.Errorf("node test expected at %d", p.pos)
		}
		st.name = strings.ToLower(name)
	}
	for p.consume("[") {
		pred, err := p.predicate()
		if err != nil {
			return st, err
		}
		if !p.consume("]") {
			return st, fmt.Errorf("] expected at %d", p.pos)
		}
		st.preds = append(st.preds, pred)
	}
	return st, nil
}

func (p *xpathParser) predicate() (xpathPredicate, error) {
	var pred xpathPredicate
	if n, ok := p.integer(); ok {
		if n < 1 {
			return pred, fmt.Errorf("position must be positive")
		}
		pred.position = n
		return pred, nil
	}
	sawAnd, sawOr := false, false
	for {
		c, err := p.cond()
		if err != nil {
			return pred, err
		}
		pred.conds = append(pred.conds, c)
		switch {
		case p.keyword("and"):
			sawAnd = true
		case p.keyword("or"):
			sawOr = true
		default:
			if sawAnd && sawOr {
				return pred, fmt.Errorf("mixed and/or")
			}
			pred.or = sawOr
			return pred, nil
		}
	}
}

func (p *xpathParser) cond() (xpathCond, error) {
	p.skipSpace()
	switch {
	case p.consume("contains("):
		if !p.consume("@class") || !p.consume(",") {
			return xpathCond{}, fmt.Errorf("contains(@class,...) expected at %d", p.pos)
		}
		v, err := p.literal()
		if err != nil {
			return xpathCond{}, err
		}
		if !p.consume(")") {
			return xpathCond{}, fmt.Errorf(") expected at %d", p.pos)
		}
		return xpathCond{kind: condContainsClass, value: v}, nil
	case p.consume("count(*)"):
		if !p.consume("=") {
			return xpathCond{}, fmt.Errorf("= expected at %d", p.pos)
		}
		n, ok := p.integer()
		if !ok {
			return xpathCond{}, fmt.Errorf("count expected at %d", p.pos)
		}
		return xpathCond{kind: condChildCount, count: n}, nil
	case p.consume("@"):
		name := p.name()
		if name == "" {
			return xpathCond{}, fmt.Errorf("attribute name expected at %d", p.pos)
		}
		if !p.consume("=") {
			return xpathCond{kind: condAttrPresent, attr: name}, nil
		}
		v, err := p.literal()
		if err != nil {
			return xpathCond{}, err
		}
		return xpathCond{kind: condAttrEquals, attr: name, value: v}, nil
	}
	return xpathCond{}, fmt.Errorf("unsupported condition at %d", p.pos)
}

func (p *xpathParser) literal() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return "", fmt.Errorf("literal expected")
	}
	q := p.s[p.pos]
	if q != '\'' && q != '"' {
		return "", fmt.Errorf("literal expected at %d", p.pos)
	}
	end := strings.IndexByte(p.s[p.pos+1:], q)
	if end < 0 {
		return "", fmt.Errorf("unterminated literal at %d", p.pos)
	}
	v := p.s[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	return v, nil
}

func (p *xpathParser) integer() (int, bool) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, false
	}
	n, err := strconv.Atoi(p.s[start:p.pos])
	if err != nil {
		p.pos = start
		return 0, false
	}
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] != ']' && p.s[p.pos] != ' ' && p.s[p.pos] != ')' {
		p.pos = start
		return 0, false
	}
	return n, true
}

func (p *xpathParser) name() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '-' || c == '_' || c == ':' || c == '.' && p.pos > start ||
			c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' && p.pos > start {
			p.pos++
			continue
		}
		break
	}
	return p.s[start:p.pos]
}

// keyword consumes a space-delimited keyword such as "and".
func (p *xpathParser) keyword(kw string) bool {
	save := p.pos
	p.skipSpace()
	if strings.HasPrefix(p.s[p.pos:], kw) {
		after := p.pos + len(kw)
		if after < len(p.s) && p.s[after] == ' ' && p.pos > save {
			p.pos = after
			return true
		}
	}
	p.pos = save
	return false
}

func (p *xpathParser) consume(tok string) bool {
	save := p.pos
	p.skipSpace()
	if strings.HasPrefix(p.s[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	p.pos = save
	return false
}

func (p *xpathParser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}
