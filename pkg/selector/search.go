package selector

import (
	"container/heap"
	"iter"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/locator"
	"golang.org/x/net/html"
)

// pass is one of the widening search passes.
type pass int

const (
	passAll pass = iota // every candidate, ordinal variants where they collide
	passTwo             // top candidate plus its ordinal variant
	passOne             // top candidate, ordinal forced
)

func (p pass) String() string {
	return [...]string{"all", "two", "one"}[p]
}

// path is a leaf-first list of segments.
type path []segment

func (p path) selector() string {
	if len(p) == 0 {
		return ""
	}
	q := p[0].name
	for i := 1; i < len(p); i++ {
		if p[i-1].level == p[i].level-1 {
			q = p[i].name + " > " + q
		} else {
			q = p[i].name + " " + q
		}
	}
	return q
}

func (p path) penalty() float64 {
	total := 0.0
	for _, s := range p {
		total += s.penalty
	}
	return total
}

// better orders paths by penalty, then segment count, then text.
func better(a, b path) bool {
	if a.penalty() != b.penalty() {
		return a.penalty() < b.penalty()
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a.selector() < b.selector()
}

// search is the immutable state of one bottom-up search. It is passed by
// value through every step.
type search struct {
	cfg    Config
	root   *html.Node
	target *html.Node
	ev     *locator.Evaluator
	cands  func(n *html.Node) []segment
	passes []pass
	ascent []*html.Node
}

// outcome of a search over all passes.
type outcome struct {
	path      path
	skipped   int // passes abandoned over the combination threshold
	attempted int
}

func (s search) run() outcome {
	var out outcome
	for _, p := range s.passes {
		out.attempted++
		found, over := s.bottomUp(p)
		if found != nil {
			out.path = s.optimize(found)
			return out
		}
		if over {
			out.skipped++
		}
	}
	return out
}

// bottomUp ascends from the target, adding one candidate level per
// ancestor, and tests uniqueness once the seed depth is reached.
func (s search) bottomUp(p pass) (path, bool) {
	var stack [][]segment
	for level, current := range s.ascent {
		segs := s.level(current, p, level)
		if len(segs) == 0 {
			return nil, false
		}
		stack = append(stack, segs)
		if len(stack) < s.cfg.SeedMinLength {
			continue
		}
		found, over := s.findUnique(stack)
		if over {
			return nil, true
		}
		if found != nil {
			return found, false
		}
	}
	if len(stack) > 0 && len(stack) < s.cfg.SeedMinLength {
		return s.findUnique(stack)
	}
	return nil, false
}

func (s search) level(n *html.Node, p pass, level int) []segment {
	base := s.cands(n)
	if len(base) == 0 {
		return nil
	}
	var out []segment
	switch p {
	case passAll:
		out = append(out, base...)
		for _, c := range base {
			if collides(c, n) {
				if o, ok := withOrdinal(c, n); ok {
					out = append(out, o)
				}
			}
		}
	case passTwo:
		out = append(out, base[0])
		if o, ok := withOrdinal(base[0], n); ok {
			out = append(out, o)
		}
	case passOne:
		top := base[0]
		if o, ok := withOrdinal(top, n); ok {
			if collides(o, n) {
				o = tagOrdinal(n)
			}
			top = o
		}
		out = []segment{top}
	}
	for i := range out {
		out[i].level = level
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].penalty < out[j].penalty })
	return out
}

func (s search) findUnique(stack [][]segment) (path, bool) {
	size := 1
	for _, l := range stack {
		size *= len(l)
		if size > s.cfg.Threshold {
			return nil, true
		}
	}
	for candidate := range combinations(stack) {
		if s.unique(candidate) {
			return candidate, false
		}
	}
	return nil, false
}

func (s search) unique(p path) bool {
	return s.ev.Unique(s.root, p.selector(), s.target)
}

// combinations lazily yields one segment per level, cheapest total penalty
// first. Levels must be sorted by penalty.
func combinations(stack [][]segment) iter.Seq[path] {
	return func(yield func(path) bool) {
		if len(stack) == 0 {
			return
		}
		for _, l := range stack {
			if len(l) == 0 {
				return
			}
		}
		h := &comboHeap{}
		start := make([]int, len(stack))
		heap.Push(h, combo{idx: start, penalty: comboPenalty(stack, start)})
		seen := map[string]bool{comboKey(start): true}

		for h.Len() > 0 {
			c := heap.Pop(h).(combo)
			p := make(path, len(stack))
			for i, j := range c.idx {
				p[i] = stack[i][j]
			}
			if !yield(p) {
				return
			}
			for i := range c.idx {
				if c.idx[i]+1 >= len(stack[i]) {
					continue
				}
				next := slices.Clone(c.idx)
				next[i]++
				k := comboKey(next)
				if seen[k] {
					continue
				}
				seen[k] = true
				heap.Push(h, combo{idx: next, penalty: comboPenalty(stack, next)})
			}
		}
	}
}

type combo struct {
	idx     []int
	penalty float64
}

type comboHeap []combo

func (h comboHeap) Len() int { return len(h) }
func (h comboHeap) Less(i, j int) bool {
	if h[i].penalty != h[j].penalty {
		return h[i].penalty < h[j].penalty
	}
	return slices.Compare(h[i].idx, h[j].idx) < 0
}
func (h comboHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *comboHeap) Push(x any)   { *h = append(*h, x.(combo)) }
func (h *comboHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func comboPenalty(stack [][]segment, idx []int) float64 {
	total := 0.0
	for i, j := range idx {
		total += stack[i][j].penalty
	}
	return total
}

func comboKey(idx []int) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// optimize removes interior segments while the path stays unique to the
// target and keeps the best survivor. The input path competes too, so the
// result is never longer or costlier than it.
func (s search) optimize(p path) path {
	var deadline time.Time
	if s.cfg.OptimizeBudget > 0 {
		deadline = time.Now().Add(s.cfg.OptimizeBudget)
	}
	return s.optimizeWithin(p, deadline)
}

// optimizeWithin is optimize bounded by a wall-clock deadline; a zero
// deadline leaves only the tries bound.
func (s search) optimizeWithin(p path, deadline time.Time) path {
	best := p
	sc := &optimizeScope{visited: make(map[string]bool), deadline: deadline}
	for candidate := range s.shorter(p, sc) {
		if better(candidate, best) {
			best = candidate
		}
	}
	return best
}

type optimizeScope struct {
	tries    int
	visited  map[string]bool
	deadline time.Time
}

func (sc *optimizeScope) spent(maxTries int) bool {
	if sc.tries >= maxTries {
		return true
	}
	return !sc.deadline.IsZero() && !time.Now().Before(sc.deadline)
}

func (s search) shorter(p path, sc *optimizeScope) iter.Seq[path] {
	return func(yield func(path) bool) {
		s.shorterInto(p, sc, yield)
	}
}

func (s search) shorterInto(p path, sc *optimizeScope, yield func(path) bool) bool {
	if len(p) <= 2 || len(p) <= s.cfg.OptimizedMinLength {
		return true
	}
	for i := 1; i < len(p)-1; i++ {
		if sc.spent(s.cfg.MaxTries) {
			return true
		}
		sc.tries++
		np := slices.Delete(slices.Clone(p), i, i+1)
		key := np.selector()
		if sc.visited[key] {
			continue
		}
		sc.visited[key] = true
		if !s.unique(np) {
			continue
		}
		if !yield(np) {
			return false
		}
		if !s.shorterInto(np, sc, yield) {
			return false
		}
	}
	return true
}

// ascentPath lists target and its element ancestors within its tree,
// bounded by limit.
func ascentPath(target *html.Node, limit int) []*html.Node {
	var out []*html.Node
	for n := target; n != nil && len(out) < limit; n = dom.ParentElement(n) {
		out = append(out, n)
	}
	return out
}
