// Package structural builds field locators that generalize across the
// repeated instances of a list container.
//
// A field locator is a relative XPath appended to the container locator.
// Each step prefers class tokens shared by the counterpart element in every
// sampled instance, then identical role/type attributes, then a same-tag
// ordinal. Once an ordinal is forced, every step below it uses ordinals.
package structural

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/cache"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/locator"
	"github.com/dtnitsch/web-locator/pkg/session"
	"golang.org/x/net/html"
)

// Config bounds the builder.
type Config struct {
	DepthCap           int
	MaxFieldsPerParent int
	SampleInstances    int
	ScanLimit          int
}

// ConfigFrom maps engine settings onto a builder config.
func ConfigFrom(e models.EngineConfig) Config {
	e.Defaults()
	return Config{
		DepthCap:           e.StructuralDepthCap,
		MaxFieldsPerParent: e.MaxFieldsPerParent,
		SampleInstances:    e.SampleInstances,
		ScanLimit:          e.MaxScanElements,
	}
}

// Field is one generalized field locator. Diverged counts the sampled
// instances whose structure did not replay down to the field.
type Field struct {
	Relative  string
	Locator   models.LocatorResult
	Matched   int
	Instances int
	Diverged  int
}

// Partial reports whether the locator misses some instances.
func (f Field) Partial() bool {
	return f.Matched < f.Instances
}

// Builder produces field locators for one document.
type Builder struct {
	ev      *locator.Evaluator
	cfg     Config
	anchors *session.Session
	ids     *cache.Identity
	shared  *cache.Memo[[]string]
	leaves  *cache.WeakMemo[html.Node, cache.WeakNodes]
	logger  *slog.Logger
}

// New returns a builder. anchors may be nil when no fallback is wanted;
// nil caches are created.
func New(ev *locator.Evaluator, cfg Config, anchors *session.Session, ids *cache.Identity, shared *cache.Memo[[]string], leaves *cache.WeakMemo[html.Node, cache.WeakNodes], logger *slog.Logger) *Builder {
	if ids == nil {
		ids = cache.NewIdentity()
	}
	if shared == nil {
		shared = cache.NewMemo[[]string]()
	}
	if leaves == nil {
		leaves = cache.NewWeakMemo[html.Node, cache.WeakNodes]()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{ev: ev, cfg: cfg, anchors: anchors, ids: ids, shared: shared, leaves: leaves, logger: logger}
}

// Instances resolves the container locator against the document.
func (b *Builder) Instances(container string) ([]*html.Node, error) {
	return b.ev.Resolve(b.ev.Document().Root, container)
}

// Build returns the field locator for descendant, which must lie inside one
// of the container's instances.
func (b *Builder) Build(container string, descendant *html.Node, fallback bool) (Field, error) {
	instances, err := b.Instances(container)
	if err != nil {
		return Field{}, err
	}
	if len(instances) == 0 {
		return Field{}, fmt.Errorf("%w: container %q matches nothing", models.ErrNotFound, container)
	}
	item := itemOf(instances, descendant)
	if item == nil {
		return Field{}, fmt.Errorf("%w: node is outside every container instance", models.ErrNotFound)
	}
	return b.build(container, instances, item, descendant, fallback)
}

func (b *Builder) build(container string, instances []*html.Node, item, descendant *html.Node, fallback bool) (Field, error) {
	chain := chainBetween(item, descendant)
	if len(chain) == 0 {
		return Field{}, fmt.Errorf("%w: descendant is the item root", models.ErrNotFound)
	}
	if len(chain) > b.cfg.DepthCap {
		return Field{}, fmt.Errorf("%w: field is %d levels below its item", models.ErrExhausted, len(chain))
	}

	samples := b.sample(instances, item)
	rel, diverged := b.relative(item, chain, samples)
	if !b.resolvesTo(item, rel, descendant) {
		rel = ordinalPath(chain)
		if !b.resolvesTo(item, rel, descendant) {
			return Field{}, fmt.Errorf("%w: no relative path resolves to the field", models.ErrNotFound)
		}
	}

	f := Field{Relative: rel, Instances: len(instances), Diverged: diverged}
	for _, inst := range instances {
		if nodes, err := b.ev.QueryXPath(inst, rel); err == nil && len(nodes) > 0 {
			f.Matched++
		}
	}
	if f.Partial() {
		b.logger.Debug("field locator matches a subset of instances", "relative", rel, "matched", f.Matched, "instances", f.Instances)
	}
	if locator.Sniff(container) == locator.XPath {
		f.Locator.Primary = container + "/" + rel
	} else {
		f.Locator.Primary = rel
	}
	if fallback && b.anchors != nil {
		f.Locator.Fallback = b.fallback(item, chain)
	}
	f.Locator.IsShadow = b.ev.Document().IsShadowRoot(dom.TreeRoot(item))
	f.Locator.IsFrame = b.ev.Document().IsFrameRoot(dom.TreeRoot(item))
	return f, nil
}

// relative walks top-down from the item's child to the descendant. It also
// returns how many samples diverged before reaching the field.
func (b *Builder) relative(item *html.Node, chain []*html.Node, samples []*html.Node) (string, int) {
	counterparts := make([][]*html.Node, len(chain))
	diverged := 0
	for _, inst := range samples {
		path := replay(inst, chain)
		if len(path) < len(chain) {
			diverged++
		}
		for i, n := range path {
			counterparts[i] = append(counterparts[i], n)
		}
	}

	steps := make([]string, 0, len(chain))
	forced := false
	for i, n := range chain {
		tag := dom.Tag(n)
		if forced {
			steps = append(steps, ordinalStep(n))
			continue
		}
		if classes := b.sharedClasses(n, counterparts[i], len(samples) > 0); len(classes) > 0 {
			steps = append(steps, qualified(n, tag, locator.ClassPredicate(classes), classTest(classes)))
			continue
		}
		if pred, test := sharedAttribute(n, counterparts[i]); pred != "" {
			steps = append(steps, qualified(n, tag, pred, test))
			continue
		}
		steps = append(steps, ordinalStep(n))
		forced = true
	}
	return strings.Join(steps, "/"), diverged
}

// sharedClasses is n's stable classes present on every counterpart. With no
// sampled instances n's own classes are used unfiltered.
func (b *Builder) sharedClasses(n *html.Node, counterparts []*html.Node, sampled bool) []string {
	key := cache.Key("shared-classes", b.ids.Token(n), b.ids.Token(counterparts...))
	if v, ok := b.shared.Get(key); ok {
		return v
	}
	own := locator.Quotable(dom.StableClasses(n))
	if sampled {
		for _, c := range counterparts {
			other := dom.StableClasses(c)
			own = slices.DeleteFunc(own, func(cls string) bool { return !slices.Contains(other, cls) })
		}
		if len(counterparts) == 0 {
			own = nil
		}
	}
	b.shared.Put(key, own)
	return own
}

// sharedAttribute returns an @role or @type predicate when the value is
// identical on n and every counterpart.
func sharedAttribute(n *html.Node, counterparts []*html.Node) (string, func(*html.Node) bool) {
	for _, attr := range []string{"role", "type"} {
		if !dom.HasAttr(n, attr) {
			continue
		}
		v := dom.Attr(n, attr)
		lit, ok := locator.Literal(v)
		if v == "" || !ok {
			continue
		}
		same := true
		for _, c := range counterparts {
			if dom.Attr(c, attr) != v {
				same = false
				break
			}
		}
		if same {
			return "@" + attr + "=" + lit, func(s *html.Node) bool {
				return dom.HasAttr(s, attr) && dom.Attr(s, attr) == v
			}
		}
	}
	return "", nil
}

// qualified returns tag[pred], adding a position among the siblings that
// match the predicate when more than one does.
func qualified(n *html.Node, tag, pred string, test func(*html.Node) bool) string {
	step := tag + "[" + pred + "]"
	if n.Parent == nil {
		return step
	}
	matches, pos := 0, 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if !dom.IsElement(s) || dom.Tag(s) != tag || !test(s) {
			continue
		}
		matches++
		if s == n {
			pos = matches
		}
	}
	if matches > 1 && pos > 0 {
		step += fmt.Sprintf("[%d]", pos)
	}
	return step
}

func (b *Builder) resolvesTo(item *html.Node, rel string, want *html.Node) bool {
	nodes, err := b.ev.QueryXPath(item, rel)
	return err == nil && len(nodes) == 1 && nodes[0] == want
}

// sample picks up to SampleInstances instances other than item.
func (b *Builder) sample(instances []*html.Node, item *html.Node) []*html.Node {
	var out []*html.Node
	for _, inst := range instances {
		if inst == item || dom.IsAncestor(inst, item) || dom.IsAncestor(item, inst) {
			continue
		}
		out = append(out, inst)
		if len(out) >= b.cfg.SampleInstances {
			break
		}
	}
	return out
}

// fallback anchors the item root and, when it already carries one, the
// descendant; otherwise an ordinal chain hangs off the item's anchor.
func (b *Builder) fallback(item *html.Node, chain []*html.Node) string {
	itemAnchor := b.anchors.Anchor(item)
	desc := chain[len(chain)-1]
	if v, ok := b.anchors.Value(desc); ok {
		return b.anchors.XPath(itemAnchor) + "//" + b.anchors.Step(v)
	}
	return b.anchors.XPath(itemAnchor) + "/" + ordinalPath(chain)
}

// itemOf returns the instance containing n (or equal to it).
func itemOf(instances []*html.Node, n *html.Node) *html.Node {
	for _, inst := range instances {
		if inst == n || dom.IsAncestor(inst, n) {
			return inst
		}
	}
	return nil
}

// chainBetween lists the elements from item's child down to descendant.
func chainBetween(item, descendant *html.Node) []*html.Node {
	var chain []*html.Node
	for n := descendant; n != nil && n != item; n = dom.ParentElement(n) {
		chain = append(chain, n)
	}
	slices.Reverse(chain)
	return chain
}

// replay follows chain's same-tag ordinals inside another instance. The
// result is shorter than chain when the other instance diverges.
func replay(inst *html.Node, chain []*html.Node) []*html.Node {
	var out []*html.Node
	cur := inst
	for _, n := range chain {
		idx, _ := dom.SameTagIndex(n)
		cur = dom.NthSameTagChild(cur, n.Data, idx)
		if cur == nil {
			break
		}
		out = append(out, cur)
	}
	return out
}

func ordinalStep(n *html.Node) string {
	idx, _ := dom.SameTagIndex(n)
	return fmt.Sprintf("%s[%d]", dom.Tag(n), idx)
}

func ordinalPath(chain []*html.Node) string {
	steps := make([]string, len(chain))
	for i, n := range chain {
		steps[i] = ordinalStep(n)
	}
	return strings.Join(steps, "/")
}
