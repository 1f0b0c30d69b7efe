// Package pagination classifies how a list page advances: clicking a next
// control, clicking a load-more control, scrolling down, scrolling up, or
// not at all.
//
// Detection runs in passes and stops at the first confident hit:
//
//	scoped    pagination regions beside the list, up to four levels out
//	nearby    vocabulary controls anywhere, scored by distance to the list
//	infinite  sentinels, loaders and page height (optional)
//	fallback  nearby scoring without the distance prerequisite
package pagination

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/dtnitsch/web-locator/pkg/locator"
	"github.com/dtnitsch/web-locator/pkg/selector"
	"golang.org/x/net/html"
)

// Pass names as reported.
const (
	PassScoped   = "scoped"
	PassNearby   = "nearby"
	PassInfinite = "infinite"
	PassFallback = "fallback"
	PassNone     = "none"
)

// Config holds the scoring thresholds and geometry bounds.
type Config struct {
	ScopedLevels      int
	NearThreshold     float64
	InfiniteThreshold float64
	FallbackThreshold float64
	MaxBelowGap       float64
	MaxAboveGap       float64
	MaxSideGap        float64
	ScanLimit         int
	TopCandidates     int
}

// ConfigFrom maps engine settings onto a detector config.
func ConfigFrom(e models.EngineConfig) Config {
	e.Defaults()
	return Config{
		ScopedLevels:      4,
		NearThreshold:     4.5,
		InfiniteThreshold: 3,
		FallbackThreshold: 3,
		MaxBelowGap:       400,
		MaxAboveGap:       150,
		MaxSideGap:        300,
		ScanLimit:         e.MaxScanElements,
		TopCandidates:     5,
	}
}

// Options are per-call switches.
type Options struct {
	SkipInfiniteScroll bool
}

// Scroller brings a chosen control into view before it is located.
type Scroller interface {
	ScrollIntoView(n *html.Node) error
}

// Detector classifies pagination for one document.
type Detector struct {
	ev       *locator.Evaluator
	finder   *selector.Finder
	cfg      Config
	scroller Scroller
	logger   *slog.Logger
}

// New returns a detector. scroller may be nil.
func New(ev *locator.Evaluator, finder *selector.Finder, cfg Config, scroller Scroller, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{ev: ev, finder: finder, cfg: cfg, scroller: scroller, logger: logger}
}

// SetScroller replaces the scroller.
func (d *Detector) SetScroller(s Scroller) {
	d.scroller = s
}

// candidate is one scored control.
type candidate struct {
	node    *html.Node
	cat     category
	score   float64
	near    bool
	reasons []string
}

// listing is the resolved container and its geometry.
type listing struct {
	instances []*html.Node
	bounding  *html.Node
	box       dom.Rect
}

// Detect classifies the page advance of the list matched by container.
func (d *Detector) Detect(container string, opts Options) Report {
	doc := d.ev.Document()
	diag := &models.Diagnostics{}
	if doc.Language != "" {
		diag.AddNote("language: " + doc.Language)
	}

	instances, err := d.ev.Resolve(doc.Root, container)
	if err != nil {
		diag.AddNote("container locator did not evaluate")
		return Report{Result: Empty{Tier: models.ConfidenceLow}, Pass: PassNone, Diagnostics: diag, Err: err}
	}
	diag.Count("instances", len(instances))
	if len(instances) == 0 {
		diag.AddNote("no list elements found")
		return Report{
			Result:      Empty{Tier: models.ConfidenceLow},
			Pass:        PassNone,
			Diagnostics: diag,
			Err:         fmt.Errorf("%w: no list elements found for %q", models.ErrNotFound, container),
		}
	}
	list := d.listing(doc, instances)

	if r, ok := d.scoped(list, diag); ok {
		return d.report(r, PassScoped, diag)
	}

	cands := d.controls(doc, list)
	if r, ok := d.nearby(cands, diag); ok {
		return d.report(r, PassNearby, diag)
	}
	if !opts.SkipInfiniteScroll {
		if r, ok := d.infinite(doc, list, diag); ok {
			return d.report(r, PassInfinite, diag)
		}
	} else {
		diag.AddNote("infinite scroll pass skipped")
	}
	if r, ok := d.fallback(cands, diag); ok {
		return d.report(r, PassFallback, diag)
	}

	d.topCandidates(cands, diag)
	return d.report(Empty{Tier: models.ConfidenceLow}, PassNone, diag)
}

func (d *Detector) report(r Result, pass string, diag *models.Diagnostics) Report {
	d.logger.Debug("pagination classified", "type", r.Type(), "confidence", r.Confidence(), "pass", pass)
	return Report{Result: r, Pass: pass, Diagnostics: diag}
}

func (d *Detector) listing(doc *dom.Document, instances []*html.Node) listing {
	l := listing{instances: instances}
	parent := dom.ParentElement(instances[0])
	for _, inst := range instances[1:] {
		if dom.ParentElement(inst) != parent {
			parent = nil
			break
		}
	}
	if parent == nil {
		parent = dom.CommonAncestor(instances)
	}
	if parent == nil {
		parent = instances[0]
	}
	l.bounding = parent
	for _, inst := range instances {
		l.box = l.box.Union(doc.Box(inst))
	}
	return l
}

// scoped looks for a pagination region next to the list and picks its
// control.
func (d *Detector) scoped(list listing, diag *models.Diagnostics) (Result, bool) {
	doc := d.ev.Document()
	regions := 0
	cur := list.bounding
	for level := 0; level < d.cfg.ScopedLevels && cur != nil; level++ {
		var around []*html.Node
		if level == 0 {
			around = append(around, dom.Children(cur)...)
		}
		if cur.Parent != nil {
			around = append(around, dom.Children(cur.Parent)...)
		}
		for _, s := range around {
			if s == cur || !doc.Visible(s) || list.holds(s) {
				continue
			}
			region := d.region(s)
			if region == nil {
				continue
			}
			regions++
			if r, ok := d.pickInRegion(region, list); ok {
				diag.Count("scoped_regions", regions)
				return r, true
			}
		}
		cur = dom.ParentElement(cur)
	}
	diag.Count("scoped_regions", regions)
	return nil, false
}

// holds reports whether n is, contains, or lies inside a list instance.
func (l listing) holds(n *html.Node) bool {
	for _, inst := range l.instances {
		if inst == n || dom.IsAncestor(n, inst) || dom.IsAncestor(inst, n) {
			return true
		}
	}
	return false
}

// inside reports whether n is a descendant of a list instance.
func (l listing) inside(n *html.Node) bool {
	for _, inst := range l.instances {
		if dom.IsAncestor(inst, n) {
			return true
		}
	}
	return false
}

// region returns the pagination region inside the subtree at s: the first
// element whose class, id, aria-label or role matches the vocabulary, a
// navigation landmark with two or more phrase matches, or a subtree whose
// clickables hold two ascending consecutive integers.
func (d *Detector) region(s *html.Node) *html.Node {
	var found *html.Node
	dom.Walk(s, d.cfg.ScanLimit, func(n *html.Node, _ int) bool {
		if found != nil {
			return false
		}
		if vocabulary.MatchString(dom.Attr(n, "class") + " " + dom.Attr(n, "id") + " " + dom.Attr(n, "aria-label") + " " + dom.Attr(n, "role")) {
			found = n
			return false
		}
		if (dom.Tag(n) == "nav" || dom.Attr(n, "role") == "navigation") && d.phraseMatches(n) >= 2 {
			found = n
			return false
		}
		return true
	})
	if found != nil {
		return found
	}
	if consecutive(clickableNumbers(d.numbers(s))) {
		return s
	}
	return nil
}

func (d *Detector) phraseMatches(region *html.Node) int {
	count := 0
	for _, c := range d.clickables(region) {
		if cat, _ := d.classify(c); cat != categoryNone {
			count++
		}
	}
	return count
}

type numbered struct {
	node  *html.Node
	value int
}

// numbers lists the integer-labelled controls and markers of a region in
// document order. Non-clickable numbers are kept: they often mark the
// current page.
func (d *Detector) numbers(region *html.Node) []numbered {
	var out []numbered
	dom.Walk(region, d.cfg.ScanLimit, func(n *html.Node, _ int) bool {
		if len(dom.Children(n)) > 0 && !isClickable(n) {
			return true
		}
		if v, err := strconv.Atoi(strings.TrimSpace(dom.Text(n, 8))); err == nil && v > 0 {
			out = append(out, numbered{node: n, value: v})
			return false
		}
		return true
	})
	return out
}

func clickableNumbers(nums []numbered) []numbered {
	return slices.DeleteFunc(slices.Clone(nums), func(n numbered) bool {
		return !isClickable(n.node)
	})
}

func consecutive(nums []numbered) bool {
	for i := 1; i < len(nums); i++ {
		if nums[i].value == nums[i-1].value+1 {
			return true
		}
	}
	return false
}

// pickInRegion chooses a control inside a pagination region: load-more
// first, then next, then the page after the current one.
func (d *Detector) pickInRegion(region *html.Node, list listing) (Result, bool) {
	var next *html.Node
	for _, c := range d.clickables(region) {
		if list.holds(c) || disabled(c) {
			continue
		}
		switch cat, _ := d.classify(c); cat {
		case categoryLoadMore:
			if loc, ok := d.locate(c); ok {
				return ClickLoadMore{Locator: loc, Tier: models.ConfidenceHigh}, true
			}
		case categoryNext:
			if next == nil {
				next = c
			}
		}
	}
	if next != nil {
		if loc, ok := d.locate(next); ok {
			return ClickNext{Locator: loc, Tier: models.ConfidenceHigh}, true
		}
	}
	if after := afterCurrent(d.numbers(region)); after != nil {
		if loc, ok := d.locate(after); ok {
			return ClickNext{Locator: loc, Tier: models.ConfidenceMedium}, true
		}
	}
	return nil, false
}

// afterCurrent returns the clickable page number following the one marked
// current.
func afterCurrent(nums []numbered) *html.Node {
	cur := -1
	for i, n := range nums {
		if isCurrent(n.node) {
			cur = i
			break
		}
	}
	if cur < 0 {
		return nil
	}
	for _, n := range nums[cur+1:] {
		if n.value == nums[cur].value+1 && isClickable(n.node) && !disabled(n.node) {
			return n.node
		}
	}
	return nil
}

func isCurrent(n *html.Node) bool {
	for a, hops := n, 0; a != nil && hops < 2; a, hops = dom.ParentElement(a), hops+1 {
		if v := dom.Attr(a, "aria-current"); v != "" && v != "false" {
			return true
		}
		if dom.Attr(a, "aria-selected") == "true" {
			return true
		}
		if activeMarker.MatchString(dom.Attr(a, "class")) {
			return true
		}
	}
	return false
}

// controls scores every visible, enabled, vocabulary-matching clickable
// outside the list.
func (d *Detector) controls(doc *dom.Document, list listing) []candidate {
	var out []candidate
	for _, c := range d.clickables(doc.Root) {
		if list.holds(c) || disabled(c) {
			continue
		}
		cat, exact := d.classify(c)
		if cat == categoryNone {
			continue
		}
		out = append(out, d.score(doc, c, cat, exact, list))
	}
	slices.SortStableFunc(out, func(a, b candidate) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	return out
}

func (d *Detector) score(doc *dom.Document, n *html.Node, cat category, exact bool, list listing) candidate {
	c := candidate{node: n, cat: cat}
	add := func(points float64, reason string) {
		c.score += points
		c.reasons = append(c.reasons, fmt.Sprintf("%s:%+.1f", reason, points))
	}

	if exact {
		add(3, "phrase")
	} else {
		add(2, "glyph-or-label")
	}

	box := doc.Box(n)
	switch {
	case box.Empty() || list.box.Empty():
	case box.Y >= list.box.Bottom() && box.Y-list.box.Bottom() <= d.cfg.MaxBelowGap:
		c.near = true
		add(2, "below-list")
		if box.Y-list.box.Bottom() <= 60 {
			add(1, "directly-below")
		}
	case box.Bottom() <= list.box.Y && list.box.Y-box.Bottom() <= d.cfg.MaxAboveGap:
		c.near = true
		add(1, "above-list")
	case box.Y < list.box.Bottom() && box.Bottom() > list.box.Y:
		gap := max(box.X-list.box.Right(), list.box.X-box.Right())
		if gap >= 0 && gap <= d.cfg.MaxSideGap {
			c.near = true
			add(1.5, "beside-list")
		}
	}

	if dom.Tag(n) == "button" || dom.Attr(n, "role") == "button" {
		add(0.5, "button")
	}
	for a, hops := n, 0; a != nil && hops < 4; a, hops = dom.ParentElement(a), hops+1 {
		if vocabulary.MatchString(dom.Attr(a, "class")) {
			add(1.5, "pagination-class")
			break
		}
	}
	return c
}

// nearby accepts the best adjacent control above the near threshold.
func (d *Detector) nearby(cands []candidate, diag *models.Diagnostics) (Result, bool) {
	var near []candidate
	for _, c := range cands {
		if c.near {
			near = append(near, c)
		}
	}
	diag.Count("nearby_candidates", len(near))
	return d.accept(near, d.cfg.NearThreshold, models.ConfidenceHigh)
}

// fallback accepts the best control anywhere above the fallback threshold,
// capped at medium confidence.
func (d *Detector) fallback(cands []candidate, diag *models.Diagnostics) (Result, bool) {
	diag.Count("fallback_candidates", len(cands))
	return d.accept(cands, d.cfg.FallbackThreshold, models.ConfidenceMedium)
}

// accept picks the top advancing candidate; load-more wins ties. The tier
// is ceiling when the margin over the threshold is at least 1.5 and one
// tier lower otherwise.
func (d *Detector) accept(cands []candidate, threshold float64, ceiling models.Confidence) (Result, bool) {
	var best *candidate
	for i := range cands {
		c := &cands[i]
		if c.cat != categoryNext && c.cat != categoryLoadMore {
			continue
		}
		if c.score < threshold {
			continue
		}
		if best == nil || c.score > best.score || (c.score == best.score && c.cat == categoryLoadMore && best.cat != categoryLoadMore) {
			best = c
		}
	}
	if best == nil {
		return nil, false
	}
	loc, ok := d.locate(best.node)
	if !ok {
		return nil, false
	}
	tier := ceiling
	if best.score-threshold < 1.5 {
		tier = lower(ceiling)
	}
	if best.cat == categoryLoadMore {
		return ClickLoadMore{Locator: loc, Tier: tier}, true
	}
	return ClickNext{Locator: loc, Tier: tier}, true
}

func lower(c models.Confidence) models.Confidence {
	switch c {
	case models.ConfidenceHigh:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// infinite scores scroll-driven loading. Markers above the first instance
// and load-earlier phrases count toward scrolling up. Loaders, to-top
// controls and page height are direction-free; without a directional
// signal the page scrolls down.
func (d *Detector) infinite(doc *dom.Document, list listing, diag *models.Diagnostics) (Result, bool) {
	if doc.ScrollHeight <= doc.Viewport.Height || doc.Viewport.Height <= 0 {
		diag.AddNote("document fits in one viewport")
		return nil, false
	}
	top := doc.Box(list.instances[0]).Y

	var down, up, shared float64
	markers := 0
	dom.Walk(doc.Root, d.cfg.ScanLimit, func(n *html.Node, _ int) bool {
		if dom.IsNonRendered(dom.Tag(n)) {
			return false
		}
		if list.inside(n) {
			return true
		}
		if mediaTags[dom.Tag(n)] {
			return false
		}
		attrs := dom.Attr(n, "class") + " " + dom.Attr(n, "id")
		for _, a := range n.Attr {
			if strings.HasPrefix(a.Key, "data-") {
				attrs += " " + a.Key
			}
		}
		switch {
		case infiniteMarker.MatchString(attrs):
			markers++
			if doc.Box(n).Bottom() <= top {
				up += 2
			} else {
				down += 2
			}
		case loadingMarker.MatchString(attrs) || dom.Attr(n, "role") == "progressbar" || dom.Attr(n, "aria-busy") == "true":
			markers++
			shared++
		case toTopMarker.MatchString(attrs):
			markers++
			shared++
		}
		if isClickable(n) {
			if cat, _ := d.classify(n); cat == categoryLoadEarlier {
				up += 2
			}
		}
		return true
	})

	ratio := doc.ScrollHeight / doc.Viewport.Height
	if diag.Values == nil {
		diag.Values = make(map[string]float64)
	}
	diag.Values["height_ratio"] = ratio
	diag.Count("infinite_markers", markers)
	if ratio >= 2 {
		shared++
	}
	if ratio >= 4 {
		shared++
	}
	score := shared + max(up, down)
	diag.Values["infinite_score"] = score
	if score < d.cfg.InfiniteThreshold {
		return nil, false
	}
	tier := models.ConfidenceMedium
	if score-d.cfg.InfiniteThreshold >= 2 {
		tier = models.ConfidenceHigh
	}
	if up > down {
		return ScrollUp{Tier: tier}, true
	}
	return ScrollDown{Tier: tier}, true
}

// topCandidates records the best scored controls with their reasons.
func (d *Detector) topCandidates(cands []candidate, diag *models.Diagnostics) {
	for i, c := range cands {
		if i >= d.cfg.TopCandidates {
			break
		}
		diag.Candidates = append(diag.Candidates, models.ScoredCandidate{
			Tag:      dom.Tag(c.node),
			Text:     dom.Text(c.node, 60),
			Category: c.cat.String(),
			Score:    c.score,
			Reasons:  c.reasons,
		})
	}
}

// locate scrolls n into view and returns its locator chain.
func (d *Detector) locate(n *html.Node) (models.LocatorResult, bool) {
	if d.scroller != nil {
		if err := d.scroller.ScrollIntoView(n); err != nil {
			d.logger.Debug("scroll into view failed", "error", err)
		}
	}
	loc, err := d.finder.Locate(n)
	if err != nil {
		d.logger.Debug("control not locatable", "tag", dom.Tag(n), "error", err)
		return models.LocatorResult{}, false
	}
	return loc, true
}

// classify matches a control's text, then its accessible label, then
// rel=next/prev.
func (d *Detector) classify(n *html.Node) (category, bool) {
	if cat, exact := matchPhrase(dom.Text(n, 60)); cat != categoryNone {
		return cat, exact
	}
	if cat, _ := matchPhrase(accessibleLabel(n)); cat != categoryNone {
		return cat, false
	}
	switch strings.ToLower(dom.Attr(n, "rel")) {
	case "next":
		return categoryNext, false
	case "prev", "previous":
		return categoryPrev, false
	}
	return categoryNone, false
}

func accessibleLabel(n *html.Node) string {
	for _, attr := range []string{"aria-label", "title", "value"} {
		if v := dom.Attr(n, attr); v != "" {
			return v
		}
	}
	for _, c := range dom.Children(n) {
		if dom.Tag(c) == "img" {
			if v := dom.Attr(c, "alt"); v != "" {
				return v
			}
		}
	}
	return ""
}

// clickables lists visible click targets under root, not descending into
// a clickable.
func (d *Detector) clickables(root *html.Node) []*html.Node {
	doc := d.ev.Document()
	var out []*html.Node
	dom.Walk(root, d.cfg.ScanLimit, func(n *html.Node, _ int) bool {
		if !doc.Visible(n) {
			return false
		}
		if isClickable(n) {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// mediaTags never act as scroll sentinels, whatever their lazy-loading
// classes say.
var mediaTags = map[string]bool{
	"img": true, "picture": true, "video": true, "audio": true,
	"source": true, "iframe": true, "svg": true, "canvas": true,
}

func isClickable(n *html.Node) bool {
	switch dom.Tag(n) {
	case "a", "button":
		return true
	case "input":
		switch strings.ToLower(dom.Attr(n, "type")) {
		case "button", "submit":
			return true
		}
	}
	switch dom.Attr(n, "role") {
	case "button", "link":
		return true
	}
	return dom.HasAttr(n, "onclick")
}

func disabled(n *html.Node) bool {
	if dom.HasAttr(n, "disabled") || dom.Attr(n, "aria-disabled") == "true" {
		return true
	}
	return slices.Contains(dom.Classes(n), "disabled")
}
