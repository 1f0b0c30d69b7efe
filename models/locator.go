package models

// LocatorResult is the locator pair returned for a node or a member set.
// A non-empty Primary resolves against its declared root to exactly the
// intended node (point mode) or member set (group and list mode).
type LocatorResult struct {
	Primary  string `json:"primary,omitempty" yaml:"primary,omitempty"`
	Fallback string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	IsShadow bool   `json:"is_shadow" yaml:"is_shadow"`
	IsFrame  bool   `json:"is_frame" yaml:"is_frame"`

	// Alternatives are the narrower attribute-strategy paths, most specific first.
	Alternatives []string `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
	// Chain is Alternatives plus Primary joined as a CSS fallback chain.
	Chain string `json:"chain,omitempty" yaml:"chain,omitempty"`
}

// Empty reports whether neither expression is set.
func (l LocatorResult) Empty() bool {
	return l.Primary == "" && l.Fallback == ""
}

// Diagnostics carries triage data for "no result" responses.
type Diagnostics struct {
	Counts     map[string]int     `json:"counts,omitempty" yaml:"counts,omitempty"`
	Candidates []ScoredCandidate  `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Notes      []string           `json:"notes,omitempty" yaml:"notes,omitempty"`
	Values     map[string]float64 `json:"values,omitempty" yaml:"values,omitempty"`
}

// ScoredCandidate is one scored element with the reasons behind its score.
type ScoredCandidate struct {
	Selector string   `json:"selector,omitempty" yaml:"selector,omitempty"`
	Tag      string   `json:"tag" yaml:"tag"`
	Text     string   `json:"text,omitempty" yaml:"text,omitempty"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
	Score    float64  `json:"score" yaml:"score"`
	Reasons  []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// AddNote appends a diagnostic note.
func (d *Diagnostics) AddNote(note string) {
	d.Notes = append(d.Notes, note)
}

// Count sets a named candidate count.
func (d *Diagnostics) Count(name string, n int) {
	if d.Counts == nil {
		d.Counts = make(map[string]int)
	}
	d.Counts[name] = n
}
