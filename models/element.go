package models

// Box is an element's bounding rectangle in page coordinates.
type Box struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// ElementSnapshot is the metadata reported for a located element.
type ElementSnapshot struct {
	Tag         string            `json:"tag" yaml:"tag"`
	ID          string            `json:"id,omitempty" yaml:"id,omitempty"`
	Classes     []string          `json:"classes,omitempty" yaml:"classes,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Text        string            `json:"text,omitempty" yaml:"text,omitempty"`
	HTMLPreview string            `json:"html_preview,omitempty" yaml:"html_preview,omitempty"`
	Box         Box               `json:"box" yaml:"box"`
}

// Peer is another element highlighted together with the target.
type Peer struct {
	Element ElementSnapshot `json:"element" yaml:"element"`
	Box     Box             `json:"box" yaml:"box"`
}

// PointResult is the response to a point or element locate request.
type PointResult struct {
	Outcome     Outcome          `json:"outcome" yaml:"outcome"`
	Locator     LocatorResult    `json:"locator" yaml:"locator"`
	Box         Box              `json:"box" yaml:"box"`
	Element     *ElementSnapshot `json:"element,omitempty" yaml:"element,omitempty"`
	Fields      []string         `json:"fields,omitempty" yaml:"fields,omitempty"`
	Group       *GroupDescriptor `json:"group,omitempty" yaml:"group,omitempty"`
	Peers       []Peer           `json:"peers,omitempty" yaml:"peers,omitempty"`
	Error       *ErrorInfo       `json:"error,omitempty" yaml:"error,omitempty"`
	Diagnostics *Diagnostics     `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}
