package models

// GroupDescriptor describes one repeated-record group.
type GroupDescriptor struct {
	Tag         string        `json:"tag" yaml:"tag"`
	Signature   string        `json:"signature" yaml:"signature"`
	MemberCount int           `json:"member_count" yaml:"member_count"`
	FromTable   bool          `json:"from_table,omitempty" yaml:"from_table,omitempty"`
	Locator     LocatorResult `json:"locator" yaml:"locator"`
	Boxes       []Box         `json:"boxes,omitempty" yaml:"boxes,omitempty"`
}

// GroupsResult is the response to a group detection request.
type GroupsResult struct {
	Outcome Outcome           `json:"outcome" yaml:"outcome"`
	Groups  []GroupDescriptor `json:"groups" yaml:"groups"`
	Error   *ErrorInfo        `json:"error,omitempty" yaml:"error,omitempty"`
}

// FieldResult is the response to a list-field locate request.
type FieldResult struct {
	Outcome     Outcome       `json:"outcome" yaml:"outcome"`
	Container   string        `json:"container" yaml:"container"`
	Relative    string        `json:"relative,omitempty" yaml:"relative,omitempty"`
	Locator     LocatorResult `json:"locator" yaml:"locator"`
	Matched     int           `json:"matched" yaml:"matched"`
	Instances   int           `json:"instances" yaml:"instances"`
	FromWarm    bool          `json:"from_warm,omitempty" yaml:"from_warm,omitempty"`
	Partial     bool          `json:"partial,omitempty" yaml:"partial,omitempty"`
	Diagnostics *Diagnostics  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Error       *ErrorInfo    `json:"error,omitempty" yaml:"error,omitempty"`
}

// FieldsResult is the response to a bulk field discovery request.
type FieldsResult struct {
	Outcome   Outcome       `json:"outcome" yaml:"outcome"`
	Container string        `json:"container" yaml:"container"`
	Fields    []FieldResult `json:"fields" yaml:"fields"`
	Error     *ErrorInfo    `json:"error,omitempty" yaml:"error,omitempty"`
}
