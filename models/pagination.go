package models

// Confidence is the coarse rating of a pagination classification.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidence tiers: high > medium > low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// PaginationType is the wire name of a pagination variant.
type PaginationType string

const (
	PaginationNone          PaginationType = ""
	PaginationClickNext     PaginationType = "clickNext"
	PaginationClickLoadMore PaginationType = "clickLoadMore"
	PaginationScrollDown    PaginationType = "scrollDown"
	PaginationScrollUp      PaginationType = "scrollUp"
)

// PaginationResult is the serialized form of a pagination classification.
type PaginationResult struct {
	Type        PaginationType `json:"type" yaml:"type"`
	Selector    string         `json:"selector,omitempty" yaml:"selector,omitempty"`
	Confidence  Confidence     `json:"confidence" yaml:"confidence"`
	Pass        string         `json:"pass,omitempty" yaml:"pass,omitempty"`
	Outcome     Outcome        `json:"outcome" yaml:"outcome"`
	Diagnostics *Diagnostics   `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Error       *ErrorInfo     `json:"error,omitempty" yaml:"error,omitempty"`
}
