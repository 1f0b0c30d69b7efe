package models

import "errors"

// Outcome names how an engine entry point finished.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeExhausted   Outcome = "exhausted"
	OutcomeStale       Outcome = "stale"
)

var (
	// ErrNotFound means no node at the point, or no unique path exists.
	ErrNotFound = errors.New("not found")
	// ErrUnsupported means a non-element node or an unparseable locator.
	ErrUnsupported = errors.New("unsupported")
	// ErrExhausted means every search pass exceeded its combination budget.
	ErrExhausted = errors.New("search space exhausted")
	// ErrStale means a cached or supplied node is no longer attached.
	ErrStale = errors.New("stale node")
)

// OutcomeOf maps an error to its Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrStale):
		return OutcomeStale
	case errors.Is(err, ErrExhausted):
		return OutcomeExhausted
	case errors.Is(err, ErrUnsupported):
		return OutcomeUnsupported
	default:
		return OutcomeNotFound
	}
}

// ErrorInfo provides structured error information.
type ErrorInfo struct {
	Type             string   `json:"error_type" yaml:"error_type"`
	Message          string   `json:"message" yaml:"message"`
	SuggestedActions []string `json:"suggested_actions,omitempty" yaml:"suggested_actions,omitempty"`
}

// NewErrorInfo builds ErrorInfo from an engine error.
func NewErrorInfo(err error, actions ...string) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{
		Type:             string(OutcomeOf(err)),
		Message:          err.Error(),
		SuggestedActions: actions,
	}
}
