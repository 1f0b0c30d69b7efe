package pagination

import "github.com/dtnitsch/web-locator/models"

// Result is the classified page-advance mechanism. The set of variants is
// closed: Empty, ClickNext, ClickLoadMore, ScrollDown and ScrollUp.
type Result interface {
	Type() models.PaginationType
	Confidence() models.Confidence
	result()
}

// Empty means no mechanism cleared a threshold.
type Empty struct{ Tier models.Confidence }

// ClickNext advances by clicking a next-page control.
type ClickNext struct {
	Locator models.LocatorResult
	Tier    models.Confidence
}

// ClickLoadMore appends records by clicking a load-more control.
type ClickLoadMore struct {
	Locator models.LocatorResult
	Tier    models.Confidence
}

// ScrollDown appends records when the page is scrolled to the bottom.
type ScrollDown struct{ Tier models.Confidence }

// ScrollUp prepends records when the page is scrolled to the top.
type ScrollUp struct{ Tier models.Confidence }

func (Empty) Type() models.PaginationType         { return models.PaginationNone }
func (ClickNext) Type() models.PaginationType     { return models.PaginationClickNext }
func (ClickLoadMore) Type() models.PaginationType { return models.PaginationClickLoadMore }
func (ScrollDown) Type() models.PaginationType    { return models.PaginationScrollDown }
func (ScrollUp) Type() models.PaginationType      { return models.PaginationScrollUp }

func (r Empty) Confidence() models.Confidence         { return r.Tier }
func (r ClickNext) Confidence() models.Confidence     { return r.Tier }
func (r ClickLoadMore) Confidence() models.Confidence { return r.Tier }
func (r ScrollDown) Confidence() models.Confidence    { return r.Tier }
func (r ScrollUp) Confidence() models.Confidence      { return r.Tier }

func (Empty) result()         {}
func (ClickNext) result()     {}
func (ClickLoadMore) result() {}
func (ScrollDown) result()    {}
func (ScrollUp) result()      {}

// Report is a classification with the pass that produced it.
type Report struct {
	Result      Result
	Pass        string
	Diagnostics *models.Diagnostics
	Err         error
}

// Model converts the report to its serialized form.
func (r Report) Model() models.PaginationResult {
	res := r.Result
	if res == nil {
		res = Empty{Tier: models.ConfidenceLow}
	}
	out := models.PaginationResult{
		Type:        res.Type(),
		Confidence:  res.Confidence(),
		Pass:        r.Pass,
		Outcome:     models.OutcomeOf(r.Err),
		Diagnostics: r.Diagnostics,
		Error:       models.NewErrorInfo(r.Err),
	}
	switch v := res.(type) {
	case ClickNext:
		out.Selector = selectorOf(v.Locator)
	case ClickLoadMore:
		out.Selector = selectorOf(v.Locator)
	}
	return out
}

func selectorOf(l models.LocatorResult) string {
	if l.Chain != "" {
		return l.Chain
	}
	return l.Primary
}
