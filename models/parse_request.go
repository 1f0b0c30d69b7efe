package models

// ParseRequest describes a static HTML document to load into the engine.
type ParseRequest struct {
	URL  string
	HTML string

	// Optional hints
	ViewportWidth  int  `json:"viewport_width,omitempty"`
	ViewportHeight int  `json:"viewport_height,omitempty"`
	DetectLanguage bool `json:"detect_language,omitempty"`

	// SkipReadability disables title/site-name enrichment.
	SkipReadability bool `json:"skip_readability,omitempty"`
}
