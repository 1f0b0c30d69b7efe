package manifest

// RunManifest is the overview written next to a batch run's reports. It
// lets a reader scan outcomes and recurring selectors without opening
// every report.
type RunManifest struct {
	GeneratedAt     string         `json:"generated_at"`
	RunID           int64          `json:"run_id,omitempty"`
	Mode            string         `json:"mode"`
	TotalInputs     int            `json:"total_inputs"`
	Succeeded       int            `json:"succeeded"`
	Failed          int            `json:"failed"`
	TopGroups       []string       `json:"top_groups,omitempty"`
	PaginationTypes map[string]int `json:"pagination_types,omitempty"`
	Results         []InputSummary `json:"results"`
}

// InputSummary is the manifest line for one input.
type InputSummary struct {
	Input      string `json:"input"`
	ReportFile string `json:"report_file,omitempty"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	Groups     int    `json:"groups,omitempty"`
	Fields     int    `json:"fields,omitempty"`
	Pagination string `json:"pagination,omitempty"`
}
