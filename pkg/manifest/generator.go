package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dtnitsch/web-locator/pkg/mapreduce"
	"github.com/dtnitsch/web-locator/pkg/storage"
)

// FileName is the manifest's name inside a run's report directory.
const FileName = "manifest.json"

// InputResult is what the batch runner knows about one input.
type InputResult struct {
	Input      string
	ReportFile string
	Outcome    string
	Error      string
	// GroupSelectors are the primary locators of the groups found.
	GroupSelectors []string
	FieldCount     int
	Pagination     string
}

// Build aggregates results into a manifest. Groups are ranked by how many
// inputs produced the same selector.
func Build(runID int64, mode string, results []InputResult, s *storage.Storage) RunManifest {
	m := RunManifest{
		GeneratedAt: time.Now().Format(time.RFC3339),
		RunID:       runID,
		Mode:        mode,
		TotalInputs: len(results),
	}

	var groups, pagination []map[string]int
	for _, r := range results {
		summary := InputSummary{
			Input:      r.Input,
			ReportFile: r.ReportFile,
			Outcome:    r.Outcome,
			Error:      r.Error,
			Groups:     len(r.GroupSelectors),
			Fields:     r.FieldCount,
			Pagination: r.Pagination,
		}
		if r.Outcome == "ok" {
			m.Succeeded++
		} else {
			m.Failed++
		}

		if r.ReportFile != "" && s != nil {
			if stats, err := s.GetFileStats(r.ReportFile); err == nil {
				summary.SizeBytes = stats.SizeBytes
			}
		}

		groups = append(groups, mapreduce.Map(r.GroupSelectors))
		pagination = append(pagination, mapreduce.Map([]string{r.Pagination}))
		m.Results = append(m.Results, summary)
	}

	m.TopGroups = mapreduce.TopN(mapreduce.Reduce(groups), 25)
	if types := mapreduce.Reduce(pagination); len(types) > 0 {
		m.PaginationTypes = types
	}
	return m
}

// Save writes the manifest into dir and returns its path.
func Save(m RunManifest, dir string, s *storage.Storage) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error marshalling manifest: %w", err)
	}
	path, err := s.SaveReport(dir, FileName, data)
	if err != nil {
		return "", fmt.Errorf("error saving manifest: %w", err)
	}
	return path, nil
}
