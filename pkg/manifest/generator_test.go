package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dtnitsch/web-locator/pkg/storage"
)

func TestBuildAndSave(t *testing.T) {
	dir := t.TempDir()
	s := &storage.Storage{}
	report, err := s.SaveReport(dir, "a.json", []byte(`{"input":"a"}`))
	if err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	m := Build(7, "groups", []InputResult{
		{Input: "a", ReportFile: report, Outcome: "ok", GroupSelectors: []string{"ul > li", "table > tr"}, Pagination: "clickNext"},
		{Input: "b", Outcome: "ok", GroupSelectors: []string{"ul > li"}, Pagination: "clickNext"},
		{Input: "c", Outcome: "not_found", Error: "no such file"},
	}, s)

	if m.TotalInputs != 3 || m.Succeeded != 2 || m.Failed != 1 {
		t.Errorf("totals = %d/%d/%d", m.TotalInputs, m.Succeeded, m.Failed)
	}
	if want := []string{"ul > li:2", "table > tr:1"}; !reflect.DeepEqual(m.TopGroups, want) {
		t.Errorf("TopGroups = %v, want %v", m.TopGroups, want)
	}
	if want := map[string]int{"clickNext": 2}; !reflect.DeepEqual(m.PaginationTypes, want) {
		t.Errorf("PaginationTypes = %v, want %v", m.PaginationTypes, want)
	}
	if m.Results[0].SizeBytes == 0 || m.Results[0].Groups != 2 {
		t.Errorf("first result = %+v", m.Results[0])
	}

	path, err := Save(m, dir, s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != FileName {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var back RunManifest
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.RunID != 7 || len(back.Results) != 3 {
		t.Errorf("saved manifest = %+v", back)
	}
}
