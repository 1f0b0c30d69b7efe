package mapreduce

import (
	"reflect"
	"testing"
)

func TestMapReduce(t *testing.T) {
	pages := []map[string]int{
		Map([]string{"ul > li", "table > tr", "", "ul > li"}),
		Map([]string{"ul > li"}),
		Map(nil),
	}
	got := Reduce(pages)
	want := map[string]int{"ul > li": 3, "table > tr": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reduce = %v, want %v", got, want)
	}
}

func TestTopN(t *testing.T) {
	counts := map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}

	tests := []struct {
		n    int
		want []string
	}{
		{2, []string{"c:5", "a:2"}},
		{0, []string{"c:5", "a:2", "b:2", "d:1"}},
		{10, []string{"c:5", "a:2", "b:2", "d:1"}},
	}
	for _, tt := range tests {
		if got := TopN(counts, tt.n); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("TopN(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
	if got := TopN(nil, 3); len(got) != 0 {
		t.Errorf("TopN(nil) = %v", got)
	}
}
