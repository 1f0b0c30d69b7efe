package mapreduce

import (
	"fmt"
	"sort"
)

type kv struct {
	Key   string
	Value int
}

func sorted(counts map[string]int) []kv {
	ss := make([]kv, 0, len(counts))
	for k, v := range counts {
		ss = append(ss, kv{k, v})
	}
	// Count descending, then key, so equal counts come out stable.
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Value != ss[j].Value {
			return ss[i].Value > ss[j].Value
		}
		return ss[i].Key < ss[j].Key
	})
	return ss
}

// TopN returns the n most frequent keys formatted as "key:count"
// (e.g., "ul.results > li:12"). n <= 0 returns every key.
func TopN(counts map[string]int, n int) []string {
	ss := sorted(counts)
	limit := len(ss)
	if n > 0 && n < limit {
		limit = n
	}

	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = fmt.Sprintf("%s:%d", ss[i].Key, ss[i].Value)
	}
	return out
}
