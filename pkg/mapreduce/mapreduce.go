// Package mapreduce aggregates per-page counts across a batch.
package mapreduce

// Map counts the keys one page produced. Empty keys are skipped.
func Map(keys []string) map[string]int {
	counts := make(map[string]int, len(keys))
	for _, k := range keys {
		if k != "" {
			counts[k]++
		}
	}
	return counts
}

// Reduce aggregates a slice of count maps into a single map.
func Reduce(intermediate []map[string]int) map[string]int {
	finalResults := make(map[string]int)

	for _, counts := range intermediate {
		for key, count := range counts {
			finalResults[key] += count
		}
	}

	return finalResults
}
