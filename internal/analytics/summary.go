package analytics

import "sort"

// Summary holds basic statistics over a flat numeric sequence.
type Summary struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
}

// Summarize computes min, max, average and median of the given values,
// each rounded to 2 decimals. An empty input yields the all-zeroes
// Summary - that is the documented default, not an error. Behavior on
// NaN or infinite inputs is unspecified, callers sanitize upfront.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return Summary{
		Min:     Round2(sorted[0]),
		Max:     Round2(sorted[len(sorted)-1]),
		Average: Round2(sum / float64(len(sorted))),
		Median:  Round2(median),
	}
}
