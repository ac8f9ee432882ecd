package bodymetrics

import (
	"sort"

	"github.com/fitlytics/fitlytics/internal/analytics"
)

// Stats is the aggregate view over a window of body metric records.
// Nil fields are serialized as null, their absence is part of the
// contract (e.g. weightChange stays null until there are at least two
// weighed records in the window).
type Stats struct {
	LatestWeight  *float64 `json:"latestWeight"`
	AverageWeight *float64 `json:"averageWeight"`
	WeightChange  *float64 `json:"weightChange"`
	LatestBMI     *float64 `json:"latestBmi"`
	LatestBodyFat *float64 `json:"latestBodyFat"`
}

func hasWeight(m Metric) bool {
	return m.Weight != nil && *m.Weight != 0
}

// CalculateStats aggregates body metric records. Pure, input slice is
// not mutated.
func CalculateStats(metrics []Metric) Stats {
	if len(metrics) == 0 {
		return Stats{}
	}

	sorted := make([]Metric, len(metrics))
	copy(sorted, metrics)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.After(sorted[j].RecordedAt)
	})

	latest := sorted[0]

	var weights []float64
	for _, m := range metrics {
		if hasWeight(m) {
			weights = append(weights, *m.Weight)
		}
	}

	stats := Stats{
		LatestWeight:  latest.Weight,
		LatestBMI:     latest.BMI,
		LatestBodyFat: latest.BodyFatPercentage,
	}

	if len(weights) > 0 {
		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		avg := analytics.Round1(sum / float64(len(weights)))
		stats.AverageWeight = &avg
	}

	// weight change: latest vs oldest, only when both endpoints have a weight
	oldest := sorted[len(sorted)-1]
	if len(sorted) >= 2 && hasWeight(latest) && hasWeight(oldest) {
		change := analytics.Change(oldest.Weight, latest.Weight).Absolute
		stats.WeightChange = &change
	}

	return stats
}
