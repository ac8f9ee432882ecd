package analytics

import (
	"math"
	"strings"
)

// DefaultWeightKG is assumed when the user profile carries no weight.
const DefaultWeightKG = 70.0

const defaultMET = 5.0

// metValues maps a normalized activity type to its MET
// (Metabolic Equivalent of Task) value.
var metValues = map[string]float64{
	"running":           9.8,
	"jogging":           7.0,
	"walking":           3.5,
	"cycling":           7.5,
	"swimming":          8.0,
	"strength_training": 6.0,
	"weightlifting":     6.0,
	"yoga":              3.0,
	"pilates":           3.5,
	"hiit":              10.0,
	"dancing":           5.0,
	"basketball":        6.5,
	"soccer":            7.0,
	"tennis":            7.3,
	"hiking":            6.0,
	"elliptical":        7.0,
	"rowing":            8.5,
	"climbing":          8.0,
}

// EstimateCalories estimates the energy expenditure of an activity:
// calories = MET * weight(kg) * time(hours). The activity type is
// matched case-insensitively with spaces mapped to underscores; unknown
// activities fall back to MET 5.0. Never fails.
func EstimateCalories(activityType string, durationMinutes, weightKG float64) int {
	normalized := strings.ReplaceAll(strings.ToLower(activityType), " ", "_")
	met, ok := metValues[normalized]
	if !ok {
		met = defaultMET
	}
	return int(math.Round(met * weightKG * durationMinutes / 60))
}
