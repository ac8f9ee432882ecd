package workouts

import "github.com/fitlytics/fitlytics/internal/analytics"

// Stats are the workout totals over a stats window. TotalDistance is
// null when no workout in the window carries a distance.
type Stats struct {
	TotalWorkouts int      `json:"totalWorkouts"`
	TotalDuration int      `json:"totalDuration"`
	TotalCalories int      `json:"totalCalories"`
	TotalDistance *float64 `json:"totalDistance"`
}

// CalculateStats sums up duration, calories and distance over the given
// workouts. A missing caloriesBurned counts as zero.
func CalculateStats(workouts []Workout) Stats {
	if len(workouts) == 0 {
		return Stats{}
	}

	stats := Stats{
		TotalWorkouts: len(workouts),
	}

	var totalDistance float64
	var distancePresent bool
	for _, w := range workouts {
		stats.TotalDuration += w.Duration
		if w.CaloriesBurned != nil {
			stats.TotalCalories += *w.CaloriesBurned
		}
		if w.Distance != nil && *w.Distance != 0 {
			totalDistance += *w.Distance
			distancePresent = true
		}
	}

	if distancePresent {
		totalDistance = analytics.Round2(totalDistance)
		stats.TotalDistance = &totalDistance
	}

	return stats
}
