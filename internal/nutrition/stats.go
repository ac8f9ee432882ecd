package nutrition

import "github.com/fitlytics/fitlytics/internal/analytics"

// Stats are the macro totals over a stats window.
type Stats struct {
	TotalCalories      int     `json:"totalCalories"`
	TotalProtein       float64 `json:"totalProtein"`
	TotalCarbohydrates float64 `json:"totalCarbohydrates"`
	TotalFat           float64 `json:"totalFat"`
}

// CalculateStats sums up calories and macros over the given entries.
// Missing macro values count as zero.
func CalculateStats(entries []Entry) Stats {
	var stats Stats
	for _, e := range entries {
		stats.TotalCalories += e.Calories
		if e.Protein != nil {
			stats.TotalProtein += *e.Protein
		}
		if e.Carbohydrates != nil {
			stats.TotalCarbohydrates += *e.Carbohydrates
		}
		if e.Fat != nil {
			stats.TotalFat += *e.Fat
		}
	}

	stats.TotalProtein = analytics.Round1(stats.TotalProtein)
	stats.TotalCarbohydrates = analytics.Round1(stats.TotalCarbohydrates)
	stats.TotalFat = analytics.Round1(stats.TotalFat)
	return stats
}
