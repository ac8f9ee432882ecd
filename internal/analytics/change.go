package analytics

// ChangeResult holds the absolute and percentage change between two readings.
type ChangeResult struct {
	Absolute   float64 `json:"absolute"`
	Percentage float64 `json:"percentage"`
}

// Change computes the absolute and percentage change from oldValue to
// newValue, rounded to 2 decimals. A missing input or a zero baseline
// yields {0, 0} - zero-division guard, not an error.
func Change(oldValue, newValue *float64) ChangeResult {
	if oldValue == nil || newValue == nil || *oldValue == 0 {
		return ChangeResult{}
	}

	absolute := *newValue - *oldValue
	return ChangeResult{
		Absolute:   Round2(absolute),
		Percentage: Round2(absolute / *oldValue * 100),
	}
}
