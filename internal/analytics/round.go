package analytics

import "math"

// Round1 rounds to one decimal place, half away from zero.
// The precision is a product decision baked into the stats outputs,
// do not change it without checking the API consumers first.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
