package shared

import "math"

// Round2 rounds to 2 decimal places. Aggregations sum at full precision
// and round only at output boundaries.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
