package utils

import "math"

// RoundFloat rounds val to precision decimal places. Credit amounts are
// stored with two, matching the decimal(10,2) columns.
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
