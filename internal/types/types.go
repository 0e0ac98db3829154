// README: Shared value objects (identifiers, coordinates, USD amounts) used across modules.
package types

import "math"

// ID is an opaque identifier; sessions, runs and trips use UUID strings.
type ID string

func (id ID) String() string { return string(id) }

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RoundUSD rounds a dollar amount to 6 decimals, the precision used for AI costs.
func RoundUSD(v float64) float64 {
	return Round(v, 6)
}

// Round rounds v to the given number of decimals. Non-finite values are returned unchanged.
func Round(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
