package units

import "math"

// Precision is the number of decimals every returned float is rounded to.
// Content hashes depend on it.
const Precision = 2

var scale = math.Pow(10, Precision)

// Round rounds half away from zero to Precision decimals.
func Round(v float64) float64 {
	if !IsFinite(v) {
		return v
	}
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// CeilTo rounds up to Precision decimals. Used where rounding down is unconservative.
func CeilTo(v float64) float64 {
	if !IsFinite(v) {
		return v
	}
	// guard against 4.1300000000001 style noise pushing a clean value up a step
	r := math.Ceil(v*scale-1e-9) / scale
	if r == 0 {
		return 0
	}
	return r
}

func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LbFtToKipFt converts lb-ft to kip-ft.
func LbFtToKipFt(v float64) float64 { return v / 1000.0 }

// KipFtToLbFt converts kip-ft to lb-ft.
func KipFtToLbFt(v float64) float64 { return v * 1000.0 }

// KipFtToKipIn converts kip-ft to kip-in.
func KipFtToKipIn(v float64) float64 { return v * 12.0 }

// CubicFeetToYards converts ft³ to yd³.
func CubicFeetToYards(v float64) float64 { return v / 27.0 }
