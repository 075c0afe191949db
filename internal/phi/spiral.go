// Package phi places points on a golden-angle spiral. Consecutive indexes
// land far apart in angle, so slots assigned in join order spread evenly
// without knowing how many there will be.
package phi

import "math"

// Phi is the golden ratio.
const Phi = 1.6180339887498948

// GrowthAngle is the golden angle in degrees (phyllotaxis).
const GrowthAngle = 137.5077

// Spiral returns the polar coordinates of index i out of n on a golden-angle
// spiral whose radius grows linearly from inner to outer. The angle is in
// radians, offset by heading.
func Spiral(i, n int, inner, outer, heading float64) (r, theta float64) {
	frac := 0.0
	if n > 1 {
		frac = float64(i) / float64(n-1)
	}
	r = inner + (outer-inner)*math.Min(math.Max(frac, 0), 1)
	theta = heading + float64(i)*GrowthAngle*math.Pi/180
	return r, theta
}
