// Package area evaluates whether a point falls inside the target region and
// validates user-supplied coordinates.
//
// The region for radius r is the union of:
//   - a quarter circle of radius r/2 in quadrant I
//   - the square [-r, 0] x [0, r] in quadrant II
//   - the triangle bounded by the axes and y = -x - r in quadrant III
package area

// Contains reports whether (x, y) lies inside the region for radius r.
// Boundaries count as inside.
func Contains(x, y, r float64) bool {
	half := r / 2
	if x >= 0 && y >= 0 && x*x+y*y <= half*half {
		return true
	}
	if x <= 0 && y >= 0 && x >= -r && y <= r {
		return true
	}
	return x <= 0 && y <= 0 && y >= -x-r
}
