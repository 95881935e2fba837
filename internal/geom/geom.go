// Package geom holds the planar primitives shared by the track pipeline.
// All distances are Euclidean in raw lon/lat units. The source geometry and
// the downstream animation interpolator both work in that metric, so using
// geodesic distance here would only introduce inconsistency.
package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Dist returns the planar Euclidean distance between two points.
func Dist(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// Bearing returns the planar bearing from a to b in degrees [0, 360),
// measured clockwise from the +lat axis.
func Bearing(a, b orb.Point) float64 {
	deg := math.Atan2(b[0]-a[0], b[1]-a[1]) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// AngleDiff returns the wrapped absolute difference between two bearings,
// in degrees [0, 180].
func AngleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// ProjectOnSegment projects p onto the segment a-b. It returns the projected
// point, the clamped parameter t in [0,1] and the distance from p to the
// projection.
func ProjectOnSegment(p, a, b orb.Point) (orb.Point, float64, float64) {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a, 0, Dist(p, a)
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	proj := orb.Point{a[0] + t*dx, a[1] + t*dy}
	return proj, t, Dist(p, proj)
}

// Interpolate returns the point at fraction f between a and b.
func Interpolate(a, b orb.Point, f float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
}

// LineLength returns the total planar length of a polyline.
func LineLength(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += Dist(ls[i-1], ls[i])
	}
	return total
}

// CumulativeLengths returns, for each vertex, the planar arc length from the
// first vertex. The slice has the same length as the polyline.
func CumulativeLengths(ls orb.LineString) []float64 {
	cum := make([]float64, len(ls))
	for i := 1; i < len(ls); i++ {
		cum[i] = cum[i-1] + Dist(ls[i-1], ls[i])
	}
	return cum
}

// NearestVertex returns the index of the polyline vertex closest to p and its
// distance. Returns -1 for an empty polyline.
func NearestVertex(ls orb.LineString, p orb.Point) (int, float64) {
	minIdx := -1
	minDist := math.Inf(1)
	for i, v := range ls {
		if d := Dist(v, p); d < minDist {
			minDist = d
			minIdx = i
		}
	}
	return minIdx, minDist
}
