package track

import (
	"fmt"

	"github.com/paulmach/orb"

	"trackforge/internal/geom"
)

// Parametrize derives every waypoint's normalized position along the
// polyline from cumulative planar arc length. An exact vertex match is
// expected after calibration; a nearest-vertex search is the fallback.
//
// For a circular route the last waypoint repeats the first coordinate, and
// its vertex must be searched from the end of the polyline backwards so the
// loop closure resolves to 1.0 instead of 0.0.
//
// Progress values must be non-decreasing in visiting order; inversions are
// reported as warnings, never as errors, because some topologies are
// legitimately non-monotonic until their special case is applied.
func Parametrize(line orb.LineString, stops []Waypoint, circular bool, eps float64) (map[string]float64, []string) {
	progress := make(map[string]float64, len(stops))
	var warnings []string

	total := geom.LineLength(line)
	if total == 0 {
		return progress, []string{"path has zero length"}
	}
	cum := geom.CumulativeLengths(line)

	prevIdx := 0
	prevVal := 0.0
	for k, wp := range stops {
		var idx int
		if circular && k == len(stops)-1 {
			idx = lastVertexMatch(line, wp.Coord, eps)
		} else {
			idx = vertexMatchFrom(line, wp.Coord, prevIdx, eps)
		}
		if idx < 0 {
			idx, _ = geom.NearestVertex(line, wp.Coord)
		}
		val := cum[idx] / total
		progress[wp.ID] = val
		if k > 0 && val < prevVal {
			warnings = append(warnings, fmt.Sprintf("progress inversion at %s (stop %d: %.4f after %.4f)", wp.ID, wp.Seq, val, prevVal))
		}
		prevIdx = idx
		prevVal = val
	}
	return progress, warnings
}

// vertexMatchFrom finds the first vertex within eps of p at index >= from.
// Searching forward of the previous waypoint keeps repeated coordinates from
// matching an earlier pass of the line.
func vertexMatchFrom(line orb.LineString, p orb.Point, from int, eps float64) int {
	for i := from; i < len(line); i++ {
		if geom.Dist(line[i], p) <= eps {
			return i
		}
	}
	// Retry from the start; calibration may have inserted the vertex
	// behind the previous waypoint's match.
	for i := 0; i < from; i++ {
		if geom.Dist(line[i], p) <= eps {
			return i
		}
	}
	return -1
}

func lastVertexMatch(line orb.LineString, p orb.Point, eps float64) int {
	for i := len(line) - 1; i >= 0; i-- {
		if geom.Dist(line[i], p) <= eps {
			return i
		}
	}
	return -1
}
