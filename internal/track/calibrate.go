package track

import (
	"log"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"trackforge/internal/geom"
)

// CalibrateOptions tunes station insertion.
type CalibrateOptions struct {
	// ExactEps is the tight epsilon under which a station is considered to
	// already sit on an existing vertex.
	ExactEps float64
	// Ceiling is the maximum projection distance; a station farther from
	// the polyline than this is skipped with a diagnostic instead of being
	// forced in.
	Ceiling float64
}

type insertion struct {
	after int
	t     float64
	coord orb.Point
}

// Calibrate forces the polyline to pass exactly through every waypoint, in
// visiting order. Each waypoint's canonical coordinate is inserted after the
// first point of its best projection segment; waypoints beyond the ceiling
// are skipped and reported. Calibrating an already-calibrated polyline is a
// no-op.
//
// Insertion indices are computed against a snapshot of the input and applied
// from the highest index down, so earlier insertions never shift later ones.
func Calibrate(line orb.LineString, stops []Waypoint, opts CalibrateOptions) (orb.LineString, []string) {
	if len(line) < 2 {
		return line, nil
	}

	var skipped []string
	var inserts []insertion

	for _, wp := range stops {
		if hasVertexNear(line, wp.Coord, opts.ExactEps) {
			continue
		}
		bestIdx := -1
		bestT := 0.0
		bestDist := math.Inf(1)
		for i := 0; i+1 < len(line); i++ {
			_, t, d := geom.ProjectOnSegment(wp.Coord, line[i], line[i+1])
			if d < bestDist {
				bestDist = d
				bestIdx = i
				bestT = t
			}
		}
		// Skip only when the projection distance exceeds the ceiling; a
		// station sitting exactly at it still calibrates.
		if bestIdx < 0 || bestDist > opts.Ceiling {
			log.Printf("calibrate: station %s (%s) is farther than %.6f from the path, skipping", wp.ID, wp.Name, opts.Ceiling)
			skipped = append(skipped, wp.ID)
			continue
		}
		inserts = append(inserts, insertion{after: bestIdx, t: bestT, coord: wp.Coord})
	}

	// Highest index first. When two stations project onto the same source
	// segment, the one further along it is applied first so that the
	// nearer one ends up in front of it.
	sort.SliceStable(inserts, func(i, j int) bool {
		if inserts[i].after != inserts[j].after {
			return inserts[i].after > inserts[j].after
		}
		return inserts[i].t > inserts[j].t
	})

	out := append(orb.LineString{}, line...)
	for _, ins := range inserts {
		at := ins.after + 1
		out = append(out, orb.Point{})
		copy(out[at+1:], out[at:])
		out[at] = ins.coord
	}
	return out, skipped
}

func hasVertexNear(line orb.LineString, p orb.Point, eps float64) bool {
	for _, v := range line {
		if geom.Dist(v, p) <= eps {
			return true
		}
	}
	return false
}
