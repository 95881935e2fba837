package track

import (
	"fmt"

	"github.com/paulmach/orb"

	"trackforge/internal/geom"
)

// AssembleOptions tunes the path assembly for one route-direction.
type AssembleOptions struct {
	// Tolerance is the endpoint-connect tolerance in planar units.
	Tolerance float64
	// Order is an optional manual segment order override. When set, the
	// automatic stitcher is bypassed and segments are chained exactly in
	// this order.
	Order []int
	// Circular disables truncation: origin and destination coincide, so
	// slicing between their nearest vertices would collapse the loop.
	Circular bool
	// BacktrackAngle and BacktrackMaxLen drive the filter that drops short
	// segments running against the overall route bearing. Zero values
	// disable the filter.
	BacktrackAngle  float64
	BacktrackMaxLen float64
}

// Assemble orders, orients and truncates raw segments into one directed
// polyline running from origin to destination.
func Assemble(segments []orb.LineString, origin, destination orb.Point, opts AssembleOptions) (orb.LineString, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to assemble")
	}

	kept := filterBacktracking(segments, origin, destination, opts)
	if len(kept) == 0 {
		kept = segments
	}

	var chain orb.LineString
	if len(opts.Order) > 0 {
		var err error
		chain, err = chainInOrder(segments, opts.Order, origin)
		if err != nil {
			return nil, err
		}
	} else {
		r := NewResolver(kept, opts.Tolerance)
		chain = r.StitchChain(r.nearestSegment(origin))
	}
	chain = dedupe(chain)
	if len(chain) < 2 {
		return nil, fmt.Errorf("assembled chain degenerate (%d points)", len(chain))
	}

	if opts.Circular {
		return chain, nil
	}
	return Truncate(chain, origin, destination)
}

// Truncate slices the chain to the inclusive range between the vertices
// nearest origin and destination, dropping depot or yard track beyond the
// terminals. The chain is reversed first when it runs destination-to-origin.
func Truncate(chain orb.LineString, origin, destination orb.Point) (orb.LineString, error) {
	iO, _ := geom.NearestVertex(chain, origin)
	iD, _ := geom.NearestVertex(chain, destination)
	if iO > iD {
		chain = reverse(chain)
		iO, iD = len(chain)-1-iO, len(chain)-1-iD
	}
	if iO == iD {
		return nil, fmt.Errorf("origin and destination collapse to vertex %d", iO)
	}
	return append(orb.LineString{}, chain[iO:iD+1]...), nil
}

// TrimEnds cuts a calibrated polyline back to the exact vertices of its
// first and last waypoints, so their progress resolves to exactly 0 and 1.
// The input is returned unchanged when either vertex is missing or the
// matches are inverted.
func TrimEnds(line orb.LineString, first, last orb.Point, eps float64) orb.LineString {
	i := -1
	for k, v := range line {
		if geom.Dist(v, first) <= eps {
			i = k
			break
		}
	}
	j := -1
	for k := len(line) - 1; k >= 0; k-- {
		if geom.Dist(line[k], last) <= eps {
			j = k
			break
		}
	}
	if i < 0 || j < 0 || i >= j {
		return line
	}
	return append(orb.LineString{}, line[i:j+1]...)
}

// AlignLoop rotates a circular polyline so it starts at the vertex matching
// p and closes the ring on that same coordinate. The last occurrence of the
// start coordinate is then the loop closure at progress 1.0.
func AlignLoop(line orb.LineString, p orb.Point, eps float64) orb.LineString {
	if len(line) < 3 {
		return line
	}
	ring := line
	if geom.Dist(ring[0], ring[len(ring)-1]) <= eps {
		ring = ring[:len(ring)-1]
	}
	i := -1
	for k, v := range ring {
		if geom.Dist(v, p) <= eps {
			i = k
			break
		}
	}
	if i < 0 {
		i, _ = geom.NearestVertex(ring, p)
	}
	out := make(orb.LineString, 0, len(ring)+1)
	out = append(out, ring[i:]...)
	out = append(out, ring[:i]...)
	out = append(out, ring[i])
	return out
}

// chainInOrder applies a manual segment order, orienting each segment via
// whichever endpoint is closer to the running terminal.
func chainInOrder(segments []orb.LineString, order []int, origin orb.Point) (orb.LineString, error) {
	var chain orb.LineString
	cur := origin
	for _, idx := range order {
		if idx < 0 || idx >= len(segments) {
			return nil, fmt.Errorf("segment order references index %d of %d segments", idx, len(segments))
		}
		seg := segments[idx]
		head, tail := seg[0], seg[len(seg)-1]
		rev := geom.Dist(tail, cur) < geom.Dist(head, cur)
		chain = appendSegment(chain, seg, rev)
		cur = chain[len(chain)-1]
	}
	return chain, nil
}

// filterBacktracking drops short segments whose own start-to-end bearing
// opposes the overall origin-to-destination bearing. These are artifacts of
// how the authority split the line, not real track.
func filterBacktracking(segments []orb.LineString, origin, destination orb.Point, opts AssembleOptions) []orb.LineString {
	if opts.BacktrackAngle <= 0 || opts.BacktrackMaxLen <= 0 {
		return segments
	}
	routeBearing := geom.Bearing(origin, destination)
	kept := make([]orb.LineString, 0, len(segments))
	for _, seg := range segments {
		segBearing := geom.Bearing(seg[0], seg[len(seg)-1])
		if geom.AngleDiff(segBearing, routeBearing) > opts.BacktrackAngle &&
			geom.LineLength(seg) < opts.BacktrackMaxLen {
			continue
		}
		kept = append(kept, seg)
	}
	return kept
}

func dedupe(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, len(ls))
	for i, pt := range ls {
		if i > 0 && out[len(out)-1] == pt {
			continue
		}
		out = append(out, pt)
	}
	return out
}

func reverse(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, pt := range ls {
		out[len(ls)-1-i] = pt
	}
	return out
}
