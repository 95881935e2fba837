package track

import (
	"math"

	"github.com/paulmach/orb"

	"trackforge/internal/geom"
)

// Step is one segment of a resolved path, tagged with the direction it must
// be traversed in.
type Step struct {
	Index    int
	Reversed bool
}

// Path is the result of a connectivity search. When Approximate is set no
// segment chain connected the two query points and the caller gets a direct
// two-point line instead.
type Path struct {
	Steps       []Step
	Approximate bool
}

// Resolver answers connectivity questions over a set of raw segments. Two
// segments are considered connected when any pair of their endpoints lies
// within the tolerance.
type Resolver struct {
	segments []orb.LineString
	tol      float64
	adj      [][]int
}

// NewResolver builds the endpoint-adjacency graph over the segments.
func NewResolver(segments []orb.LineString, tolerance float64) *Resolver {
	r := &Resolver{
		segments: segments,
		tol:      tolerance,
		adj:      make([][]int, len(segments)),
	}
	for i := 0; i < len(segments); i++ {
		for j := i + 1; j < len(segments); j++ {
			if r.connected(i, j) {
				r.adj[i] = append(r.adj[i], j)
				r.adj[j] = append(r.adj[j], i)
			}
		}
	}
	return r
}

func endpoints(seg orb.LineString) [2]orb.Point {
	return [2]orb.Point{seg[0], seg[len(seg)-1]}
}

func (r *Resolver) connected(i, j int) bool {
	ei, ej := endpoints(r.segments[i]), endpoints(r.segments[j])
	for _, a := range ei {
		for _, b := range ej {
			if geom.Dist(a, b) <= r.tol {
				return true
			}
		}
	}
	return false
}

// nearestSegment returns the index of the segment with the vertex closest
// to p, or -1 when there are no segments.
func (r *Resolver) nearestSegment(p orb.Point) int {
	best := -1
	bestDist := math.Inf(1)
	for i, seg := range r.segments {
		if _, d := geom.NearestVertex(seg, p); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// FindPath locates the segments nearest a and b and searches the adjacency
// graph between them breadth-first. Reachability is all that matters here;
// physical path length is not optimised. When no path exists the returned
// Path is marked approximate and has no steps.
func (r *Resolver) FindPath(a, b orb.Point) Path {
	start := r.nearestSegment(a)
	goal := r.nearestSegment(b)
	if start < 0 || goal < 0 {
		return Path{Approximate: true}
	}
	if start == goal {
		return r.orient([]int{start}, a)
	}

	parent := make([]int, len(r.segments))
	for i := range parent {
		parent[i] = -1
	}
	parent[start] = start
	queue := []int{start}
	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range r.adj[cur] {
			if parent[next] != -1 {
				continue
			}
			parent[next] = cur
			if next == goal {
				found = true
				break
			}
			queue = append(queue, next)
		}
	}
	if !found {
		return Path{Approximate: true}
	}

	var order []int
	for cur := goal; cur != start; cur = parent[cur] {
		order = append(order, cur)
	}
	order = append(order, start)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return r.orient(order, a)
}

// orient walks a segment order and decides the traversal direction of each
// segment: attach via whichever endpoint is closer to the running terminal.
func (r *Resolver) orient(order []int, from orb.Point) Path {
	steps := make([]Step, 0, len(order))
	cur := from
	for _, idx := range order {
		seg := r.segments[idx]
		head, tail := seg[0], seg[len(seg)-1]
		rev := geom.Dist(tail, cur) < geom.Dist(head, cur)
		steps = append(steps, Step{Index: idx, Reversed: rev})
		if rev {
			cur = head
		} else {
			cur = tail
		}
	}
	return Path{Steps: steps}
}

// Materialize concatenates a resolved path into one polyline. For an
// approximate path it degrades to the direct line between a and b.
func (r *Resolver) Materialize(p Path, a, b orb.Point) orb.LineString {
	if p.Approximate || len(p.Steps) == 0 {
		return orb.LineString{a, b}
	}
	var line orb.LineString
	for _, st := range p.Steps {
		seg := r.segments[st.Index]
		line = appendSegment(line, seg, st.Reversed)
	}
	return line
}

func appendSegment(line, seg orb.LineString, reversed bool) orb.LineString {
	n := len(seg)
	for k := 0; k < n; k++ {
		pt := seg[k]
		if reversed {
			pt = seg[n-1-k]
		}
		if len(line) > 0 && line[len(line)-1] == pt {
			continue
		}
		line = append(line, pt)
	}
	return line
}

// StitchChain greedily assembles the whole segment set into one chain,
// starting from the given seed segment. The unattached segment whose nearest
// endpoint is closest to either end of the chain is attached next, reversed
// when needed. Stops once no remaining segment is within tolerance of either
// chain end; leftover segments are dropped.
func (r *Resolver) StitchChain(seed int) orb.LineString {
	if len(r.segments) == 0 {
		return nil
	}
	if seed < 0 || seed >= len(r.segments) {
		seed = 0
	}
	used := make([]bool, len(r.segments))
	used[seed] = true
	chain := append(orb.LineString{}, r.segments[seed]...)

	for {
		bestSeg := -1
		bestDist := math.Inf(1)
		bestAtTail := false
		bestRev := false

		head, tail := chain[0], chain[len(chain)-1]
		for i, seg := range r.segments {
			if used[i] {
				continue
			}
			sh, st := seg[0], seg[len(seg)-1]
			candidates := []struct {
				d      float64
				atTail bool
				rev    bool
			}{
				{geom.Dist(tail, sh), true, false},
				{geom.Dist(tail, st), true, true},
				{geom.Dist(head, st), false, false},
				{geom.Dist(head, sh), false, true},
			}
			for _, c := range candidates {
				if c.d < bestDist {
					bestDist = c.d
					bestSeg = i
					bestAtTail = c.atTail
					bestRev = c.rev
				}
			}
		}
		if bestSeg < 0 || bestDist > r.tol {
			break
		}
		used[bestSeg] = true
		seg := r.segments[bestSeg]
		if bestAtTail {
			chain = appendSegment(chain, seg, bestRev)
		} else {
			var pre orb.LineString
			pre = appendSegment(pre, seg, bestRev)
			if len(pre) > 0 && pre[len(pre)-1] == chain[0] {
				pre = pre[:len(pre)-1]
			}
			chain = append(pre, chain...)
		}
	}
	return chain
}
