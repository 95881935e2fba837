package track

import (
	"log"
	"sort"

	"github.com/paulmach/orb"

	"trackforge/internal/geom"
)

// RepairOptions tunes anomaly detection and repair.
type RepairOptions struct {
	// WarnAngle and SevereAngle are the wrapped bearing-difference
	// thresholds in degrees. Only severe anomalies are repaired.
	WarnAngle   float64
	SevereAngle float64
	// WalkDist is how far to walk along the polyline in both directions to
	// obtain the two reference points for the chord projection.
	WalkDist float64
	// MaxDisplacement caps how far a repaired vertex may move; repairs
	// beyond it are rejected and the vertex stays flagged.
	MaxDisplacement float64
}

// Anomaly is a vertex whose incoming and outgoing bearings disagree enough
// to look like a zigzag artifact.
type Anomaly struct {
	Index  int
	Diff   float64
	Severe bool
}

// DetectAnomalies inspects the given vertex indices (normally the calibrated
// station vertices) and flags those whose wrapped bearing difference exceeds
// the warning threshold. Endpoints have no predecessor or successor and are
// never flagged.
func DetectAnomalies(line orb.LineString, vertexIdx []int, opts RepairOptions) []Anomaly {
	var found []Anomaly
	for _, i := range vertexIdx {
		if i <= 0 || i >= len(line)-1 {
			continue
		}
		in := geom.Bearing(line[i-1], line[i])
		out := geom.Bearing(line[i], line[i+1])
		diff := geom.AngleDiff(in, out)
		if diff > opts.WarnAngle {
			found = append(found, Anomaly{Index: i, Diff: diff, Severe: diff > opts.SevereAngle})
		}
	}
	return found
}

// Repair fixes severe anomalies by walking WalkDist along the polyline on
// both sides of the flagged vertex, projecting the vertex onto the straight
// line between the two reference points, and splicing: the vertices inside
// the walk window are replaced by the single projected point. Anomalies are
// processed from the highest index down so earlier splices cannot shift
// later ones. Returns the repaired polyline and the repair count.
func Repair(line orb.LineString, anomalies []Anomaly, opts RepairOptions) (orb.LineString, int) {
	severe := make([]Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		if a.Severe {
			severe = append(severe, a)
		}
	}
	sort.Slice(severe, func(i, j int) bool { return severe[i].Index > severe[j].Index })

	repaired := 0
	out := append(orb.LineString{}, line...)
	for _, a := range severe {
		if a.Index <= 0 || a.Index >= len(out)-1 {
			continue
		}
		back, keepTo := walkBackward(out, a.Index, opts.WalkDist)
		fwd, keepFrom := walkForward(out, a.Index, opts.WalkDist)
		proj, _, _ := geom.ProjectOnSegment(out[a.Index], back, fwd)
		if d := geom.Dist(out[a.Index], proj); d > opts.MaxDisplacement {
			log.Printf("repair: vertex %d displacement %.6f exceeds cap %.6f, leaving flagged", a.Index, d, opts.MaxDisplacement)
			continue
		}
		spliced := append(orb.LineString{}, out[:keepTo+1]...)
		spliced = append(spliced, proj)
		spliced = append(spliced, out[keepFrom:]...)
		out = spliced
		repaired++
	}
	return out, repaired
}

// walkForward walks dist along the polyline from vertex i towards the end.
// It returns the reference point at that distance and the index of the first
// vertex to keep after a splice.
func walkForward(line orb.LineString, i int, dist float64) (orb.Point, int) {
	rem := dist
	j := i
	for j+1 < len(line) {
		seg := geom.Dist(line[j], line[j+1])
		if seg >= rem {
			return geom.Interpolate(line[j], line[j+1], rem/seg), j + 1
		}
		rem -= seg
		j++
	}
	return line[len(line)-1], len(line) - 1
}

func walkBackward(line orb.LineString, i int, dist float64) (orb.Point, int) {
	rem := dist
	j := i
	for j-1 >= 0 {
		seg := geom.Dist(line[j], line[j-1])
		if seg >= rem {
			return geom.Interpolate(line[j], line[j-1], rem/seg), j - 1
		}
		rem -= seg
		j--
	}
	return line[0], 0
}
