// Package track rebuilds one continuous, correctly oriented path per
// route-direction from disordered raw segments and calibrates every station
// onto it.
package track

import "github.com/paulmach/orb"

// Waypoint is a named station in a route-direction's visiting order.
type Waypoint struct {
	ID    string
	Name  string
	Coord orb.Point
	Seq   int
}

// TopologyKind tags how a route-direction's stations relate to its geometry.
type TopologyKind int

const (
	TopologyLinear TopologyKind = iota
	TopologyCircular
	TopologyBranching
)

func (k TopologyKind) String() string {
	switch k {
	case TopologyCircular:
		return "circular"
	case TopologyBranching:
		return "branching"
	default:
		return "linear"
	}
}

// Branch is one diverging spur of a branching route. Its stations follow the
// shared trunk in visiting order.
type Branch struct {
	Name     string
	Stations []string
}

// Topology describes the shape of a route-direction. Trunk and Branches are
// only set for TopologyBranching.
type Topology struct {
	Kind     TopologyKind
	Trunk    []string
	Branches []Branch
}

// Track is one fully rebuilt route-direction: the calibrated polyline and the
// normalized progress of every station that calibrated onto it.
type Track struct {
	ID       string
	Name     string
	Line     orb.LineString
	Progress map[string]float64
	Report   Report
}

// Report collects the non-fatal diagnostics of a single track rebuild.
type Report struct {
	TrackID           string   `json:"track_id"`
	Approximate       bool     `json:"approximate,omitempty"`
	SkippedStations   []string `json:"skipped_stations,omitempty"`
	AnomaliesFound    int      `json:"anomalies_found,omitempty"`
	AnomaliesRepaired int      `json:"anomalies_repaired,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}
