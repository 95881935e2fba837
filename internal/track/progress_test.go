package track

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParametrizeStraightLine(t *testing.T) {
	// Waypoints at exact quarter positions of a single segment.
	line := orb.LineString{{0, 0}, {0, 1}}
	stops := []Waypoint{
		{ID: "Q1", Coord: orb.Point{0, 0.25}},
		{ID: "Q2", Coord: orb.Point{0, 0.5}},
		{ID: "Q3", Coord: orb.Point{0, 0.75}},
	}
	calibrated, skipped := Calibrate(line, stops, CalibrateOptions{ExactEps: 1e-9, Ceiling: 0.05})
	require.Empty(t, skipped)

	progress, warnings := Parametrize(calibrated, stops, false, 1e-9)
	assert.Empty(t, warnings)
	assert.InDelta(t, 0.25, progress["Q1"], 1e-9)
	assert.InDelta(t, 0.50, progress["Q2"], 1e-9)
	assert.InDelta(t, 0.75, progress["Q3"], 1e-9)
}

func TestParametrizeEndpoints(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 1}, {0, 2}}
	stops := []Waypoint{
		{ID: "A", Coord: orb.Point{0, 0}},
		{ID: "B", Coord: orb.Point{0, 1}},
		{ID: "C", Coord: orb.Point{0, 2}},
	}
	progress, warnings := Parametrize(line, stops, false, 1e-9)
	assert.Empty(t, warnings)
	assert.Equal(t, 0.0, progress["A"])
	assert.InDelta(t, 0.5, progress["B"], 1e-9)
	assert.Equal(t, 1.0, progress["C"])
}

func TestParametrizeCircularLoopClosure(t *testing.T) {
	// A circular route revisits its first station; the closing visit must
	// resolve to the last occurrence of the coordinate, never back to
	// vertex zero.
	line := orb.LineString{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	stops := []Waypoint{
		{ID: "C1", Coord: orb.Point{0, 0}},
		{ID: "C2", Coord: orb.Point{1, 0}},
		{ID: "C3", Coord: orb.Point{1, 1}},
		{ID: "C4", Coord: orb.Point{0, 1}},
		{ID: "C1", Coord: orb.Point{0, 0}},
	}
	progress, warnings := Parametrize(line, stops, true, 1e-9)
	assert.Empty(t, warnings)
	assert.InDelta(t, 0.25, progress["C2"], 1e-9)
	assert.InDelta(t, 0.50, progress["C3"], 1e-9)
	assert.InDelta(t, 0.75, progress["C4"], 1e-9)
	// The map holds the closing visit's value.
	assert.Equal(t, 1.0, progress["C1"])
}

func TestParametrizeReportsInversion(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 1}, {0, 2}}
	stops := []Waypoint{
		{ID: "B", Coord: orb.Point{0, 2}, Seq: 0},
		{ID: "A", Coord: orb.Point{0, 0}, Seq: 1},
	}
	progress, warnings := Parametrize(line, stops, false, 1e-9)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "inversion")
	// Names the visiting position so the offending route record is findable.
	assert.Contains(t, warnings[0], "stop 1")
	// Reported, not dropped.
	assert.Len(t, progress, 2)
}

func TestParametrizeNearestFallback(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 1}, {0, 2}}
	// Slightly off every vertex; nearest-match kicks in.
	progress, _ := Parametrize(line, []Waypoint{{ID: "N", Coord: orb.Point{0.001, 0.999}}}, false, 1e-9)
	assert.InDelta(t, 0.5, progress["N"], 1e-9)
}

func TestParametrizeZeroLength(t *testing.T) {
	progress, warnings := Parametrize(orb.LineString{{0, 0}, {0, 0}}, []Waypoint{{ID: "A"}}, false, 1e-9)
	assert.Empty(t, progress)
	require.Len(t, warnings, 1)
}
