package geom

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestDist(t *testing.T) {
	assert.InDelta(t, 5.0, Dist(orb.Point{0, 0}, orb.Point{3, 4}), 1e-12)
	assert.Zero(t, Dist(orb.Point{1, 1}, orb.Point{1, 1}))
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name     string
		a, b     orb.Point
		expected float64
	}{
		{"north", orb.Point{0, 0}, orb.Point{0, 1}, 0},
		{"east", orb.Point{0, 0}, orb.Point{1, 0}, 90},
		{"south", orb.Point{0, 0}, orb.Point{0, -1}, 180},
		{"west", orb.Point{0, 0}, orb.Point{-1, 0}, 270},
		{"northeast", orb.Point{0, 0}, orb.Point{1, 1}, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Bearing(tt.a, tt.b), 1e-9)
		})
	}
}

func TestAngleDiff(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		expected float64
	}{
		{"same", 90, 90, 0},
		{"zigzag", 10, 170, 160},
		{"wraps across north", 350, 10, 20},
		{"opposite", 0, 180, 180},
		{"beyond half turn", 10, 350, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, AngleDiff(tt.a, tt.b), 1e-9)
		})
	}
}

func TestProjectOnSegment(t *testing.T) {
	tests := []struct {
		name      string
		p, a, b   orb.Point
		expectedT float64
		expectedD float64
	}{
		{"middle", orb.Point{0.5, 1}, orb.Point{0, 0}, orb.Point{1, 0}, 0.5, 1},
		{"clamped to start", orb.Point{-2, 1}, orb.Point{0, 0}, orb.Point{1, 0}, 0, 0},
		{"clamped to end", orb.Point{3, 0}, orb.Point{0, 0}, orb.Point{1, 0}, 1, 2},
		{"on the segment", orb.Point{0.25, 0}, orb.Point{0, 0}, orb.Point{1, 0}, 0.25, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj, tr, d := ProjectOnSegment(tt.p, tt.a, tt.b)
			assert.InDelta(t, tt.expectedT, tr, 1e-12)
			if tt.name == "clamped to start" {
				assert.Equal(t, tt.a, proj)
				assert.InDelta(t, Dist(tt.p, tt.a), d, 1e-12)
				return
			}
			assert.InDelta(t, tt.expectedD, d, 1e-12)
		})
	}

	// Degenerate segment projects onto its only point.
	proj, tr, d := ProjectOnSegment(orb.Point{1, 1}, orb.Point{0, 0}, orb.Point{0, 0})
	assert.Equal(t, orb.Point{0, 0}, proj)
	assert.Zero(t, tr)
	assert.InDelta(t, Dist(orb.Point{1, 1}, orb.Point{0, 0}), d, 1e-12)
}

func TestCumulativeLengths(t *testing.T) {
	ls := orb.LineString{{0, 0}, {0, 1}, {0, 3}}
	cum := CumulativeLengths(ls)
	assert.Equal(t, []float64{0, 1, 3}, cum)
	assert.InDelta(t, 3.0, LineLength(ls), 1e-12)
}

func TestNearestVertex(t *testing.T) {
	ls := orb.LineString{{0, 0}, {0, 1}, {0, 2}}
	idx, d := NearestVertex(ls, orb.Point{0.1, 1.1})
	assert.Equal(t, 1, idx)
	assert.InDelta(t, Dist(orb.Point{0.1, 1.1}, orb.Point{0, 1}), d, 1e-12)

	idx, _ = NearestVertex(orb.LineString{}, orb.Point{0, 0})
	assert.Equal(t, -1, idx)
}
