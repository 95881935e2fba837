package track

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleOrdersAndOrients(t *testing.T) {
	// Shuffled fragments, one reversed, plus yard track past the
	// destination that must be truncated away.
	segs := []orb.LineString{
		{{0, 2}, {0, 1}}, // reversed middle piece
		{{0, 3}, {0, 4}}, // yard track beyond the terminal
		{{0, 0}, {0, 1}},
		{{0, 2}, {0, 3}},
	}
	line, err := Assemble(segs, orb.Point{0, 0}, orb.Point{0, 3}, AssembleOptions{Tolerance: 0.1})
	require.NoError(t, err)
	assert.Equal(t, orb.LineString{{0, 0}, {0, 1}, {0, 2}, {0, 3}}, line)
}

func TestAssembleManualOrder(t *testing.T) {
	segs := []orb.LineString{
		{{0, 0}, {0, 1}},
		{{0, 1}, {0, 2}},
		{{0, 2}, {0, 3}},
	}
	// Travel direction is destination-to-origin of the raw data.
	line, err := Assemble(segs, orb.Point{0, 3}, orb.Point{0, 0}, AssembleOptions{Tolerance: 0.1, Order: []int{2, 1, 0}})
	require.NoError(t, err)
	assert.Equal(t, orb.LineString{{0, 3}, {0, 2}, {0, 1}, {0, 0}}, line)
}

func TestAssembleManualOrderOutOfRange(t *testing.T) {
	segs := []orb.LineString{{{0, 0}, {0, 1}}}
	_, err := Assemble(segs, orb.Point{0, 0}, orb.Point{0, 1}, AssembleOptions{Tolerance: 0.1, Order: []int{0, 7}})
	assert.Error(t, err)
}

func TestAssembleDropsBacktrackingSegments(t *testing.T) {
	segs := []orb.LineString{
		{{0, 0}, {0, 1}},
		{{0, 1}, {0.05, 0.9}}, // short spur running against the route
		{{0, 1}, {0, 2}},
		{{0, 2}, {0, 3}},
	}
	line, err := Assemble(segs, orb.Point{0, 0}, orb.Point{0, 3}, AssembleOptions{
		Tolerance:       0.1,
		BacktrackAngle:  120,
		BacktrackMaxLen: 0.3,
	})
	require.NoError(t, err)
	assert.NotContains(t, line, orb.Point{0.05, 0.9})
	assert.Equal(t, orb.LineString{{0, 0}, {0, 1}, {0, 2}, {0, 3}}, line)
}

func TestAssembleCircularSkipsTruncation(t *testing.T) {
	segs := []orb.LineString{
		{{0, 0}, {1, 0}},
		{{1, 0}, {1, 1}},
		{{1, 1}, {0, 1}},
		{{0, 1}, {0, 0}},
	}
	line, err := Assemble(segs, orb.Point{0, 0}, orb.Point{0, 0}, AssembleOptions{Tolerance: 0.1, Circular: true})
	require.NoError(t, err)
	// The full ring survives; origin/destination truncation would have
	// collapsed it to a single vertex.
	assert.Equal(t, 5, len(line))
	assert.Equal(t, line[0], line[len(line)-1])
}

func TestAssembleNoSegments(t *testing.T) {
	_, err := Assemble(nil, orb.Point{0, 0}, orb.Point{0, 1}, AssembleOptions{Tolerance: 0.1})
	assert.Error(t, err)
}

func TestTrimEnds(t *testing.T) {
	line := orb.LineString{{0, -0.2}, {0, 0}, {0, 1}, {0, 2}, {0, 2.3}}
	out := TrimEnds(line, orb.Point{0, 0}, orb.Point{0, 2}, 1e-9)
	assert.Equal(t, orb.LineString{{0, 0}, {0, 1}, {0, 2}}, out)

	// Unknown endpoints leave the line untouched.
	same := TrimEnds(line, orb.Point{5, 5}, orb.Point{0, 2}, 1e-9)
	assert.Equal(t, line, same)
}

func TestAlignLoop(t *testing.T) {
	ring := orb.LineString{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	out := AlignLoop(ring, orb.Point{1, 1}, 1e-9)
	require.Equal(t, 5, len(out))
	assert.Equal(t, orb.Point{1, 1}, out[0])
	assert.Equal(t, orb.Point{1, 1}, out[len(out)-1])
	assert.Equal(t, orb.LineString{{1, 1}, {0, 1}, {0, 0}, {1, 0}, {1, 1}}, out)
}
