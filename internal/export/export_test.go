package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"trackforge/internal/track"
)

func TestWriteTrack(t *testing.T) {
	e := New(t.TempDir())
	tr := &track.Track{
		ID:   "L9/north",
		Name: "Ninth Line",
		Line: orb.LineString{{2.17, 41.38}, {2.18, 41.39}, {2.18, 41.39}, {2.19, 41.40}},
	}

	sum, err := e.WriteTrack(tr)
	require.NoError(t, err)
	assert.Len(t, sum, 64)

	// Slash in the id must not create a subdirectory.
	path := filepath.Join(e.outDir, "tracks", "L9_north.geojson")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, "L9/north", f.Properties["track_id"])
	assert.Equal(t, "Ninth Line", f.Properties["name"])
	_, hasApprox := f.Properties["approximate"]
	assert.False(t, hasApprox)

	// The encoded polyline decodes back to the deduplicated lat,lon track.
	enc, _ := f.Properties["encoded_polyline"].(string)
	require.NotEmpty(t, enc)
	coords, _, err := polyline.DecodeCoords([]byte(enc))
	require.NoError(t, err)
	require.Len(t, coords, 3)
	assert.InDelta(t, 41.38, coords[0][0], 1e-5)
	assert.InDelta(t, 2.17, coords[0][1], 1e-5)
}

func TestWriteProgressAndManifest(t *testing.T) {
	e := New(t.TempDir())
	tracks := []*track.Track{
		{
			ID:       "L1",
			Line:     orb.LineString{{0, 0}, {0, 1}},
			Progress: map[string]float64{"A": 0, "B": 1},
			Report:   track.Report{TrackID: "L1"},
		},
	}
	require.NoError(t, e.WriteProgress(tracks))
	require.NoError(t, e.WriteManifest("run-1", tracks, map[string]string{"L1": "abc"}))

	var progress map[string]map[string]float64
	data, err := os.ReadFile(filepath.Join(e.outDir, "progress.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &progress))
	assert.Equal(t, 1.0, progress["L1"]["B"])

	var m Manifest
	data, err = os.ReadFile(filepath.Join(e.outDir, "manifest.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "run-1", m.RunID)
	assert.NotEmpty(t, m.UpdatedAt)
	require.Len(t, m.Tracks, 1)
	assert.Equal(t, "abc", m.Checksums["L1"])
}
