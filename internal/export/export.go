// Package export writes the pipeline's output artifacts: one GeoJSON
// FeatureCollection per track, a combined progress document and a run
// manifest.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"

	"trackforge/internal/track"
)

type Exporter struct {
	outDir string
}

func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// WriteTrack writes <out>/tracks/<id>.geojson and returns its checksum. The
// feature carries the calibrated LineString plus an encoded polyline for map
// SDKs that prefer the compact form.
func (e *Exporter) WriteTrack(t *track.Track) (string, error) {
	tracksDir := filepath.Join(e.outDir, "tracks")
	if err := os.MkdirAll(tracksDir, 0755); err != nil {
		return "", err
	}

	feature := geojson.NewFeature(t.Line)
	feature.ID = t.ID
	feature.Properties["track_id"] = t.ID
	if t.Name != "" {
		feature.Properties["name"] = t.Name
	}
	if t.Report.Approximate {
		feature.Properties["approximate"] = true
	}
	feature.Properties["encoded_polyline"] = encodeLine(t)

	fc := geojson.NewFeatureCollection()
	fc.Append(feature)

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(tracksDir, fileToken(t.ID)+".geojson")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func encodeLine(t *track.Track) string {
	coords := make([][]float64, 0, len(t.Line))
	for i, pt := range t.Line {
		// Polyline coords are lat,lon; skip consecutive duplicates so
		// the delta encoding stays valid.
		if i > 0 && pt == t.Line[i-1] {
			continue
		}
		coords = append(coords, []float64{pt[1], pt[0]})
	}
	return string(polyline.EncodeCoords(coords))
}

// WriteProgress writes the combined progress document:
// track_id -> { station_id -> progress }.
func (e *Exporter) WriteProgress(tracks []*track.Track) error {
	doc := make(map[string]map[string]float64, len(tracks))
	for _, t := range tracks {
		doc[t.ID] = t.Progress
	}
	return writeJSON(filepath.Join(e.outDir, "progress.json"), doc)
}

// Manifest summarises one pipeline run.
type Manifest struct {
	RunID     string            `json:"run_id"`
	UpdatedAt string            `json:"updated_at"`
	Tracks    []ManifestTrack   `json:"tracks"`
	Checksums map[string]string `json:"checksums"`
}

type ManifestTrack struct {
	ID       string       `json:"id"`
	Stations int          `json:"stations"`
	Report   track.Report `json:"report"`
}

func (e *Exporter) WriteManifest(runID string, tracks []*track.Track, checksums map[string]string) error {
	m := Manifest{
		RunID:     runID,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Checksums: checksums,
	}
	for _, t := range tracks {
		m.Tracks = append(m.Tracks, ManifestTrack{
			ID:       t.ID,
			Stations: len(t.Progress),
			Report:   t.Report,
		})
	}
	return writeJSON(filepath.Join(e.outDir, "manifest.json"), m)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}

func fileToken(s string) string {
	r := strings.NewReplacer("/", "_", " ", "_", ":", "_")
	return r.Replace(s)
}
