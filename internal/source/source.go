// Package source supplies raw route geometry and station lists to the
// pipeline, either from disk or from the Postgres cache the importer fills.
package source

import "context"

// Station is one named waypoint as delivered by the open-data API.
type Station struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Source hands the pipeline its immutable inputs. Geometry returns the raw
// WKT blob for one route-direction; Stations returns the full station list
// keyed by id.
type Source interface {
	Geometry(ctx context.Context, trackID string) (string, error)
	Stations(ctx context.Context) (map[string]Station, error)
}
