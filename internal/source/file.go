package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource reads raw blobs from a directory laid out as
//
//	<dir>/geometry/<track_id>.wkt
//	<dir>/stations.json
//
// which is also the layout the fetch client writes.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) Geometry(_ context.Context, trackID string) (string, error) {
	path := filepath.Join(s.dir, "geometry", fileToken(trackID)+".wkt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read geometry for %s: %w", trackID, err)
	}
	return string(data), nil
}

func (s *FileSource) Stations(_ context.Context) (map[string]Station, error) {
	path := filepath.Join(s.dir, "stations.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations: %w", err)
	}
	var list []Station
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[string]Station, len(list))
	for _, st := range list {
		out[st.ID] = st
	}
	return out, nil
}

// fileToken makes a track id safe as a file name.
func fileToken(s string) string {
	r := strings.NewReplacer("/", "_", " ", "_", ":", "_")
	return r.Replace(s)
}
