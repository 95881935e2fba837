package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// BranchDef is one diverging spur of a branching route.
type BranchDef struct {
	Name     string   `yaml:"name" validate:"required"`
	Stations []string `yaml:"stations" validate:"required,min=1"`
}

// RouteDef is one route-direction record: the generic replacement for the
// per-line constant tables the source scripts used to duplicate.
type RouteDef struct {
	ID          string   `yaml:"id" validate:"required"`
	Name        string   `yaml:"name"`
	Origin      string   `yaml:"origin" validate:"required"`
	Destination string   `yaml:"destination" validate:"required"`
	Stations    []string `yaml:"stations" validate:"required,min=2"`

	// Topology is linear, circular or branching; linear when omitted.
	Topology string      `yaml:"topology" validate:"omitempty,oneof=linear circular branching"`
	Branches []BranchDef `yaml:"branches" validate:"omitempty,dive"`

	// SegmentOrder is a manual override for routes whose geometry the
	// resolver cannot stitch on its own. Prefer fixing the tolerance.
	SegmentOrder []int `yaml:"segment_order"`

	// Tolerance overrides the global connect tolerance for this route.
	Tolerance float64 `yaml:"tolerance" validate:"gte=0"`
}

type routesFile struct {
	Routes []RouteDef `yaml:"routes" validate:"required,min=1,dive"`
}

// LoadRoutes loads and validates the route-direction definitions.
func LoadRoutes(path string) ([]RouteDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rf routesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	v := validator.New()
	if err := v.Struct(rf); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	for _, r := range rf.Routes {
		if r.Topology == "branching" && len(r.Branches) == 0 {
			return nil, fmt.Errorf("route %s: branching topology requires branches", r.ID)
		}
	}
	return rf.Routes, nil
}
