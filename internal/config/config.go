package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Tuning holds the geometric tolerances of the pipeline, all expressed in
// the same planar lon/lat units as the source geometry.
type Tuning struct {
	ConnectTolerance   float64 // endpoint adjacency (~50-100m on the ground)
	ExactEpsilon       float64 // "station already on a vertex" check
	CalibrationCeiling float64 // max projection distance before a station is skipped (~500m)
	BacktrackAngle     float64 // degrees; opposing-bearing filter
	BacktrackMaxLen    float64 // only segments shorter than this are dropped
	WarnAngle          float64 // degrees; anomaly warning threshold
	SevereAngle        float64 // degrees; anomaly repair threshold
	RepairWalk         float64 // chord reference walk distance (~100m)
	RepairMaxMove      float64 // displacement cap for a repaired vertex (~30m)
}

type Config struct {
	RoutesFile string
	SourceDir  string
	OutDir     string

	DatabaseURL string // optional; file source is used when empty
	NATSURL     string // optional; publishing disabled when empty
	NATSSubject string
	MetricsAddr string // optional; metrics server disabled when empty

	Workers int

	FetchBaseURL string // optional; fetch stage disabled when empty
	FetchToken   string
	FetchDelay   time.Duration
	FetchRetries int

	Tuning Tuning
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		RoutesFile:  getenvDefault("ROUTES_FILE", "routes.yml"),
		SourceDir:   getenvDefault("SOURCE_DIR", "data"),
		OutDir:      getenvDefault("OUT_DIR", "out"),
		DatabaseURL: firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")),
		NATSURL:     os.Getenv("NATS_URL"),
		NATSSubject: getenvDefault("NATS_SUBJECT_PREFIX", "tracks"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),

		FetchBaseURL: os.Getenv("FETCH_BASE_URL"),
		FetchToken:   os.Getenv("FETCH_TOKEN"),
	}

	var err error
	if cfg.Workers, err = intEnv("WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("invalid WORKERS: %d", cfg.Workers)
	}

	delayMS, err := intEnv("FETCH_DELAY_MS", 500)
	if err != nil {
		return nil, err
	}
	cfg.FetchDelay = time.Duration(delayMS) * time.Millisecond
	if cfg.FetchRetries, err = intEnv("FETCH_MAX_RETRIES", 5); err != nil {
		return nil, err
	}

	// Planar-degree defaults; roughly 0.00001 deg per metre at mid
	// latitudes, so 0.0008 is on the order of 80m.
	t := &cfg.Tuning
	if t.ConnectTolerance, err = floatEnv("CONNECT_TOLERANCE", 0.0008); err != nil {
		return nil, err
	}
	if t.ExactEpsilon, err = floatEnv("EXACT_EPSILON", 0.000001); err != nil {
		return nil, err
	}
	if t.CalibrationCeiling, err = floatEnv("CALIBRATION_CEILING", 0.005); err != nil {
		return nil, err
	}
	if t.BacktrackAngle, err = floatEnv("BACKTRACK_ANGLE", 120); err != nil {
		return nil, err
	}
	if t.BacktrackMaxLen, err = floatEnv("BACKTRACK_MAX_LEN", 0.0024); err != nil {
		return nil, err
	}
	if t.WarnAngle, err = floatEnv("ANOMALY_WARN_ANGLE", 10); err != nil {
		return nil, err
	}
	if t.SevereAngle, err = floatEnv("ANOMALY_SEVERE_ANGLE", 15); err != nil {
		return nil, err
	}
	if t.RepairWalk, err = floatEnv("REPAIR_WALK", 0.001); err != nil {
		return nil, err
	}
	if t.RepairMaxMove, err = floatEnv("REPAIR_MAX_MOVE", 0.0003); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
