package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresSource reads raw WKT and station rows from the cache tables the
// open-data importer maintains.
type PostgresSource struct {
	db *sql.DB
}

func Open(dsn string) (*PostgresSource, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &PostgresSource{db: db}, nil
}

func (s *PostgresSource) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *PostgresSource) Close() error { return s.db.Close() }

func (s *PostgresSource) Geometry(ctx context.Context, trackID string) (string, error) {
	const q = `SELECT wkt FROM route_geometries WHERE track_id = $1 ORDER BY fetched_at DESC LIMIT 1`
	var wkt sql.NullString
	if err := s.db.QueryRowContext(ctx, q, trackID).Scan(&wkt); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("no geometry cached for track %q", trackID)
		}
		return "", fmt.Errorf("query geometry: %w", err)
	}
	if !wkt.Valid || wkt.String == "" {
		return "", fmt.Errorf("empty geometry cached for track %q", trackID)
	}
	return wkt.String, nil
}

func (s *PostgresSource) Stations(ctx context.Context) (map[string]Station, error) {
	const q = `SELECT station_id, name, lat, lon FROM stations`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Station)
	for rows.Next() {
		var st Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Lat, &st.Lon); err != nil {
			return nil, err
		}
		out[st.ID] = st
	}
	return out, rows.Err()
}
