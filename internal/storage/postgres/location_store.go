package postgres

import (
	"context"
	"fmt"
)

// LocationStore implements harvest.LocationStore using Postgres. The
// reference set is written once by initdb and only ever read afterwards.
type LocationStore struct {
	conn Conn
}

// NewLocationStore creates a LocationStore on the given connection.
func NewLocationStore(conn Conn) *LocationStore {
	return &LocationStore{conn: conn}
}

// InsertLocations loads the reference location names, skipping existing
// entries so repeated initdb runs stay idempotent.
func (s *LocationStore) InsertLocations(ctx context.Context, names []string) error {
	query := `INSERT INTO locations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING;`
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := s.conn.Exec(ctx, query, name); err != nil {
			return fmt.Errorf("insert location %q: %w", name, err)
		}
	}
	return nil
}

// ListLocations returns every reference location name.
func (s *LocationStore) ListLocations(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT name FROM locations;`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location rows: %w", err)
	}
	return names, nil
}
