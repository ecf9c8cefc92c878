package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/geopop/harvester/internal/harvest"
)

// CoverageStore implements harvest.CoverageStore using Postgres. The
// date set is a plain (account_id, covered_date) primary-key table:
// append is a single-row upsert, so N concurrent workers adding to the
// same account's set converge without coordination.
type CoverageStore struct {
	conn Conn
}

// NewCoverageStore creates a CoverageStore on the given connection.
func NewCoverageStore(conn Conn) *CoverageStore {
	return &CoverageStore{conn: conn}
}

// LoadCoverage returns the covered dates for the account. No rows means
// an empty set, never an error.
func (s *CoverageStore) LoadCoverage(ctx context.Context, accountID string) (harvest.DateSet, error) {
	query := `SELECT covered_date FROM post_coverage WHERE account_id = $1;`
	rows, err := s.conn.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("load coverage: %w", err)
	}
	defer rows.Close()

	covered := make(harvest.DateSet)
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan coverage row: %w", err)
		}
		covered[harvest.DateOf(d)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coverage rows: %w", err)
	}
	return covered, nil
}

// RecordCoverage appends one date to the account's set. Re-recording an
// already-covered date is a no-op, which makes the at-least-once fetch
// path safe.
func (s *CoverageStore) RecordCoverage(ctx context.Context, accountID string, date time.Time) error {
	query := `
		INSERT INTO post_coverage (account_id, covered_date)
		VALUES ($1, $2)
		ON CONFLICT (account_id, covered_date) DO NOTHING;
	`
	if _, err := s.conn.Exec(ctx, query, accountID, harvest.DateOf(date)); err != nil {
		return fmt.Errorf("record coverage: %w", err)
	}
	return nil
}

// CountCovered returns the total number of covered (account, date) pairs.
func (s *CoverageStore) CountCovered(ctx context.Context) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM post_coverage;`
	if err := s.conn.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count coverage: %w", err)
	}
	return n, nil
}
