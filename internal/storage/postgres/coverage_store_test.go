package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/geopop/harvester/internal/harvest"
)

func TestLoadCoverageEmptyAccount(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT covered_date").
		WithArgs("123").
		WillReturnRows(pgxmock.NewRows([]string{"covered_date"}))

	store := NewCoverageStore(mock)
	covered, err := store.LoadCoverage(context.Background(), "123")
	require.NoError(t, err)
	require.Empty(t, covered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCoverageNormalizesToMidnight(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	stored := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT covered_date").
		WithArgs("123").
		WillReturnRows(pgxmock.NewRows([]string{"covered_date"}).AddRow(stored))

	store := NewCoverageStore(mock)
	covered, err := store.LoadCoverage(context.Background(), "123")
	require.NoError(t, err)
	require.True(t, covered.Contains(time.Date(2012, 1, 1, 15, 4, 5, 0, time.UTC)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordCoverageTruncatesDate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	afternoon := time.Date(2012, 1, 2, 16, 45, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO post_coverage").
		WithArgs("123", harvest.DateOf(afternoon)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewCoverageStore(mock)
	require.NoError(t, store.RecordCoverage(context.Background(), "123", afternoon))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountCovered(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(91)))

	store := NewCoverageStore(mock)
	n, err := store.CountCovered(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(91), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
