package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/geopop/harvester/internal/harvest"
)

func TestInsertPostsCountsNewRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	posts := []harvest.Post{
		{AuthorHandle: "vecina_madrid", PostedAt: at, Text: "lluvia centro madrid"},
		{AuthorHandle: "vecina_madrid", PostedAt: at, Text: "lluvia centro madrid"},
	}

	mock.ExpectExec("INSERT INTO posts").
		WithArgs("vecina_madrid", at, "lluvia centro madrid").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Duplicate row conflicts and affects nothing.
	mock.ExpectExec("INSERT INTO posts").
		WithArgs("vecina_madrid", at, "lluvia centro madrid").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	store := NewPostStore(mock)
	inserted, err := store.InsertPosts(context.Background(), posts)
	require.NoError(t, err)
	require.Equal(t, int64(1), inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPostsStopsOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO posts").
		WithArgs("a", at, "uno").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO posts").
		WithArgs("a", at, "dos").
		WillReturnError(errors.New("connection reset"))

	store := NewPostStore(mock)
	inserted, err := store.InsertPosts(context.Background(), []harvest.Post{
		{AuthorHandle: "a", PostedAt: at, Text: "uno"},
		{AuthorHandle: "a", PostedAt: at, Text: "dos"},
	})
	require.Error(t, err)
	require.Equal(t, int64(1), inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}
