package postgres

import (
	"context"
	"fmt"

	"github.com/geopop/harvester/internal/harvest"
)

// PostStore implements harvest.PostStore using Postgres. Dedup happens
// here, at the storage layer: the table's primary key is
// (author_handle, posted_at, body), so re-fetched windows and concurrent
// workers converge on one row per distinct post.
type PostStore struct {
	conn Conn
}

// NewPostStore creates a PostStore on the given connection.
func NewPostStore(conn Conn) *PostStore {
	return &PostStore{conn: conn}
}

// InsertPosts persists the batch and returns how many rows were actually
// new. Conflicting rows are silently skipped.
func (s *PostStore) InsertPosts(ctx context.Context, posts []harvest.Post) (int64, error) {
	query := `
		INSERT INTO posts (author_handle, posted_at, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (author_handle, posted_at, body) DO NOTHING;
	`
	var inserted int64
	for _, post := range posts {
		tag, err := s.conn.Exec(ctx, query, post.AuthorHandle, post.PostedAt, post.Text)
		if err != nil {
			return inserted, fmt.Errorf("insert post: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
