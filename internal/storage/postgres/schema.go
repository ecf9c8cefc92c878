package postgres

import (
	"context"
	"fmt"
)

// schema is the durable state owned by the harvester. The post primary
// key is the dedup boundary: re-fetching a window can never multiply
// rows. post_coverage is append-only; a (account, date) row means that
// day's posts are durably stored.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id            TEXT PRIMARY KEY,
		handle        TEXT NOT NULL UNIQUE,
		followers     BIGINT NOT NULL DEFAULT 0,
		following     BIGINT NOT NULL DEFAULT 0,
		protected     BOOLEAN NOT NULL DEFAULT FALSE,
		location      TEXT NOT NULL DEFAULT '',
		lang          TEXT NOT NULL DEFAULT '',
		expanded      BOOLEAN NOT NULL DEFAULT FALSE,
		discovered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		author_handle TEXT NOT NULL,
		posted_at     TIMESTAMPTZ NOT NULL,
		body          TEXT NOT NULL,
		PRIMARY KEY (author_handle, posted_at, body)
	)`,
	`CREATE TABLE IF NOT EXISTS post_coverage (
		account_id   TEXT NOT NULL REFERENCES accounts(id),
		covered_date DATE NOT NULL,
		PRIMARY KEY (account_id, covered_date)
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		name TEXT PRIMARY KEY
	)`,
}

// Bootstrap creates the schema if it does not exist. Idempotent; safe to
// run on every initdb invocation.
func Bootstrap(ctx context.Context, conn Conn) error {
	for _, stmt := range schema {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
