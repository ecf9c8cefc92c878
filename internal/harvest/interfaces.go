package harvest

import (
	"context"
	"time"
)

// Fetcher wraps the upstream platform API. Implementations may fail
// transiently; callers treat every error as retryable.
type Fetcher interface {
	// FetchPosts returns the raw posts authored by handle within the window.
	FetchPosts(ctx context.Context, handle string, window DayWindow) ([]RawPost, error)
	// FetchNeighbors returns the merged follower/followee records of handle.
	FetchNeighbors(ctx context.Context, handle string) ([]Candidate, error)
	// LookupAccount resolves a bare handle into a full candidate record.
	LookupAccount(ctx context.Context, handle string) (Candidate, error)
}

// AccountStore persists the tracked population.
type AccountStore interface {
	// UpsertAccount inserts the account, ignoring records whose ID already
	// exists. Discovery-time dedup relies on this being a no-op on conflict.
	UpsertAccount(ctx context.Context, account Account) error
	// AccountExists reports whether an account with the platform ID is tracked.
	AccountExists(ctx context.Context, id string) (bool, error)
	// RandomAccount draws one account uniformly at random from the whole
	// tracked population. Returns ErrNotFound when the population is empty.
	RandomAccount(ctx context.Context) (Account, error)
	// MarkExpanded flips the one-way expanded flag for the account.
	MarkExpanded(ctx context.Context, id string) error
	// CountAccounts returns the population size and how many are expanded.
	CountAccounts(ctx context.Context) (total int64, expanded int64, err error)
}

// PostStore persists normalized posts, deduplicating exact repeats on
// (author, posted_at, text) so re-fetched windows never multiply rows.
type PostStore interface {
	InsertPosts(ctx context.Context, posts []Post) (inserted int64, err error)
}

// CoverageStore is the durable record of per-account timeline coverage.
// The date set is monotone: dates are only ever added.
type CoverageStore interface {
	// LoadCoverage returns the covered dates for the account. An account
	// with no record yet yields an empty set, never an error.
	LoadCoverage(ctx context.Context, accountID string) (DateSet, error)
	// RecordCoverage appends one date to the account's set. Recording an
	// already-present date is a no-op. Callers must only invoke this after
	// the window's posts are durably stored.
	RecordCoverage(ctx context.Context, accountID string, date time.Time) error
	// CountCovered returns the total number of (account, date) pairs.
	CountCovered(ctx context.Context) (int64, error)
}

// LocationStore holds the immutable reference location set.
type LocationStore interface {
	InsertLocations(ctx context.Context, names []string) error
	ListLocations(ctx context.Context) ([]string, error)
}

// BlobStore archives raw payloads and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes ingestion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
