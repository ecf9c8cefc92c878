package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/geopop/harvester/internal/harvest"
)

// AccountStore implements harvest.AccountStore using Postgres.
type AccountStore struct {
	conn Conn
}

// NewAccountStore creates an AccountStore on the given connection.
func NewAccountStore(conn Conn) *AccountStore {
	return &AccountStore{conn: conn}
}

// UpsertAccount inserts the account; an existing ID or handle is left
// untouched, which gives discovery-time dedup for free. The targetless
// conflict clause also covers a known handle reappearing under a new
// platform ID, so such a candidate cannot poison its source account.
func (s *AccountStore) UpsertAccount(ctx context.Context, account harvest.Account) error {
	query := `
		INSERT INTO accounts (id, handle, followers, following, protected, location, lang, expanded, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING;
	`
	_, err := s.conn.Exec(ctx, query,
		account.ID,
		account.Handle,
		account.Followers,
		account.Following,
		account.Protected,
		account.Location,
		account.Lang,
		account.Expanded,
		account.DiscoveredAt,
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// AccountExists reports whether the platform ID is already tracked.
func (s *AccountStore) AccountExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1);`
	if err := s.conn.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check account exists: %w", err)
	}
	return exists, nil
}

// RandomAccount draws one account uniformly at random from the whole
// tracked population.
func (s *AccountStore) RandomAccount(ctx context.Context) (harvest.Account, error) {
	query := `
		SELECT id, handle, followers, following, protected, location, lang, expanded, discovered_at
		FROM accounts
		ORDER BY random()
		LIMIT 1;
	`
	var account harvest.Account
	err := s.conn.QueryRow(ctx, query).Scan(
		&account.ID,
		&account.Handle,
		&account.Followers,
		&account.Following,
		&account.Protected,
		&account.Location,
		&account.Lang,
		&account.Expanded,
		&account.DiscoveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return harvest.Account{}, harvest.ErrNotFound
		}
		return harvest.Account{}, fmt.Errorf("draw random account: %w", err)
	}
	return account, nil
}

// MarkExpanded flips the one-way expanded flag.
func (s *AccountStore) MarkExpanded(ctx context.Context, id string) error {
	query := `UPDATE accounts SET expanded = TRUE WHERE id = $1;`
	if _, err := s.conn.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("mark expanded: %w", err)
	}
	return nil
}

// CountAccounts returns the population size and the expanded subset size.
func (s *AccountStore) CountAccounts(ctx context.Context) (int64, int64, error) {
	var total, expanded int64
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE expanded) FROM accounts;`
	if err := s.conn.QueryRow(ctx, query).Scan(&total, &expanded); err != nil {
		return 0, 0, fmt.Errorf("count accounts: %w", err)
	}
	return total, expanded, nil
}
