package frontier

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/geopop/harvester/internal/harvest"
)

// ErrExhausted signals that the drawn entity has no uncovered work left.
// Not an error condition for the loop; the caller reselects on the next
// pass.
var ErrExhausted = errors.New("frontier exhausted for entity")

// TimelineSelector picks the next (account, day window) unit to fetch.
// Sampling uniformly from the missing set rather than scanning it
// sequentially spreads load across the whole historical range and keeps
// the selector stateless between iterations.
type TimelineSelector struct {
	calendar *Calendar
	accounts harvest.AccountStore
	coverage harvest.CoverageStore
	intn     func(n int) int
}

// NewTimelineSelector builds a TimelineSelector.
func NewTimelineSelector(
	calendar *Calendar,
	accounts harvest.AccountStore,
	coverage harvest.CoverageStore,
) *TimelineSelector {
	return &TimelineSelector{
		calendar: calendar,
		accounts: accounts,
		coverage: coverage,
		intn:     rand.IntN,
	}
}

// Select draws a random tracked account, recomputes its missing-date set
// from durable coverage, and samples one missing date uniformly. Returns
// ErrExhausted when the account is fully covered.
func (s *TimelineSelector) Select(ctx context.Context) (harvest.Account, harvest.DayWindow, error) {
	account, err := s.accounts.RandomAccount(ctx)
	if err != nil {
		return harvest.Account{}, harvest.DayWindow{}, fmt.Errorf("draw account: %w", err)
	}

	covered, err := s.coverage.LoadCoverage(ctx, account.ID)
	if err != nil {
		return harvest.Account{}, harvest.DayWindow{}, fmt.Errorf("load coverage: %w", err)
	}

	missing := s.calendar.Missing(covered)
	if len(missing) == 0 {
		return account, harvest.DayWindow{}, ErrExhausted
	}

	date := missing[s.intn(len(missing))]
	return account, harvest.DayWindow{Date: date}, nil
}

// GraphSelector picks the next account whose neighborhood should be
// fetched. The draw is uniform over the whole tracked population,
// regardless of how long an account has been un-expanded; an
// already-expanded draw surfaces as ErrExhausted and the loop reselects.
type GraphSelector struct {
	accounts harvest.AccountStore
}

// NewGraphSelector builds a GraphSelector.
func NewGraphSelector(accounts harvest.AccountStore) *GraphSelector {
	return &GraphSelector{accounts: accounts}
}

// Select draws one account uniformly at random.
func (s *GraphSelector) Select(ctx context.Context) (harvest.Account, error) {
	account, err := s.accounts.RandomAccount(ctx)
	if err != nil {
		return harvest.Account{}, fmt.Errorf("draw account: %w", err)
	}
	if account.Expanded {
		return account, ErrExhausted
	}
	return account, nil
}
