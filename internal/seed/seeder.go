package seed

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/geopop/harvester/internal/filter"
	"github.com/geopop/harvester/internal/harvest"
)

// HandleSource yields candidate handles to seed from.
type HandleSource interface {
	Handles(pageURL string) ([]string, error)
}

// Seeder resolves directory handles into full accounts and admits the
// ones whose location exactly matches the reference population.
type Seeder struct {
	source    HandleSource
	fetcher   harvest.Fetcher
	accounts  harvest.AccountStore
	reference *filter.ReferenceSet
	clock     harvest.Clock
	logger    *zap.Logger
}

// NewSeeder builds a Seeder.
func NewSeeder(source HandleSource, fetcher harvest.Fetcher, accounts harvest.AccountStore, reference *filter.ReferenceSet, clock harvest.Clock, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		source:    source,
		fetcher:   fetcher,
		accounts:  accounts,
		reference: reference,
		clock:     clock,
		logger:    logger,
	}
}

// Run seeds the population from the directory page. It is a no-op when
// the population already holds accounts, so repeated invocations do not
// re-walk the directory.
func (s *Seeder) Run(ctx context.Context, pageURL string) (int, error) {
	total, _, err := s.accounts.CountAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	if total > 0 {
		s.logger.Info("population already seeded, skipping directory",
			zap.Int64("accounts", total),
		)
		return 0, nil
	}

	handles, err := s.source.Handles(pageURL)
	if err != nil {
		return 0, fmt.Errorf("collect directory handles: %w", err)
	}
	s.logger.Info("directory scraped", zap.Int("handles", len(handles)))

	admitted := 0
	for _, handle := range handles {
		if err := ctx.Err(); err != nil {
			return admitted, fmt.Errorf("seeding canceled: %w", err)
		}
		candidate, err := s.fetcher.LookupAccount(ctx, handle)
		if err != nil {
			s.logger.Warn("handle lookup failed, skipping",
				zap.String("handle", handle),
				zap.Error(err),
			)
			continue
		}
		if !s.reference.Admit(candidate.Location, filter.PolicyExactMatch) {
			harvest.ObserveRejected("location")
			continue
		}
		if err := s.accounts.UpsertAccount(ctx, candidate.Account(s.clock.Now())); err != nil {
			return admitted, fmt.Errorf("upsert seed account %s: %w", handle, err)
		}
		admitted++
		harvest.ObserveAdmitted()
	}

	s.logger.Info("seeding complete",
		zap.Int("handles", len(handles)),
		zap.Int("admitted", admitted),
	)
	return admitted, nil
}
