package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geopop/harvester/internal/app"
	"github.com/geopop/harvester/internal/filter"
	"github.com/geopop/harvester/internal/logging"
	"github.com/geopop/harvester/internal/seed"
)

// newSeedCmd creates the 'seed' subcommand, which bootstraps the account
// population from the configured directory page. Seeding admits only
// accounts whose location exactly matches a reference entry.
func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Bootstraps the population from the public handle directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if a.Config.Seed.DirectoryURL == "" {
				return fmt.Errorf("seed.directory_url is required")
			}

			reference, err := loadReferenceSet(cmd.Context(), a)
			if err != nil {
				return err
			}

			scraper := seed.NewDirectoryScraper(a.Config.Seed.UserAgent)
			seeder := seed.NewSeeder(
				scraper,
				a.Fetcher,
				a.Accounts,
				reference,
				a.Clock,
				logging.Named(a.Logger, "seed"),
			)
			admitted, err := seeder.Run(cmd.Context(), a.Config.Seed.DirectoryURL)
			if err != nil {
				return fmt.Errorf("seed population: %w", err)
			}
			a.Logger.Info("seed command finished", zap.Int("admitted", admitted))
			return nil
		},
	}
}

// loadReferenceSet builds the admission filter from the locations table.
func loadReferenceSet(ctx context.Context, a *app.App) (*filter.ReferenceSet, error) {
	names, err := a.Locations.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reference locations: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no reference locations loaded; run initdb first")
	}
	return filter.NewReferenceSet(names), nil
}
