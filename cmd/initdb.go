package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geopop/harvester/internal/storage/postgres"
	"github.com/geopop/harvester/internal/wordlist"
)

// newInitDBCmd creates the 'initdb' subcommand. It applies the schema
// and loads the reference location set; both steps are idempotent.
func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Creates the database schema and loads the reference locations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := postgres.Bootstrap(ctx, a.Pool); err != nil {
				return fmt.Errorf("bootstrap schema: %w", err)
			}
			a.Logger.Info("schema applied")

			if a.Config.Filter.LocationsFile == "" {
				a.Logger.Warn("filter.locations_file not set, skipping location load")
				return nil
			}
			names, err := wordlist.Load(a.Config.Filter.LocationsFile)
			if err != nil {
				return fmt.Errorf("load locations: %w", err)
			}
			if err := a.Locations.InsertLocations(ctx, names); err != nil {
				return fmt.Errorf("insert locations: %w", err)
			}
			a.Logger.Info("reference locations loaded", zap.Int("count", len(names)))
			return nil
		},
	}
}
