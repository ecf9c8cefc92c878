package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geopop/harvester/internal/frontier"
	"github.com/geopop/harvester/internal/logging"
	"github.com/geopop/harvester/internal/loop"
)

// newGraphCmd creates the 'graph' subcommand: the long-running loop that
// grows the population by expanding follower neighborhoods.
func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Runs the social graph expansion loop",
		Long: `Runs the graph loop: repeatedly draws a random tracked account that
has not been expanded yet, fetches its follower and followee lists, and
admits into the population every neighbor whose location matches the
reference set. The loop runs until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			p, err := buildPipeline(cmd.Context(), a)
			if err != nil {
				return err
			}

			selector := frontier.NewGraphSelector(a.Accounts)
			strategy := loop.NewGraphStrategy(selector, a.Fetcher, p)
			runner := loop.NewRunner(strategy, loopConfig(a), logging.Named(a.Logger, "graph"))

			if err := runLoop(cmd.Context(), a, runner.Run); err != nil {
				return fmt.Errorf("graph loop: %w", err)
			}
			return nil
		},
	}
}
