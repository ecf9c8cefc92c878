package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geopop/harvester/internal/frontier"
	"github.com/geopop/harvester/internal/logging"
	"github.com/geopop/harvester/internal/loop"
)

// newTimelineCmd creates the 'timeline' subcommand: the long-running
// loop that works through each account's uncovered day windows.
func newTimelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Runs the timeline harvesting loop",
		Long: `Runs the timeline loop: repeatedly draws a random tracked account,
samples one uncovered day from its timeline, fetches the posts of that
day, and records the day as covered once the posts are stored. The loop
runs until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			epoch, err := a.Config.Epoch()
			if err != nil {
				return err
			}
			p, err := buildPipeline(cmd.Context(), a)
			if err != nil {
				return err
			}

			calendar := frontier.NewCalendar(epoch, a.Clock)
			selector := frontier.NewTimelineSelector(calendar, a.Accounts, a.Coverage)
			strategy := loop.NewTimelineStrategy(selector, a.Fetcher, p)
			runner := loop.NewRunner(strategy, loopConfig(a), logging.Named(a.Logger, "timeline"))

			if err := runLoop(cmd.Context(), a, runner.Run); err != nil {
				return fmt.Errorf("timeline loop: %w", err)
			}
			return nil
		},
	}
}
