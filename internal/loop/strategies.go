package loop

import (
	"context"

	"github.com/geopop/harvester/internal/frontier"
	"github.com/geopop/harvester/internal/harvest"
	"github.com/geopop/harvester/internal/pipeline"
)

// TimelineUnit is one day window of one account's timeline.
type TimelineUnit struct {
	Account harvest.Account
	Window  harvest.DayWindow
}

// TimelineStrategy drives the timeline-domain loop: draw an uncovered
// day for a random account, fetch its posts, ingest and record coverage.
type TimelineStrategy struct {
	selector *frontier.TimelineSelector
	fetcher  harvest.Fetcher
	pipeline *pipeline.Pipeline
}

// NewTimelineStrategy builds a TimelineStrategy.
func NewTimelineStrategy(
	selector *frontier.TimelineSelector,
	fetcher harvest.Fetcher,
	p *pipeline.Pipeline,
) *TimelineStrategy {
	return &TimelineStrategy{selector: selector, fetcher: fetcher, pipeline: p}
}

// Name implements Strategy.
func (s *TimelineStrategy) Name() string { return "timeline" }

// Select implements Strategy.
func (s *TimelineStrategy) Select(ctx context.Context) (TimelineUnit, error) {
	account, window, err := s.selector.Select(ctx)
	if err != nil {
		return TimelineUnit{}, err
	}
	return TimelineUnit{Account: account, Window: window}, nil
}

// Fetch implements Strategy.
func (s *TimelineStrategy) Fetch(ctx context.Context, unit TimelineUnit) ([]harvest.RawPost, error) {
	return s.fetcher.FetchPosts(ctx, unit.Account.Handle, unit.Window)
}

// Ingest implements Strategy.
func (s *TimelineStrategy) Ingest(ctx context.Context, unit TimelineUnit, posts []harvest.RawPost) error {
	return s.pipeline.IngestPosts(ctx, unit.Account, unit.Window, posts)
}

// GraphStrategy drives the graph-domain loop: draw an un-expanded
// account, fetch its neighborhood, admit and persist new candidates.
type GraphStrategy struct {
	selector *frontier.GraphSelector
	fetcher  harvest.Fetcher
	pipeline *pipeline.Pipeline
}

// NewGraphStrategy builds a GraphStrategy.
func NewGraphStrategy(
	selector *frontier.GraphSelector,
	fetcher harvest.Fetcher,
	p *pipeline.Pipeline,
) *GraphStrategy {
	return &GraphStrategy{selector: selector, fetcher: fetcher, pipeline: p}
}

// Name implements Strategy.
func (s *GraphStrategy) Name() string { return "graph" }

// Select implements Strategy.
func (s *GraphStrategy) Select(ctx context.Context) (harvest.Account, error) {
	return s.selector.Select(ctx)
}

// Fetch implements Strategy.
func (s *GraphStrategy) Fetch(ctx context.Context, account harvest.Account) ([]harvest.Candidate, error) {
	return s.fetcher.FetchNeighbors(ctx, account.Handle)
}

// Ingest implements Strategy.
func (s *GraphStrategy) Ingest(ctx context.Context, account harvest.Account, candidates []harvest.Candidate) error {
	_, err := s.pipeline.IngestNeighbors(ctx, account, candidates)
	return err
}
