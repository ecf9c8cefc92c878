package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geopop/harvester/internal/frontier"
)

// scriptStrategy replays canned results and records calls.
type scriptStrategy struct {
	mu         sync.Mutex
	selectErrs []error
	fetchErr   error
	ingestErr  error
	selects    int
	fetches    int
	ingests    int
}

func (s *scriptStrategy) Name() string { return "scripted" }

func (s *scriptStrategy) Select(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selects++
	if len(s.selectErrs) > 0 {
		err := s.selectErrs[0]
		s.selectErrs = s.selectErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	return s.selects, nil
}

func (s *scriptStrategy) Fetch(context.Context, int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return "", s.fetchErr
	}
	return "payload", nil
}

func (s *scriptStrategy) Ingest(context.Context, int, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingests++
	return s.ingestErr
}

func (s *scriptStrategy) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selects, s.fetches, s.ingests
}

// newTestRunner swaps real sleeping for counting.
func newTestRunner(s *scriptStrategy) (*Runner[int, string], *[]time.Duration) {
	r := NewRunner[int, string](s, Config{
		PacingMin:    15 * time.Second,
		PacingMax:    30 * time.Second,
		BackoffFloor: time.Minute,
		BackoffMax:   15 * time.Minute,
	}, nil)

	var slept []time.Duration
	var mu sync.Mutex
	r.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return ctx.Err()
	}
	return r, &slept
}

func TestRunnerStopsOnlyOnContextCancel(t *testing.T) {
	t.Parallel()

	s := &scriptStrategy{}
	r, _ := newTestRunner(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}

	selects, fetches, ingests := s.counts()
	assert.Greater(t, selects, 0)
	assert.Greater(t, fetches, 0)
	assert.Greater(t, ingests, 0)
}

func TestRunnerSurvivesFetchFailures(t *testing.T) {
	t.Parallel()

	s := &scriptStrategy{fetchErr: errors.New("upstream down")}
	r, slept := newTestRunner(s)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	selects, fetches, ingests := s.counts()
	assert.Greater(t, fetches, 1, "loop must keep iterating through failures")
	assert.Equal(t, 0, ingests)
	assert.Greater(t, selects, 1)

	// Every failure waits at least the backoff floor.
	for _, d := range *slept {
		assert.GreaterOrEqual(t, d, time.Minute)
	}
}

func TestRunnerExhaustedWaitsFloorThenReselects(t *testing.T) {
	t.Parallel()

	s := &scriptStrategy{selectErrs: []error{frontier.ErrExhausted, frontier.ErrExhausted}}
	r, slept := newTestRunner(s)

	r.iterate(context.Background())
	r.iterate(context.Background())

	// Both exhausted draws wait exactly the floor; the failure streak
	// does not escalate because exhausted is not an error.
	require.Len(t, *slept, 2)
	assert.Equal(t, time.Minute, (*slept)[0])
	assert.Equal(t, time.Minute, (*slept)[1])

	// The next draw proceeds to fetch and ingest as usual.
	r.iterate(context.Background())
	selects, fetches, ingests := s.counts()
	assert.Equal(t, 3, selects)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, 1, ingests)
}

func TestRunnerPacesAfterSuccess(t *testing.T) {
	t.Parallel()

	s := &scriptStrategy{}
	r, slept := newTestRunner(s)

	ctx := context.Background()
	r.iterate(ctx)

	require.Len(t, *slept, 1)
	d := (*slept)[0]
	assert.GreaterOrEqual(t, d, 15*time.Second)
	assert.Less(t, d, 30*time.Second)
}

func TestRunnerIngestFailureBacksOff(t *testing.T) {
	t.Parallel()

	s := &scriptStrategy{ingestErr: errors.New("db unavailable")}
	r, slept := newTestRunner(s)

	r.iterate(context.Background())
	r.iterate(context.Background())

	require.Len(t, *slept, 2)
	assert.GreaterOrEqual(t, (*slept)[0], time.Minute)
	assert.GreaterOrEqual(t, (*slept)[1], time.Minute)
}

func TestRunnerStateTransitions(t *testing.T) {
	t.Parallel()

	s := &scriptStrategy{}
	r, _ := newTestRunner(s)

	require.Equal(t, StateSelecting, r.State())
	r.iterate(context.Background())
	require.Equal(t, StatePacing, r.State())
}
