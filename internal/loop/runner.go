// Package loop runs the crawl control loop as an explicit state machine:
// Selecting -> Fetching -> Ingesting -> Pacing, with an error transition
// from any state back to Pacing-with-backoff. The loop has no designed
// exit; it stops only when its context is canceled.
package loop

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/geopop/harvester/internal/frontier"
	"github.com/geopop/harvester/internal/harvest"
)

// State identifies the loop's current phase, mostly for logging.
type State string

// Loop states.
const (
	StateSelecting State = "selecting"
	StateFetching  State = "fetching"
	StateIngesting State = "ingesting"
	StatePacing    State = "pacing"
)

// Strategy supplies the domain-specific half of one crawl loop: how to
// pick a unit of work, fetch its payload, and ingest the result. U is the
// work unit, P the fetched payload.
//
// Select returns frontier.ErrExhausted when the drawn entity has nothing
// left; the runner waits the backoff floor and reselects.
type Strategy[U, P any] interface {
	Name() string
	Select(ctx context.Context) (U, error)
	Fetch(ctx context.Context, unit U) (P, error)
	Ingest(ctx context.Context, unit U, payload P) error
}

// Config controls pacing.
type Config struct {
	// PacingMin/PacingMax bound the random inter-iteration delay on
	// success. They exist purely to respect upstream rate limits.
	PacingMin time.Duration
	PacingMax time.Duration
	// BackoffFloor/BackoffMax bound the failure-path delay.
	BackoffFloor time.Duration
	BackoffMax   time.Duration
	// RPS caps upstream calls across states; zero means unlimited.
	RPS float64
}

// Runner executes one crawl loop over a Strategy.
type Runner[U, P any] struct {
	strategy Strategy[U, P]
	limiter  *rate.Limiter
	backoff  *Backoff
	cfg      Config
	logger   *zap.Logger
	state    State

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
	// intn draws the success pacing delay.
	intn func(n int) int
}

// NewRunner builds a Runner.
func NewRunner[U, P any](strategy Strategy[U, P], cfg Config, logger *zap.Logger) *Runner[U, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PacingMin <= 0 {
		cfg.PacingMin = 15 * time.Second
	}
	if cfg.PacingMax < cfg.PacingMin {
		cfg.PacingMax = cfg.PacingMin
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &Runner[U, P]{
		strategy: strategy,
		limiter:  rate.NewLimiter(limit, 1),
		backoff:  NewBackoff(cfg.BackoffFloor, cfg.BackoffMax),
		cfg:      cfg,
		logger:   logger.With(zap.String("loop", strategy.Name())),
		state:    StateSelecting,
		sleep:    sleepCtx,
		intn:     rand.IntN,
	}
}

// Run blocks until ctx finishes. No failure inside an iteration
// terminates the loop; every error path lands in Pacing with backoff and
// the unit stays retryable through re-sampling.
func (r *Runner[U, P]) Run(ctx context.Context) error {
	r.logger.Info("crawl loop starting")
	for {
		if err := ctx.Err(); err != nil {
			r.logger.Info("crawl loop stopping", zap.Error(err))
			return err
		}
		r.iterate(ctx)
	}
}

func (r *Runner[U, P]) iterate(ctx context.Context) {
	name := r.strategy.Name()

	r.state = StateSelecting
	unit, err := r.strategy.Select(ctx)
	if errors.Is(err, frontier.ErrExhausted) {
		harvest.ObserveIteration(name, "exhausted")
		// A fully covered population would otherwise redraw in a hot
		// loop against the store. Wait the floor, without escalating
		// the failure streak, before reselecting.
		r.state = StatePacing
		_ = r.sleep(ctx, r.backoff.floor)
		return
	}
	if err != nil {
		harvest.ObserveIteration(name, "select_error")
		r.fail(ctx, "select failed", err)
		return
	}

	r.state = StateFetching
	if err := r.limiter.Wait(ctx); err != nil {
		return
	}
	payload, err := r.strategy.Fetch(ctx, unit)
	if err != nil {
		harvest.ObserveIteration(name, "fetch_error")
		r.fail(ctx, "fetch failed", err)
		return
	}

	r.state = StateIngesting
	if err := r.strategy.Ingest(ctx, unit, payload); err != nil {
		harvest.ObserveIteration(name, "ingest_error")
		r.fail(ctx, "ingest failed", err)
		return
	}

	harvest.ObserveIteration(name, "success")
	r.backoff.Reset()

	r.state = StatePacing
	delay := r.pacingDelay()
	r.logger.Debug("pacing", zap.Duration("delay", delay))
	_ = r.sleep(ctx, delay)
}

// fail logs the error and transitions to Pacing with backoff. The floor
// is enforced even when failures are instantaneous.
func (r *Runner[U, P]) fail(ctx context.Context, msg string, err error) {
	r.state = StatePacing
	delay := r.backoff.Next()
	r.logger.Warn(msg, zap.Error(err), zap.Duration("backoff", delay))
	_ = r.sleep(ctx, delay)
}

func (r *Runner[U, P]) pacingDelay() time.Duration {
	spread := r.cfg.PacingMax - r.cfg.PacingMin
	if spread <= 0 {
		return r.cfg.PacingMin
	}
	return r.cfg.PacingMin + time.Duration(r.intn(int(spread)))
}

// State returns the loop's current phase.
func (r *Runner[U, P]) State() State { return r.state }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
