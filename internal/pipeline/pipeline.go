// Package pipeline ingests fetched payloads: it normalizes and filters
// records, persists survivors, and only then advances durable coverage.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geopop/harvester/internal/filter"
	"github.com/geopop/harvester/internal/harvest"
	"github.com/geopop/harvester/internal/textnorm"
)

// Config controls ingestion side channels.
type Config struct {
	// BackupPrefix is the blob path prefix for raw payload archives.
	BackupPrefix string
	// Topic is the event topic; empty disables publishing.
	Topic string
	// RunID tags every published event with the process run that emitted
	// it. Assigned at construction when empty.
	RunID string
}

// Pipeline wires the admission filter, text normalization and the stores.
// Ordering invariant: coverage (the date record or the expanded flag) is
// advanced only after the unit's records are durably stored, so a crash
// in between costs at most one harmless re-fetch.
type Pipeline struct {
	accounts  harvest.AccountStore
	posts     harvest.PostStore
	coverage  harvest.CoverageStore
	blobs     harvest.BlobStore
	publisher harvest.Publisher
	cleaner   *textnorm.Cleaner
	reference *filter.ReferenceSet
	clock     harvest.Clock
	logger    *zap.Logger
	cfg       Config
}

// New constructs a Pipeline.
func New(
	accounts harvest.AccountStore,
	posts harvest.PostStore,
	coverage harvest.CoverageStore,
	blobs harvest.BlobStore,
	publisher harvest.Publisher,
	cleaner *textnorm.Cleaner,
	reference *filter.ReferenceSet,
	clock harvest.Clock,
	logger *zap.Logger,
	cfg Config,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Pipeline{
		accounts:  accounts,
		posts:     posts,
		coverage:  coverage,
		blobs:     blobs,
		publisher: publisher,
		cleaner:   cleaner,
		reference: reference,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
	}
}

// IngestPosts normalizes the fetched posts for one day window, persists
// the survivors and records the window as covered. A successful pass with
// zero surviving posts still records coverage: an empty day is a valid
// terminal result, not a failure. Any persistence error returns before
// coverage is touched, leaving the window in the missing set.
func (p *Pipeline) IngestPosts(
	ctx context.Context,
	account harvest.Account,
	window harvest.DayWindow,
	raws []harvest.RawPost,
) error {
	p.archive(ctx, p.backupPath("posts", account.Handle, window.Date), raws)

	posts := make([]harvest.Post, 0, len(raws))
	for _, raw := range raws {
		cleaned := p.cleaner.Clean(raw.Text)
		if cleaned == "" {
			harvest.ObservePostsDiscarded(1)
			continue
		}
		posts = append(posts, harvest.Post{
			AuthorHandle: raw.AuthorHandle,
			PostedAt:     raw.PostedAt,
			Text:         cleaned,
		})
	}

	if len(posts) > 0 {
		inserted, err := p.posts.InsertPosts(ctx, posts)
		if err != nil {
			return fmt.Errorf("insert posts: %w", err)
		}
		harvest.ObservePostsIngested(int(inserted))
	}

	if err := p.coverage.RecordCoverage(ctx, account.ID, window.Date); err != nil {
		return fmt.Errorf("record coverage: %w", err)
	}
	harvest.ObserveCoverageAppend()

	p.publish(ctx, map[string]any{
		"event":   "window_covered",
		"account": account.Handle,
		"date":    window.Date.Format("2006-01-02"),
		"posts":   len(posts),
		"at":      p.clock.Now().Format(time.RFC3339),
	})

	p.logger.Info("window ingested",
		zap.String("handle", account.Handle),
		zap.String("date", window.Date.Format("2006-01-02")),
		zap.Int("fetched", len(raws)),
		zap.Int("kept", len(posts)),
	)
	return nil
}

// IngestNeighbors admits, deduplicates and persists the candidates
// discovered in one account's neighborhood, then marks the source
// account expanded. Zero admitted candidates still marks expansion: an
// empty neighborhood is terminal. Any persistence error returns before
// the flag flips, so the account stays selectable; the upserts are
// idempotent under retry.
func (p *Pipeline) IngestNeighbors(
	ctx context.Context,
	account harvest.Account,
	candidates []harvest.Candidate,
) (int, error) {
	p.archive(ctx, p.backupPath("neighbors", account.Handle, p.clock.Now()), candidates)

	admitted := 0
	for _, candidate := range candidates {
		if !p.reference.Admit(candidate.Location, filter.PolicyTokenMatch) {
			harvest.ObserveRejected("location")
			continue
		}
		exists, err := p.accounts.AccountExists(ctx, candidate.ID)
		if err != nil {
			return admitted, fmt.Errorf("check candidate %s: %w", candidate.ID, err)
		}
		if exists {
			harvest.ObserveRejected("duplicate")
			continue
		}
		if err := p.accounts.UpsertAccount(ctx, candidate.Account(p.clock.Now())); err != nil {
			return admitted, fmt.Errorf("persist candidate %s: %w", candidate.ID, err)
		}
		harvest.ObserveAdmitted()
		admitted++
	}

	if err := p.accounts.MarkExpanded(ctx, account.ID); err != nil {
		return admitted, fmt.Errorf("mark expanded: %w", err)
	}

	p.publish(ctx, map[string]any{
		"event":      "account_expanded",
		"account":    account.Handle,
		"candidates": len(candidates),
		"admitted":   admitted,
		"at":         p.clock.Now().Format(time.RFC3339),
	})

	p.logger.Info("neighborhood ingested",
		zap.String("handle", account.Handle),
		zap.Int("candidates", len(candidates)),
		zap.Int("admitted", admitted),
	)
	return admitted, nil
}

// archive writes the raw payload to the blob store. Backup failures are
// logged and swallowed: coverage correctness never depends on them.
func (p *Pipeline) archive(ctx context.Context, path string, payload any) {
	if p.blobs == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("marshal backup payload", zap.Error(err))
		return
	}
	if _, err := p.blobs.PutObject(ctx, path, "application/json", data); err != nil {
		p.logger.Warn("archive raw payload", zap.String("path", path), zap.Error(err))
	}
}

// publish emits an ingestion event. Publish failures are logged and
// swallowed for the same reason as backups.
func (p *Pipeline) publish(ctx context.Context, payload map[string]any) {
	if p.publisher == nil || p.cfg.Topic == "" {
		return
	}
	payload["run"] = p.cfg.RunID
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, payload); err != nil {
		p.logger.Warn("publish ingestion event", zap.Error(err))
	}
}

func (p *Pipeline) backupPath(kind, handle string, at time.Time) string {
	prefix := p.cfg.BackupPrefix
	if prefix == "" {
		prefix = "backups"
	}
	return fmt.Sprintf("%s/%s/%s/%s.json", prefix, kind, handle, at.UTC().Format("2006-01-02"))
}
