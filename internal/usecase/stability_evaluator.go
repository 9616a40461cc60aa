package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	drepo "CaesarEcon/internal/domain/repository"
	dservice "CaesarEcon/internal/domain/service"
	"CaesarEcon/pkg/cache"
	applogger "CaesarEcon/pkg/logger"

	"github.com/google/uuid"
)

// StabilityEvaluator evaluates market readings, keeps the last-known-good
// snapshot per market in the cache and routes every snapshot to the store
// and, when configured, the snapshot topic.
type StabilityEvaluator struct {
	engine  *econ.Engine
	store   drepo.SnapshotStore
	pub     drepo.SnapshotPublisher // nil disables streaming
	cache   cache.Service
	metrics drepo.Metrics
	l       *applogger.Logger
	backend string
	ttl     time.Duration
	now     func() time.Time

	mu          sync.Mutex
	unpublished map[string]*models.SnapshotRecord // saved, publish still owed; keyed by record id
}

// maxUnpublished bounds the records kept for a publish-only retry.
const maxUnpublished = 1024

// NewStabilityEvaluator creates a StabilityEvaluator. backend labels persisted
// metrics; cacheTTL bounds how long a last-known-good snapshot is served from
// the cache before falling back to the store.
func NewStabilityEvaluator(
	engine *econ.Engine,
	store drepo.SnapshotStore,
	pub drepo.SnapshotPublisher,
	c cache.Service,
	metrics drepo.Metrics,
	l *applogger.Logger,
	backend string,
	cacheTTL time.Duration,
) *StabilityEvaluator {
	return &StabilityEvaluator{
		engine:  engine,
		store:   store,
		pub:     pub,
		cache:   c,
		metrics: metrics,
		l:       l.With(applogger.String("component", "stability_evaluator")),
		backend: backend,
		ttl:     cacheTTL,
		now:     time.Now,

		unpublished: make(map[string]*models.SnapshotRecord),
	}
}

// Evaluate runs the engine over one reading. On an engine error nothing is
// cached or stored, so the previous snapshot stays the last-known-good.
func (s *StabilityEvaluator) Evaluate(ctx context.Context, market string, obs econ.MarketObservables) (*models.SnapshotRecord, error) {
	return s.evaluate(ctx, &models.Observation{Market: market, Observables: obs})
}

// Process adapts Evaluate to the observation pipeline. The record takes the
// observation's ID and time, so a retried observation rewrites the same row.
// When only the publish failed, a retry publishes the saved record again and
// does not re-evaluate or re-save.
func (s *StabilityEvaluator) Process(ctx context.Context, obs *models.Observation) error {
	if rec := s.takeUnpublished(obs.ID); rec != nil {
		if err := s.publish(ctx, rec); err != nil {
			s.keepUnpublished(rec)
			return err
		}
		return nil
	}
	_, err := s.evaluate(ctx, obs)
	return err
}

func (s *StabilityEvaluator) evaluate(ctx context.Context, obs *models.Observation) (*models.SnapshotRecord, error) {
	start := s.now()
	market := obs.Market

	snap, err := s.engine.Evaluate(obs.Observables)
	if err != nil {
		s.metrics.RecordError("evaluate")
		s.l.Warn("evaluation rejected",
			applogger.String("market", market),
			applogger.Error(err))
		return nil, err
	}

	rec := &models.SnapshotRecord{
		ID:          obs.ID,
		Market:      market,
		EvaluatedAt: start.UTC(),
		Observables: obs.Observables,
		Snapshot:    snap,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if obs.ObservedAt > 0 {
		rec.EvaluatedAt = time.UnixMilli(obs.ObservedAt).UTC()
	}
	s.metrics.RecordEvaluation(market, snap)
	if snap.CircuitBreakers.Any() {
		s.l.Warn("circuit breaker tripped",
			applogger.String("market", market),
			applogger.Bool("halt", snap.CircuitBreakers.Halt),
			applogger.Bool("emergency", snap.CircuitBreakers.Emergency),
			applogger.Bool("rebase", snap.CircuitBreakers.Rebase))
	}

	if err := s.cache.Set(ctx, latestKey(market), rec, s.ttl); err != nil {
		// the store still holds the snapshot; Latest falls back to it
		s.metrics.RecordError("cache_set")
		s.l.Warn("cache last-known-good", applogger.String("market", market), applogger.Error(err))
	}

	if err := s.route(ctx, rec, obs.ID != ""); err != nil {
		return rec, err
	}
	s.metrics.RecordLatency("evaluate", time.Since(start).Seconds())
	return rec, nil
}

// Latest returns the last-known-good snapshot, from the cache when present.
func (s *StabilityEvaluator) Latest(ctx context.Context, market string) (*models.SnapshotRecord, error) {
	var rec models.SnapshotRecord
	err := s.cache.Get(ctx, latestKey(market), &rec)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.metrics.RecordError("cache_get")
		s.l.Warn("cache lookup", applogger.String("market", market), applogger.Error(err))
	}

	got, err := s.store.Latest(ctx, market)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, latestKey(market), got, s.ttl); err != nil {
		s.metrics.RecordError("cache_set")
	}
	return got, nil
}

// History returns stored snapshots for market in [from, to], newest first.
func (s *StabilityEvaluator) History(ctx context.Context, market string, from, to time.Time, limit int) ([]*models.SnapshotRecord, error) {
	return s.store.History(ctx, market, from, to, limit)
}

// route saves rec, then publishes it. A failed publish of a redeliverable
// record is kept for Process to retry.
func (s *StabilityEvaluator) route(ctx context.Context, rec *models.SnapshotRecord, redeliverable bool) error {
	if err := s.store.Save(ctx, rec); err != nil {
		s.metrics.RecordError("store")
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.metrics.RecordPersisted(s.backend, rec.Market)

	if s.pub == nil {
		return nil
	}
	if err := s.publish(ctx, rec); err != nil {
		if redeliverable {
			s.keepUnpublished(rec)
		}
		return err
	}
	return nil
}

func (s *StabilityEvaluator) publish(ctx context.Context, rec *models.SnapshotRecord) error {
	if err := s.pub.Publish(ctx, rec); err != nil {
		s.metrics.RecordError("publish")
		return fmt.Errorf("publish snapshot: %w", err)
	}
	s.metrics.RecordPersisted("kafka", rec.Market)
	return nil
}

func (s *StabilityEvaluator) keepUnpublished(rec *models.SnapshotRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.unpublished) >= maxUnpublished {
		s.metrics.RecordError("publish_backlog_full")
		s.l.Warn("publish backlog full, snapshot stays store-only",
			applogger.String("market", rec.Market),
			applogger.String("id", rec.ID))
		return
	}
	s.unpublished[rec.ID] = rec
}

// takeUnpublished removes and returns the saved record still owed a publish.
func (s *StabilityEvaluator) takeUnpublished(id string) *models.SnapshotRecord {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.unpublished[id]
	if ok {
		delete(s.unpublished, id)
	}
	return rec
}

func latestKey(market string) string { return cache.Key("snapshot", "latest", market) }

var _ dservice.StabilityEvaluator = (*StabilityEvaluator)(nil)
