package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	drepo "CaesarEcon/internal/domain/repository"
)

type memStore struct {
	mu      sync.Mutex
	recs    []*models.SnapshotRecord
	saveErr error
	latests int
}

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) Save(_ context.Context, rec *models.SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memStore) Latest(_ context.Context, market string) (*models.SnapshotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latests++
	for i := len(s.recs) - 1; i >= 0; i-- {
		if s.recs[i].Market == market {
			return s.recs[i], nil
		}
	}
	return nil, drepo.ErrNotFound
}

func (s *memStore) History(_ context.Context, market string, from, to time.Time, limit int) ([]*models.SnapshotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SnapshotRecord
	for _, r := range s.recs {
		if r.Market == market && !r.EvaluatedAt.Before(from) && !r.EvaluatedAt.After(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EvaluatedAt.After(out[j].EvaluatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

func (s *memStore) saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func (s *memStore) records() []*models.SnapshotRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.SnapshotRecord(nil), s.recs...)
}

type memPublisher struct {
	mu    sync.Mutex
	recs  []*models.SnapshotRecord
	fails int // fail this many publishes before succeeding
	calls int
}

func (p *memPublisher) Publish(_ context.Context, rec *models.SnapshotRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fails > 0 {
		p.fails--
		return errors.New("broker unavailable")
	}
	p.recs = append(p.recs, rec)
	return nil
}

func (p *memPublisher) published() []*models.SnapshotRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.SnapshotRecord(nil), p.recs...)
}

func (p *memPublisher) Close() error { return nil }

type recMetrics struct {
	mu          sync.Mutex
	evaluations map[string]int
	persisted   map[string]int
	errors      map[string]int
	prices      map[string]float64
}

func newRecMetrics() *recMetrics {
	return &recMetrics{
		evaluations: map[string]int{},
		persisted:   map[string]int{},
		errors:      map[string]int{},
		prices:      map[string]float64{},
	}
}

func (m *recMetrics) RecordEvaluation(market string, _ econ.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations[market]++
}

func (m *recMetrics) RecordPersisted(backend, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted[backend]++
}

func (m *recMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *recMetrics) RecordReferencePrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

func (m *recMetrics) RecordLatency(string, float64) {}

func (m *recMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func healthyObservables() econ.MarketObservables {
	return econ.MarketObservables{
		CurrentPrice:           101,
		TargetPrice:            100,
		LiquidityRatio:         0.9,
		ValidatorCount:         50,
		HolderCount:            1000,
		DailyTransactions:      600000,
		CrossChainTransfers:    10000,
		ActiveParticipants:     900,
		ValidatorParticipation: 0.9,
		HolderParticipation:    0.8,
		StabilityReserve:       200,
		TotalSupply:            1000,
	}
}
