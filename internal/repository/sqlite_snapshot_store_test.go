package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	domrepo "CaesarEcon/internal/domain/repository"
	pkgkafka "CaesarEcon/pkg/kafka"
	pkgsqlite "CaesarEcon/pkg/sqlite"

	"github.com/google/go-cmp/cmp"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteSnapshotStore {
	t.Helper()
	c, err := pkgsqlite.Open(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	s := NewSQLiteSnapshotStore(c)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id, market string, at time.Time, psi float64) *models.SnapshotRecord {
	return &models.SnapshotRecord{
		ID:          id,
		Market:      market,
		EvaluatedAt: at,
		Observables: econ.MarketObservables{CurrentPrice: 101, TargetPrice: 100, LiquidityRatio: 0.15},
		Snapshot: econ.Snapshot{
			Metrics:         econ.StabilityMetrics{PriceStabilityIndex: psi, LiquidityHealthIndex: 0.2, NetworkUtilityScore: 0.1, ConvergenceRate: -0.004},
			MarketPressure:  0.25,
			RequiredReserve: 10,
			CircuitBreakers: econ.CircuitBreakerFlags{Emergency: true},
			Equilibrium: econ.EquilibriumResult{
				FailingMetrics: []string{econ.MetricLiquidityHealth, econ.MetricNetworkUtility},
			},
		},
	}
}

func TestSQLiteStoreSaveAndLatest(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := record("a", "XAU", t0, 0.8)
	newer := record("b", "XAU", t0.Add(time.Minute), 0.9)
	other := record("c", "XAG", t0.Add(time.Hour), 0.5)
	for _, r := range []*models.SnapshotRecord{older, newer, other} {
		require.NoError(t, s.Save(ctx, r))
	}

	got, err := s.Latest(ctx, "XAU")
	require.NoError(t, err)
	if diff := cmp.Diff(newer, got); diff != "" {
		t.Fatalf("latest mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Latest(ctx, "BTC")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestSQLiteStoreHistory(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, record(string(rune('a'+i)), "XAU", t0.Add(time.Duration(i)*time.Hour), 0.8)))
	}

	got, err := s.History(ctx, "XAU", t0.Add(time.Hour), t0.Add(3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "d", got[0].ID, "newest first")
	assert.Equal(t, "b", got[2].ID)

	got, err = s.History(ctx, "XAU", t0, t0.Add(10*time.Hour), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLiteStoreSaveIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	r := record("same", "XAU", time.Now().UTC().Truncate(time.Millisecond), 0.7)

	require.NoError(t, s.Save(ctx, r))
	require.NoError(t, s.Save(ctx, r))

	got, err := s.History(ctx, "XAU", r.EvaluatedAt.Add(-time.Second), r.EvaluatedAt.Add(time.Second), 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.True(t, got[0].Equilibrium.FailingMetrics != nil)
}

type captureWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaSnapshotPublisherKeysByMarket(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaSnapshotPublisher(pkgkafka.NewProducerWithWriter(w, "snappy"), "caesar.snapshots")

	rec := record("id-1", "XAU", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 0.9)
	require.NoError(t, p.Publish(context.Background(), rec))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "caesar.snapshots", w.msgs[0].Topic)
	assert.Equal(t, []byte("XAU"), w.msgs[0].Key)

	var decoded models.SnapshotRecord
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "id-1", decoded.ID)
	assert.Equal(t, 0.9, decoded.Metrics.PriceStabilityIndex)
	assert.True(t, decoded.CircuitBreakers.Emergency)
}
