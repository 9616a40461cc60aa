package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	drepo "CaesarEcon/internal/domain/repository"
	"CaesarEcon/pkg/cache"
	applogger "CaesarEcon/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator(t *testing.T, store *memStore, pub *memPublisher) (*StabilityEvaluator, *recMetrics, *cache.MemoryCache) {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	m := newRecMetrics()
	var p drepo.SnapshotPublisher
	if pub != nil {
		p = pub
	}
	ev := NewStabilityEvaluator(econ.NewDefault(), store, p, c, m, applogger.NewNop(), "sqlite", time.Minute)
	return ev, m, c
}

func TestEvaluatorStoresCachesAndPublishes(t *testing.T) {
	store, pub := &memStore{}, &memPublisher{}
	ev, m, c := newEvaluator(t, store, pub)
	ctx := context.Background()

	rec, err := ev.Evaluate(ctx, "XAU", healthyObservables())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "XAU", rec.Market)
	assert.Equal(t, 1, store.saved())
	assert.Len(t, pub.recs, 1)
	assert.Equal(t, 1, m.evaluations["XAU"])
	assert.Equal(t, 1, m.persisted["sqlite"])
	assert.Equal(t, 1, m.persisted["kafka"])

	var cached models.SnapshotRecord
	require.NoError(t, c.Get(ctx, cache.Key("snapshot", "latest", "XAU"), &cached))
	assert.Equal(t, rec.ID, cached.ID)
}

func TestEvaluatorKeepsLastKnownGoodOnEngineError(t *testing.T) {
	store := &memStore{}
	ev, m, _ := newEvaluator(t, store, nil)
	ctx := context.Background()

	good, err := ev.Evaluate(ctx, "XAU", healthyObservables())
	require.NoError(t, err)

	bad := healthyObservables()
	bad.TargetPrice = 0
	_, err = ev.Evaluate(ctx, "XAU", bad)
	require.ErrorIs(t, err, econ.ErrInvalidInput)
	assert.Equal(t, 1, m.errorCount("evaluate"))
	assert.Equal(t, 1, store.saved())

	latest, err := ev.Latest(ctx, "XAU")
	require.NoError(t, err)
	assert.Equal(t, good.ID, latest.ID)
}

func TestEvaluatorLatestFallsBackToStore(t *testing.T) {
	store := &memStore{}
	ev, _, c := newEvaluator(t, store, nil)
	ctx := context.Background()

	rec, err := ev.Evaluate(ctx, "XAU", healthyObservables())
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, cache.Key("snapshot", "latest", "XAU")))

	got, err := ev.Latest(ctx, "XAU")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 1, store.latests)

	// refilled
	_, err = ev.Latest(ctx, "XAU")
	require.NoError(t, err)
	assert.Equal(t, 1, store.latests)

	_, err = ev.Latest(ctx, "XAG")
	assert.ErrorIs(t, err, drepo.ErrNotFound)
}

func TestEvaluatorStoreFailure(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	ev, m, _ := newEvaluator(t, store, nil)

	rec, err := ev.Evaluate(context.Background(), "XAU", healthyObservables())
	require.Error(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, 1, m.errorCount("store"))
}

func TestEvaluatorHistory(t *testing.T) {
	store := &memStore{}
	ev, _, _ := newEvaluator(t, store, nil)
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ev.now = func() time.Time { return t0 }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ev.Evaluate(ctx, "XAU", healthyObservables())
		require.NoError(t, err)
		t0 = t0.Add(time.Minute)
	}

	got, err := ev.History(ctx, "XAU", t0.Add(-time.Hour), t0, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].EvaluatedAt.After(got[1].EvaluatedAt))
}

func TestEvaluatorProcessUsesObservationIdentity(t *testing.T) {
	store := &memStore{}
	ev, _, _ := newEvaluator(t, store, nil)

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	o := &models.Observation{ID: "obs-7", Market: "XAU", ObservedAt: at.UnixMilli(), Observables: healthyObservables()}
	require.NoError(t, ev.Process(context.Background(), o))

	recs := store.records()
	require.Len(t, recs, 1)
	assert.Equal(t, "obs-7", recs[0].ID)
	assert.True(t, at.Equal(recs[0].EvaluatedAt))
}

func TestEvaluatorRetriesOnlyThePublish(t *testing.T) {
	store, pub := &memStore{}, &memPublisher{fails: 2}
	ev, m, _ := newEvaluator(t, store, pub)
	ctx := context.Background()
	o := &models.Observation{ID: "obs-9", Market: "XAU", ObservedAt: 1700000000000, Observables: healthyObservables()}

	require.Error(t, ev.Process(ctx, o))
	require.Error(t, ev.Process(ctx, o))
	require.NoError(t, ev.Process(ctx, o))

	assert.Equal(t, 1, store.saved())
	assert.Equal(t, 1, m.evaluations["XAU"])
	assert.Equal(t, 3, pub.calls)
	require.Len(t, pub.published(), 1)
	assert.Equal(t, "obs-9", pub.published()[0].ID)

	// once published nothing is owed; a later delivery evaluates again
	require.NoError(t, ev.Process(ctx, o))
	assert.Equal(t, 2, store.saved())
}

func TestEvaluatorDoesNotHoldDirectEvaluations(t *testing.T) {
	pub := &memPublisher{fails: 1}
	ev, _, _ := newEvaluator(t, &memStore{}, pub)

	rec, err := ev.Evaluate(context.Background(), "XAU", healthyObservables())
	require.Error(t, err)
	require.NotNil(t, rec)
	assert.Nil(t, ev.takeUnpublished(rec.ID))
}
