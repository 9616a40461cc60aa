package middleware

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	applogger "CaesarEcon/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *countingMetrics) RecordEvaluation(string, econ.Snapshot) {}
func (m *countingMetrics) RecordPersisted(string, string)         {}
func (m *countingMetrics) RecordReferencePrice(string, float64)   {}
func (m *countingMetrics) RecordLatency(string, float64)          {}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[kind]++
}

func (m *countingMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type procFunc func(ctx context.Context, obs *models.Observation) error

func (f procFunc) Process(ctx context.Context, obs *models.Observation) error { return f(ctx, obs) }

func obs(market string) *models.Observation {
	return &models.Observation{Market: market, Observables: econ.MarketObservables{CurrentPrice: 1, TargetPrice: 1}}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	m := &countingMetrics{}
	p := NewObservationPipeline(procFunc(func(context.Context, *models.Observation) error {
		t.Fatal("invalid observation forwarded")
		return nil
	}), m, applogger.NewNop())

	for _, o := range []*models.Observation{nil, {Market: ""}, {Market: "XAU", ObservedAt: -1}} {
		err := p.Process(context.Background(), o)
		assert.ErrorIs(t, err, ErrInvalidObservation)
	}
	assert.Equal(t, 3, m.count("pipeline_validate"))
}

func TestPipelineThrottlesPerMarket(t *testing.T) {
	var calls atomic.Int32
	m := &countingMetrics{}
	p := NewObservationPipeline(procFunc(func(context.Context, *models.Observation) error {
		calls.Add(1)
		return nil
	}), m, applogger.NewNop(), WithMaxRPS(10))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, obs("XAU")))
	require.NoError(t, p.Process(ctx, obs("XAU"))) // same instant, dropped
	require.NoError(t, p.Process(ctx, obs("XAG")))

	now = now.Add(100 * time.Millisecond)
	require.NoError(t, p.Process(ctx, obs("XAU")))

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, m.count("pipeline_throttle"))
}

func TestPipelineDoesNotBufferRejectedInput(t *testing.T) {
	p := NewObservationPipeline(procFunc(func(context.Context, *models.Observation) error {
		return &econ.InputError{Op: "evaluate", Arg: "target_price", Reason: "must be > 0"}
	}), &countingMetrics{}, applogger.NewNop(), WithMaxRPS(0))

	err := p.Process(context.Background(), obs("XAU"))
	assert.ErrorIs(t, err, econ.ErrInvalidInput)
	assert.Zero(t, p.Buffered())
}

func TestPipelineRetriesBufferedObservations(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	done := make(chan struct{})
	var mu sync.Mutex
	seen := map[string]int64{}
	p := NewObservationPipeline(procFunc(func(_ context.Context, o *models.Observation) error {
		mu.Lock()
		seen[o.ID] = o.ObservedAt
		mu.Unlock()
		switch calls.Add(1) {
		case 1, 2:
			return errors.New("store down")
		case 3:
			close(done)
		}
		return nil
	}), &countingMetrics{}, applogger.NewNop(),
		WithMaxRPS(0), WithBufferSize(4), WithRetryBackoff(time.Millisecond, 5*time.Millisecond))

	// the pipeline owns the failure once it is buffered
	require.NoError(t, p.Process(context.Background(), obs("XAU")))
	assert.Equal(t, 1, p.Buffered())

	p.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("buffered observation was not retried")
	}
	p.Stop()
	p.Stop()

	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, p.Buffered())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1, "every attempt must carry the same observation id")
	for id, at := range seen {
		assert.NotEmpty(t, id)
		assert.Positive(t, at)
	}
}

func TestPipelineKeepsCallerIdentity(t *testing.T) {
	var got *models.Observation
	p := NewObservationPipeline(procFunc(func(_ context.Context, o *models.Observation) error {
		got = o
		return nil
	}), &countingMetrics{}, applogger.NewNop(), WithMaxRPS(0))

	o := obs("XAU")
	o.ID, o.ObservedAt = "obs-1", 1700000000000
	require.NoError(t, p.Process(context.Background(), o))
	assert.Equal(t, "obs-1", got.ID)
	assert.Equal(t, int64(1700000000000), got.ObservedAt)
}

func TestPipelineDropsWhenBufferFull(t *testing.T) {
	m := &countingMetrics{}
	p := NewObservationPipeline(procFunc(func(context.Context, *models.Observation) error {
		return errors.New("down")
	}), m, applogger.NewNop(), WithMaxRPS(0), WithBufferSize(1))

	ctx := context.Background()
	require.NoError(t, p.Process(ctx, obs("XAU")))
	require.Error(t, p.Process(ctx, obs("XAU")), "an unbuffered failure goes back to the caller")
	assert.Equal(t, 1, p.Buffered())
	assert.Equal(t, 1, m.count("pipeline_buffer_full"))
}

func TestPipelineStopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := NewObservationPipeline(procFunc(func(context.Context, *models.Observation) error { return nil }),
		&countingMetrics{}, applogger.NewNop())
	p.Stop()
}
