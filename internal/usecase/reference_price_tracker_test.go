package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CaesarEcon/internal/domain/models"
	applogger "CaesarEcon/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeFeed struct {
	quotes map[string]float64

	mu         sync.Mutex
	sessions   [][]*models.PriceTick // ticks per Read call; a stream error follows each
	reads      int
	reconnects atomic.Int32
	closed     atomic.Bool
}

func (f *fakeFeed) Symbols() []string { return []string{"XAU", "XAG"} }

func (f *fakeFeed) FetchLatest(_ context.Context, symbol string) (*models.PriceTick, error) {
	p, ok := f.quotes[symbol]
	if !ok {
		return nil, errors.New("no quote")
	}
	return &models.PriceTick{Symbol: symbol, Price: p, Timestamp: time.Unix(0, 0)}, nil
}

func (f *fakeFeed) Connect(context.Context) error   { return nil }
func (f *fakeFeed) Subscribe(context.Context) error { return nil }
func (f *fakeFeed) IsConnected() bool               { return true }

func (f *fakeFeed) Reconnect(ctx context.Context) error {
	f.reconnects.Add(1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}

func (f *fakeFeed) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeFeed) Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error) {
	f.mu.Lock()
	var batch []*models.PriceTick
	if f.reads < len(f.sessions) {
		batch = f.sessions[f.reads]
	}
	f.reads++
	last := f.reads > len(f.sessions)
	f.mu.Unlock()

	ticks := make(chan *models.PriceTick, len(batch))
	errs := make(chan error, 1)
	for _, t := range batch {
		ticks <- t
	}
	go func() {
		defer close(errs)
		defer close(ticks)
		if last {
			<-ctx.Done()
			return
		}
		// let the consumer drain the batch first
		time.Sleep(10 * time.Millisecond)
		errs <- errors.New("stream reset")
	}()
	return ticks, errs
}

func TestTrackerBootstrapsStreamsAndReconnects(t *testing.T) {
	defer goleak.VerifyNone(t)

	t0 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		quotes: map[string]float64{"XAU": 2000},
		sessions: [][]*models.PriceTick{
			{{Symbol: "XAU", Price: 2010, Timestamp: t0}},
			{
				{Symbol: "XAU", Price: 2020, Timestamp: t0.Add(time.Second)},
				{Symbol: "XAU", Price: 1990, Timestamp: t0}, // stale
				{Symbol: "XAG", Price: 25, Timestamp: t0},
			},
		},
	}
	m := newRecMetrics()
	tr := NewReferencePriceTracker(feed, m, applogger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	require.Eventually(t, func() bool {
		p, ok := tr.Latest("XAG")
		return ok && p.Price == 25
	}, 2*time.Second, 5*time.Millisecond)

	p, ok := tr.Latest("XAU")
	require.True(t, ok)
	assert.Equal(t, 2020.0, p.Price)
	require.Eventually(t, func() bool { return feed.reconnects.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, m.errorCount("goldfeed_bootstrap")) // XAG has no quote

	cancel()
	require.NoError(t, <-done)
	assert.True(t, feed.closed.Load())

	_, ok = tr.Latest("XPT")
	assert.False(t, ok)

	// XAU saw 2000, 2010, 2020
	vol, ok := tr.Volatility("XAU")
	require.True(t, ok)
	assert.Greater(t, vol, 0.0)
	_, ok = tr.Volatility("XAG")
	assert.False(t, ok)
}
