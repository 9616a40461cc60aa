package usecase

import (
	"context"
	"sync"

	"CaesarEcon/internal/domain/models"
	drepo "CaesarEcon/internal/domain/repository"
	dservice "CaesarEcon/internal/domain/service"
	"CaesarEcon/internal/services/features"
	applogger "CaesarEcon/pkg/logger"
)

// PriceFeed is a reference price stream that can also be polled once.
type PriceFeed interface {
	drepo.PriceStream
	Symbols() []string
	FetchLatest(ctx context.Context, symbol string) (*models.PriceTick, error)
}

// volatilityWindow is how many recent prices feed realized volatility.
const volatilityWindow = 64

// ReferencePriceTracker keeps the latest reference price and a short price
// history per symbol.
type ReferencePriceTracker struct {
	feed    PriceFeed
	metrics drepo.Metrics
	l       *applogger.Logger

	mu      sync.RWMutex
	latest  map[string]models.PriceTick
	windows map[string]*features.Window
}

func NewReferencePriceTracker(feed PriceFeed, metrics drepo.Metrics, l *applogger.Logger) *ReferencePriceTracker {
	return &ReferencePriceTracker{
		feed:    feed,
		metrics: metrics,
		l:       l.With(applogger.String("component", "reference_price_tracker")),
		latest:  make(map[string]models.PriceTick),
		windows: make(map[string]*features.Window),
	}
}

var _ dservice.ReferencePrices = (*ReferencePriceTracker)(nil)

// Latest returns the most recent tick for symbol.
func (t *ReferencePriceTracker) Latest(symbol string) (models.PriceTick, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.latest[symbol]
	return p, ok
}

// Volatility is the realized volatility of recent reference prices for
// symbol. ok is false until enough prices have arrived.
func (t *ReferencePriceTracker) Volatility(symbol string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.windows[symbol]
	if !ok {
		return 0, false
	}
	return w.Volatility()
}

// Run bootstraps prices over REST, then follows the stream until ctx ends,
// reconnecting after every stream failure.
func (t *ReferencePriceTracker) Run(ctx context.Context) error {
	defer func() { _ = t.feed.Close() }()

	t.bootstrap(ctx)

	connected := t.connect(ctx)
	for ctx.Err() == nil {
		if !connected {
			if err := t.feed.Reconnect(ctx); err != nil {
				if ctx.Err() == nil {
					t.metrics.RecordError("goldfeed_reconnect")
					t.l.Warn("reconnect failed", applogger.Error(err))
				}
				continue
			}
			t.l.Info("reconnected")
		}
		ticks, errs := t.feed.Read(ctx)
		t.consume(ctx, ticks, errs)
		connected = false
	}
	return nil
}

func (t *ReferencePriceTracker) bootstrap(ctx context.Context) {
	for _, sym := range t.feed.Symbols() {
		tick, err := t.feed.FetchLatest(ctx, sym)
		if err != nil {
			t.metrics.RecordError("goldfeed_bootstrap")
			t.l.Warn("bootstrap quote", applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		t.update(tick)
	}
}

func (t *ReferencePriceTracker) connect(ctx context.Context) bool {
	if err := t.feed.Connect(ctx); err != nil {
		t.metrics.RecordError("goldfeed_connect")
		t.l.Warn("connect failed", applogger.Error(err))
		return false
	}
	if err := t.feed.Subscribe(ctx); err != nil {
		t.metrics.RecordError("goldfeed_subscribe")
		t.l.Warn("subscribe failed", applogger.Error(err))
		return false
	}
	return true
}

func (t *ReferencePriceTracker) consume(ctx context.Context, ticks <-chan *models.PriceTick, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			t.metrics.RecordError("goldfeed_stream")
			t.l.Warn("stream error", applogger.Error(err))
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			if tick != nil {
				t.update(tick)
			}
		}
	}
}

func (t *ReferencePriceTracker) update(tick *models.PriceTick) {
	t.mu.Lock()
	prev, ok := t.latest[tick.Symbol]
	stale := ok && tick.Timestamp.Before(prev.Timestamp)
	if !stale {
		t.latest[tick.Symbol] = *tick
		w, ok := t.windows[tick.Symbol]
		if !ok {
			w = features.NewWindow(volatilityWindow)
			t.windows[tick.Symbol] = w
		}
		w.Push(tick.Price)
	}
	t.mu.Unlock()
	if !stale {
		t.metrics.RecordReferencePrice(tick.Symbol, tick.Price)
	}
}
