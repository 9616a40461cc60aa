package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	domrepo "CaesarEcon/internal/domain/repository"
	applogger "CaesarEcon/pkg/logger"

	"github.com/google/uuid"
)

// Proc is the downstream the pipeline feeds.
type Proc interface {
	Process(ctx context.Context, obs *models.Observation) error
}

// ErrInvalidObservation is returned for observations rejected before
// evaluation.
var ErrInvalidObservation = errors.New("invalid observation")

// ObservationPipeline sits between the observations consumer and the
// evaluator. It validates, throttles per market, and buffers observations
// whose evaluation failed downstream for retry with backoff.
type ObservationPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	l       *applogger.Logger

	maxRPS     int
	backoffMin time.Duration
	backoffMax time.Duration
	bufCh      chan *models.Observation
	now        func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time // per-market last accepted time

	runMu   sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// PipelineOption configures ObservationPipeline.
type PipelineOption func(*ObservationPipeline)

// WithMaxRPS caps accepted observations per market per second; 0 disables
// throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *ObservationPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets how many failed observations are kept for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *ObservationPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.Observation, n)
		}
	}
}

// WithRetryBackoff sets the retry backoff range.
func WithRetryBackoff(min, max time.Duration) PipelineOption {
	return func(p *ObservationPipeline) {
		if min > 0 {
			p.backoffMin = min
		}
		if max >= p.backoffMin {
			p.backoffMax = max
		}
	}
}

// NewObservationPipeline creates a pipeline.
func NewObservationPipeline(proc Proc, metrics domrepo.Metrics, l *applogger.Logger, opts ...PipelineOption) *ObservationPipeline {
	p := &ObservationPipeline{
		proc:       proc,
		metrics:    metrics,
		l:          l.With(applogger.String("component", "observation_pipeline")),
		maxRPS:     20,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		bufCh:      make(chan *models.Observation, 1000),
		now:        time.Now,
		lastSeen:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the retry loop. Calling it twice is a no-op.
func (p *ObservationPipeline) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})

	p.wg.Add(1)
	go p.retryLoop(ctx, p.stopCh)
}

// Stop ends the retry loop and waits for it. Buffered observations stay in
// the buffer.
func (p *ObservationPipeline) Stop() {
	p.runMu.Lock()
	if !p.started {
		p.runMu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.runMu.Unlock()
	p.wg.Wait()
}

// Buffered reports how many observations wait for retry.
func (p *ObservationPipeline) Buffered() int { return len(p.bufCh) }

// Process validates, throttles and forwards one observation. Throttled
// observations are dropped and return nil. On a downstream failure the
// observation is buffered and retried by the pipeline, and Process returns
// nil; the error is returned only when the buffer is full and the caller
// still owns the observation. Input the engine rejects is never retried.
//
// An observation without an ID or timestamp is stamped once here, so every
// retry evaluates to the same snapshot record.
func (p *ObservationPipeline) Process(ctx context.Context, obs *models.Observation) error {
	start := p.now()
	if err := validateObservation(obs); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.ObservedAt == 0 {
		obs.ObservedAt = start.UnixMilli()
	}
	if !p.allow(obs.Market, start) {
		p.metrics.RecordError("pipeline_throttle")
		p.l.Debug("observation throttled", applogger.String("market", obs.Market))
		return nil
	}

	if err := p.proc.Process(ctx, obs); err != nil {
		if errors.Is(err, econ.ErrInvalidInput) || errors.Is(err, econ.ErrNonFiniteResult) {
			p.metrics.RecordError("pipeline_rejected")
			return err
		}
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- obs:
			p.l.Debug("observation buffered for retry",
				applogger.String("market", obs.Market),
				applogger.String("id", obs.ID),
				applogger.Error(err))
			return nil
		default:
			p.metrics.RecordError("pipeline_buffer_full")
			p.l.Warn("retry buffer full", applogger.String("market", obs.Market), applogger.String("id", obs.ID))
			return fmt.Errorf("pipeline downstream: %w", err)
		}
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *ObservationPipeline) retryLoop(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()
	backoff := p.backoffMin
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case obs := <-p.bufCh:
			err := p.proc.Process(ctx, obs)
			if err == nil {
				backoff = p.backoffMin
				continue
			}
			p.metrics.RecordError("pipeline_flush")
			if errors.Is(err, econ.ErrInvalidInput) || errors.Is(err, econ.ErrNonFiniteResult) {
				continue
			}
			select {
			case p.bufCh <- obs:
			default:
				p.metrics.RecordError("pipeline_buffer_drop")
			}

			t := time.NewTimer(backoff)
			select {
			case <-stop:
				t.Stop()
				return
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			if backoff *= 2; backoff > p.backoffMax {
				backoff = p.backoffMax
			}
		}
	}
}

func validateObservation(obs *models.Observation) error {
	switch {
	case obs == nil:
		return fmt.Errorf("%w: nil", ErrInvalidObservation)
	case obs.Market == "":
		return fmt.Errorf("%w: market empty", ErrInvalidObservation)
	case obs.ObservedAt < 0:
		return fmt.Errorf("%w: observed_at negative", ErrInvalidObservation)
	}
	return nil
}

func (p *ObservationPipeline) allow(market string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[market]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[market] = now
	return true
}
