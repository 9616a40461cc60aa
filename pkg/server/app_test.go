package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	mid "CaesarEcon/internal/middleware"
	xhttp "CaesarEcon/pkg/http"
	applogger "CaesarEcon/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopProc struct{}

func (nopProc) Process(context.Context, *models.Observation) error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordEvaluation(string, econ.Snapshot) {}
func (nopMetrics) RecordPersisted(string, string)         {}
func (nopMetrics) RecordError(string)                     {}
func (nopMetrics) RecordReferencePrice(string, float64)   {}
func (nopMetrics) RecordLatency(string, float64)          {}

type countingCloser struct{ n atomic.Int32 }

func (c *countingCloser) Close() error {
	c.n.Add(1)
	return nil
}

func TestAppRunStopsOnContextCancel(t *testing.T) {
	l := applogger.NewNop()
	srv := xhttp.NewServer(l, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetricsPath(""))
	pipe := mid.NewObservationPipeline(nopProc{}, nopMetrics{}, l)
	closer := &countingCloser{}

	app := New(l, srv, nil, nil, pipe, nil, Closers{closer, nil}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, int32(1), closer.n.Load())
}
