// Package server runs the service components under one lifecycle.
package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "CaesarEcon/internal/middleware"
	"CaesarEcon/internal/usecase"
	xhttp "CaesarEcon/pkg/http"
	pkgkafka "CaesarEcon/pkg/kafka"
	applogger "CaesarEcon/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Closers are released in order after every component has stopped.
type Closers []io.Closer

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

// App encapsulates the entire application lifecycle.
type App struct {
	l               *applogger.Logger
	httpServer      *xhttp.Server
	consumer        *pkgkafka.Consumer        // nil when Kafka ingestion is off
	handlers        []pkgkafka.MessageHandler // registered on consumer
	pipe            *mid.ObservationPipeline
	tracker         *usecase.ReferencePriceTracker // nil when the gold feed is off
	closers         Closers
	shutdownTimeout time.Duration
}

// New creates an App from its wired components.
func New(
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	pipe *mid.ObservationPipeline,
	tracker *usecase.ReferencePriceTracker,
	closers Closers,
	shutdownTimeout time.Duration,
) *App {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &App{
		l:               l,
		httpServer:      httpServer,
		consumer:        consumer,
		handlers:        handlers,
		pipe:            pipe,
		tracker:         tracker,
		closers:         closers,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts every component and blocks until ctx ends, a termination
// signal arrives, or a component fails. It then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	a.pipe.Start(gctx)

	if a.consumer != nil {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		if err := a.consumer.Start(); err != nil {
			a.pipe.Stop()
			a.close()
			return err
		}
	}

	if a.tracker != nil {
		g.Go(func() error { return a.tracker.Run(gctx) })
	}

	g.Go(func() error {
		err := a.httpServer.Start()
		if err == nil && gctx.Err() == nil {
			return errors.New("http server stopped unexpectedly")
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		a.l.Info("shutting down")
		return a.shutdown()
	})

	err := g.Wait()
	a.close()
	a.l.Info("shutdown complete")
	return err
}

// shutdown stops intake first, then drains.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.pipe.Stop()
	if n := a.pipe.Buffered(); n > 0 {
		a.l.Warn("dropping buffered observations", applogger.Int("count", n))
	}
	return errors.Join(errs...)
}

func (a *App) close() {
	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.l.Warn("close", applogger.Error(err))
		}
	}
}
