//go:build wireinject
// +build wireinject

package di

import (
	"CaesarEcon/pkg/config"
	"CaesarEcon/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideSnapshotStore,
		ProvideSnapshotPublisher,
		ProvideCache,

		// Domain and use cases
		ProvideEngine,
		ProvideStabilityEvaluator,
		ProvideObservationPipeline,
		ProvideReferencePriceTracker,

		// Transport
		ProvideKafkaConsumer,
		ProvideKafkaHandlers,
		ProvideRateLimiter,
		ProvideHTTPHandlers,
		ProvideHTTPServer,

		// Application
		ProvideClosers,
		ProvideApp,
	)
	return &server.App{}, nil
}
