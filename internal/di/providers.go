package di

import (
	"context"
	"fmt"
	"time"

	"CaesarEcon/internal/domain/econ"
	drepo "CaesarEcon/internal/domain/repository"
	dservice "CaesarEcon/internal/domain/service"
	"CaesarEcon/internal/handler/api"
	mid "CaesarEcon/internal/middleware"
	internalrepo "CaesarEcon/internal/repository"
	"CaesarEcon/internal/service/goldfeed"
	"CaesarEcon/internal/service/ratelimit"
	"CaesarEcon/internal/usecase"
	"CaesarEcon/pkg/cache"
	pkgch "CaesarEcon/pkg/clickhouse"
	"CaesarEcon/pkg/config"
	xhttp "CaesarEcon/pkg/http"
	"CaesarEcon/pkg/http/middleware"
	pkgkafka "CaesarEcon/pkg/kafka"
	applogger "CaesarEcon/pkg/logger"
	"CaesarEcon/pkg/metrics"
	"CaesarEcon/pkg/server"
	pkgsqlite "CaesarEcon/pkg/sqlite"

	"github.com/prometheus/client_golang/prometheus"
)

const initTimeout = 10 * time.Second

// ProvideKafkaProducer creates the shared producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. Error logs are aggregated and
// shipped to Kafka when the collector is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.Threshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideEngine builds the formula engine from the economics section.
func ProvideEngine(cfg *config.Config) (*econ.Engine, error) {
	return econ.New(cfg.Economics)
}

// ProvideMetrics creates the Prometheus recorder on the default registry.
func ProvideMetrics() drepo.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideSnapshotStore opens the configured backend and prepares its schema.
func ProvideSnapshotStore(cfg *config.Config, l *applogger.Logger) (drepo.SnapshotStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	var store drepo.SnapshotStore
	switch cfg.Backend.Type {
	case "clickhouse":
		client, err := pkgch.NewClient(ctx,
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store = internalrepo.NewClickHouseSnapshotStore(client, cfg.ClickHouse.Database+".snapshots", l)
	default:
		client, err := pkgsqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		store = internalrepo.NewSQLiteSnapshotStore(client)
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s schema: %w", cfg.Backend.Type, err)
	}
	l.Info("snapshot store ready", applogger.String("backend", cfg.Backend.Type))
	return store, nil
}

// ProvideSnapshotPublisher streams snapshots when backend.publish is set.
func ProvideSnapshotPublisher(cfg *config.Config, producer *pkgkafka.Producer) drepo.SnapshotPublisher {
	if !cfg.Backend.Publish || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topics.Snapshots)
}

// ProvideCache returns a memory cache, fronting Redis when it is enabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	mem := []cache.MemoryOption{
		cache.WithMemoryMaxSize(cfg.Redis.MemorySize),
		cache.WithMemoryDefaultTTL(cfg.Redis.TTL),
	}
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(mem...), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return cache.NewLayeredCache(rc, time.Minute, mem...), nil
}

// ProvideStabilityEvaluator wires the evaluator to its store, cache and
// optional publisher.
func ProvideStabilityEvaluator(
	cfg *config.Config,
	engine *econ.Engine,
	store drepo.SnapshotStore,
	pub drepo.SnapshotPublisher,
	c cache.Service,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.StabilityEvaluator {
	return usecase.NewStabilityEvaluator(engine, store, pub, c, m, l, cfg.Backend.Type, cfg.Redis.TTL)
}

// ProvideObservationPipeline builds the pipeline in front of the evaluator.
func ProvideObservationPipeline(cfg *config.Config, ev *usecase.StabilityEvaluator, m drepo.Metrics, l *applogger.Logger) *mid.ObservationPipeline {
	return mid.NewObservationPipeline(ev, m, l,
		mid.WithMaxRPS(cfg.Pipeline.MaxRPS),
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
		mid.WithRetryBackoff(cfg.Pipeline.BackoffMin, cfg.Pipeline.BackoffMax),
	)
}

// ProvideKafkaConsumer creates the observations consumer, or nil when Kafka
// is off.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithHook(pkgkafka.NewHookChain(pkgkafka.TraceIDHook()))
	return consumer, nil
}

// ProvideKafkaHandlers lists the topic handlers registered on the consumer.
func ProvideKafkaHandlers(cfg *config.Config, pipe *mid.ObservationPipeline, m drepo.Metrics, l *applogger.Logger) []pkgkafka.MessageHandler {
	if !cfg.Kafka.Enabled {
		return nil
	}
	return []pkgkafka.MessageHandler{
		usecase.NewObservationsHandler(cfg.Kafka.Topics.Observations, pipe, m, l),
	}
}

// ProvideReferencePriceTracker follows the gold feed, or returns nil when it
// is off.
func ProvideReferencePriceTracker(cfg *config.Config, m drepo.Metrics, l *applogger.Logger) *usecase.ReferencePriceTracker {
	if !cfg.GoldFeed.Enabled {
		return nil
	}
	feed := goldfeed.New(goldfeed.Config{
		WebSocketURL:   cfg.GoldFeed.WebSocketURL,
		RESTURL:        cfg.GoldFeed.RESTURL,
		APIKey:         cfg.GoldFeed.APIKey,
		Symbols:        cfg.GoldFeed.Symbols,
		ReconnectDelay: cfg.GoldFeed.ReconnectDelay,
		PingInterval:   cfg.GoldFeed.PingInterval,
		RESTTimeout:    cfg.GoldFeed.RESTTimeout,
	}, l)
	return usecase.NewReferencePriceTracker(feed, m, l)
}

// ProvideRateLimiter returns the per-client limiter, or nil when disabled.
func ProvideRateLimiter(cfg *config.Config) middleware.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHTTPHandlers builds the API route groups.
func ProvideHTTPHandlers(
	engine *econ.Engine,
	ev *usecase.StabilityEvaluator,
	tracker *usecase.ReferencePriceTracker,
	store drepo.SnapshotStore,
	lim middleware.Limiter,
	l *applogger.Logger,
) []xhttp.Handler {
	var prices dservice.ReferencePrices
	if tracker != nil {
		prices = tracker
	}
	return []xhttp.Handler{
		api.NewFormulasHandler(engine, lim, l),
		api.NewSnapshotsHandler(ev, prices, engine, store, lim, l),
	}
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, handlers []xhttp.Handler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideClosers orders resource release: cache, store, log collector, then
// the producer everything above may still write through.
func ProvideClosers(c cache.Service, store drepo.SnapshotStore, l *applogger.Logger, producer *pkgkafka.Producer) server.Closers {
	closers := server.Closers{
		c,
		store,
		server.CloserFunc(func() error {
			l.RemoveCollector()
			return nil
		}),
	}
	if producer != nil {
		closers = append(closers, producer)
	}
	return closers
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	pipe *mid.ObservationPipeline,
	tracker *usecase.ReferencePriceTracker,
	closers server.Closers,
) *server.App {
	return server.New(l, srv, consumer, handlers, pipe, tracker, closers, cfg.Server.ShutdownTimeout)
}
