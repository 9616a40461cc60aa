package repository

import (
	"context"
	"errors"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
)

// ErrNotFound is returned when no snapshot exists for a market.
var ErrNotFound = errors.New("snapshot not found")

// PriceStream delivers reference price ticks.
type PriceStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SnapshotStore persists evaluated snapshots.
type SnapshotStore interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, rec *models.SnapshotRecord) error
	Latest(ctx context.Context, market string) (*models.SnapshotRecord, error)
	History(ctx context.Context, market string, from, to time.Time, limit int) ([]*models.SnapshotRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// SnapshotPublisher streams evaluated snapshots to downstream consumers.
type SnapshotPublisher interface {
	Publish(ctx context.Context, rec *models.SnapshotRecord) error
	Close() error
}

// Metrics records evaluation telemetry.
type Metrics interface {
	RecordEvaluation(market string, s econ.Snapshot)
	RecordPersisted(backend, market string)
	RecordError(kind string)
	RecordReferencePrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
