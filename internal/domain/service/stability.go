package service

import (
	"context"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
)

// StabilityEvaluator turns market readings into stored snapshots and serves
// the last-known-good snapshot per market.
type StabilityEvaluator interface {
	Evaluate(ctx context.Context, market string, obs econ.MarketObservables) (*models.SnapshotRecord, error)
	Latest(ctx context.Context, market string) (*models.SnapshotRecord, error)
	History(ctx context.Context, market string, from, to time.Time, limit int) ([]*models.SnapshotRecord, error)
}

// ReferencePrices exposes the latest tracked reference price per symbol.
type ReferencePrices interface {
	Latest(symbol string) (models.PriceTick, bool)
	Volatility(symbol string) (float64, bool)
}
