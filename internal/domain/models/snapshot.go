package models

import (
	"time"

	"CaesarEcon/internal/domain/econ"
)

// Observation is one market reading as it arrives on the observations topic
// or through POST /evaluate.
type Observation struct {
	ID          string                 `json:"id,omitempty"` // becomes the snapshot record ID
	Market      string                 `json:"market" validate:"required,max=64"`
	ObservedAt  int64                  `json:"observed_at,omitempty"` // unix ms, 0 = now
	TraceID     string                 `json:"trace_id,omitempty"`
	Observables econ.MarketObservables `json:"observables"`
}

// SnapshotRecord is an evaluated snapshot stamped for storage and streaming.
// EvaluatedAt is the reading's observation time when it carries one.
type SnapshotRecord struct {
	ID          string                 `json:"id"`
	Market      string                 `json:"market"`
	EvaluatedAt time.Time              `json:"evaluated_at"`
	Observables econ.MarketObservables `json:"observables"`
	econ.Snapshot
}

// PriceTick is one reference price update from the gold feed.
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
