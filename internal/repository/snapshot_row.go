package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
)

// snapshotColumns are the columns both SQL backends share. Observables are
// kept as JSON so new optional inputs need no migration.
type snapshotColumns struct {
	ID              string  `db:"id"`
	Market          string  `db:"market"`
	PSI             float64 `db:"psi"`
	LHI             float64 `db:"lhi"`
	NUS             float64 `db:"nus"`
	Convergence     float64 `db:"convergence"`
	MarketPressure  float64 `db:"market_pressure"`
	RequiredReserve float64 `db:"required_reserve"`
	Halt            bool    `db:"halt"`
	Emergency       bool    `db:"emergency"`
	Rebase          bool    `db:"rebase"`
	Equilibrium     bool    `db:"equilibrium"`
	FailingMetrics  string  `db:"failing_metrics"`
	Observables     string  `db:"observables"`
}

const snapshotColumnList = `id, market, evaluated_at, psi, lhi, nus, convergence, market_pressure, required_reserve,
	halt, emergency, rebase, equilibrium, failing_metrics, observables`

const snapshotNamedValues = `:id, :market, :evaluated_at, :psi, :lhi, :nus, :convergence, :market_pressure, :required_reserve,
	:halt, :emergency, :rebase, :equilibrium, :failing_metrics, :observables`

func columnsFromRecord(rec *models.SnapshotRecord) (snapshotColumns, error) {
	obs, err := json.Marshal(rec.Observables)
	if err != nil {
		return snapshotColumns{}, fmt.Errorf("encode observables: %w", err)
	}
	s := rec.Snapshot
	return snapshotColumns{
		ID:              rec.ID,
		Market:          rec.Market,
		PSI:             s.Metrics.PriceStabilityIndex,
		LHI:             s.Metrics.LiquidityHealthIndex,
		NUS:             s.Metrics.NetworkUtilityScore,
		Convergence:     s.Metrics.ConvergenceRate,
		MarketPressure:  s.MarketPressure,
		RequiredReserve: s.RequiredReserve,
		Halt:            s.CircuitBreakers.Halt,
		Emergency:       s.CircuitBreakers.Emergency,
		Rebase:          s.CircuitBreakers.Rebase,
		Equilibrium:     s.Equilibrium.IsEquilibrium,
		FailingMetrics:  strings.Join(s.Equilibrium.FailingMetrics, ","),
		Observables:     string(obs),
	}, nil
}

func (c snapshotColumns) record() (*models.SnapshotRecord, error) {
	rec := &models.SnapshotRecord{
		ID:     c.ID,
		Market: c.Market,
		Snapshot: econ.Snapshot{
			Metrics: econ.StabilityMetrics{
				PriceStabilityIndex:  c.PSI,
				LiquidityHealthIndex: c.LHI,
				NetworkUtilityScore:  c.NUS,
				ConvergenceRate:      c.Convergence,
			},
			MarketPressure:  c.MarketPressure,
			RequiredReserve: c.RequiredReserve,
			CircuitBreakers: econ.CircuitBreakerFlags{Halt: c.Halt, Emergency: c.Emergency, Rebase: c.Rebase},
			Equilibrium: econ.EquilibriumResult{
				IsEquilibrium:  c.Equilibrium,
				FailingMetrics: []string{},
			},
		},
	}
	if c.FailingMetrics != "" {
		rec.Equilibrium.FailingMetrics = strings.Split(c.FailingMetrics, ",")
	}
	if c.Observables != "" {
		if err := json.Unmarshal([]byte(c.Observables), &rec.Observables); err != nil {
			return nil, fmt.Errorf("decode observables: %w", err)
		}
	}
	return rec, nil
}
