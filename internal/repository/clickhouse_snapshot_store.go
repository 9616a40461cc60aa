package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"CaesarEcon/internal/domain/models"
	domrepo "CaesarEcon/internal/domain/repository"
	pkgch "CaesarEcon/pkg/clickhouse"
	applogger "CaesarEcon/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// ClickHouseSchema creates the snapshot table. Records are keyed by
// (market, id) so ReplacingMergeTree collapses a snapshot saved again on
// retry, even when its evaluated_at moved; reads use FINAL.
func ClickHouseSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id String,
			market LowCardinality(String),
			evaluated_at DateTime64(3, 'UTC'),
			psi Float64,
			lhi Float64,
			nus Float64,
			convergence Float64,
			market_pressure Float64,
			required_reserve Float64,
			halt Bool,
			emergency Bool,
			rebase Bool,
			equilibrium Bool,
			failing_metrics String,
			observables String
		) ENGINE = ReplacingMergeTree
		PARTITION BY toYYYYMM(evaluated_at)
		ORDER BY (market, id)`, table),
	}
}

type clickhouseRow struct {
	snapshotColumns
	EvaluatedAt time.Time `db:"evaluated_at"`
}

// ClickHouseSnapshotStore implements SnapshotStore on ClickHouse.
type ClickHouseSnapshotStore struct {
	client *pkgch.Client
	db     *sqlx.DB
	table  string
	l      *applogger.Logger
}

// NewClickHouseSnapshotStore creates the store; call Init before use.
func NewClickHouseSnapshotStore(client *pkgch.Client, table string, l *applogger.Logger) *ClickHouseSnapshotStore {
	return &ClickHouseSnapshotStore{client: client, db: client.DB(), table: table, l: l}
}

var _ domrepo.SnapshotStore = (*ClickHouseSnapshotStore)(nil)

func (s *ClickHouseSnapshotStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, ClickHouseSchema(s.table))
}

func (s *ClickHouseSnapshotStore) Save(ctx context.Context, rec *models.SnapshotRecord) error {
	cols, err := columnsFromRecord(rec)
	if err != nil {
		return err
	}
	row := clickhouseRow{snapshotColumns: cols, EvaluatedAt: rec.EvaluatedAt.UTC()}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, s.table, snapshotColumnList, snapshotNamedValues)
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		s.l.Error("clickhouse insert snapshot",
			applogger.String("table", s.table),
			applogger.String("market", rec.Market),
			applogger.Error(err),
		)
		return fmt.Errorf("clickhouse save snapshot: %w", err)
	}
	return nil
}

func (s *ClickHouseSnapshotStore) Latest(ctx context.Context, market string) (*models.SnapshotRecord, error) {
	var row clickhouseRow
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE market = ? ORDER BY evaluated_at DESC LIMIT 1`, snapshotColumnList, s.table)
	if err := s.db.GetContext(ctx, &row, q, market); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domrepo.ErrNotFound
		}
		return nil, fmt.Errorf("clickhouse latest snapshot: %w", err)
	}
	return row.record()
}

func (s *ClickHouseSnapshotStore) History(ctx context.Context, market string, from, to time.Time, limit int) ([]*models.SnapshotRecord, error) {
	start := time.Now()
	var rows []clickhouseRow
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL
		WHERE market = ? AND evaluated_at >= ? AND evaluated_at <= ?
		ORDER BY evaluated_at DESC LIMIT ?`, snapshotColumnList, s.table)
	if err := s.db.SelectContext(ctx, &rows, q, market, from.UTC(), to.UTC(), limit); err != nil {
		return nil, fmt.Errorf("clickhouse snapshot history: %w", err)
	}

	out := make([]*models.SnapshotRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	s.l.Debug("clickhouse snapshot history",
		applogger.String("market", market),
		applogger.Int("rows", len(out)),
		applogger.Duration("took_ms", time.Since(start)),
	)
	return out, nil
}

func (s *ClickHouseSnapshotStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *ClickHouseSnapshotStore) Close() error {
	return s.client.Close()
}

func (r clickhouseRow) record() (*models.SnapshotRecord, error) {
	rec, err := r.snapshotColumns.record()
	if err != nil {
		return nil, err
	}
	rec.EvaluatedAt = r.EvaluatedAt.UTC()
	return rec, nil
}
