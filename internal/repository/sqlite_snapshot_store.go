package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"CaesarEcon/internal/domain/models"
	domrepo "CaesarEcon/internal/domain/repository"
	pkgsqlite "CaesarEcon/pkg/sqlite"

	"github.com/jmoiron/sqlx"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		market TEXT NOT NULL,
		evaluated_at INTEGER NOT NULL,
		psi REAL NOT NULL,
		lhi REAL NOT NULL,
		nus REAL NOT NULL,
		convergence REAL NOT NULL,
		market_pressure REAL NOT NULL,
		required_reserve REAL NOT NULL,
		halt INTEGER NOT NULL,
		emergency INTEGER NOT NULL,
		rebase INTEGER NOT NULL,
		equilibrium INTEGER NOT NULL,
		failing_metrics TEXT NOT NULL,
		observables TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_market_time ON snapshots(market, evaluated_at)`,
}

// sqliteRow stores evaluated_at as unix milliseconds.
type sqliteRow struct {
	snapshotColumns
	EvaluatedAt int64 `db:"evaluated_at"`
}

// SQLiteSnapshotStore implements SnapshotStore on an embedded SQLite file.
type SQLiteSnapshotStore struct {
	client *pkgsqlite.Client
	db     *sqlx.DB
}

// NewSQLiteSnapshotStore creates the store; call Init before use.
func NewSQLiteSnapshotStore(client *pkgsqlite.Client) *SQLiteSnapshotStore {
	return &SQLiteSnapshotStore{client: client, db: client.DB()}
}

var _ domrepo.SnapshotStore = (*SQLiteSnapshotStore)(nil)

func (s *SQLiteSnapshotStore) Init(ctx context.Context) error {
	return s.client.Migrate(ctx, sqliteSchema...)
}

func (s *SQLiteSnapshotStore) Save(ctx context.Context, rec *models.SnapshotRecord) error {
	cols, err := columnsFromRecord(rec)
	if err != nil {
		return err
	}
	row := sqliteRow{snapshotColumns: cols, EvaluatedAt: rec.EvaluatedAt.UnixMilli()}
	q := `INSERT OR REPLACE INTO snapshots (` + snapshotColumnList + `) VALUES (` + snapshotNamedValues + `)`
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("sqlite save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) Latest(ctx context.Context, market string) (*models.SnapshotRecord, error) {
	var row sqliteRow
	q := `SELECT ` + snapshotColumnList + ` FROM snapshots WHERE market = ? ORDER BY evaluated_at DESC, rowid DESC LIMIT 1`
	if err := s.db.GetContext(ctx, &row, q, market); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domrepo.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite latest snapshot: %w", err)
	}
	return row.record()
}

func (s *SQLiteSnapshotStore) History(ctx context.Context, market string, from, to time.Time, limit int) ([]*models.SnapshotRecord, error) {
	var rows []sqliteRow
	q := `SELECT ` + snapshotColumnList + ` FROM snapshots
		WHERE market = ? AND evaluated_at >= ? AND evaluated_at <= ?
		ORDER BY evaluated_at DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &rows, q, market, from.UnixMilli(), to.UnixMilli(), limit); err != nil {
		return nil, fmt.Errorf("sqlite snapshot history: %w", err)
	}

	out := make([]*models.SnapshotRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLiteSnapshotStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *SQLiteSnapshotStore) Close() error {
	return s.client.Close()
}

func (r sqliteRow) record() (*models.SnapshotRecord, error) {
	rec, err := r.snapshotColumns.record()
	if err != nil {
		return nil, err
	}
	rec.EvaluatedAt = time.UnixMilli(r.EvaluatedAt).UTC()
	return rec, nil
}
