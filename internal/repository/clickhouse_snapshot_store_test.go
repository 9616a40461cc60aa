package repository

import (
	"strings"
	"testing"
	"time"

	"CaesarEcon/internal/domain/econ"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClickHouseSchema(t *testing.T) {
	stmts := ClickHouseSchema("caesar_snapshots")
	require.Len(t, stmts, 1)

	ddl := stmts[0]
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS caesar_snapshots")
	assert.Contains(t, ddl, "ReplacingMergeTree")
	assert.Contains(t, ddl, "ORDER BY (market, id)")
	for _, col := range strings.Split(snapshotColumnList, ",") {
		assert.Contains(t, ddl, strings.TrimSpace(col)+" ", "column %q", strings.TrimSpace(col))
	}
}

func TestClickHouseRowRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	want := record("snap-1", "XAU", at, 0.8)

	cols, err := columnsFromRecord(want)
	require.NoError(t, err)
	assert.Equal(t, "liquidity_health,network_utility", cols.FailingMetrics)

	row := clickhouseRow{snapshotColumns: cols, EvaluatedAt: at}
	got, err := row.record()
	require.NoError(t, err)

	assert.Equal(t, time.UTC, got.EvaluatedAt.Location())
	assert.True(t, at.Equal(got.EvaluatedAt))
	got.EvaluatedAt = want.EvaluatedAt
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestClickHouseRowNoFailingMetrics(t *testing.T) {
	rec := record("snap-2", "XAG", time.Unix(0, 0).UTC(), 0.9)
	rec.Equilibrium = econ.EquilibriumResult{IsEquilibrium: true, FailingMetrics: []string{}}

	cols, err := columnsFromRecord(rec)
	require.NoError(t, err)
	assert.Empty(t, cols.FailingMetrics)

	got, err := clickhouseRow{snapshotColumns: cols, EvaluatedAt: rec.EvaluatedAt}.record()
	require.NoError(t, err)
	assert.True(t, got.Equilibrium.IsEquilibrium)
	assert.Equal(t, []string{}, got.Equilibrium.FailingMetrics)
}
