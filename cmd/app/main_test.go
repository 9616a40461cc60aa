package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"CaesarEcon/internal/domain/econ"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestEvalCommandPrintsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
current_price: 130
target_price: 100
liquidity_ratio: 0.05
validator_participation: 1
holder_participation: 1
`), 0o600))

	out, err := runCLI(t, "eval", path)
	require.NoError(t, err)

	var snap econ.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.True(t, snap.CircuitBreakers.Halt)
	assert.True(t, snap.CircuitBreakers.Rebase)
	assert.False(t, snap.Equilibrium.IsEquilibrium)
}

func TestEvalCommandAcceptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"current_price": 100, "target_price": 100, "liquidity_ratio": 0.9}`), 0o600))

	_, err := runCLI(t, "eval", path)
	require.NoError(t, err)
}

func TestEvalCommandRejectsInvalidObservables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("current_price: 1\n"), 0o600))

	_, err := runCLI(t, "eval", path)
	assert.ErrorIs(t, err, econ.ErrInvalidInput)
}
