package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/nodekeeper/internal/server/config"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "NodeKeeper Server")
	assert.Contains(t, out.String(), "Version:    dev")
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodekeeper.yaml")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "init", "--output", path})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(path)
	require.NoError(t, err)

	cfg, err := config.Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
}

func TestOpenStorage_SQLite(t *testing.T) {
	store, err := openStorage(t.Context(), config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "nk.db"),
	})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(t.Context()))
}
