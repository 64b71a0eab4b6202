package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndLoadConfig(t *testing.T) {
	home := t.TempDir()
	cfg := NewConfig(home)
	cfg.App.PollInterval = 5 * time.Second
	cfg.App.ServiceListen = "127.0.0.1:9090"
	cfg.App.Oracle = OracleERC20
	cfg.App.EthRPC = "http://127.0.0.1:8545"
	cfg.App.TokenAddress = "0x3333333333333333333333333333333333333333"
	cfg.App.SnapshotBlock = 1234
	require.NoError(t, WriteConfigFile(filepath.Join(home, "config", "config.toml"), cfg))

	loaded, err := LoadConfig(home)
	require.NoError(t, err)
	assert.Equal(t, home, loaded.RootDir)
	assert.Equal(t, home, loaded.App.Home)
	assert.Equal(t, 5*time.Second, loaded.App.PollInterval)
	assert.Equal(t, "127.0.0.1:9090", loaded.App.ServiceListen)
	assert.Equal(t, OracleERC20, loaded.App.Oracle)
	assert.Equal(t, uint64(1234), loaded.App.SnapshotBlock)
	assert.Equal(t, filepath.Join(home, "indexer.db"), loaded.App.IndexerDBPath())
	assert.Equal(t, cfg.Consensus.TimeoutCommit, loaded.Consensus.TimeoutCommit)
}

func TestAppConfigValidate(t *testing.T) {
	c := DefaultAppConfig("/tmp/x")
	require.NoError(t, c.ValidateBasic())

	c.Oracle = OracleERC20
	assert.Error(t, c.ValidateBasic())
	c.EthRPC = "http://localhost:8545"
	c.TokenAddress = "nope"
	assert.Error(t, c.ValidateBasic())
	c.TokenAddress = "0x3333333333333333333333333333333333333333"
	assert.ErrorContains(t, c.ValidateBasic(), "snapshot_block")
	c.SnapshotBlock = 19_000_000
	require.NoError(t, c.ValidateBasic())

	c = DefaultAppConfig("/tmp/x")
	c.Oracle = "magic"
	assert.Error(t, c.ValidateBasic())

	c = DefaultAppConfig("/tmp/x")
	c.KeeperEnabled = true
	assert.Error(t, c.ValidateBasic())
}
