package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/ethereum/go-ethereum/common"
)

const (
	OracleLedger = "ledger"
	OracleERC20  = "erc20"
)

type AppConfig struct {
	Home string `mapstructure:"-"`

	// balance source for proposal gating: "ledger" or "erc20"
	Oracle        string `mapstructure:"oracle"`
	EthRPC        string `mapstructure:"eth_rpc"`
	TokenAddress  string `mapstructure:"token_address"`
	SnapshotBlock uint64 `mapstructure:"snapshot_block"`

	IndexerEnabled bool          `mapstructure:"indexer_enabled"`
	IndexerDB      string        `mapstructure:"indexer_db"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	StartHeight    int64         `mapstructure:"start_height"`
	ServiceListen  string        `mapstructure:"service_listen"`

	KeeperEnabled  bool          `mapstructure:"keeper_enabled"`
	KeeperKeyFile  string        `mapstructure:"keeper_key_file"`
	KeeperInterval time.Duration `mapstructure:"keeper_interval"`
}

func DefaultAppConfig(home string) *AppConfig {
	return &AppConfig{
		Home:           home,
		Oracle:         OracleLedger,
		IndexerEnabled: true,
		IndexerDB:      "indexer.db",
		PollInterval:   2 * time.Second,
		StartHeight:    1,
		ServiceListen:  ":8080",
		KeeperInterval: 30 * time.Second,
	}
}

func (c *AppConfig) ValidateBasic() error {
	switch c.Oracle {
	case OracleLedger:
	case OracleERC20:
		if c.EthRPC == "" {
			return fmt.Errorf("app.eth_rpc is required for the erc20 oracle")
		}
		if !common.IsHexAddress(c.TokenAddress) {
			return fmt.Errorf("app.token_address %q is not an address", c.TokenAddress)
		}
		// balances must be read at the same block on every validator
		if c.SnapshotBlock == 0 {
			return fmt.Errorf("app.snapshot_block is required for the erc20 oracle")
		}
	default:
		return fmt.Errorf("unknown app.oracle %q", c.Oracle)
	}
	if c.IndexerEnabled && c.PollInterval <= 0 {
		return fmt.Errorf("app.poll_interval must be positive")
	}
	if c.KeeperEnabled && c.KeeperKeyFile == "" {
		return fmt.Errorf("app.keeper_key_file is required when the keeper is enabled")
	}
	return nil
}

// IndexerDBPath resolves the mirror location relative to the home directory.
func (c *AppConfig) IndexerDBPath() string {
	if filepath.IsAbs(c.IndexerDB) {
		return c.IndexerDB
	}
	return filepath.Join(c.Home, c.IndexerDB)
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *AppConfig `mapstructure:"app"`
}

func DefaultHome() string {
	return os.ExpandEnv("$HOME/.bgov")
}

func NewConfig(home string) *Config {
	if len(home) == 0 {
		home = DefaultHome()
	}
	_ = os.MkdirAll(home+"/config", 0755)
	config := &Config{
		DefaultCometConfig(),
		DefaultAppConfig(home),
	}
	config.SetRoot(home)
	return config
}

func (c *Config) ValidateBasic() error {
	if err := c.Config.ValidateBasic(); err != nil {
		return err
	}
	return c.App.ValidateBasic()
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}
