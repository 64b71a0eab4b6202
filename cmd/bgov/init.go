package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/calehh/phishgov/config"
	phcrypto "github.com/calehh/phishgov/crypto"
	"github.com/calehh/phishgov/types"
	cmtos "github.com/cometbft/cometbft/libs/os"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// devnet supply for the owner when no allocation is given
const defaultOwnerBalance = "1000000000000000000000"

type printInfo struct {
	Moniker    string          `json:"moniker" yaml:"moniker"`
	ChainID    string          `json:"chain_id" yaml:"chain_id"`
	NodeID     string          `json:"node_id" yaml:"node_id"`
	OwnerKey   string          `json:"owner_key,omitempty" yaml:"owner_key"`
	AppMessage json.RawMessage `json:"app_message" yaml:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize validator, p2p, genesis and application configuration files",
	Long: `Initialize the node's configuration files. The genesis names the governance owner and
the initial token allocations; without --owner a key is generated under config/owner_key.`,
	Args: cobra.ExactArgs(0),
	RunE: initRun,
}

func init() {
	initCmd.Flags().BoolP(types.FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(types.FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(types.FlagHome, "", "node home directory")
	initCmd.Flags().String(types.FlagOwner, "", "governance owner address")
	initCmd.Flags().StringSlice(types.FlagAlloc, nil, "token allocation address=amount, repeatable")
	initCmd.Flags().Uint64("min-voting-period", types.DefaultMinVotingPeriod, "minimum voting period in seconds")
}

func parseAllocations(allocs []string) ([]types.TokenAllocation, error) {
	res := make([]types.TokenAllocation, 0, len(allocs))
	for _, a := range allocs {
		addr, amount, ok := strings.Cut(a, "=")
		if !ok || !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid allocation %q, want address=amount", a)
		}
		res = append(res, types.TokenAllocation{Address: common.HexToAddress(addr), Balance: amount})
	}
	return res, nil
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(types.FlagHome)
	chainID, _ := cmd.Flags().GetString(types.FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(types.FlagOverwrite)
	owner, _ := cmd.Flags().GetString(types.FlagOwner)
	allocs, _ := cmd.Flags().GetStringSlice(types.FlagAlloc)
	minVotingPeriod, _ := cmd.Flags().GetUint64("min-voting-period")

	if chainID == "" {
		chainID = fmt.Sprintf("bgov-chain-%v", rand.Uint64())
	}
	appConfig := config.NewConfig(home)
	genFile := appConfig.GenesisFile()
	if !overwrite && cmtos.FileExists(genFile) {
		return fmt.Errorf("genesis file %s already exists, use --%s to replace it", genFile, types.FlagOverwrite)
	}

	nodeID, pk, err := config.InitializeNodeValidatorFiles(appConfig, nil)
	if err != nil {
		return err
	}
	vals := []types.GenesisValidator{{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower}}

	appState := types.AppState{}
	var ownerKeyFile string
	if owner != "" {
		if !common.IsHexAddress(owner) {
			return fmt.Errorf("invalid owner address %q", owner)
		}
		appState.Owner = common.HexToAddress(owner)
	} else {
		ownerKeyFile = filepath.Join(appConfig.RootDir, "config", "owner_key")
		key, err := phcrypto.LoadOrGenKeyFile(ownerKeyFile)
		if err != nil {
			return err
		}
		appState.Owner = key.Address()
	}
	if appState.Allocations, err = parseAllocations(allocs); err != nil {
		return err
	}
	if len(appState.Allocations) == 0 {
		appState.Allocations = []types.TokenAllocation{{Address: appState.Owner, Balance: defaultOwnerBalance}}
	}
	params := types.DefaultGovParams()
	params.MinVotingPeriod = minVotingPeriod
	appState.Params = &params
	rawState, err := json.Marshal(appState)
	if err != nil {
		return err
	}

	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators:      vals,
		AppState:        rawState,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file: %w", err)
	}
	if err = config.WriteConfigFile(filepath.Join(appConfig.RootDir, "config", "config.toml"), appConfig); err != nil {
		return err
	}
	return displayInfo(printInfo{
		Moniker:    appConfig.Moniker,
		ChainID:    chainID,
		NodeID:     nodeID,
		OwnerKey:   ownerKeyFile,
		AppMessage: appGenesis.AppState,
	})
}
