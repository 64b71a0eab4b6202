package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
)

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	if len(ag.AppState) != 0 {
		st, err := ParseAppState(ag.AppState)
		if err != nil {
			return err
		}
		return st.Validate()
	}
	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

type TokenAllocation struct {
	Address common.Address `json:"address"`
	Balance string         `json:"balance"`
}

// AppState is the application part of the genesis file: the governance owner, the initial
// thresholds and the governance-token ledger.
type AppState struct {
	Owner       common.Address    `json:"owner"`
	Params      *GovParams        `json:"params,omitempty"`
	Allocations []TokenAllocation `json:"allocations"`
}

func ParseAppState(raw []byte) (*AppState, error) {
	st := new(AppState)
	if len(raw) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("%w: app state: %v", ErrValidation, err)
	}
	return st, nil
}

func (st *AppState) Validate() error {
	if st.Owner == (common.Address{}) {
		return fmt.Errorf("%w: genesis owner must be set", ErrValidation)
	}
	if st.Params != nil {
		if err := st.Params.Validate(); err != nil {
			return err
		}
	}
	seen := make(map[common.Address]bool, len(st.Allocations))
	for _, a := range st.Allocations {
		if seen[a.Address] {
			return fmt.Errorf("%w: duplicate allocation for %s", ErrValidation, a.Address.Hex())
		}
		seen[a.Address] = true
		if _, err := a.Amount(); err != nil {
			return err
		}
	}
	return nil
}

func (a TokenAllocation) Amount() (*big.Int, error) {
	v, ok := new(big.Int).SetString(a.Balance, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid balance %q for %s", ErrValidation, a.Balance, a.Address.Hex())
	}
	return v, nil
}

const (
	ModuleName   = "blacklistgov"
	DefaultPower = 1000
)

const (
	FlagOverwrite = "overwrite"
	FlagChainID   = "chain-id"
	FlagHome      = "home"
	FlagOwner     = "owner"
	FlagAlloc     = "alloc"
)
