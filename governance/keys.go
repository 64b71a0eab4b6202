package governance

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/calehh/phishgov/store"
	"github.com/calehh/phishgov/types"
	"github.com/ethereum/go-ethereum/common"
)

var (
	KeyConfig         = "g"
	KeyProposalIndex  = "pi"
	KeyProposalPrefix = "p/"
	KeyProposalBody   = "p/%020d"
	KeyVotePrefix     = "v/%020d/"
	KeyVoteBody       = "v/%020d/%s"
)

var ErrNotInitialized = fmt.Errorf("%w: governance not initialized", types.ErrState)

// Config is the governance authority together with the tunable thresholds.
type Config struct {
	Authority types.Authority `json:"authority"`
	Params    types.GovParams `json:"params"`
}

func LoadConfig(kv store.KVStore) (*Config, error) {
	val, err := kv.Get([]byte(KeyConfig))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, ErrNotInitialized
	}
	cfg := new(Config)
	if err = json.Unmarshal(val, cfg); err != nil {
		return nil, err
	}
	if cfg.Params.MinTokensToPropose == nil {
		cfg.Params.MinTokensToPropose = new(big.Int)
	}
	return cfg, nil
}

func SaveConfig(kv store.KVStore, cfg *Config) error {
	val, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return kv.Set([]byte(KeyConfig), val)
}

// InitGenesis installs the owner and the initial thresholds. Nil params select the defaults.
func InitGenesis(kv store.KVStore, owner common.Address, params *types.GovParams) error {
	if owner == (common.Address{}) {
		return fmt.Errorf("%w: owner must be set", types.ErrValidation)
	}
	p := types.DefaultGovParams()
	if params != nil {
		p = *params
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return SaveConfig(kv, &Config{
		Authority: types.Authority{Owner: owner, Engine: types.EngineAddress},
		Params:    p,
	})
}

func proposalKey(id uint64) []byte {
	return []byte(fmt.Sprintf(KeyProposalBody, id))
}

func voteKey(id uint64, voter common.Address) []byte {
	return []byte(fmt.Sprintf(KeyVoteBody, id, types.AddressKey(voter)))
}

func getProposalMax(kv store.KVStore) (uint64, error) {
	val, err := kv.Get([]byte(KeyProposalIndex))
	if err != nil {
		return 0, err
	}
	return new(big.Int).SetBytes(val).Uint64(), nil
}

func setProposalMax(kv store.KVStore, id uint64) error {
	return kv.Set([]byte(KeyProposalIndex), new(big.Int).SetUint64(id).Bytes())
}

func getProposal(kv store.KVStore, id uint64) (*types.Proposal, error) {
	val, err := kv.Get(proposalKey(id))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, fmt.Errorf("%w: %d", types.ErrProposalNoexists, id)
	}
	proposal := new(types.Proposal)
	if err = json.Unmarshal(val, proposal); err != nil {
		return nil, err
	}
	return proposal, nil
}

func setProposal(kv store.KVStore, proposal *types.Proposal) error {
	val, err := json.Marshal(proposal)
	if err != nil {
		return err
	}
	return kv.Set(proposalKey(proposal.Id), val)
}

func getVote(kv store.KVStore, id uint64, voter common.Address) (*types.VoteRecord, error) {
	val, err := kv.Get(voteKey(id, voter))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	vote := new(types.VoteRecord)
	if err = json.Unmarshal(val, vote); err != nil {
		return nil, err
	}
	return vote, nil
}

func setVote(kv store.KVStore, vote *types.VoteRecord) error {
	val, err := json.Marshal(vote)
	if err != nil {
		return err
	}
	return kv.Set(voteKey(vote.ProposalId, vote.Voter), val)
}

func iterateProposals(kv store.KVStore, fn func(p *types.Proposal) bool) error {
	return kv.Iterate([]byte(KeyProposalPrefix), func(key, value []byte) (bool, error) {
		p := new(types.Proposal)
		if err := json.Unmarshal(value, p); err != nil {
			return true, err
		}
		return fn(p), nil
	})
}
