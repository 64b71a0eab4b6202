package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type ProposalType uint8

const (
	ProposalTypeAddURL        ProposalType = 0
	ProposalTypeAddAddress    ProposalType = 1
	ProposalTypeRemoveURL     ProposalType = 2
	ProposalTypeRemoveAddress ProposalType = 3
)

func ParseProposalType(v uint64) (ProposalType, error) {
	if v > uint64(ProposalTypeRemoveAddress) {
		return 0, fmt.Errorf("%w: unknown proposal type %d", ErrValidation, v)
	}
	return ProposalType(v), nil
}

func (t ProposalType) IsAdd() bool {
	return t == ProposalTypeAddURL || t == ProposalTypeAddAddress
}

// EntryType reports which blacklist namespace the proposal targets.
func (t ProposalType) EntryType() (EntryType, error) {
	switch t {
	case ProposalTypeAddURL, ProposalTypeRemoveURL:
		return EntryTypeURL, nil
	case ProposalTypeAddAddress, ProposalTypeRemoveAddress:
		return EntryTypeAddress, nil
	default:
		return 0, fmt.Errorf("%w: unknown proposal type %d", ErrValidation, t)
	}
}

func (t ProposalType) String() string {
	switch t {
	case ProposalTypeAddURL:
		return "add_url"
	case ProposalTypeAddAddress:
		return "add_address"
	case ProposalTypeRemoveURL:
		return "remove_url"
	case ProposalTypeRemoveAddress:
		return "remove_address"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

type ProposalStatus uint8

const (
	ProposalStatusActive   ProposalStatus = 0
	ProposalStatusApproved ProposalStatus = 1
	ProposalStatusRejected ProposalStatus = 2
	ProposalStatusExecuted ProposalStatus = 3
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusActive:
		return "active"
	case ProposalStatusApproved:
		return "approved"
	case ProposalStatusRejected:
		return "rejected"
	case ProposalStatusExecuted:
		return "executed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Rank orders statuses along the lifecycle; a later status never moves back to an earlier one.
func (s ProposalStatus) Rank() int {
	switch s {
	case ProposalStatusActive:
		return 0
	case ProposalStatusApproved, ProposalStatusRejected:
		return 1
	case ProposalStatusExecuted:
		return 2
	default:
		return -1
	}
}

func (s ProposalStatus) Terminal() bool {
	return s == ProposalStatusRejected || s == ProposalStatusExecuted
}

type EntryType uint8

const (
	EntryTypeURL     EntryType = 0
	EntryTypeAddress EntryType = 1
)

func ParseEntryType(s string) (EntryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "url", "0":
		return EntryTypeURL, nil
	case "address", "addr", "1":
		return EntryTypeAddress, nil
	default:
		return 0, fmt.Errorf("%w: unknown entry type %q", ErrValidation, s)
	}
}

func (t EntryType) String() string {
	switch t {
	case EntryTypeURL:
		return "url"
	case EntryTypeAddress:
		return "address"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

type Proposal struct {
	Id           uint64         `json:"id"`
	Type         ProposalType   `json:"type"`
	Url          string         `json:"url"`
	Address      common.Address `json:"address"`
	Description  string         `json:"description"`
	Proposer     common.Address `json:"proposer"`
	CreatedAt    int64          `json:"created_at"`
	VotingEndsAt int64          `json:"voting_ends_at"`
	YesVotes     uint64         `json:"yes_votes"`
	NoVotes      uint64         `json:"no_votes"`
	TotalVoters  uint64         `json:"total_voters"`
	Status       ProposalStatus `json:"status"`
}

// Target returns the blacklist key the proposal acts on.
func (p *Proposal) Target() (EntryType, string, error) {
	et, err := p.Type.EntryType()
	if err != nil {
		return 0, "", err
	}
	if et == EntryTypeURL {
		return et, p.Url, nil
	}
	return et, AddressKey(p.Address), nil
}

type VoteRecord struct {
	ProposalId uint64         `json:"proposal_id"`
	Voter      common.Address `json:"voter"`
	Support    bool           `json:"support"`
	CastAt     int64          `json:"cast_at"`
}

type VotingResults struct {
	YesVotes    uint64 `json:"yes_votes"`
	NoVotes     uint64 `json:"no_votes"`
	TotalVoters uint64 `json:"total_voters"`
	// YesPercentage is floor(yes*100/total), zero when nobody voted.
	YesPercentage uint64 `json:"yes_percentage"`
}

type BlacklistEntry struct {
	Type      EntryType      `json:"type"`
	Value     string         `json:"value"`
	CreatedAt int64          `json:"created_at"`
	Proposer  common.Address `json:"proposer"`
	Exists    bool           `json:"exists"`
}

// GovParams are the tunable governance thresholds.
type GovParams struct {
	MinVotingPeriod            uint64   `json:"min_voting_period"`
	MinVotesForApproval        uint64   `json:"min_votes_for_approval"`
	ApprovalMajorityPercentage uint64   `json:"approval_majority_percentage"`
	MinTokensToPropose         *big.Int `json:"min_tokens_to_propose"`
}

func DefaultGovParams() GovParams {
	return GovParams{
		MinVotingPeriod:            DefaultMinVotingPeriod,
		MinVotesForApproval:        1,
		ApprovalMajorityPercentage: 51,
		MinTokensToPropose:         new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
	}
}

func (p GovParams) Validate() error {
	if p.MinVotingPeriod == 0 {
		return fmt.Errorf("%w: min voting period must be positive", ErrValidation)
	}
	if p.ApprovalMajorityPercentage == 0 || p.ApprovalMajorityPercentage > 100 {
		return fmt.Errorf("%w: approval majority percentage must be in 1..100", ErrValidation)
	}
	if p.MinTokensToPropose == nil || p.MinTokensToPropose.Sign() < 0 {
		return fmt.Errorf("%w: min tokens to propose must be non-negative", ErrValidation)
	}
	return nil
}

// Authority is the single governance identity shared by the proposal engine and the
// blacklist registry. Engine is the only caller the registry accepts.
type Authority struct {
	Owner  common.Address `json:"owner"`
	Engine common.Address `json:"engine"`
}

// EngineAddress is the fixed identity under which the proposal engine calls the registry.
var EngineAddress = common.BytesToAddress([]byte("blacklist-governance"))

const DefaultMinVotingPeriod = 7200

func AddressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
