package indexer

import (
	"fmt"
	"time"

	"github.com/calehh/phishgov/types"
)

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key;auto_increment:false" json:"id"`
	Height uint64 `json:"height"`
}

type Proposal struct {
	Id           uint64    `gorm:"primary_key;auto_increment:false" json:"id"`
	Type         uint8     `json:"type"`
	Url          string    `json:"url"`
	Address      string    `json:"address"`
	Description  string    `json:"description"`
	Proposer     string    `gorm:"index" json:"proposer"`
	ProposedAt   time.Time `json:"proposedAt"`
	VotingEndsAt time.Time `json:"votingEndsAt"`
	YesVotes     uint64    `json:"yesVotes"`
	NoVotes      uint64    `json:"noVotes"`
	Status       uint8     `gorm:"index" json:"status"`
	Executor     string    `json:"executor"`
	NewHeight    uint64    `json:"newHeight"`
	SettleHeight uint64    `json:"settleHeight"`
}

func (p Proposal) StatusName() string {
	return types.ProposalStatus(p.Status).String()
}

type Vote struct {
	ProposalId uint64    `gorm:"primary_key;auto_increment:false" json:"proposalId"`
	Voter      string    `gorm:"primary_key" json:"voter"`
	Support    bool      `json:"support"`
	CastAt     time.Time `json:"castAt"`
	Height     uint64    `json:"height"`
}

// BlacklistEntry mirrors one registry key. Removed entries stay with Active=false.
type BlacklistEntry struct {
	EntryKey  string     `gorm:"primary_key" json:"-"`
	EntryType uint8      `gorm:"index" json:"type"`
	Value     string     `json:"value"`
	Active    bool       `gorm:"index" json:"active"`
	Proposer  string     `json:"proposer"`
	Remover   string     `json:"remover,omitempty"`
	AddedAt   time.Time  `json:"addedAt"`
	RemovedAt *time.Time `json:"removedAt,omitempty"`
	Height    uint64     `json:"height"`
}

func entryKey(et types.EntryType, value string) string {
	return fmt.Sprintf("%d/%s", et, value)
}

// Governance holds the latest owner and thresholds seen on chain.
type Governance struct {
	Id                         uint64 `gorm:"primary_key;auto_increment:false" json:"-"`
	Owner                      string `json:"owner"`
	MinVotingPeriod            uint64 `json:"minVotingPeriod"`
	MinVotesForApproval        uint64 `json:"minVotesForApproval"`
	ApprovalMajorityPercentage uint64 `json:"approvalMajorityPercentage"`
	MinTokensToPropose         string `json:"minTokensToPropose"`
	Height                     uint64 `json:"height"`
}
