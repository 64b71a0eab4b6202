package types

import "github.com/ethereum/go-ethereum/common"

// ABCI query paths served by the application.
const (
	QueryProposal       = "/proposal/"
	QueryProposals      = "/proposals/"
	QueryVotingResults  = "/votingResults/"
	QueryHasVoted       = "/hasVoted/"
	QueryVote           = "/vote/"
	QueryWillPass       = "/willPass/"
	QueryProposalCount  = "/proposalCount/"
	QueryIsBlacklisted  = "/blacklist/check/"
	QueryBatchCheck     = "/blacklist/batch/"
	QueryEntries        = "/blacklist/entries/"
	QueryGovernance     = "/governance/"
	QueryAccount        = "/accounts/"
	QueryAccountList    = "/accountList/"
	ProposalFilterAll   = "all"
	ProposalFilterReady = "ready"
	ProposalFilterLive  = "active"
)

// QueryRequest is the JSON body of an ABCI query; each path reads the fields it needs.
type QueryRequest struct {
	Proposal uint64          `json:"proposal,omitempty"`
	Voter    common.Address  `json:"voter,omitempty"`
	Proposer *common.Address `json:"proposer,omitempty"`
	Filter   string          `json:"filter,omitempty"`
	Type     EntryType       `json:"type"`
	Value    string          `json:"value,omitempty"`
	Values   []string        `json:"values,omitempty"`
	Address  common.Address  `json:"address,omitempty"`
}

type GovernanceInfo struct {
	Authority      Authority `json:"authority"`
	Params         GovParams `json:"params"`
	Count          uint64    `json:"proposalCount"`
	UrlEntries     uint64    `json:"urlEntries"`
	AddressEntries uint64    `json:"addressEntries"`
}
