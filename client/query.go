package client

import (
	"context"

	"github.com/calehh/phishgov/types"
	"github.com/ethereum/go-ethereum/common"
)

func (c *Client) Proposal(ctx context.Context, id uint64) (*types.Proposal, error) {
	var p types.Proposal
	if err := c.Query(ctx, types.QueryProposal, &types.QueryRequest{Proposal: id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Proposals lists proposals by filter: all, active or ready.
func (c *Client) Proposals(ctx context.Context, filter string) ([]*types.Proposal, error) {
	var ps []*types.Proposal
	if err := c.Query(ctx, types.QueryProposals, &types.QueryRequest{Filter: filter}, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *Client) ProposalsByProposer(ctx context.Context, proposer common.Address) ([]*types.Proposal, error) {
	var ps []*types.Proposal
	if err := c.Query(ctx, types.QueryProposals, &types.QueryRequest{Proposer: &proposer}, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *Client) VotingResults(ctx context.Context, id uint64) (*types.VotingResults, error) {
	var r types.VotingResults
	if err := c.Query(ctx, types.QueryVotingResults, &types.QueryRequest{Proposal: id}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) HasVoted(ctx context.Context, id uint64, voter common.Address) (bool, error) {
	var voted bool
	err := c.Query(ctx, types.QueryHasVoted, &types.QueryRequest{Proposal: id, Voter: voter}, &voted)
	return voted, err
}

func (c *Client) WillPass(ctx context.Context, id uint64) (bool, error) {
	var pass bool
	err := c.Query(ctx, types.QueryWillPass, &types.QueryRequest{Proposal: id}, &pass)
	return pass, err
}

func (c *Client) ProposalCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.Query(ctx, types.QueryProposalCount, nil, &n)
	return n, err
}

func (c *Client) IsBlacklisted(ctx context.Context, et types.EntryType, value string) (bool, error) {
	var listed bool
	err := c.Query(ctx, types.QueryIsBlacklisted, &types.QueryRequest{Type: et, Value: value}, &listed)
	return listed, err
}

func (c *Client) BatchCheck(ctx context.Context, et types.EntryType, values []string) ([]bool, error) {
	var res []bool
	if err := c.Query(ctx, types.QueryBatchCheck, &types.QueryRequest{Type: et, Values: values}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Entries(ctx context.Context, et types.EntryType) ([]types.BlacklistEntry, error) {
	var res []types.BlacklistEntry
	if err := c.Query(ctx, types.QueryEntries, &types.QueryRequest{Type: et}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Accounts lists every account the chain knows, with nonce and ledger balance.
func (c *Client) Accounts(ctx context.Context) ([]types.Account, error) {
	var res []types.Account
	if err := c.Query(ctx, types.QueryAccountList, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Governance(ctx context.Context) (*types.GovernanceInfo, error) {
	var g types.GovernanceInfo
	if err := c.Query(ctx, types.QueryGovernance, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
