package governance

import (
	"fmt"

	"github.com/calehh/phishgov/types"
	"github.com/ethereum/go-ethereum/common"
)

func (e *Engine) GetProposal(id uint64) (*types.Proposal, error) {
	return getProposal(e.kv, id)
}

func (e *Engine) GetVotingResults(id uint64) (*types.VotingResults, error) {
	proposal, err := getProposal(e.kv, id)
	if err != nil {
		return nil, err
	}
	res := &types.VotingResults{
		YesVotes:    proposal.YesVotes,
		NoVotes:     proposal.NoVotes,
		TotalVoters: proposal.TotalVoters,
	}
	if proposal.TotalVoters > 0 {
		res.YesPercentage = proposal.YesVotes * 100 / proposal.TotalVoters
	}
	return res, nil
}

func (e *Engine) HasVoted(id uint64, voter common.Address) (bool, error) {
	if _, err := getProposal(e.kv, id); err != nil {
		return false, err
	}
	vote, err := getVote(e.kv, id, voter)
	if err != nil {
		return false, err
	}
	return vote != nil, nil
}

func (e *Engine) GetVote(id uint64, voter common.Address) (*types.VoteRecord, error) {
	vote, err := getVote(e.kv, id, voter)
	if err != nil {
		return nil, err
	}
	if vote == nil {
		return nil, fmt.Errorf("%w: vote of %s on %d", types.ErrNotFound, voter.Hex(), id)
	}
	return vote, nil
}

// WillPass evaluates the approval predicate on the current tallies without changing status.
func (e *Engine) WillPass(id uint64) (bool, error) {
	proposal, err := getProposal(e.kv, id)
	if err != nil {
		return false, err
	}
	return Passes(proposal.YesVotes, proposal.TotalVoters, e.cfg.Params), nil
}

func (e *Engine) GetAllProposals() ([]*types.Proposal, error) {
	return e.filterProposals(func(*types.Proposal) bool { return true })
}

func (e *Engine) GetActiveProposals() ([]*types.Proposal, error) {
	return e.filterProposals(func(p *types.Proposal) bool {
		return p.Status == types.ProposalStatusActive && e.now < p.VotingEndsAt
	})
}

func (e *Engine) GetProposalsReadyToResolve() ([]*types.Proposal, error) {
	return e.filterProposals(func(p *types.Proposal) bool {
		return p.Status == types.ProposalStatusActive && e.now >= p.VotingEndsAt
	})
}

func (e *Engine) GetProposalsByProposer(proposer common.Address) ([]*types.Proposal, error) {
	return e.filterProposals(func(p *types.Proposal) bool {
		return p.Proposer == proposer
	})
}

func (e *Engine) GetTotalProposalCount() (uint64, error) {
	return getProposalMax(e.kv)
}

func (e *Engine) filterProposals(keep func(p *types.Proposal) bool) ([]*types.Proposal, error) {
	res := make([]*types.Proposal, 0)
	err := iterateProposals(e.kv, func(p *types.Proposal) bool {
		if keep(p) {
			res = append(res, p)
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
