package governance

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/calehh/phishgov/blacklist"
	"github.com/calehh/phishgov/oracle"
	"github.com/calehh/phishgov/store"
	"github.com/calehh/phishgov/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

// Engine runs the proposal lifecycle against one store at one ledger time. Every mutating
// operation either returns its events or leaves the store untouched by that call.
type Engine struct {
	logger   cmtlog.Logger
	kv       store.KVStore
	oracle   oracle.BalanceOracle
	registry *blacklist.Registry
	cfg      *Config
	now      int64
}

func NewEngine(kv store.KVStore, balances oracle.BalanceOracle, now int64, logger cmtlog.Logger) (*Engine, error) {
	cfg, err := LoadConfig(kv)
	if err != nil {
		return nil, err
	}
	return &Engine{
		logger:   logger.With("module", "governance"),
		kv:       kv,
		oracle:   balances,
		registry: blacklist.NewRegistry(kv, &cfg.Authority),
		cfg:      cfg,
		now:      now,
	}, nil
}

func (e *Engine) Registry() *blacklist.Registry {
	return e.registry
}

func (e *Engine) Authority() types.Authority {
	return e.cfg.Authority
}

func (e *Engine) Params() types.GovParams {
	return e.cfg.Params
}

func (e *Engine) Now() int64 {
	return e.now
}

type CreateProposalArgs struct {
	Type        types.ProposalType
	Url         string
	Address     common.Address
	Description string
	Duration    uint64
}

func (e *Engine) validateTarget(args *CreateProposalArgs) (url string, err error) {
	et, err := args.Type.EntryType()
	if err != nil {
		return "", err
	}
	url = strings.TrimSpace(args.Url)
	hasAddr := args.Address != (common.Address{})
	switch et {
	case types.EntryTypeURL:
		if url == "" || hasAddr {
			return "", fmt.Errorf("%w: %s requires a url and no address", types.ErrValidation, args.Type)
		}
		return blacklist.NormalizeValue(types.EntryTypeURL, url)
	case types.EntryTypeAddress:
		if !hasAddr || url != "" {
			return "", fmt.Errorf("%w: %s requires an address and no url", types.ErrValidation, args.Type)
		}
		return "", nil
	default:
		return "", fmt.Errorf("%w: unknown entry type %d", types.ErrValidation, et)
	}
}

func (e *Engine) CreateProposal(ctx context.Context, caller common.Address, args CreateProposalArgs) (id uint64, events []abci.Event, err error) {
	e.logger.Debug("apply create proposal", "proposer", caller, "type", args.Type)
	description := strings.TrimSpace(args.Description)
	if description == "" {
		return 0, nil, fmt.Errorf("%w: description is empty", types.ErrValidation)
	}
	if args.Duration == 0 {
		return 0, nil, fmt.Errorf("%w: duration must be positive", types.ErrValidation)
	}
	url, err := e.validateTarget(&args)
	if err != nil {
		return 0, nil, err
	}

	params := e.cfg.Params
	if args.Type.IsAdd() {
		bal, err := e.oracle.BalanceOf(ctx, caller)
		if err != nil {
			return 0, nil, err
		}
		if bal.Cmp(params.MinTokensToPropose) < 0 {
			return 0, nil, fmt.Errorf("%w: have %s, need %s", types.ErrInsufficientTokens, bal, params.MinTokensToPropose)
		}
	} else if caller != e.cfg.Authority.Owner {
		return 0, nil, types.ErrNotOwner
	}

	duration := args.Duration
	if duration < params.MinVotingPeriod {
		duration = params.MinVotingPeriod
	}
	if duration > uint64(math.MaxInt64-e.now) {
		return 0, nil, fmt.Errorf("%w: duration %d out of range", types.ErrValidation, args.Duration)
	}

	last, err := getProposalMax(e.kv)
	if err != nil {
		return 0, nil, err
	}
	proposal := &types.Proposal{
		Id:           last + 1,
		Type:         args.Type,
		Url:          url,
		Address:      args.Address,
		Description:  description,
		Proposer:     caller,
		CreatedAt:    e.now,
		VotingEndsAt: e.now + int64(duration),
		Status:       types.ProposalStatusActive,
	}
	if err = setProposalMax(e.kv, proposal.Id); err != nil {
		return 0, nil, err
	}
	if err = setProposal(e.kv, proposal); err != nil {
		return 0, nil, err
	}
	events = append(events, types.EncodeEventProposalCreated(&types.EventProposalCreated{
		ProposalId:   proposal.Id,
		Type:         proposal.Type,
		Url:          proposal.Url,
		Address:      proposal.Address,
		Description:  proposal.Description,
		Proposer:     proposal.Proposer,
		CreatedAt:    proposal.CreatedAt,
		VotingEndsAt: proposal.VotingEndsAt,
	}))
	return proposal.Id, events, nil
}

func (e *Engine) Vote(ctx context.Context, caller common.Address, id uint64, support bool) (events []abci.Event, err error) {
	e.logger.Debug("apply vote", "voter", caller, "proposal", id, "support", support)
	proposal, err := getProposal(e.kv, id)
	if err != nil {
		return nil, err
	}
	if proposal.Status != types.ProposalStatusActive {
		return nil, fmt.Errorf("%w: %d is %s", types.ErrProposalNotActive, id, proposal.Status)
	}
	if e.now >= proposal.VotingEndsAt {
		return nil, types.ErrVotingEnded
	}
	prev, err := getVote(e.kv, id, caller)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		return nil, types.ErrAlreadyVoted
	}
	bal, err := e.oracle.BalanceOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	if bal.Sign() <= 0 {
		return nil, fmt.Errorf("%w: voter holds no governance tokens", types.ErrInsufficientTokens)
	}

	vote := &types.VoteRecord{
		ProposalId: id,
		Voter:      caller,
		Support:    support,
		CastAt:     e.now,
	}
	if support {
		proposal.YesVotes += 1
	} else {
		proposal.NoVotes += 1
	}
	proposal.TotalVoters += 1
	if err = setVote(e.kv, vote); err != nil {
		return nil, err
	}
	if err = setProposal(e.kv, proposal); err != nil {
		return nil, err
	}
	events = append(events, types.EncodeEventVoteCast(&types.EventVoteCast{
		ProposalId: id,
		Voter:      caller,
		Support:    support,
		YesCount:   proposal.YesVotes,
		NoCount:    proposal.NoVotes,
		CastAt:     e.now,
	}))
	return events, nil
}

// Passes is the approval predicate: enough yes votes, and a floor yes percentage at or above
// the majority threshold. Nobody voting never passes.
func Passes(yes, total uint64, params types.GovParams) bool {
	if total == 0 {
		return false
	}
	if yes < params.MinVotesForApproval {
		return false
	}
	return yes*100/total >= params.ApprovalMajorityPercentage
}

func (e *Engine) ResolveVoting(id uint64) (status types.ProposalStatus, events []abci.Event, err error) {
	e.logger.Debug("apply resolve voting", "proposal", id)
	proposal, err := getProposal(e.kv, id)
	if err != nil {
		return 0, nil, err
	}
	if proposal.Status != types.ProposalStatusActive {
		return 0, nil, fmt.Errorf("%w: %d is %s", types.ErrProposalNotActive, id, proposal.Status)
	}
	if e.now < proposal.VotingEndsAt {
		return 0, nil, fmt.Errorf("%w: ends at %d", types.ErrVotingNotEnded, proposal.VotingEndsAt)
	}
	next := types.ProposalStatusRejected
	if Passes(proposal.YesVotes, proposal.TotalVoters, e.cfg.Params) {
		next = types.ProposalStatusApproved
	}
	event, err := e.setStatus(proposal, next)
	if err != nil {
		return 0, nil, err
	}
	return next, []abci.Event{event}, nil
}

func (e *Engine) setStatus(proposal *types.Proposal, next types.ProposalStatus) (abci.Event, error) {
	old := proposal.Status
	proposal.Status = next
	if err := setProposal(e.kv, proposal); err != nil {
		return abci.Event{}, err
	}
	return types.EncodeEventProposalStatusUpdated(&types.EventProposalStatusUpdated{
		ProposalId: proposal.Id,
		OldStatus:  old,
		NewStatus:  next,
	}), nil
}

func (e *Engine) ExecuteApproved(caller common.Address, id uint64) (events []abci.Event, err error) {
	e.logger.Debug("apply execute", "executor", caller, "proposal", id)
	if caller != e.cfg.Authority.Owner {
		return nil, types.ErrNotOwner
	}
	proposal, err := getProposal(e.kv, id)
	if err != nil {
		return nil, err
	}
	if proposal.Status != types.ProposalStatusApproved {
		return nil, fmt.Errorf("%w: %d is %s", types.ErrProposalNotApproved, id, proposal.Status)
	}
	et, value, err := proposal.Target()
	if err != nil {
		return nil, err
	}

	var change *types.EventEntryChanged
	switch proposal.Type {
	case types.ProposalTypeAddURL, types.ProposalTypeAddAddress:
		change, err = e.registry.AddEntry(e.cfg.Authority.Engine, et, value, proposal.Proposer, e.now)
	case types.ProposalTypeRemoveURL, types.ProposalTypeRemoveAddress:
		change, err = e.registry.RemoveEntry(e.cfg.Authority.Engine, et, value, caller, e.now)
	default:
		err = fmt.Errorf("%w: unknown proposal type %d", types.ErrValidation, proposal.Type)
	}
	if err != nil {
		e.logger.Info("execute proposal failed", "proposal", id, "err", err)
		return nil, fmt.Errorf("%w: %w", types.ErrExecution, err)
	}

	events = append(events, types.EncodeEventEntryChanged(change))
	events = append(events, types.EncodeEventProposalExecuted(&types.EventProposalExecuted{
		ProposalId: proposal.Id,
		Type:       proposal.Type,
		Url:        proposal.Url,
		Address:    proposal.Address,
		Executor:   caller,
	}))
	event, err := e.setStatus(proposal, types.ProposalStatusExecuted)
	if err != nil {
		return nil, err
	}
	events = append(events, event)
	return events, nil
}

func (e *Engine) SetParams(caller common.Address, params types.GovParams) (events []abci.Event, err error) {
	if caller != e.cfg.Authority.Owner {
		return nil, types.ErrNotOwner
	}
	if err = params.Validate(); err != nil {
		return nil, err
	}
	e.cfg.Params = params
	if err = SaveConfig(e.kv, e.cfg); err != nil {
		return nil, err
	}
	events = append(events, types.EncodeEventParamsUpdated(&types.EventParamsUpdated{Params: params}))
	return events, nil
}

// TransferAuthority hands the owner role to newOwner. The registry shares the same authority,
// so the change is visible to it immediately.
func (e *Engine) TransferAuthority(caller, newOwner common.Address) (events []abci.Event, err error) {
	if caller != e.cfg.Authority.Owner {
		return nil, types.ErrNotOwner
	}
	if newOwner == (common.Address{}) {
		return nil, fmt.Errorf("%w: new owner is the zero address", types.ErrValidation)
	}
	old := e.cfg.Authority.Owner
	e.cfg.Authority.Owner = newOwner
	if err = SaveConfig(e.kv, e.cfg); err != nil {
		e.cfg.Authority.Owner = old
		return nil, err
	}
	events = append(events, types.EncodeEventAuthorityTransferred(&types.EventAuthorityTransferred{
		OldOwner: old,
		NewOwner: newOwner,
	}))
	return events, nil
}
