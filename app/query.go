package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/calehh/phishgov/governance"
	"github.com/calehh/phishgov/state"
	"github.com/calehh/phishgov/store"
	"github.com/calehh/phishgov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

type Querier interface {
	Query(ctx context.Context, eng *governance.Engine, kv store.KVStore, req *types.QueryRequest) (any, error)
}

// QuerierFunc adapts a function to Querier.
type QuerierFunc func(ctx context.Context, eng *governance.Engine, kv store.KVStore, req *types.QueryRequest) (any, error)

func (f QuerierFunc) Query(ctx context.Context, eng *governance.Engine, kv store.KVStore, req *types.QueryRequest) (any, error) {
	return f(ctx, eng, kv, req)
}

func (app *GovApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{Codespace: types.Codespace}
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res.Code = types.CodeNotFound
		res.Log = fmt.Sprintf("unknown query path %q", req.Path)
		return res, nil
	}
	qreq := new(types.QueryRequest)
	if len(req.Data) != 0 {
		if err := json.Unmarshal(req.Data, qreq); err != nil {
			res.Code = types.CodeValidation
			res.Log = err.Error()
			return res, nil
		}
	}
	kv, height, err := app.db.Committed()
	if err != nil {
		return nil, err
	}
	res.Height = int64(height)
	eng, err := app.engine(kv, int64(app.db.Header().Time))
	if err != nil {
		res.Code = types.ErrorCode(err)
		res.Log = err.Error()
		return res, nil
	}
	out, err := q.Query(ctx, eng, kv, qreq)
	if err != nil {
		res.Code = types.ErrorCode(err)
		res.Log = err.Error()
		return res, nil
	}
	res.Value, err = json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (app *GovApp) registerQuerier() {
	app.queriers[types.QueryProposal] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, req *types.QueryRequest) (any, error) {
		return eng.GetProposal(req.Proposal)
	})
	app.queriers[types.QueryProposals] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, req *types.QueryRequest) (any, error) {
		if req.Proposer != nil {
			return eng.GetProposalsByProposer(*req.Proposer)
		}
		switch req.Filter {
		case types.ProposalFilterLive:
			return eng.GetActiveProposals()
		case types.ProposalFilterReady:
			return eng.GetProposalsReadyToResolve()
		case types.ProposalFilterAll, "":
			return eng.GetAllProposals()
		default:
			return nil, fmt.Errorf("%w: unknown filter %q", types.ErrValidation, req.Filter)
		}
	})
	app.queriers[types.QueryVotingResults] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, req *types.QueryRequest) (any, error) {
		return eng.GetVotingResults(req.Proposal)
	})
	app.queriers[types.QueryHasVoted] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, req *types.QueryRequest) (any, error) {
		return eng.HasVoted(req.Proposal, req.Voter)
	})
	app.queriers[types.QueryVote] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, req *types.QueryRequest) (any, error) {
		return eng.GetVote(req.Proposal, req.Voter)
	})
	app.queriers[types.QueryWillPass] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, req *types.QueryRequest) (any, error) {
		return eng.WillPass(req.Proposal)
	})
	app.queriers[types.QueryProposalCount] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, _ *types.QueryRequest) (any, error) {
		return eng.GetTotalProposalCount()
	})
	app.queriers[types.QueryIsBlacklisted] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, req *types.QueryRequest) (any, error) {
		return eng.Registry().IsBlacklisted(req.Type, req.Value)
	})
	app.queriers[types.QueryBatchCheck] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, req *types.QueryRequest) (any, error) {
		return eng.Registry().BatchCheck(req.Type, req.Values)
	})
	app.queriers[types.QueryEntries] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, req *types.QueryRequest) (any, error) {
		return eng.Registry().ListEntries(req.Type)
	})
	app.queriers[types.QueryGovernance] = QuerierFunc(func(_ context.Context, eng *governance.Engine, _ store.KVStore, _ *types.QueryRequest) (any, error) {
		info := &types.GovernanceInfo{Authority: eng.Authority(), Params: eng.Params()}
		var err error
		if info.Count, err = eng.GetTotalProposalCount(); err != nil {
			return nil, err
		}
		if info.UrlEntries, err = eng.Registry().Count(types.EntryTypeURL); err != nil {
			return nil, err
		}
		if info.AddressEntries, err = eng.Registry().Count(types.EntryTypeAddress); err != nil {
			return nil, err
		}
		return info, nil
	})
	app.queriers[types.QueryAccount] = QuerierFunc(func(_ context.Context, _ *governance.Engine, kv store.KVStore, req *types.QueryRequest) (any, error) {
		return state.GetAccount(kv, req.Address)
	})
	app.queriers[types.QueryAccountList] = QuerierFunc(func(_ context.Context, _ *governance.Engine, kv store.KVStore, _ *types.QueryRequest) (any, error) {
		return state.ListAccounts(kv)
	})
}
