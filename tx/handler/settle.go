package handler

import (
	"context"

	"github.com/calehh/phishgov/governance"
	"github.com/calehh/phishgov/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type ResolveVotingTxHandler struct {
	logger cmtlog.Logger
}

func NewResolveVotingTxHandler(logger cmtlog.Logger) (h *ResolveVotingTxHandler) {
	logger = logger.With("module", "resolveTx")
	h = &ResolveVotingTxHandler{
		logger: logger,
	}
	return
}

func (h *ResolveVotingTxHandler) Check(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	return check(ctx, h.logger, eng, btx, h.handle)
}

func (h *ResolveVotingTxHandler) handle(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.ResolveVotingTx](btx)
	if err != nil {
		return nil, err
	}
	status, events, err := eng.ResolveVoting(wtx.Proposal)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Data:   []byte(status.String()),
		Events: events,
	}
	return
}

func (h *ResolveVotingTxHandler) Process(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, eng, btx)
}

type ExecuteApprovedTxHandler struct {
	logger cmtlog.Logger
}

func NewExecuteApprovedTxHandler(logger cmtlog.Logger) (h *ExecuteApprovedTxHandler) {
	logger = logger.With("module", "executeTx")
	h = &ExecuteApprovedTxHandler{
		logger: logger,
	}
	return
}

func (h *ExecuteApprovedTxHandler) Check(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	return check(ctx, h.logger, eng, btx, h.handle)
}

func (h *ExecuteApprovedTxHandler) handle(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.ExecuteApprovedTx](btx)
	if err != nil {
		return nil, err
	}
	events, err := eng.ExecuteApproved(btx.Sender, wtx.Proposal)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{Events: events}
	return
}

func (h *ExecuteApprovedTxHandler) Process(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, eng, btx)
}
