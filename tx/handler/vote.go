package handler

import (
	"context"

	"github.com/calehh/phishgov/governance"
	"github.com/calehh/phishgov/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type VoteTxHandler struct {
	logger cmtlog.Logger
}

func NewVoteTxHandler(logger cmtlog.Logger) (h *VoteTxHandler) {
	logger = logger.With("module", "voteTx")
	h = &VoteTxHandler{
		logger: logger,
	}
	return
}

func (h *VoteTxHandler) Check(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	return check(ctx, h.logger, eng, btx, h.handle)
}

func (h *VoteTxHandler) handle(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.VoteTx](btx)
	if err != nil {
		return nil, err
	}
	events, err := eng.Vote(ctx, btx.Sender, wtx.Proposal, wtx.Support)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{Events: events}
	return
}

func (h *VoteTxHandler) Process(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, eng, btx)
}
