package handler

import (
	"context"
	"strconv"

	"github.com/calehh/phishgov/governance"
	"github.com/calehh/phishgov/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type CreateProposalTxHandler struct {
	logger cmtlog.Logger
}

func NewCreateProposalTxHandler(logger cmtlog.Logger) (h *CreateProposalTxHandler) {
	logger = logger.With("module", "proposalTx")
	h = &CreateProposalTxHandler{
		logger: logger,
	}
	return
}

func (h *CreateProposalTxHandler) Check(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	return check(ctx, h.logger, eng, btx, h.handle)
}

func (h *CreateProposalTxHandler) handle(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.CreateProposalTx](btx)
	if err != nil {
		return nil, err
	}
	id, events, err := eng.CreateProposal(ctx, btx.Sender, governance.CreateProposalArgs{
		Type:        wtx.Type,
		Url:         wtx.Url,
		Address:     wtx.Address,
		Description: wtx.Description,
		Duration:    wtx.Duration,
	})
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Data:   []byte(strconv.FormatUint(id, 10)),
		Events: events,
	}
	return
}

func (h *CreateProposalTxHandler) Process(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, eng, btx)
}
