package handler

import (
	"context"

	"github.com/calehh/phishgov/governance"
	"github.com/calehh/phishgov/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type SetParamsTxHandler struct {
	logger cmtlog.Logger
}

func NewSetParamsTxHandler(logger cmtlog.Logger) (h *SetParamsTxHandler) {
	logger = logger.With("module", "paramsTx")
	h = &SetParamsTxHandler{
		logger: logger,
	}
	return
}

func (h *SetParamsTxHandler) Check(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	return check(ctx, h.logger, eng, btx, h.handle)
}

func (h *SetParamsTxHandler) handle(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.SetParamsTx](btx)
	if err != nil {
		return nil, err
	}
	events, err := eng.SetParams(btx.Sender, wtx.Params)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{Events: events}
	return
}

func (h *SetParamsTxHandler) Process(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, eng, btx)
}

type TransferAuthorityTxHandler struct {
	logger cmtlog.Logger
}

func NewTransferAuthorityTxHandler(logger cmtlog.Logger) (h *TransferAuthorityTxHandler) {
	logger = logger.With("module", "authorityTx")
	h = &TransferAuthorityTxHandler{
		logger: logger,
	}
	return
}

func (h *TransferAuthorityTxHandler) Check(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	return check(ctx, h.logger, eng, btx, h.handle)
}

func (h *TransferAuthorityTxHandler) handle(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.TransferAuthorityTx](btx)
	if err != nil {
		return nil, err
	}
	events, err := eng.TransferAuthority(btx.Sender, wtx.NewOwner)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{Events: events}
	return
}

func (h *TransferAuthorityTxHandler) Process(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, eng, btx)
}
