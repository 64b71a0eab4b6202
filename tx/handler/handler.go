package handler

import (
	"context"
	"fmt"

	"github.com/calehh/phishgov/governance"
	"github.com/calehh/phishgov/tx"
	"github.com/calehh/phishgov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// TxHandler applies one transaction type to the governance engine. Check runs against a
// throwaway branch; Process runs against the transaction's block branch.
type TxHandler interface {
	Check(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error)
	Process(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (res *abcitypes.ExecTxResult, err error)
}

type handleFunc func(ctx context.Context, eng *governance.Engine, btx *tx.GovTx) (*abcitypes.ExecTxResult, error)

func check(ctx context.Context, logger cmtlog.Logger, eng *governance.Engine, btx *tx.GovTx, handle handleFunc) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: types.CodeOK}
	_, err1 := handle(ctx, eng, btx)
	if err1 != nil {
		logger.Info("CheckTx fail", "type", btx.Type, "sender", btx.Sender, "err", err1)
		res.Code = types.ErrorCode(err1)
		res.Codespace = types.Codespace
		res.Log = err1.Error()
	}
	return
}

func payload[T any](btx *tx.GovTx) (*T, error) {
	v, ok := btx.Tx.(*T)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %w", types.ErrValidation, tx.ErrInvalidTx)
	}
	return v, nil
}

// Handlers returns the handler table the application dispatches on.
func Handlers(logger cmtlog.Logger) map[tx.GovTxType]TxHandler {
	return map[tx.GovTxType]TxHandler{
		tx.GovTxTypeCreateProposal:    NewCreateProposalTxHandler(logger),
		tx.GovTxTypeVote:              NewVoteTxHandler(logger),
		tx.GovTxTypeResolveVoting:     NewResolveVotingTxHandler(logger),
		tx.GovTxTypeExecuteApproved:   NewExecuteApprovedTxHandler(logger),
		tx.GovTxTypeSetParams:         NewSetParamsTxHandler(logger),
		tx.GovTxTypeTransferAuthority: NewTransferAuthorityTxHandler(logger),
	}
}
