package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/calehh/phishgov/oracle"
	"github.com/calehh/phishgov/state"
	"github.com/calehh/phishgov/store"
	"github.com/calehh/phishgov/tx"
	"github.com/calehh/phishgov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
	ErrNoPendingState      = errors.New("commit without finalized block")
)

// parseTx decodes the envelope and checks signature and nonce against kv.
func (app *GovApp) parseTx(chainId string, kv store.KVStore, txDat []byte, allowNonceGap bool) (btx *tx.GovTx, err error) {
	btx, err = tx.UnmarshalGovTx(txDat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	if err = btx.Verify(chainId); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrAuthorization, err)
	}
	a, err := state.GetAccount(kv, btx.Sender)
	if err != nil {
		return nil, err
	}
	if !(a.Nonce == btx.Nonce || (allowNonceGap && a.Nonce < btx.Nonce)) {
		return nil, fmt.Errorf("%w: %v: want %d, got %d", types.ErrValidation, tx.ErrTxNonceInvalid, a.Nonce, btx.Nonce)
	}
	return btx, nil
}

func (app *GovApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: types.CodeOK}
	header := app.db.Header()
	kv, _, err := app.db.Committed()
	if err != nil {
		return nil, err
	}
	btx, err := app.parseTx(header.ChainId, kv, check.Tx, true)
	if err != nil {
		app.logger.Info("parse tx fail", "err", err)
		res.Code = types.ErrorCode(err)
		res.Codespace = types.Codespace
		res.Log = err.Error()
		return res, nil
	}
	app.logger.Debug("check tx", "type", btx.Type, "sender", btx.Sender)
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		app.logger.Error("unsupported tx", "type", btx.Type)
		res.Code = types.CodeValidation
		res.Log = tx.ErrUnsupportedTxType.Error()
		return res, nil
	}
	eng, err := app.engine(store.NewCacheKV(kv), int64(header.Time))
	if err != nil {
		return nil, err
	}
	return h.Check(ctx, eng, btx)
}

// PrepareProposal drops transactions whose envelope cannot be decoded or whose signature does
// not verify; everything else goes to FinalizeBlock and is judged there.
func (app *GovApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	chainId := app.db.Header().ChainId
	var size int64
	txs := make([][]byte, 0, len(proposal.Txs))
	for _, stx := range proposal.Txs {
		btx, err := tx.UnmarshalGovTx(stx)
		if err != nil {
			app.logger.Info("PrepareProposal drop undecodable tx", "err", err)
			continue
		}
		if err = btx.Verify(chainId); err != nil {
			app.logger.Info("PrepareProposal drop tx", "sender", btx.Sender, "err", err)
			continue
		}
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *GovApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	chainId := app.db.Header().ChainId
	for _, stx := range proposal.Txs {
		btx, err := tx.UnmarshalGovTx(stx)
		if err != nil {
			app.logger.Error("ProcessProposal undecodable tx", "height", proposal.Height, "err", err)
			return res, nil
		}
		if err = btx.Verify(chainId); err != nil {
			app.logger.Error("ProcessProposal bad signature", "height", proposal.Height, "sender", btx.Sender)
			return res, nil
		}
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	return res, nil
}

// deliverTx runs one transaction on its own branch. A valid envelope always consumes the
// nonce; the operation's writes are kept only when it succeeds. An unreachable balance oracle
// fails the block instead of the tx, since other validators may have got an answer.
func (app *GovApp) deliverTx(ctx context.Context, st *state.State, stx []byte) (*abcitypes.ExecTxResult, error) {
	fail := func(err error) *abcitypes.ExecTxResult {
		return &abcitypes.ExecTxResult{
			Code:      types.ErrorCode(err),
			Codespace: types.Codespace,
			Log:       err.Error(),
		}
	}
	btx, err := app.parseTx(st.Header().ChainId, st.Store(), stx, false)
	if err != nil {
		app.logger.Info("deliver tx rejected", "err", err)
		return fail(err), nil
	}
	if err = state.IncNonce(st.Store(), btx.Sender); err != nil {
		return fail(err), nil
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return fail(fmt.Errorf("%w: %v", types.ErrValidation, tx.ErrUnsupportedTxType)), nil
	}
	branch := st.Branch()
	eng, err := app.engine(branch, st.BlockTime())
	if err != nil {
		return fail(err), nil
	}
	result, err := h.Process(ctx, eng, btx)
	if err != nil {
		branch.Discard()
		if errors.Is(err, oracle.ErrUnavailable) {
			app.logger.Error("balance oracle unavailable", "type", btx.Type, "sender", btx.Sender, "err", err)
			return nil, err
		}
		app.logger.Info("tx failed", "type", btx.Type, "sender", btx.Sender, "err", err)
		return fail(err), nil
	}
	if result == nil {
		branch.Discard()
		return fail(ErrUnexpectedTxProcess), nil
	}
	writes := branch.Dirty()
	if err = branch.Write(); err != nil {
		return fail(err), nil
	}
	app.logger.Debug("tx applied", "type", btx.Type, "sender", btx.Sender, "writes", writes)
	return result, nil
}

func (app *GovApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	st := app.db.NewState()
	if err := st.SetBlock(uint64(req.Height), req.Time); err != nil {
		return nil, err
	}
	res := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		r, err := app.deliverTx(ctx, st, stx)
		if err != nil {
			return nil, fmt.Errorf("height %d tx %d: %w", req.Height, i, err)
		}
		res[i] = r
	}
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.st = st
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *GovApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return nil, ErrNoPendingState
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.logger.Info("Commit", "height", app.st.Header().Height)
	app.st = nil
	return &abcitypes.ResponseCommit{}, nil
}
