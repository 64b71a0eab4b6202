package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/calehh/phishgov/config"
	"github.com/calehh/phishgov/governance"
	"github.com/calehh/phishgov/oracle"
	"github.com/calehh/phishgov/state"
	"github.com/calehh/phishgov/store"
	"github.com/calehh/phishgov/tx"
	"github.com/calehh/phishgov/tx/handler"
	"github.com/calehh/phishgov/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	cmtstore "github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
)

var _ abcitypes.Application = &GovApp{}

type GovApp struct {
	logger cmtlog.Logger

	db       *state.StateDB
	balances oracle.BalanceOracle
	txHdlrs  map[tx.GovTxType]handler.TxHandler
	queriers map[string]Querier

	st *state.State
}

func NewGovApp(cfg *config.AppConfig, logger cmtlog.Logger) (app *GovApp, err error) {
	dir := cfg.Home + "/data"
	db, err := state.NewStateDB(dir, logger)
	if err != nil {
		return nil, err
	}
	var balances oracle.BalanceOracle
	if cfg.Oracle == config.OracleERC20 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		balances, err = oracle.DialERC20(ctx, cfg.EthRPC, common.HexToAddress(cfg.TokenAddress), cfg.SnapshotBlock)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return NewGovAppWithDB(db, balances, logger), nil
}

// NewGovAppWithDB builds the application on an opened state. A nil oracle reads balances
// from the chain's own account ledger.
func NewGovAppWithDB(db *state.StateDB, balances oracle.BalanceOracle, logger cmtlog.Logger) *GovApp {
	logger = logger.With("module", "app")
	app := &GovApp{
		logger:   logger,
		db:       db,
		balances: balances,
		queriers: make(map[string]Querier),
	}
	app.txHdlrs = handler.Handlers(logger)
	app.registerQuerier()
	return app
}

func (app *GovApp) Start(bs *cmtstore.BlockStore) {
	height := app.db.Header().Height
	if height > 0 && bs.Height() < int64(height) {
		panic(fmt.Sprintf("unexpected BlockStore height %d, app at %d", bs.Height(), height))
	}
	app.logger.Info("governance app started", "height", height)
}

func (app *GovApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("governance app stopped")
}

func (app *GovApp) engine(kv store.KVStore, now int64) (*governance.Engine, error) {
	balances := app.balances
	if balances == nil {
		balances = oracle.NewLedgerOracle(kv)
	}
	return governance.NewEngine(kv, balances, now, app.logger)
}

func (app *GovApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	appState, err := types.ParseAppState(chain.AppStateBytes)
	if err != nil {
		return nil, err
	}
	if err = appState.Validate(); err != nil {
		app.logger.Error("InitChain invalid app state", "err", err)
		return nil, err
	}
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	if err = st.SetBlock(0, chain.Time); err != nil {
		return nil, err
	}
	kv := st.Store()
	if err = governance.InitGenesis(kv, appState.Owner, appState.Params); err != nil {
		app.logger.Error("InitChain governance genesis fail", "err", err)
		return nil, err
	}
	for _, alloc := range appState.Allocations {
		amount, err := alloc.Amount()
		if err != nil {
			return nil, err
		}
		err = state.SetAccount(kv, &types.Account{Address: alloc.Address, Balance: new(big.Int).Set(amount)})
		if err != nil {
			app.logger.Error("InitChain add account fail", "err", err)
			return nil, err
		}
	}
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err := app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain", "chainId", chain.ChainId, "owner", appState.Owner, "accounts", len(appState.Allocations))
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *GovApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		Data:             types.ModuleName,
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *GovApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *GovApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *GovApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *GovApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *GovApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *GovApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
