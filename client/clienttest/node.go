// Package clienttest runs the governance application in-process behind the RPC surface the
// client uses.
package clienttest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/calehh/phishgov/app"
	"github.com/calehh/phishgov/state"
	"github.com/calehh/phishgov/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/p2p"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const ChainId = "bgov-clienttest"

var errNotSupported = errors.New("not supported")

// Node commits a block per BroadcastTxCommit, or on Block. Txs accepted by BroadcastTxSync wait
// in the mempool for the next block. Every block advances the clock by one second.
type Node struct {
	App *app.GovApp

	mtx     sync.Mutex
	height  int64
	now     time.Time
	mempool [][]byte
}

// NewNode starts a chain owned by owner with balances credited to holders.
func NewNode(t *testing.T, owner common.Address, params types.GovParams, holders ...common.Address) *Node {
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	n := &Node{
		App: app.NewGovAppWithDB(db, nil, cmtlog.NewNopLogger()),
		now: time.Unix(1_700_000_000, 0),
	}
	appState := types.AppState{Owner: owner, Params: &params}
	for _, h := range holders {
		appState.Allocations = append(appState.Allocations, types.TokenAllocation{Address: h, Balance: "1000000000000000000"})
	}
	raw, err := json.Marshal(appState)
	require.NoError(t, err)
	_, err = n.App.InitChain(context.Background(), &abci.RequestInitChain{Time: n.now, ChainId: ChainId, AppStateBytes: raw})
	require.NoError(t, err)
	return n
}

func (n *Node) Height() int64 {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.height
}

func (n *Node) Pending() int {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return len(n.mempool)
}

// Evict empties the mempool without committing, as a recheck or a full pool would.
func (n *Node) Evict() int {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	dropped := len(n.mempool)
	n.mempool = nil
	return dropped
}

// Block commits the mempool plus txs.
func (n *Node) Block(ctx context.Context, txs ...[]byte) (*abci.ResponseFinalizeBlock, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.block(ctx, txs...)
}

func (n *Node) block(ctx context.Context, txs ...[]byte) (*abci.ResponseFinalizeBlock, error) {
	all := append(n.mempool, txs...)
	n.mempool = nil
	n.height++
	n.now = n.now.Add(time.Second)
	res, err := n.App.FinalizeBlock(ctx, &abci.RequestFinalizeBlock{Height: n.height, Time: n.now, Txs: all})
	if err != nil {
		return nil, err
	}
	if _, err = n.App.Commit(ctx, &abci.RequestCommit{}); err != nil {
		return nil, err
	}
	return res, nil
}

func (n *Node) ABCIInfo(context.Context) (*ctypes.ResultABCIInfo, error) {
	return nil, errNotSupported
}

func (n *Node) ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*ctypes.ResultABCIQuery, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	res, err := n.App.Query(ctx, &abci.RequestQuery{Path: path, Data: data})
	if err != nil {
		return nil, err
	}
	return &ctypes.ResultABCIQuery{Response: *res}, nil
}

func (n *Node) ABCIQueryWithOptions(ctx context.Context, path string, data cmtbytes.HexBytes, _ rpcclient.ABCIQueryOptions) (*ctypes.ResultABCIQuery, error) {
	return n.ABCIQuery(ctx, path, data)
}

func (n *Node) BroadcastTxAsync(context.Context, cmttypes.Tx) (*ctypes.ResultBroadcastTx, error) {
	return nil, errNotSupported
}

func (n *Node) BroadcastTxSync(ctx context.Context, stx cmttypes.Tx) (*ctypes.ResultBroadcastTx, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	chk, err := n.App.CheckTx(ctx, &abci.RequestCheckTx{Tx: stx})
	if err != nil {
		return nil, err
	}
	if chk.Code == types.CodeOK {
		n.mempool = append(n.mempool, stx)
	}
	return &ctypes.ResultBroadcastTx{Code: chk.Code, Log: chk.Log, Codespace: chk.Codespace, Hash: stx.Hash()}, nil
}

func (n *Node) BroadcastTxCommit(ctx context.Context, stx cmttypes.Tx) (*ctypes.ResultBroadcastTxCommit, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	chk, err := n.App.CheckTx(ctx, &abci.RequestCheckTx{Tx: stx})
	if err != nil {
		return nil, err
	}
	if chk.Code != types.CodeOK {
		return &ctypes.ResultBroadcastTxCommit{CheckTx: *chk, Hash: stx.Hash()}, nil
	}
	res, err := n.block(ctx, stx)
	if err != nil {
		return nil, err
	}
	return &ctypes.ResultBroadcastTxCommit{
		CheckTx:  *chk,
		TxResult: *res.TxResults[len(res.TxResults)-1],
		Hash:     stx.Hash(),
		Height:   n.height,
	}, nil
}

func (n *Node) Status(context.Context) (*ctypes.ResultStatus, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	st := &ctypes.ResultStatus{NodeInfo: p2p.DefaultNodeInfo{Network: ChainId}}
	st.SyncInfo.LatestBlockHeight = n.height
	st.SyncInfo.LatestBlockTime = n.now
	return st, nil
}
