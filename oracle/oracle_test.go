package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/calehh/phishgov/state"
	"github.com/calehh/phishgov/store"
	"github.com/calehh/phishgov/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	balances map[common.Address]*big.Int
	calls    int
	err      error
	o        *ERC20Oracle
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	args, err := f.o.abi.Methods["balanceOf"].Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	addr := args[0].(common.Address)
	bal, ok := f.balances[addr]
	if !ok {
		bal = new(big.Int)
	}
	return f.o.abi.Methods["balanceOf"].Outputs.Pack(bal)
}

var (
	holder = common.HexToAddress("0x1111111111111111111111111111111111111111")
	nobody = common.HexToAddress("0x2222222222222222222222222222222222222222")
	token  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestERC20OracleSnapshotCache(t *testing.T) {
	caller := &fakeCaller{balances: map[common.Address]*big.Int{holder: big.NewInt(42)}}
	o, err := NewERC20Oracle(caller, token, big.NewInt(100), 16)
	require.NoError(t, err)
	caller.o = o

	for i := 0; i < 3; i++ {
		bal, err := o.BalanceOf(context.Background(), holder)
		require.NoError(t, err)
		assert.Equal(t, int64(42), bal.Int64())
	}
	assert.Equal(t, 1, caller.calls)

	bal, err := o.BalanceOf(context.Background(), nobody)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
	assert.Equal(t, 2, caller.calls)
}

func TestERC20OracleRequiresSnapshot(t *testing.T) {
	_, err := NewERC20Oracle(&fakeCaller{}, token, nil, 16)
	assert.ErrorIs(t, err, ErrNoSnapshot)
	_, err = NewERC20Oracle(&fakeCaller{}, token, new(big.Int), 16)
	assert.ErrorIs(t, err, ErrNoSnapshot)
	_, err = DialERC20(context.Background(), "http://127.0.0.1:8545", token, 0)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestERC20OracleTransportError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection refused")}
	o, err := NewERC20Oracle(caller, token, big.NewInt(100), 16)
	require.NoError(t, err)
	caller.o = o

	_, err = o.BalanceOf(context.Background(), holder)
	assert.ErrorIs(t, err, ErrUnavailable)

	// failures are not cached
	caller.err = nil
	caller.balances = map[common.Address]*big.Int{holder: big.NewInt(3)}
	bal, err := o.BalanceOf(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bal.Int64())
	assert.Equal(t, 2, caller.calls)
}

func TestLedgerOracle(t *testing.T) {
	kv := store.NewMemKV()
	require.NoError(t, state.SetAccount(kv, &types.Account{Address: holder, Balance: big.NewInt(9)}))
	o := NewLedgerOracle(kv)

	bal, err := o.BalanceOf(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, int64(9), bal.Int64())

	bal.SetInt64(0)
	again, err := o.BalanceOf(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, int64(9), again.Int64())

	bal, err = o.BalanceOf(context.Background(), nobody)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
}
