package oracle

import (
	"context"
	"math/big"

	"github.com/calehh/phishgov/state"
	"github.com/calehh/phishgov/store"
	"github.com/ethereum/go-ethereum/common"
)

// BalanceOracle reports governance-token holdings.
type BalanceOracle interface {
	BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error)
}

// LedgerOracle reads balances from the chain's own account ledger, seeded at genesis.
type LedgerOracle struct {
	kv store.KVStore
}

var _ BalanceOracle = (*LedgerOracle)(nil)

func NewLedgerOracle(kv store.KVStore) *LedgerOracle {
	return &LedgerOracle{kv: kv}
}

func (o *LedgerOracle) BalanceOf(_ context.Context, addr common.Address) (*big.Int, error) {
	acnt, err := state.GetAccount(o.kv, addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acnt.Balance), nil
}

// Static is a fixed balance table, handy for tests and local networks.
type Static map[common.Address]*big.Int

func (s Static) BalanceOf(_ context.Context, addr common.Address) (*big.Int, error) {
	if v, ok := s[addr]; ok && v != nil {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}
