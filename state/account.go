package state

import (
	"math/big"

	"github.com/calehh/phishgov/store"
	"github.com/calehh/phishgov/types"
	"github.com/ethereum/go-ethereum/common"
)

// GetAccount returns the stored account, or a zero account when the address was never seen.
func GetAccount(kv store.KVStore, addr common.Address) (*types.Account, error) {
	val, err := kv.Get(types.AccountKey(addr))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return &types.Account{Address: addr, Balance: new(big.Int)}, nil
	}
	return types.DecodeAccount(addr, val)
}

func SetAccount(kv store.KVStore, acnt *types.Account) error {
	val, err := acnt.Encode()
	if err != nil {
		return err
	}
	return kv.Set(types.AccountKey(acnt.Address), val)
}

// IncNonce bumps the sender nonce after a transaction has been accepted into a block.
func IncNonce(kv store.KVStore, addr common.Address) error {
	acnt, err := GetAccount(kv, addr)
	if err != nil {
		return err
	}
	acnt.Nonce += 1
	return SetAccount(kv, acnt)
}

func ListAccounts(kv store.KVStore) ([]*types.Account, error) {
	acnts := make([]*types.Account, 0)
	err := kv.Iterate([]byte(types.KeyAccountPrefix), func(key, value []byte) (bool, error) {
		addr := common.HexToAddress(string(key[len(types.KeyAccountPrefix):]))
		acnt, err := types.DecodeAccount(addr, value)
		if err != nil {
			return true, err
		}
		acnts = append(acnts, acnt)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return acnts, nil
}
