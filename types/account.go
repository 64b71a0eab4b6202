package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

const (
	KeyAccountPrefix = "a/"
	KeyAccountBody   = "a/%x"
)

// Account is a governance-token holder: the signing nonce and the token balance.
type Account struct {
	Address common.Address `json:"address" rlp:"-"`
	Nonce   uint64         `json:"nonce"`
	Balance *big.Int       `json:"balance"`
}

func AccountKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf(KeyAccountBody, addr.Bytes()))
}

func (a *Account) Encode() ([]byte, error) {
	if a.Balance == nil {
		a.Balance = new(big.Int)
	}
	return rlp.EncodeToBytes(a)
}

func DecodeAccount(addr common.Address, dat []byte) (*Account, error) {
	a := &Account{Address: addr}
	if err := rlp.DecodeBytes(dat, a); err != nil {
		return nil, err
	}
	if a.Balance == nil {
		a.Balance = new(big.Int)
	}
	return a, nil
}
