package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	lru "github.com/hashicorp/golang-lru/v2"
)

const erc20BalanceABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

const DefaultCacheSize = 4096

var (
	ErrUnexpectedOutput = errors.New("unexpected balanceOf output")
	ErrNoSnapshot       = errors.New("erc20 oracle needs a snapshot block")
	// ErrUnavailable marks a failed call to the token's chain. The answer is unknown, not zero.
	ErrUnavailable = errors.New("balance oracle unavailable")
)

// ERC20Oracle queries balanceOf on an external token contract at a pinned snapshot block, so
// every node sees the same balances. Answers are cached.
type ERC20Oracle struct {
	caller  ethereum.ContractCaller
	token   common.Address
	block   *big.Int
	timeout time.Duration
	abi     abi.ABI
	cache   *lru.Cache[common.Address, *big.Int]
}

var _ BalanceOracle = (*ERC20Oracle)(nil)

func DialERC20(ctx context.Context, rpcURL string, token common.Address, snapshot uint64) (*ERC20Oracle, error) {
	if snapshot == 0 {
		return nil, ErrNoSnapshot
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return NewERC20Oracle(client, token, new(big.Int).SetUint64(snapshot), DefaultCacheSize)
}

func NewERC20Oracle(caller ethereum.ContractCaller, token common.Address, block *big.Int, cacheSize int) (*ERC20Oracle, error) {
	if block == nil || block.Sign() <= 0 {
		return nil, ErrNoSnapshot
	}
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceABI))
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[common.Address, *big.Int](cacheSize)
	if err != nil {
		return nil, err
	}
	return &ERC20Oracle{
		caller:  caller,
		token:   token,
		block:   block,
		timeout: 5 * time.Second,
		abi:     parsed,
		cache:   cache,
	}, nil
}

func (o *ERC20Oracle) BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	if v, ok := o.cache.Get(addr); ok {
		return new(big.Int).Set(v), nil
	}
	data, err := o.abi.Pack("balanceOf", addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	out, err := o.caller.CallContract(ctx, ethereum.CallMsg{To: &o.token, Data: data}, o.block)
	if err != nil {
		return nil, fmt.Errorf("%w: balanceOf %s: %v", ErrUnavailable, addr.Hex(), err)
	}
	vals, err := o.abi.Unpack("balanceOf", out)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, ErrUnexpectedOutput
	}
	bal, ok := vals[0].(*big.Int)
	if !ok {
		return nil, ErrUnexpectedOutput
	}
	o.cache.Add(addr, new(big.Int).Set(bal))
	return bal, nil
}
