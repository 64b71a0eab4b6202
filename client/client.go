package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	phcrypto "github.com/calehh/phishgov/crypto"
	"github.com/calehh/phishgov/tx"
	"github.com/calehh/phishgov/types"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
)

const DefaultNodeUrl = "http://127.0.0.1:26657"

var ErrBroadcast = errors.New("broadcast rejected")

// RPC is the part of the CometBFT client the governance client needs.
type RPC interface {
	rpcclient.ABCIClient
	rpcclient.StatusClient
}

type Client struct {
	rpc RPC

	mtx     sync.Mutex
	chainId string
}

func Dial(nodeUrl string) (*Client, error) {
	cli, err := comethttp.New(nodeUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	return New(cli), nil
}

func New(rpc RPC) *Client {
	return &Client{rpc: rpc}
}

func (c *Client) ChainId(ctx context.Context) (string, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.chainId != "" {
		return c.chainId, nil
	}
	st, err := c.rpc.Status(ctx)
	if err != nil {
		return "", err
	}
	c.chainId = st.NodeInfo.Network
	return c.chainId, nil
}

// Height returns the latest committed block height of the node.
func (c *Client) Height(ctx context.Context) (int64, error) {
	st, err := c.rpc.Status(ctx)
	if err != nil {
		return 0, err
	}
	return st.SyncInfo.LatestBlockHeight, nil
}

// Query runs an ABCI query and decodes its JSON value into out.
func (c *Client) Query(ctx context.Context, path string, req *types.QueryRequest, out any) error {
	if req == nil {
		req = &types.QueryRequest{}
	}
	dat, err := json.Marshal(req)
	if err != nil {
		return err
	}
	res, err := c.rpc.ABCIQuery(ctx, path, dat)
	if err != nil {
		return err
	}
	if err = types.CodeError(res.Response.Code, res.Response.Log); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(res.Response.Value, out)
}

func (c *Client) Account(ctx context.Context, addr common.Address) (*types.Account, error) {
	var a types.Account
	if err := c.Query(ctx, types.QueryAccount, &types.QueryRequest{Address: addr}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

type Result struct {
	Hash   string
	Height int64
	Code   uint32
	Log    string
	Data   []byte
}

// Err maps a failed delivery back onto the error taxonomy.
func (r *Result) Err() error {
	return types.CodeError(r.Code, r.Log)
}

// Send signs payload with the sender's next committed nonce and broadcasts it. With commit
// set it waits for the block and returns the delivery result.
func (c *Client) Send(ctx context.Context, key *phcrypto.Key, payload any, commit bool) (*Result, error) {
	a, err := c.Account(ctx, key.Address())
	if err != nil {
		return nil, err
	}
	return c.SendWithNonce(ctx, key, a.Nonce, payload, commit)
}

func (c *Client) SendWithNonce(ctx context.Context, key *phcrypto.Key, nonce uint64, payload any, commit bool) (*Result, error) {
	chainId, err := c.ChainId(ctx)
	if err != nil {
		return nil, err
	}
	btx, err := tx.NewGovTx(nonce, payload)
	if err != nil {
		return nil, err
	}
	if err = btx.Sign(chainId, key.PrivateKey()); err != nil {
		return nil, err
	}
	dat, err := tx.MarshalGovTx(btx)
	if err != nil {
		return nil, err
	}
	if !commit {
		res, err := c.rpc.BroadcastTxSync(ctx, cmttypes.Tx(dat))
		if err != nil {
			return nil, err
		}
		r := &Result{Hash: res.Hash.String(), Code: res.Code, Log: res.Log, Data: res.Data}
		if res.Code != types.CodeOK {
			return r, fmt.Errorf("%w: %w", ErrBroadcast, r.Err())
		}
		return r, nil
	}
	res, err := c.rpc.BroadcastTxCommit(ctx, cmttypes.Tx(dat))
	if err != nil {
		return nil, err
	}
	if res.CheckTx.Code != types.CodeOK {
		r := &Result{Hash: res.Hash.String(), Code: res.CheckTx.Code, Log: res.CheckTx.Log}
		return r, fmt.Errorf("%w: %w", ErrBroadcast, r.Err())
	}
	return &Result{
		Hash:   res.Hash.String(),
		Height: res.Height,
		Code:   res.TxResult.Code,
		Log:    res.TxResult.Log,
		Data:   res.TxResult.Data,
	}, nil
}

// CreateProposal submits a proposal and waits for its id.
func (c *Client) CreateProposal(ctx context.Context, key *phcrypto.Key, p *tx.CreateProposalTx) (uint64, error) {
	res, err := c.Send(ctx, key, p, true)
	if err != nil {
		return 0, err
	}
	if err = res.Err(); err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(res.Data), 10, 64)
}

func (c *Client) sendCommitted(ctx context.Context, key *phcrypto.Key, payload any) (*Result, error) {
	res, err := c.Send(ctx, key, payload, true)
	if err != nil {
		return res, err
	}
	return res, res.Err()
}

func (c *Client) Vote(ctx context.Context, key *phcrypto.Key, proposal uint64, support bool) (*Result, error) {
	return c.sendCommitted(ctx, key, &tx.VoteTx{Proposal: proposal, Support: support})
}

func (c *Client) ResolveVoting(ctx context.Context, key *phcrypto.Key, proposal uint64) (types.ProposalStatus, error) {
	res, err := c.sendCommitted(ctx, key, &tx.ResolveVotingTx{Proposal: proposal})
	if err != nil {
		return 0, err
	}
	switch string(res.Data) {
	case types.ProposalStatusApproved.String():
		return types.ProposalStatusApproved, nil
	case types.ProposalStatusRejected.String():
		return types.ProposalStatusRejected, nil
	default:
		return 0, fmt.Errorf("unexpected resolve result %q", res.Data)
	}
}

func (c *Client) ExecuteApproved(ctx context.Context, key *phcrypto.Key, proposal uint64) (*Result, error) {
	return c.sendCommitted(ctx, key, &tx.ExecuteApprovedTx{Proposal: proposal})
}

func (c *Client) SetParams(ctx context.Context, key *phcrypto.Key, params types.GovParams) (*Result, error) {
	return c.sendCommitted(ctx, key, &tx.SetParamsTx{Params: params})
}

func (c *Client) TransferAuthority(ctx context.Context, key *phcrypto.Key, newOwner common.Address) (*Result, error) {
	return c.sendCommitted(ctx, key, &tx.TransferAuthorityTx{NewOwner: newOwner})
}

