// Package keeper settles proposals whose voting period has ended by broadcasting resolveVoting
// transactions from a configured account.
package keeper

import (
	"context"
	"time"

	"github.com/calehh/phishgov/client"
	phcrypto "github.com/calehh/phishgov/crypto"
	"github.com/calehh/phishgov/tx"
	"github.com/calehh/phishgov/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const DefaultInterval = 30 * time.Second

// Keeper submits resolveVoting for every proposal whose voting period has ended. It keeps the
// signer nonce locally so several resolutions fit in one block.
type Keeper struct {
	logger   cmtlog.Logger
	cli      *client.Client
	key      *phcrypto.Key
	interval time.Duration

	nonce  uint64
	synced bool
	// proposal id -> chain height when its resolution was broadcast
	submitted map[uint64]int64
}

func NewKeeper(logger cmtlog.Logger, cli *client.Client, key *phcrypto.Key, interval time.Duration) *Keeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Keeper{
		logger:    logger.With("module", "keeper", "address", key.Address()),
		cli:       cli,
		key:       key,
		interval:  interval,
		submitted: make(map[uint64]int64),
	}
}

func (k *Keeper) Run(ctx context.Context) error {
	k.logger.Info("keeper start", "interval", k.interval)
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			k.logger.Info("keeper stop")
			return ctx.Err()
		case <-ticker.C:
			if _, err := k.Tick(ctx); err != nil && ctx.Err() == nil {
				k.logger.Error("keeper tick fail", "err", err)
			}
		}
	}
}

// Tick broadcasts one resolution per ready proposal not already in flight and returns how many
// were accepted by the mempool. A resolution still pending after a block was committed is taken
// as dropped: it is sent again and the nonce is re-read from committed state.
func (k *Keeper) Tick(ctx context.Context) (int, error) {
	height, err := k.cli.Height(ctx)
	if err != nil {
		return 0, err
	}
	ready, err := k.cli.Proposals(ctx, types.ProposalFilterReady)
	if err != nil {
		return 0, err
	}
	live := make(map[uint64]struct{}, len(ready))
	for _, p := range ready {
		live[p.Id] = struct{}{}
	}
	for id, at := range k.submitted {
		if _, ok := live[id]; !ok {
			delete(k.submitted, id)
			continue
		}
		if at < height {
			k.logger.Info("resolve not committed, resubmitting", "proposal", id, "sent_at", at, "height", height)
			delete(k.submitted, id)
			k.synced = false
		}
	}
	sent := 0
	for _, p := range ready {
		if _, ok := k.submitted[p.Id]; ok {
			continue
		}
		if !k.synced {
			a, err := k.cli.Account(ctx, k.key.Address())
			if err != nil {
				return sent, err
			}
			k.nonce = a.Nonce
			k.synced = true
		}
		res, err := k.cli.SendWithNonce(ctx, k.key, k.nonce, &tx.ResolveVotingTx{Proposal: p.Id}, false)
		if err != nil {
			// the committed nonce is authoritative after any rejection
			k.synced = false
			return sent, err
		}
		k.logger.Info("resolve submitted", "proposal", p.Id, "nonce", k.nonce, "hash", res.Hash)
		k.nonce++
		k.submitted[p.Id] = height
		sent++
	}
	return sent, nil
}
