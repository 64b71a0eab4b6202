package indexer

import (
	"context"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
)

// Block is the ordered event log of one committed height.
type Block struct {
	Height int64
	Time   time.Time
	Events []abci.Event
}

type EventSource interface {
	LatestHeight(ctx context.Context) (int64, error)
	BlockEvents(ctx context.Context, height int64) (*Block, error)
}

var _ EventSource = &CometSource{}

// CometSource reads events from a CometBFT node over RPC.
type CometSource struct {
	cli *comethttp.HTTP
}

func NewCometSource(chainUrl string) (*CometSource, error) {
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	return &CometSource{cli: cli}, nil
}

func (s *CometSource) LatestHeight(ctx context.Context) (int64, error) {
	b, err := s.cli.Status(ctx)
	if err != nil {
		return 0, err
	}
	return b.SyncInfo.LatestBlockHeight, nil
}

func (s *CometSource) BlockEvents(ctx context.Context, height int64) (*Block, error) {
	res, err := s.cli.BlockResults(ctx, &height)
	if err != nil {
		return nil, err
	}
	header, err := s.cli.Header(ctx, &height)
	if err != nil {
		return nil, err
	}
	blk := &Block{Height: height, Time: header.Header.Time}
	for _, r := range res.TxsResults {
		if r.Code != 0 {
			continue
		}
		blk.Events = append(blk.Events, r.Events...)
	}
	blk.Events = append(blk.Events, res.FinalizeBlockEvents...)
	return blk, nil
}
