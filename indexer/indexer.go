package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calehh/phishgov/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval = 2 * time.Second
	fetchRetryBase      = 200 * time.Millisecond
	fetchRetryMaxDelay  = 5 * time.Second
	fetchRetryMax       = 5
)

// errSkipped is returned by handlers for events that were logged and dropped.
var errSkipped = errors.New("event skipped")

type Options struct {
	PollInterval time.Duration
	StartHeight  int64
	Registerer   prometheus.Registerer
}

type ChainIndexer struct {
	logger        cmtlog.Logger
	db            *gorm.DB
	src           EventSource
	metrics       *Metrics
	interval      time.Duration
	height        atomic.Int64
	eventHandlers map[string]eventHandler
	now           func() time.Time
}

// OpenDB opens the sqlite mirror and migrates its tables.
func OpenDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps ":memory:" on a single database
	db.DB().SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Height{}, &Proposal{}, &Vote{}, &BlacklistEntry{}, &Governance{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewChainIndexer(logger cmtlog.Logger, db *gorm.DB, src EventSource, opts Options) (*ChainIndexer, error) {
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	c := &ChainIndexer{
		logger:   logger.With("module", "indexer"),
		db:       db,
		src:      src,
		metrics:  NewMetrics(opts.Registerer),
		interval: opts.PollInterval,
		now:      time.Now,
	}
	next := int64(h.Height) + 1
	if h.Height == 0 && opts.StartHeight > 1 {
		next = opts.StartHeight
	}
	c.height.Store(next)
	c.metrics.height.Set(float64(next - 1))
	c.eventHandlers = map[string]eventHandler{
		types.EventProposalCreatedType:       c.handleEventProposalCreated,
		types.EventVoteCastType:              c.handleEventVoteCast,
		types.EventProposalStatusUpdatedType: c.handleEventStatusUpdated,
		types.EventProposalExecutedType:      c.handleEventProposalExecuted,
		types.EventEntryAddedType:            c.handleEventEntry,
		types.EventEntryRemovedType:          c.handleEventEntry,
		types.EventParamsUpdatedType:         c.handleEventParams,
		types.EventAuthorityTransferredType:  c.handleEventAuthority,
	}
	return c, nil
}

// NextHeight is the first height not yet in the mirror.
func (c *ChainIndexer) NextHeight() int64 {
	return c.height.Load()
}

// Run polls the source until ctx is cancelled. Source failures are logged and retried on the
// next tick.
func (c *ChainIndexer) Run(ctx context.Context) error {
	c.logger.Info("indexer start", "height", c.NextHeight(), "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		if err := c.Sync(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("indexer sync fail", "height", c.NextHeight(), "err", err)
		}
		select {
		case <-ctx.Done():
			c.logger.Info("indexer stop", "height", c.NextHeight())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sync projects every block between the checkpoint and the source's latest height.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	var latest int64
	err := c.fetch(ctx, func(ctx context.Context) (err error) {
		latest, err = c.src.LatestHeight(ctx)
		return err
	})
	if err != nil {
		return err
	}
	for h := c.NextHeight(); h <= latest; h++ {
		var blk *Block
		err = c.fetch(ctx, func(ctx context.Context) (err error) {
			blk, err = c.src.BlockEvents(ctx, h)
			return err
		})
		if err != nil {
			return err
		}
		c.logger.Debug("indexer syncing", "height", h, "events", len(blk.Events))
		if err = c.ApplyBlock(ctx, blk); err != nil {
			return err
		}
	}
	return nil
}

func (c *ChainIndexer) fetch(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.NewExponential(fetchRetryBase)
	backoff = retry.WithCappedDuration(fetchRetryMaxDelay, backoff)
	backoff = retry.WithMaxRetries(fetchRetryMax, backoff)
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			c.logger.Info("source fetch fail, retrying", "err", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// ApplyBlock projects one block and moves the checkpoint in the same transaction. Events of
// one entity are applied in order; distinct entities are applied concurrently.
func (c *ChainIndexer) ApplyBlock(ctx context.Context, blk *Block) (err error) {
	tx := c.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	lanes, order := partition(blk.Events)
	// lanes share the transaction's single sqlite connection
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range order {
		events := lanes[key]
		g.Go(func() error {
			for _, event := range events {
				if err := gctx.Err(); err != nil {
					return err
				}
				mu.Lock()
				err := c.handleEvent(tx, event, blk)
				mu.Unlock()
				if err != nil {
					return fmt.Errorf("event %s at %d: %w", event.Type, blk.Height, err)
				}
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}
	var cp Height
	if err = tx.Where("id = ?", 1).First(&cp).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	if uint64(blk.Height) > cp.Height {
		cp = Height{Id: 1, Height: uint64(blk.Height)}
		if err = tx.Save(&cp).Error; err != nil {
			return err
		}
	}
	if err = tx.Commit().Error; err != nil {
		return err
	}
	if blk.Height >= c.NextHeight() {
		c.height.Store(blk.Height + 1)
	}
	c.metrics.height.Set(float64(c.NextHeight() - 1))
	return nil
}

// partition groups events into lanes by the entity they touch, keeping emission order
// within each lane.
func partition(events []abci.Event) (map[string][]abci.Event, []string) {
	lanes := make(map[string][]abci.Event)
	order := make([]string, 0)
	for _, event := range events {
		key := laneKey(event)
		if _, ok := lanes[key]; !ok {
			order = append(order, key)
		}
		lanes[key] = append(lanes[key], event)
	}
	return lanes, order
}

func laneKey(event abci.Event) string {
	attr := func(key string) string {
		for _, a := range event.Attributes {
			if a.Key == key {
				return a.Value
			}
		}
		return ""
	}
	switch event.Type {
	case types.EventProposalCreatedType, types.EventVoteCastType,
		types.EventProposalStatusUpdatedType, types.EventProposalExecutedType:
		return "proposal/" + attr("proposal")
	case types.EventEntryAddedType, types.EventEntryRemovedType:
		return "entry/" + attr("entryType") + "/" + attr("value")
	default:
		return "governance"
	}
}

type eventHandler func(tx *gorm.DB, event abci.Event, blk *Block) error

func (c *ChainIndexer) handleEvent(tx *gorm.DB, event abci.Event, blk *Block) error {
	h, ok := c.eventHandlers[event.Type]
	if !ok {
		return nil
	}
	err := h(tx, event, blk)
	switch {
	case errors.Is(err, errSkipped):
		return nil
	case err != nil:
		return err
	}
	c.metrics.events.WithLabelValues(event.Type).Inc()
	return nil
}

// skip records a malformed event. handleEvent swallows the result, so it never fails the block.
func (c *ChainIndexer) skip(event abci.Event, height int64, err error) error {
	c.logger.Error("decode event fail", "type", event.Type, "height", height, "err", err)
	c.metrics.eventErrors.WithLabelValues(event.Type).Inc()
	return errSkipped
}

// toTime converts event seconds. Invalid values keep prev when it is set, otherwise fall
// back to the local clock.
func (c *ChainIndexer) toTime(sec int64, field string, prev time.Time) time.Time {
	if sec > 0 {
		return time.Unix(sec, 0).UTC()
	}
	if !prev.IsZero() {
		return prev
	}
	c.logger.Info("invalid event timestamp, using now", "field", field, "value", sec)
	return c.now().UTC()
}

func loadProposal(tx *gorm.DB, id uint64) (*Proposal, error) {
	p := &Proposal{}
	err := tx.Where("id = ?", id).First(p).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	p.Id = id
	return p, nil
}

func proposalAddress(pt types.ProposalType, addr string) string {
	if et, err := pt.EntryType(); err != nil || et == types.EntryTypeURL {
		return ""
	}
	return addr
}

func (c *ChainIndexer) handleEventProposalCreated(tx *gorm.DB, event abci.Event, blk *Block) error {
	ev, err := types.DecodeEventProposalCreated(event)
	if err == nil && ev.ProposalId == 0 {
		err = fmt.Errorf("%w: zero proposal id", types.ErrIndexer)
	}
	if err != nil {
		return c.skip(event, blk.Height, err)
	}
	p, err := loadProposal(tx, ev.ProposalId)
	if err != nil {
		return err
	}
	// descriptive fields only; tallies and status come from later events
	p.Type = uint8(ev.Type)
	p.Url = ev.Url
	p.Address = proposalAddress(ev.Type, ev.Address.Hex())
	p.Description = ev.Description
	p.Proposer = ev.Proposer.Hex()
	p.ProposedAt = c.toTime(ev.CreatedAt, "createdAt", p.ProposedAt)
	p.VotingEndsAt = c.toTime(ev.VotingEndsAt, "votingEndsAt", p.VotingEndsAt)
	p.NewHeight = uint64(blk.Height)
	return tx.Save(p).Error
}

func (c *ChainIndexer) handleEventVoteCast(tx *gorm.DB, event abci.Event, blk *Block) error {
	ev, err := types.DecodeEventVoteCast(event)
	if err != nil {
		return c.skip(event, blk.Height, err)
	}
	v := &Vote{}
	err = tx.Where("proposal_id = ? AND voter = ?", ev.ProposalId, ev.Voter.Hex()).First(v).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	v.ProposalId = ev.ProposalId
	v.Voter = ev.Voter.Hex()
	v.Support = ev.Support
	v.CastAt = c.toTime(ev.CastAt, "castAt", v.CastAt)
	v.Height = uint64(blk.Height)
	if err = tx.Save(v).Error; err != nil {
		return err
	}
	p, err := loadProposal(tx, ev.ProposalId)
	if err != nil {
		return err
	}
	// tallies are absolute and only grow
	if ev.YesCount+ev.NoCount >= p.YesVotes+p.NoVotes {
		p.YesVotes = ev.YesCount
		p.NoVotes = ev.NoCount
	}
	return tx.Save(p).Error
}

func (c *ChainIndexer) handleEventStatusUpdated(tx *gorm.DB, event abci.Event, blk *Block) error {
	ev, err := types.DecodeEventProposalStatusUpdated(event)
	if err != nil {
		return c.skip(event, blk.Height, err)
	}
	p, err := loadProposal(tx, ev.ProposalId)
	if err != nil {
		return err
	}
	if ev.NewStatus.Rank() > types.ProposalStatus(p.Status).Rank() {
		p.Status = uint8(ev.NewStatus)
		if ev.NewStatus != types.ProposalStatusExecuted {
			p.SettleHeight = uint64(blk.Height)
		}
	}
	return tx.Save(p).Error
}

func (c *ChainIndexer) handleEventProposalExecuted(tx *gorm.DB, event abci.Event, blk *Block) error {
	ev, err := types.DecodeEventProposalExecuted(event)
	if err != nil {
		return c.skip(event, blk.Height, err)
	}
	p, err := loadProposal(tx, ev.ProposalId)
	if err != nil {
		return err
	}
	if types.ProposalStatusExecuted.Rank() > types.ProposalStatus(p.Status).Rank() {
		p.Status = uint8(types.ProposalStatusExecuted)
	}
	p.Executor = ev.Executor.Hex()
	return tx.Save(p).Error
}

func (c *ChainIndexer) handleEventEntry(tx *gorm.DB, event abci.Event, blk *Block) error {
	ev, err := types.DecodeEventEntryChanged(event)
	if err != nil {
		return c.skip(event, blk.Height, err)
	}
	key := entryKey(ev.EntryType, ev.Value)
	e := &BlacklistEntry{}
	err = tx.Where("entry_key = ?", key).First(e).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	if e.Height > uint64(blk.Height) {
		c.logger.Debug("stale entry event", "key", key, "height", blk.Height, "mirror", e.Height)
		return nil
	}
	e.EntryKey = key
	e.EntryType = uint8(ev.EntryType)
	e.Value = ev.Value
	e.Height = uint64(blk.Height)
	if ev.Added {
		e.Active = true
		e.Proposer = ev.Actor.Hex()
		e.AddedAt = c.toTime(ev.Timestamp, "timestamp", e.AddedAt)
		e.Remover = ""
		e.RemovedAt = nil
	} else {
		var prev time.Time
		if e.RemovedAt != nil {
			prev = *e.RemovedAt
		}
		t := c.toTime(ev.Timestamp, "timestamp", prev)
		e.Active = false
		e.Remover = ev.Actor.Hex()
		e.RemovedAt = &t
	}
	return tx.Save(e).Error
}

func loadGovernance(tx *gorm.DB) (*Governance, error) {
	g := &Governance{}
	err := tx.Where("id = ?", 1).First(g).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	g.Id = 1
	return g, nil
}

func (c *ChainIndexer) handleEventParams(tx *gorm.DB, event abci.Event, blk *Block) error {
	ev, err := types.DecodeEventParamsUpdated(event)
	if err != nil {
		return c.skip(event, blk.Height, err)
	}
	g, err := loadGovernance(tx)
	if err != nil {
		return err
	}
	g.MinVotingPeriod = ev.Params.MinVotingPeriod
	g.MinVotesForApproval = ev.Params.MinVotesForApproval
	g.ApprovalMajorityPercentage = ev.Params.ApprovalMajorityPercentage
	g.MinTokensToPropose = ev.Params.MinTokensToPropose.String()
	g.Height = uint64(blk.Height)
	return tx.Save(g).Error
}

func (c *ChainIndexer) handleEventAuthority(tx *gorm.DB, event abci.Event, blk *Block) error {
	ev, err := types.DecodeEventAuthorityTransferred(event)
	if err != nil {
		return c.skip(event, blk.Height, err)
	}
	g, err := loadGovernance(tx)
	if err != nil {
		return err
	}
	g.Owner = ev.NewOwner.Hex()
	g.Height = uint64(blk.Height)
	return tx.Save(g).Error
}
