package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/calehh/phishgov/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jinzhu/gorm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	t0    = time.Unix(1_700_000_000, 0).UTC()
)

type fakeSource struct {
	mtx      sync.Mutex
	blocks   map[int64]*Block
	latest   int64
	failures int
}

func newFakeSource(blocks ...*Block) *fakeSource {
	s := &fakeSource{blocks: make(map[int64]*Block)}
	for _, b := range blocks {
		s.add(b)
	}
	return s
}

func (s *fakeSource) add(b *Block) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.blocks[b.Height] = b
	if b.Height > s.latest {
		s.latest = b.Height
	}
}

func (s *fakeSource) LatestHeight(context.Context) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.latest, nil
}

func (s *fakeSource) BlockEvents(_ context.Context, height int64) (*Block, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("rpc unavailable")
	}
	if b, ok := s.blocks[height]; ok {
		return b, nil
	}
	return &Block{Height: height, Time: t0.Add(time.Duration(height) * time.Second)}, nil
}

func newTestIndexer(t *testing.T, src EventSource) (*ChainIndexer, *gorm.DB) {
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c, err := NewChainIndexer(cmtlog.NewNopLogger(), db, src, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	c.now = func() time.Time { return t0 }
	return c, db
}

func created(id uint64, url string, proposer common.Address, at int64) abci.Event {
	return types.EncodeEventProposalCreated(&types.EventProposalCreated{
		ProposalId:   id,
		Type:         types.ProposalTypeAddURL,
		Url:          url,
		Description:  "phishing kit",
		Proposer:     proposer,
		CreatedAt:    at,
		VotingEndsAt: at + 60,
	})
}

func voted(id uint64, voter common.Address, support bool, yes, no uint64) abci.Event {
	return types.EncodeEventVoteCast(&types.EventVoteCast{
		ProposalId: id,
		Voter:      voter,
		Support:    support,
		YesCount:   yes,
		NoCount:    no,
		CastAt:     t0.Unix() + 10,
	})
}

func statusUpdated(id uint64, from, to types.ProposalStatus) abci.Event {
	return types.EncodeEventProposalStatusUpdated(&types.EventProposalStatusUpdated{ProposalId: id, OldStatus: from, NewStatus: to})
}

func entryChanged(added bool, url string, actor common.Address, at int64) abci.Event {
	return types.EncodeEventEntryChanged(&types.EventEntryChanged{
		Added:     added,
		EntryType: types.EntryTypeURL,
		Value:     url,
		Timestamp: at,
		Actor:     actor,
	})
}

func TestApplyBlockProjectsEvents(t *testing.T) {
	c, _ := newTestIndexer(t, newFakeSource())
	ctx := context.Background()
	url := "https://evil.example"

	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 1, Time: t0, Events: []abci.Event{
		created(1, url, alice, t0.Unix()),
		voted(1, alice, true, 1, 0),
		voted(1, bob, false, 1, 1),
	}}))
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 2, Time: t0, Events: []abci.Event{
		statusUpdated(1, types.ProposalStatusActive, types.ProposalStatusApproved),
	}}))
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 3, Time: t0, Events: []abci.Event{
		entryChanged(true, url, alice, t0.Unix()+100),
		types.EncodeEventProposalExecuted(&types.EventProposalExecuted{ProposalId: 1, Type: types.ProposalTypeAddURL, Url: url, Executor: bob}),
		statusUpdated(1, types.ProposalStatusApproved, types.ProposalStatusExecuted),
	}}))

	p, err := c.GetProposalById(1)
	require.NoError(t, err)
	assert.Equal(t, url, p.Url)
	assert.Equal(t, alice.Hex(), p.Proposer)
	assert.Equal(t, uint64(1), p.YesVotes)
	assert.Equal(t, uint64(1), p.NoVotes)
	assert.Equal(t, uint8(types.ProposalStatusExecuted), p.Status)
	assert.Equal(t, "executed", p.StatusName())
	assert.Equal(t, bob.Hex(), p.Executor)
	assert.Equal(t, uint64(1), p.NewHeight)
	assert.Equal(t, uint64(2), p.SettleHeight)
	assert.Equal(t, t0.Unix(), p.ProposedAt.Unix())
	assert.Equal(t, t0.Unix()+60, p.VotingEndsAt.Unix())

	votes, total, err := c.GetVotes(1, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	assert.Len(t, votes, 2)

	entries, total, err := c.GetBlacklist(types.EntryTypeURL, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, url, entries[0].Value)
	assert.Equal(t, t0.Unix()+100, entries[0].AddedAt.Unix())

	cp, err := c.Checkpoint()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cp)
	assert.Equal(t, int64(4), c.NextHeight())
	assert.Equal(t, float64(3), testutil.ToFloat64(c.metrics.height))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.metrics.events.WithLabelValues(types.EventVoteCastType)))
}

func TestReplayIsIdempotent(t *testing.T) {
	c, db := newTestIndexer(t, newFakeSource())
	ctx := context.Background()
	blk := &Block{Height: 1, Time: t0, Events: []abci.Event{
		created(1, "https://evil.example", alice, t0.Unix()),
		voted(1, alice, true, 1, 0),
		entryChanged(true, "https://evil.example", alice, t0.Unix()),
	}}
	require.NoError(t, c.ApplyBlock(ctx, blk))
	require.NoError(t, c.ApplyBlock(ctx, blk))

	var n int
	require.NoError(t, db.Model(&Proposal{}).Count(&n).Error)
	assert.Equal(t, 1, n)
	require.NoError(t, db.Model(&Vote{}).Count(&n).Error)
	assert.Equal(t, 1, n)
	require.NoError(t, db.Model(&BlacklistEntry{}).Count(&n).Error)
	assert.Equal(t, 1, n)
	p, err := c.GetProposalById(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.YesVotes)
}

func TestStatusNeverRegresses(t *testing.T) {
	c, _ := newTestIndexer(t, newFakeSource())
	ctx := context.Background()
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 5, Time: t0, Events: []abci.Event{
		statusUpdated(7, types.ProposalStatusApproved, types.ProposalStatusExecuted),
	}}))
	// an older status and an older tally arrive late
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 4, Time: t0, Events: []abci.Event{
		statusUpdated(7, types.ProposalStatusActive, types.ProposalStatusApproved),
		voted(7, alice, true, 3, 0),
		voted(7, bob, true, 2, 0),
	}}))
	p, err := c.GetProposalById(7)
	require.NoError(t, err)
	assert.Equal(t, uint8(types.ProposalStatusExecuted), p.Status)
	assert.Equal(t, uint64(3), p.YesVotes)

	cp, err := c.Checkpoint()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cp)
}

func TestVoteBeforeCreateKeepsTally(t *testing.T) {
	c, _ := newTestIndexer(t, newFakeSource())
	ctx := context.Background()
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 1, Time: t0, Events: []abci.Event{
		voted(2, bob, true, 1, 0),
	}}))
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 2, Time: t0, Events: []abci.Event{
		created(2, "https://late.example", alice, t0.Unix()),
	}}))
	p, err := c.GetProposalById(2)
	require.NoError(t, err)
	assert.Equal(t, "https://late.example", p.Url)
	assert.Equal(t, uint64(1), p.YesVotes)
}

func TestMalformedEventSkipped(t *testing.T) {
	c, _ := newTestIndexer(t, newFakeSource())
	bad := abci.Event{Type: types.EventVoteCastType, Attributes: []abci.EventAttribute{{Key: "proposal", Value: "x"}}}
	require.NoError(t, c.ApplyBlock(context.Background(), &Block{Height: 1, Time: t0, Events: []abci.Event{
		bad,
		created(1, "https://evil.example", alice, t0.Unix()),
	}}))
	_, err := c.GetProposalById(1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.eventErrors.WithLabelValues(types.EventVoteCastType)))
	assert.Zero(t, testutil.ToFloat64(c.metrics.events.WithLabelValues(types.EventVoteCastType)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.events.WithLabelValues(types.EventProposalCreatedType)))
	cp, err := c.Checkpoint()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cp)
}

func TestInvalidTimestampFallsBack(t *testing.T) {
	c, _ := newTestIndexer(t, newFakeSource())
	ctx := context.Background()
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 1, Time: t0, Events: []abci.Event{
		created(1, "https://evil.example", alice, 0),
	}}))
	p, err := c.GetProposalById(1)
	require.NoError(t, err)
	assert.Equal(t, t0.Unix(), p.ProposedAt.Unix())

	// a later bad value keeps the stored one
	c.now = func() time.Time { return t0.Add(time.Hour) }
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 2, Time: t0, Events: []abci.Event{
		created(1, "https://evil.example", alice, -5),
	}}))
	p, err = c.GetProposalById(1)
	require.NoError(t, err)
	assert.Equal(t, t0.Unix(), p.ProposedAt.Unix())
}

func TestEntryRemovalAndCheck(t *testing.T) {
	c, _ := newTestIndexer(t, newFakeSource())
	ctx := context.Background()
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 1, Time: t0, Events: []abci.Event{
		entryChanged(true, "https://a.example", alice, t0.Unix()),
		entryChanged(true, "https://b.example", alice, t0.Unix()),
	}}))
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 2, Time: t0, Events: []abci.Event{
		entryChanged(false, "https://b.example", bob, t0.Unix()+5),
	}}))
	// a stale re-add must not resurrect the removed entry
	require.NoError(t, c.ApplyBlock(ctx, &Block{Height: 1, Time: t0, Events: []abci.Event{
		entryChanged(true, "https://b.example", alice, t0.Unix()),
	}}))

	res, err := c.CheckBlacklist(types.EntryTypeURL, []string{"https://B.example/", " https://A.example ", "", "https://c.example", "https://a.example"})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false, false, true}, res)

	entries, total, err := c.GetBlacklist(types.EntryTypeURL, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	assert.Equal(t, "https://a.example", entries[0].Value)

	res, err = c.CheckBlacklist(types.EntryTypeAddress, []string{"not-an-address"})
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, res)
}

func TestGovernanceProjection(t *testing.T) {
	c, _ := newTestIndexer(t, newFakeSource())
	params := types.DefaultGovParams()
	params.MinVotesForApproval = 3
	require.NoError(t, c.ApplyBlock(context.Background(), &Block{Height: 1, Time: t0, Events: []abci.Event{
		types.EncodeEventParamsUpdated(&types.EventParamsUpdated{Params: params}),
		types.EncodeEventAuthorityTransferred(&types.EventAuthorityTransferred{OldOwner: alice, NewOwner: bob}),
	}}))
	g, err := c.GetGovernance()
	require.NoError(t, err)
	assert.Equal(t, bob.Hex(), g.Owner)
	assert.Equal(t, uint64(3), g.MinVotesForApproval)
	assert.Equal(t, params.MinTokensToPropose.String(), g.MinTokensToPropose)
}

func TestSyncRetriesAndResumes(t *testing.T) {
	src := newFakeSource(
		&Block{Height: 1, Time: t0, Events: []abci.Event{created(1, "https://one.example", alice, t0.Unix())}},
		&Block{Height: 2, Time: t0},
		&Block{Height: 3, Time: t0, Events: []abci.Event{created(2, "https://two.example", bob, t0.Unix())}},
	)
	src.failures = 2
	c, db := newTestIndexer(t, src)
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, int64(4), c.NextHeight())

	proposals, total, err := c.GetProposals(ProposalFilter{Proposer: bob.Hex()}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	assert.Equal(t, uint64(2), proposals[0].Id)

	active := uint8(types.ProposalStatusActive)
	_, total, err = c.GetProposals(ProposalFilter{Status: &active}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)

	resumed, err := NewChainIndexer(cmtlog.NewNopLogger(), db, src, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	assert.Equal(t, int64(4), resumed.NextHeight())
}

func TestRunStopsOnCancel(t *testing.T) {
	c, _ := newTestIndexer(t, newFakeSource(&Block{Height: 1, Time: t0}))
	c.interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	require.Eventually(t, func() bool { return c.NextHeight() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("indexer did not stop")
	}
}
