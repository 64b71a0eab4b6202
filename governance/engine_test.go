package governance

import (
	"context"
	"math/big"
	"testing"

	"github.com/calehh/phishgov/oracle"
	"github.com/calehh/phishgov/store"
	"github.com/calehh/phishgov/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const t0 = int64(1_700_000_000)

var (
	owner = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	poor  = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	scam  = common.HexToAddress("0x000000000000000000000000000000000000dead")

	oneToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

type fixture struct {
	t        *testing.T
	kv       *store.CacheKV
	balances oracle.Static
}

func newFixture(t *testing.T) *fixture {
	kv := store.NewMemKV()
	require.NoError(t, InitGenesis(kv, owner, nil))
	return &fixture{
		t:  t,
		kv: kv,
		balances: oracle.Static{
			alice: new(big.Int).Mul(oneToken, big.NewInt(2)),
			bob:   big.NewInt(1),
			carol: big.NewInt(1),
			owner: big.NewInt(1),
		},
	}
}

func (f *fixture) at(now int64) *Engine {
	e, err := NewEngine(f.kv, f.balances, now, cmtlog.NewNopLogger())
	require.NoError(f.t, err)
	return e
}

func (f *fixture) propose(now int64, caller common.Address, args CreateProposalArgs) uint64 {
	id, events, err := f.at(now).CreateProposal(context.Background(), caller, args)
	require.NoError(f.t, err)
	require.Len(f.t, events, 1)
	assert.Equal(f.t, types.EventProposalCreatedType, events[0].Type)
	return id
}

func (f *fixture) status(id uint64) types.ProposalStatus {
	p, err := f.at(t0).GetProposal(id)
	require.NoError(f.t, err)
	return p.Status
}

func addURL(url string) CreateProposalArgs {
	return CreateProposalArgs{Type: types.ProposalTypeAddURL, Url: url, Description: "phishing kit", Duration: 60}
}

func eventTypes(events []abci.Event) []string {
	res := make([]string, len(events))
	for i, ev := range events {
		res[i] = ev.Type
	}
	return res
}

func TestProposalIdsSequential(t *testing.T) {
	f := newFixture(t)
	for want := uint64(1); want <= 3; want++ {
		assert.Equal(t, want, f.propose(t0, alice, addURL("https://evil.example/"+string(rune('a'+want)))))
	}
	count, err := f.at(t0).GetTotalProposalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestVotingPeriodClampedUp(t *testing.T) {
	f := newFixture(t)

	id := f.propose(t0, alice, addURL("https://evil.example"))
	p, err := f.at(t0).GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, t0, p.CreatedAt)
	assert.Equal(t, t0+types.DefaultMinVotingPeriod, p.VotingEndsAt)
	assert.Equal(t, types.ProposalStatusActive, p.Status)
	assert.Zero(t, p.YesVotes+p.NoVotes+p.TotalVoters)

	long := addURL("https://evil2.example")
	long.Duration = 10_000
	id = f.propose(t0, alice, long)
	p, err = f.at(t0).GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, t0+10_000, p.VotingEndsAt)
}

func TestCreateProposalValidation(t *testing.T) {
	cases := map[string]CreateProposalArgs{
		"empty description": {Type: types.ProposalTypeAddURL, Url: "https://x.example", Description: "  ", Duration: 1},
		"zero duration":     {Type: types.ProposalTypeAddURL, Url: "https://x.example", Description: "d"},
		"url for address":   {Type: types.ProposalTypeAddAddress, Url: "https://x.example", Description: "d", Duration: 1},
		"both targets":      {Type: types.ProposalTypeAddURL, Url: "https://x.example", Address: scam, Description: "d", Duration: 1},
		"no target":         {Type: types.ProposalTypeAddAddress, Description: "d", Duration: 1},
		"unknown type":      {Type: types.ProposalType(9), Url: "https://x.example", Description: "d", Duration: 1},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			_, events, err := f.at(t0).CreateProposal(context.Background(), alice, args)
			assert.ErrorIs(t, err, types.ErrValidation)
			assert.Empty(t, events)
			count, err := f.at(t0).GetTotalProposalCount()
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestCreateProposalAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.at(t0).CreateProposal(ctx, poor, addURL("https://evil.example"))
	assert.ErrorIs(t, err, types.ErrInsufficientTokens)
	assert.Equal(t, types.CodeAuthorization, types.ErrorCode(err))

	_, _, err = f.at(t0).CreateProposal(ctx, bob, addURL("https://evil.example"))
	assert.ErrorIs(t, err, types.ErrAuthorization, "one wei is below the default minimum")

	remove := CreateProposalArgs{Type: types.ProposalTypeRemoveURL, Url: "https://evil.example", Description: "false positive", Duration: 60}
	_, _, err = f.at(t0).CreateProposal(ctx, alice, remove)
	assert.ErrorIs(t, err, types.ErrNotOwner)

	id, _, err := f.at(t0).CreateProposal(ctx, owner, remove)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

// two voters split, 50% is below the 51% majority
func TestScenarioSplitVoteRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.propose(t0, alice, addURL("https://evil.example"))

	_, err := f.at(t0+1).Vote(ctx, bob, id, true)
	require.NoError(t, err)
	events, err := f.at(t0+2).Vote(ctx, carol, id, false)
	require.NoError(t, err)
	vc, err := types.DecodeEventVoteCast(events[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), vc.YesCount)
	assert.Equal(t, uint64(1), vc.NoCount)

	res, err := f.at(t0).GetVotingResults(id)
	require.NoError(t, err)
	assert.Equal(t, types.VotingResults{YesVotes: 1, NoVotes: 1, TotalVoters: 2, YesPercentage: 50}, *res)

	status, events, err := f.at(t0+types.DefaultMinVotingPeriod).ResolveVoting(id)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStatusRejected, status)
	su, err := types.DecodeEventProposalStatusUpdated(events[0])
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStatusActive, su.OldStatus)
	assert.Equal(t, types.ProposalStatusRejected, su.NewStatus)
}

func TestScenarioApproveAndExecute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.propose(t0, alice, addURL("https://Evil.Example/"))

	_, err := f.at(t0+1).Vote(ctx, bob, id, true)
	require.NoError(t, err)
	pass, err := f.at(t0 + 1).WillPass(id)
	require.NoError(t, err)
	assert.True(t, pass)
	assert.Equal(t, types.ProposalStatusActive, f.status(id))

	end := t0 + types.DefaultMinVotingPeriod
	status, _, err := f.at(end).ResolveVoting(id)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStatusApproved, status)

	events, err := f.at(end+5).ExecuteApproved(owner, id)
	require.NoError(t, err)
	assert.Equal(t, []string{
		types.EventEntryAddedType,
		types.EventProposalExecutedType,
		types.EventProposalStatusUpdatedType,
	}, eventTypes(events))
	assert.Equal(t, types.ProposalStatusExecuted, f.status(id))

	reg := f.at(end).Registry()
	ok, err := reg.IsBlacklisted(types.EntryTypeURL, "https://evil.example")
	require.NoError(t, err)
	assert.True(t, ok)
	entry, err := reg.GetEntry(types.EntryTypeURL, "https://evil.example")
	require.NoError(t, err)
	assert.Equal(t, alice, entry.Proposer)
	assert.Equal(t, end+5, entry.CreatedAt)

	_, err = f.at(end+6).ExecuteApproved(owner, id)
	assert.ErrorIs(t, err, types.ErrState)
}

func TestScenarioAlreadyVoted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.propose(t0, alice, addURL("https://evil.example"))

	_, err := f.at(t0+1).Vote(ctx, bob, id, true)
	require.NoError(t, err)
	_, err = f.at(t0+2).Vote(ctx, bob, id, false)
	assert.ErrorIs(t, err, types.ErrAlreadyVoted)
	assert.ErrorIs(t, err, types.ErrState)

	res, err := f.at(t0).GetVotingResults(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.TotalVoters)

	voted, err := f.at(t0).HasVoted(id, bob)
	require.NoError(t, err)
	assert.True(t, voted)
	vote, err := f.at(t0).GetVote(id, bob)
	require.NoError(t, err)
	assert.True(t, vote.Support)
	assert.Equal(t, t0+1, vote.CastAt)

	voted, err = f.at(t0).HasVoted(id, carol)
	require.NoError(t, err)
	assert.False(t, voted)
	_, err = f.at(t0).GetVote(id, carol)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestScenarioExecuteByNonOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.propose(t0, alice, addURL("https://evil.example"))
	_, err := f.at(t0+1).Vote(ctx, bob, id, true)
	require.NoError(t, err)
	_, _, err = f.at(t0 + types.DefaultMinVotingPeriod).ResolveVoting(id)
	require.NoError(t, err)

	events, err := f.at(t0+types.DefaultMinVotingPeriod).ExecuteApproved(alice, id)
	assert.ErrorIs(t, err, types.ErrAuthorization)
	assert.Empty(t, events)
	assert.Equal(t, types.ProposalStatusApproved, f.status(id))
	ok, err := f.at(t0).Registry().IsBlacklisted(types.EntryTypeURL, "https://evil.example")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScenarioRemoveAbsentStaysApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	remove := CreateProposalArgs{Type: types.ProposalTypeRemoveURL, Url: "https://never.example", Description: "cleanup", Duration: 1}
	id := f.propose(t0, owner, remove)
	_, err := f.at(t0+1).Vote(ctx, bob, id, true)
	require.NoError(t, err)
	_, _, err = f.at(t0 + types.DefaultMinVotingPeriod).ResolveVoting(id)
	require.NoError(t, err)

	_, err = f.at(t0+types.DefaultMinVotingPeriod).ExecuteApproved(owner, id)
	assert.ErrorIs(t, err, types.ErrExecution)
	assert.ErrorIs(t, err, types.ErrNotBlacklisted)
	assert.Equal(t, types.CodeExecution, types.ErrorCode(err))
	assert.Equal(t, types.ProposalStatusApproved, f.status(id))
}

func TestResolveLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.propose(t0, alice, addURL("https://evil.example"))
	end := t0 + types.DefaultMinVotingPeriod

	_, _, err := f.at(end - 1).ResolveVoting(id)
	assert.ErrorIs(t, err, types.ErrVotingNotEnded)

	_, err = f.at(end).Vote(ctx, bob, id, true)
	assert.ErrorIs(t, err, types.ErrVotingEnded)

	status, _, err := f.at(end).ResolveVoting(id)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStatusRejected, status, "no voters")

	_, _, err = f.at(end + 1).ResolveVoting(id)
	assert.ErrorIs(t, err, types.ErrProposalNotActive)

	_, err = f.at(end+1).Vote(ctx, carol, id, true)
	assert.ErrorIs(t, err, types.ErrState)

	_, err = f.at(end+1).ExecuteApproved(owner, id)
	assert.ErrorIs(t, err, types.ErrProposalNotApproved)

	_, _, err = f.at(end).ResolveVoting(99)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = f.at(end).Vote(ctx, bob, 99, true)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestVoterWithoutTokens(t *testing.T) {
	f := newFixture(t)
	id := f.propose(t0, alice, addURL("https://evil.example"))
	_, err := f.at(t0+1).Vote(context.Background(), poor, id, true)
	assert.ErrorIs(t, err, types.ErrInsufficientTokens)
	assert.ErrorIs(t, err, types.ErrAuthorization)
	assert.Equal(t, types.CodeAuthorization, types.ErrorCode(err))
	voted, err := f.at(t0).HasVoted(id, poor)
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestPasses(t *testing.T) {
	params := types.DefaultGovParams()
	cases := []struct {
		yes, total uint64
		minVotes   uint64
		majority   uint64
		want       bool
	}{
		{0, 0, 1, 51, false},
		{0, 0, 0, 1, false},
		{1, 2, 1, 51, false},
		{1, 1, 1, 51, true},
		{51, 100, 1, 51, true},
		{50, 100, 1, 51, false},
		{2, 3, 1, 66, true},
		{2, 3, 1, 67, false},
		{2, 2, 3, 51, false},
	}
	for _, c := range cases {
		params.MinVotesForApproval = c.minVotes
		params.ApprovalMajorityPercentage = c.majority
		assert.Equal(t, c.want, Passes(c.yes, c.total, params), "%d/%d min=%d pct=%d", c.yes, c.total, c.minVotes, c.majority)
	}
}

func TestProposalListings(t *testing.T) {
	f := newFixture(t)
	short := f.propose(t0, alice, addURL("https://a.example"))
	long := addURL("https://b.example")
	long.Duration = 2 * types.DefaultMinVotingPeriod
	longID := f.propose(t0, alice, long)
	ownID := f.propose(t0, owner, CreateProposalArgs{Type: types.ProposalTypeRemoveAddress, Address: scam, Description: "unfreeze", Duration: 1})

	e := f.at(t0 + types.DefaultMinVotingPeriod)
	active, err := e.GetActiveProposals()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, longID, active[0].Id)

	ready, err := e.GetProposalsReadyToResolve()
	require.NoError(t, err)
	require.Len(t, ready, 2)
	assert.Equal(t, short, ready[0].Id)
	assert.Equal(t, ownID, ready[1].Id)

	mine, err := e.GetProposalsByProposer(owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, scam, mine[0].Address)
	assert.Empty(t, mine[0].Url)
}

func TestSetParamsAndTransferAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newOwner := carol

	params := types.DefaultGovParams()
	params.MinVotingPeriod = 60
	params.MinTokensToPropose = big.NewInt(1)
	_, err := f.at(t0).SetParams(alice, params)
	assert.ErrorIs(t, err, types.ErrNotOwner)
	bad := params
	bad.ApprovalMajorityPercentage = 101
	_, err = f.at(t0).SetParams(owner, bad)
	assert.ErrorIs(t, err, types.ErrValidation)
	events, err := f.at(t0).SetParams(owner, params)
	require.NoError(t, err)
	pu, err := types.DecodeEventParamsUpdated(events[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(60), pu.Params.MinVotingPeriod)

	id := f.propose(t0, bob, addURL("https://evil.example"))
	_, err = f.at(t0+1).Vote(ctx, bob, id, true)
	require.NoError(t, err)
	_, _, err = f.at(t0 + 60).ResolveVoting(id)
	require.NoError(t, err)

	_, err = f.at(t0).TransferAuthority(owner, common.Address{})
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = f.at(t0).TransferAuthority(alice, newOwner)
	assert.ErrorIs(t, err, types.ErrNotOwner)
	events, err = f.at(t0).TransferAuthority(owner, newOwner)
	require.NoError(t, err)
	at, err := types.DecodeEventAuthorityTransferred(events[0])
	require.NoError(t, err)
	assert.Equal(t, owner, at.OldOwner)
	assert.Equal(t, newOwner, at.NewOwner)

	_, err = f.at(t0+61).ExecuteApproved(owner, id)
	assert.ErrorIs(t, err, types.ErrNotOwner)
	_, err = f.at(t0+61).ExecuteApproved(newOwner, id)
	require.NoError(t, err)
	assert.Equal(t, newOwner, f.at(t0).Authority().Owner)
	assert.Equal(t, types.EngineAddress, f.at(t0).Authority().Engine)
}

func TestNotInitialized(t *testing.T) {
	_, err := NewEngine(store.NewMemKV(), oracle.Static{}, t0, cmtlog.NewNopLogger())
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, InitGenesis(store.NewMemKV(), common.Address{}, nil), types.ErrValidation)
}
