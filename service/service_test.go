package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calehh/phishgov/indexer"
	"github.com/calehh/phishgov/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newTestService(t *testing.T) *Service {
	gin.SetMode(gin.TestMode)
	db, err := indexer.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	reg := prometheus.NewRegistry()
	idx, err := indexer.NewChainIndexer(cmtlog.NewNopLogger(), db, nil, indexer.Options{Registerer: reg})
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, idx.ApplyBlock(context.Background(), &indexer.Block{Height: 1, Time: now, Events: []abci.Event{
		types.EncodeEventProposalCreated(&types.EventProposalCreated{
			ProposalId: 1, Type: types.ProposalTypeAddURL, Url: "https://evil.example",
			Description: "d", Proposer: alice, CreatedAt: now.Unix(), VotingEndsAt: now.Unix() + 60,
		}),
		types.EncodeEventProposalCreated(&types.EventProposalCreated{
			ProposalId: 2, Type: types.ProposalTypeAddAddress, Address: bob,
			Description: "d", Proposer: bob, CreatedAt: now.Unix(), VotingEndsAt: now.Unix() + 60,
		}),
		types.EncodeEventVoteCast(&types.EventVoteCast{ProposalId: 1, Voter: alice, Support: true, YesCount: 1, CastAt: now.Unix()}),
		types.EncodeEventVoteCast(&types.EventVoteCast{ProposalId: 1, Voter: bob, Support: false, YesCount: 1, NoCount: 1, CastAt: now.Unix()}),
	}}))
	require.NoError(t, idx.ApplyBlock(context.Background(), &indexer.Block{Height: 2, Time: now, Events: []abci.Event{
		types.EncodeEventProposalStatusUpdated(&types.EventProposalStatusUpdated{ProposalId: 1, NewStatus: types.ProposalStatusApproved}),
		types.EncodeEventEntryChanged(&types.EventEntryChanged{Added: true, EntryType: types.EntryTypeURL, Value: "https://evil.example", Timestamp: now.Unix(), Actor: alice}),
	}}))
	return NewService(cmtlog.NewNopLogger(), ":0", idx, reg)
}

func post(t *testing.T, s *Service, path string, body any, out any) int {
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestGetProposals(t *testing.T) {
	s := newTestService(t)

	var all GetProposalResponse
	assert.Equal(t, http.StatusOK, post(t, s, "/getProposals", GetProposalsReq{}, &all))
	assert.Equal(t, uint64(2), all.Total)
	require.Len(t, all.Proposals, 2)
	assert.Equal(t, uint64(2), all.Proposals[0].Id)

	var one GetProposalResponse
	assert.Equal(t, http.StatusOK, post(t, s, "/getProposals", GetProposalsReq{ProposalId: 1}, &one))
	require.Len(t, one.Proposals, 1)
	assert.Equal(t, uint64(1), one.Proposals[0].YesVotes)
	assert.Equal(t, uint64(1), one.Proposals[0].NoVotes)

	approved := uint8(types.ProposalStatusApproved)
	var byStatus GetProposalResponse
	assert.Equal(t, http.StatusOK, post(t, s, "/getProposals", GetProposalsReq{Status: &approved}, &byStatus))
	assert.Equal(t, uint64(1), byStatus.Total)

	var byProposer GetProposalResponse
	assert.Equal(t, http.StatusOK, post(t, s, "/getProposals", GetProposalsReq{Proposer: bob.Hex()}, &byProposer))
	require.Len(t, byProposer.Proposals, 1)
	assert.Equal(t, bob.Hex(), byProposer.Proposals[0].Address)

	// any hex casing matches the checksummed column
	var lower GetProposalResponse
	assert.Equal(t, http.StatusOK, post(t, s, "/getProposals", GetProposalsReq{Proposer: strings.ToLower(alice.Hex())}, &lower))
	require.Len(t, lower.Proposals, 1)
	assert.Equal(t, uint64(1), lower.Proposals[0].Id)
	assert.Equal(t, http.StatusBadRequest, post(t, s, "/getProposals", GetProposalsReq{Proposer: "alice"}, nil))

	var missing GetProposalResponse
	assert.Equal(t, http.StatusOK, post(t, s, "/getProposals", GetProposalsReq{ProposalId: 9}, &missing))
	assert.Empty(t, missing.Proposals)
}

func TestGetVotes(t *testing.T) {
	s := newTestService(t)

	var res GetVotesResponse
	assert.Equal(t, http.StatusOK, post(t, s, "/getVotes", GetVotesReq{ProposalId: 1, PageSize: 1}, &res))
	assert.Equal(t, uint64(2), res.Total)
	assert.Len(t, res.Votes, 1)

	assert.Equal(t, http.StatusOK, post(t, s, "/getVotes", GetVotesReq{Voter: bob.Hex()}, &res))
	require.Len(t, res.Votes, 1)
	assert.False(t, res.Votes[0].Support)

	var lower GetVotesResponse
	assert.Equal(t, http.StatusOK, post(t, s, "/getVotes", GetVotesReq{Voter: strings.ToLower(alice.Hex())}, &lower))
	require.Len(t, lower.Votes, 1)
	assert.True(t, lower.Votes[0].Support)

	assert.Equal(t, http.StatusBadRequest, post(t, s, "/getVotes", GetVotesReq{}, nil))
	assert.Equal(t, http.StatusBadRequest, post(t, s, "/getVotes", GetVotesReq{Voter: "0x12"}, nil))
}

func TestBlacklistEndpoints(t *testing.T) {
	s := newTestService(t)

	var list GetBlacklistResponse
	assert.Equal(t, http.StatusOK, post(t, s, "/getBlacklist", GetBlacklistReq{Type: "url"}, &list))
	assert.Equal(t, uint64(1), list.Total)
	assert.Equal(t, http.StatusBadRequest, post(t, s, "/getBlacklist", GetBlacklistReq{Type: "domain"}, nil))

	var check CheckBlacklistResponse
	assert.Equal(t, http.StatusOK, post(t, s, "/checkBlacklist", CheckBlacklistReq{
		Type:   "url",
		Values: []string{"https://safe.example", "HTTPS://EVIL.example/"},
	}, &check))
	assert.Equal(t, []bool{false, true}, check.Results)
	assert.Equal(t, uint64(2), check.Height)

	req := httptest.NewRequest(http.MethodPost, "/checkBlacklist", strings.NewReader("{"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusAndMetrics(t *testing.T) {
	s := newTestService(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, uint64(2), status.Height)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "indexer_height 2")
	assert.Contains(t, w.Body.String(), `indexer_events_total{type="vote_cast"} 2`)
}
