package types

import (
	"fmt"
	"math/big"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
)

const (
	EventProposalCreatedType       = "proposal_created"
	EventVoteCastType              = "vote_cast"
	EventProposalStatusUpdatedType = "proposal_status_updated"
	EventProposalExecutedType      = "proposal_executed"
	EventEntryAddedType            = "entry_added"
	EventEntryRemovedType          = "entry_removed"
	EventParamsUpdatedType         = "params_updated"
	EventAuthorityTransferredType  = "authority_transferred"
)

type EventProposalCreated struct {
	ProposalId   uint64         `json:"proposalId"`
	Type         ProposalType   `json:"type"`
	Url          string         `json:"url"`
	Address      common.Address `json:"address"`
	Description  string         `json:"description"`
	Proposer     common.Address `json:"proposer"`
	CreatedAt    int64          `json:"createdAt"`
	VotingEndsAt int64          `json:"votingEndsAt"`
}

type EventVoteCast struct {
	ProposalId uint64         `json:"proposalId"`
	Voter      common.Address `json:"voter"`
	Support    bool           `json:"support"`
	YesCount   uint64         `json:"yesCount"`
	NoCount    uint64         `json:"noCount"`
	CastAt     int64          `json:"castAt"`
}

type EventProposalStatusUpdated struct {
	ProposalId uint64         `json:"proposalId"`
	OldStatus  ProposalStatus `json:"oldStatus"`
	NewStatus  ProposalStatus `json:"newStatus"`
}

type EventProposalExecuted struct {
	ProposalId uint64         `json:"proposalId"`
	Type       ProposalType   `json:"type"`
	Url        string         `json:"url"`
	Address    common.Address `json:"address"`
	Executor   common.Address `json:"executor"`
}

// EventEntryChanged covers both entry_added and entry_removed; Actor is the proposer for
// additions and the remover for removals.
type EventEntryChanged struct {
	Added     bool           `json:"added"`
	EntryType EntryType      `json:"entryType"`
	Value     string         `json:"value"`
	Timestamp int64          `json:"timestamp"`
	Actor     common.Address `json:"actor"`
}

type EventParamsUpdated struct {
	Params GovParams `json:"params"`
}

type EventAuthorityTransferred struct {
	OldOwner common.Address `json:"oldOwner"`
	NewOwner common.Address `json:"newOwner"`
}

func attr(key, value string, index bool) abci.EventAttribute {
	return abci.EventAttribute{Key: key, Value: value, Index: index}
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func i64(v int64) string { return strconv.FormatInt(v, 10) }

// attrs collects event attributes by key and records the first parse failure.
type attrs struct {
	kv  map[string]string
	err error
}

func newAttrs(event abci.Event, want string) *attrs {
	a := &attrs{kv: make(map[string]string, len(event.Attributes))}
	if event.Type != want {
		a.err = fmt.Errorf("%w: event type %q, want %q", ErrIndexer, event.Type, want)
		return a
	}
	for _, v := range event.Attributes {
		a.kv[v.Key] = v.Value
	}
	return a
}

func (a *attrs) str(key string) string {
	v, ok := a.kv[key]
	if !ok && a.err == nil {
		a.err = fmt.Errorf("%w: missing attribute %q", ErrIndexer, key)
	}
	return v
}

func (a *attrs) uint(key string) uint64 {
	s := a.str(key)
	if a.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		a.err = fmt.Errorf("%w: attribute %q: %v", ErrIndexer, key, err)
	}
	return v
}

// int is lenient: timestamps are repaired by the consumer, so a bad value yields 0.
func (a *attrs) int(key string) int64 {
	v, err := strconv.ParseInt(a.kv[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (a *attrs) bool(key string) bool {
	s := a.str(key)
	if a.err != nil {
		return false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		a.err = fmt.Errorf("%w: attribute %q: %v", ErrIndexer, key, err)
	}
	return v
}

func (a *attrs) address(key string) common.Address {
	s := a.str(key)
	if a.err != nil {
		return common.Address{}
	}
	if s == "" {
		return common.Address{}
	}
	if !common.IsHexAddress(s) {
		a.err = fmt.Errorf("%w: attribute %q: invalid address %q", ErrIndexer, key, s)
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func EncodeEventProposalCreated(event *EventProposalCreated) abci.Event {
	return abci.Event{
		Type: EventProposalCreatedType,
		Attributes: []abci.EventAttribute{
			attr("proposal", u64(event.ProposalId), true),
			attr("type", u64(uint64(event.Type)), false),
			attr("url", event.Url, false),
			attr("address", event.Address.Hex(), false),
			attr("description", event.Description, false),
			attr("proposer", event.Proposer.Hex(), true),
			attr("createdAt", i64(event.CreatedAt), false),
			attr("votingEndsAt", i64(event.VotingEndsAt), false),
		},
	}
}

func DecodeEventProposalCreated(originEvent abci.Event) (*EventProposalCreated, error) {
	a := newAttrs(originEvent, EventProposalCreatedType)
	event := &EventProposalCreated{
		ProposalId:   a.uint("proposal"),
		Url:          a.str("url"),
		Address:      a.address("address"),
		Description:  a.str("description"),
		Proposer:     a.address("proposer"),
		CreatedAt:    a.int("createdAt"),
		VotingEndsAt: a.int("votingEndsAt"),
	}
	tp := a.uint("type")
	if a.err != nil {
		return nil, a.err
	}
	var err error
	if event.Type, err = ParseProposalType(tp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexer, err)
	}
	return event, nil
}

func EncodeEventVoteCast(event *EventVoteCast) abci.Event {
	return abci.Event{
		Type: EventVoteCastType,
		Attributes: []abci.EventAttribute{
			attr("proposal", u64(event.ProposalId), true),
			attr("voter", event.Voter.Hex(), true),
			attr("support", strconv.FormatBool(event.Support), false),
			attr("yesCount", u64(event.YesCount), false),
			attr("noCount", u64(event.NoCount), false),
			attr("castAt", i64(event.CastAt), false),
		},
	}
}

func DecodeEventVoteCast(originEvent abci.Event) (*EventVoteCast, error) {
	a := newAttrs(originEvent, EventVoteCastType)
	event := &EventVoteCast{
		ProposalId: a.uint("proposal"),
		Voter:      a.address("voter"),
		Support:    a.bool("support"),
		YesCount:   a.uint("yesCount"),
		NoCount:    a.uint("noCount"),
		CastAt:     a.int("castAt"),
	}
	if a.err != nil {
		return nil, a.err
	}
	return event, nil
}

func EncodeEventProposalStatusUpdated(event *EventProposalStatusUpdated) abci.Event {
	return abci.Event{
		Type: EventProposalStatusUpdatedType,
		Attributes: []abci.EventAttribute{
			attr("proposal", u64(event.ProposalId), true),
			attr("oldStatus", u64(uint64(event.OldStatus)), false),
			attr("newStatus", u64(uint64(event.NewStatus)), true),
		},
	}
}

func DecodeEventProposalStatusUpdated(originEvent abci.Event) (*EventProposalStatusUpdated, error) {
	a := newAttrs(originEvent, EventProposalStatusUpdatedType)
	event := &EventProposalStatusUpdated{
		ProposalId: a.uint("proposal"),
		OldStatus:  ProposalStatus(a.uint("oldStatus")),
		NewStatus:  ProposalStatus(a.uint("newStatus")),
	}
	if a.err != nil {
		return nil, a.err
	}
	if event.NewStatus.Rank() < 0 || event.OldStatus.Rank() < 0 {
		return nil, fmt.Errorf("%w: unknown status %d -> %d", ErrIndexer, event.OldStatus, event.NewStatus)
	}
	return event, nil
}

func EncodeEventProposalExecuted(event *EventProposalExecuted) abci.Event {
	return abci.Event{
		Type: EventProposalExecutedType,
		Attributes: []abci.EventAttribute{
			attr("proposal", u64(event.ProposalId), true),
			attr("type", u64(uint64(event.Type)), false),
			attr("url", event.Url, false),
			attr("address", event.Address.Hex(), false),
			attr("executor", event.Executor.Hex(), false),
		},
	}
}

func DecodeEventProposalExecuted(originEvent abci.Event) (*EventProposalExecuted, error) {
	a := newAttrs(originEvent, EventProposalExecutedType)
	event := &EventProposalExecuted{
		ProposalId: a.uint("proposal"),
		Url:        a.str("url"),
		Address:    a.address("address"),
		Executor:   a.address("executor"),
	}
	tp := a.uint("type")
	if a.err != nil {
		return nil, a.err
	}
	var err error
	if event.Type, err = ParseProposalType(tp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexer, err)
	}
	return event, nil
}

func EncodeEventEntryChanged(event *EventEntryChanged) abci.Event {
	typ, actorKey := EventEntryRemovedType, "remover"
	if event.Added {
		typ, actorKey = EventEntryAddedType, "proposer"
	}
	return abci.Event{
		Type: typ,
		Attributes: []abci.EventAttribute{
			attr("entryType", u64(uint64(event.EntryType)), true),
			attr("value", event.Value, true),
			attr("timestamp", i64(event.Timestamp), false),
			attr(actorKey, event.Actor.Hex(), false),
		},
	}
}

func DecodeEventEntryChanged(originEvent abci.Event) (*EventEntryChanged, error) {
	event := &EventEntryChanged{}
	actorKey := "remover"
	switch originEvent.Type {
	case EventEntryAddedType:
		event.Added = true
		actorKey = "proposer"
	case EventEntryRemovedType:
	default:
		return nil, fmt.Errorf("%w: event type %q is not an entry event", ErrIndexer, originEvent.Type)
	}
	a := newAttrs(originEvent, originEvent.Type)
	et := a.uint("entryType")
	event.Value = a.str("value")
	event.Timestamp = a.int("timestamp")
	event.Actor = a.address(actorKey)
	if a.err != nil {
		return nil, a.err
	}
	if et > uint64(EntryTypeAddress) {
		return nil, fmt.Errorf("%w: unknown entry type %d", ErrIndexer, et)
	}
	event.EntryType = EntryType(et)
	return event, nil
}

func EncodeEventParamsUpdated(event *EventParamsUpdated) abci.Event {
	p := event.Params
	return abci.Event{
		Type: EventParamsUpdatedType,
		Attributes: []abci.EventAttribute{
			attr("minVotingPeriod", u64(p.MinVotingPeriod), false),
			attr("minVotesForApproval", u64(p.MinVotesForApproval), false),
			attr("approvalMajorityPercentage", u64(p.ApprovalMajorityPercentage), false),
			attr("minTokensToPropose", p.MinTokensToPropose.String(), false),
		},
	}
}

func DecodeEventParamsUpdated(originEvent abci.Event) (*EventParamsUpdated, error) {
	a := newAttrs(originEvent, EventParamsUpdatedType)
	p := GovParams{
		MinVotingPeriod:            a.uint("minVotingPeriod"),
		MinVotesForApproval:        a.uint("minVotesForApproval"),
		ApprovalMajorityPercentage: a.uint("approvalMajorityPercentage"),
	}
	tokens := a.str("minTokensToPropose")
	if a.err != nil {
		return nil, a.err
	}
	v, ok := new(big.Int).SetString(tokens, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token amount %q", ErrIndexer, tokens)
	}
	p.MinTokensToPropose = v
	return &EventParamsUpdated{Params: p}, nil
}

func EncodeEventAuthorityTransferred(event *EventAuthorityTransferred) abci.Event {
	return abci.Event{
		Type: EventAuthorityTransferredType,
		Attributes: []abci.EventAttribute{
			attr("oldOwner", event.OldOwner.Hex(), false),
			attr("newOwner", event.NewOwner.Hex(), true),
		},
	}
}

func DecodeEventAuthorityTransferred(originEvent abci.Event) (*EventAuthorityTransferred, error) {
	a := newAttrs(originEvent, EventAuthorityTransferredType)
	event := &EventAuthorityTransferred{
		OldOwner: a.address("oldOwner"),
		NewOwner: a.address("newOwner"),
	}
	if a.err != nil {
		return nil, a.err
	}
	return event, nil
}
