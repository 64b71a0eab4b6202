package types

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrAuthorization = errors.New("authorization error")
	ErrState         = errors.New("state error")
	ErrNotFound      = errors.New("not found")
	ErrExecution     = errors.New("execution error")
	ErrIndexer       = errors.New("indexer error")
)

var (
	ErrAlreadyVoted        = fmt.Errorf("%w: already voted", ErrState)
	ErrProposalNotActive   = fmt.Errorf("%w: proposal not active", ErrState)
	ErrVotingEnded         = fmt.Errorf("%w: voting period ended", ErrState)
	ErrVotingNotEnded      = fmt.Errorf("%w: voting period not ended", ErrState)
	ErrProposalNotApproved = fmt.Errorf("%w: proposal not approved", ErrState)
	ErrProposalNoexists    = fmt.Errorf("%w: proposal noexists", ErrNotFound)
	ErrNotOwner            = fmt.Errorf("%w: caller is not owner", ErrAuthorization)
	ErrNotEngine           = fmt.Errorf("%w: caller is not governance engine", ErrAuthorization)
	ErrInsufficientTokens  = fmt.Errorf("%w: insufficient token balance", ErrAuthorization)
	ErrAlreadyBlacklisted  = fmt.Errorf("%w: already blacklisted", ErrState)
	ErrNotBlacklisted      = fmt.Errorf("%w: not blacklisted", ErrState)
)

// ABCI result codes, one per error kind. Zero is success.
const (
	CodeOK            uint32 = 0
	CodeValidation    uint32 = 1
	CodeAuthorization uint32 = 2
	CodeState         uint32 = 3
	CodeNotFound      uint32 = 4
	CodeExecution     uint32 = 5
	CodeInternal      uint32 = 100
)

const Codespace = "blacklistgov"

func ErrorCode(err error) uint32 {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrAuthorization):
		return CodeAuthorization
	case errors.Is(err, ErrExecution):
		return CodeExecution
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrState):
		return CodeState
	default:
		return CodeInternal
	}
}

// CodeError rebuilds a taxonomy error from an ABCI result code and log.
func CodeError(code uint32, log string) error {
	var kind error
	switch code {
	case CodeOK:
		return nil
	case CodeValidation:
		kind = ErrValidation
	case CodeAuthorization:
		kind = ErrAuthorization
	case CodeState:
		kind = ErrState
	case CodeNotFound:
		kind = ErrNotFound
	case CodeExecution:
		kind = ErrExecution
	default:
		return fmt.Errorf("code %d: %s", code, log)
	}
	return fmt.Errorf("%w: %s", kind, log)
}
