package tx

import (
	"errors"
	"fmt"
)

type GovTxType uint8

const (
	GovTxTypeUnknown           GovTxType = 0
	GovTxTypeCreateProposal    GovTxType = 1
	GovTxTypeVote              GovTxType = 2
	GovTxTypeResolveVoting     GovTxType = 3
	GovTxTypeExecuteApproved   GovTxType = 4
	GovTxTypeSetParams         GovTxType = 5
	GovTxTypeTransferAuthority GovTxType = 6
)

func (t GovTxType) String() string {
	switch t {
	case GovTxTypeCreateProposal:
		return "createProposal"
	case GovTxTypeVote:
		return "vote"
	case GovTxTypeResolveVoting:
		return "resolveVoting"
	case GovTxTypeExecuteApproved:
		return "executeApproved"
	case GovTxTypeSetParams:
		return "setParams"
	case GovTxTypeTransferAuthority:
		return "transferAuthority"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

const (
	GovTxVersion0 uint8 = 0
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
	ErrTxSigInvalid         = errors.New("signature invalid")
	ErrTxNonceInvalid       = errors.New("nonce invalid")
)
