package tx

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/calehh/phishgov/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// GovTx is the signed envelope every governance operation travels in.
type GovTx struct {
	Version uint8          `json:"version"`
	Type    GovTxType      `json:"type"`
	Nonce   uint64         `json:"nonce"`
	Sender  common.Address `json:"sender"`
	Tx      any            `json:"tx"`
	Sig     []byte         `json:"sig"`
}

type CreateProposalTx struct {
	Type        types.ProposalType `json:"type"`
	Url         string             `json:"url"`
	Address     common.Address     `json:"address"`
	Description string             `json:"description"`
	Duration    uint64             `json:"duration"`
}

type VoteTx struct {
	Proposal uint64 `json:"proposal"`
	Support  bool   `json:"support"`
}

type ResolveVotingTx struct {
	Proposal uint64 `json:"proposal"`
}

type ExecuteApprovedTx struct {
	Proposal uint64 `json:"proposal"`
}

type SetParamsTx struct {
	Params types.GovParams `json:"params"`
}

type TransferAuthorityTx struct {
	NewOwner common.Address `json:"newOwner"`
}

type govTxTmpl[Tx any] struct {
	Version uint8          `json:"version"`
	Type    GovTxType      `json:"type"`
	Nonce   uint64         `json:"nonce"`
	Sender  common.Address `json:"sender"`
	Tx      Tx             `json:"tx"`
	Sig     []byte         `json:"sig"`
}

// SigData is the hash a sender signs: the envelope with the chain id in place of the signature.
func (tx *GovTx) SigData(chainId []byte) (hash []byte, err error) {
	ntx := *tx
	ntx.Sig = chainId
	dat, err := json.Marshal(ntx)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(dat), nil
}

func (tx *GovTx) Sign(chainId string, key *ecdsa.PrivateKey) error {
	tx.Sender = crypto.PubkeyToAddress(key.PublicKey)
	hash, err := tx.SigData([]byte(chainId))
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return err
	}
	tx.Sig = sig
	return nil
}

// Verify checks that Sig was produced by Sender over this envelope on chainId.
func (tx *GovTx) Verify(chainId string) error {
	if len(tx.Sig) != crypto.SignatureLength {
		return ErrTxSigInvalid
	}
	hash, err := tx.SigData([]byte(chainId))
	if err != nil {
		return err
	}
	pub, err := crypto.SigToPub(hash, tx.Sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTxSigInvalid, err)
	}
	if crypto.PubkeyToAddress(*pub) != tx.Sender {
		return ErrTxSigInvalid
	}
	return nil
}

func parseGovTxType(dat []byte) GovTxType {
	var tx struct {
		Type GovTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return GovTxTypeUnknown
	}
	return tx.Type
}

func unmarshalGovTx[Tx any](dat []byte) (btx *GovTx, err error) {
	var txt govTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version != GovTxVersion0 {
		return nil, ErrUnsupportedTxVersion
	}
	btx = new(GovTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.Sender = txt.Sender
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalGovTx(dat []byte) (btx *GovTx, err error) {
	tp := parseGovTxType(dat)
	switch tp {
	case GovTxTypeCreateProposal:
		return unmarshalGovTx[CreateProposalTx](dat)
	case GovTxTypeVote:
		return unmarshalGovTx[VoteTx](dat)
	case GovTxTypeResolveVoting:
		return unmarshalGovTx[ResolveVotingTx](dat)
	case GovTxTypeExecuteApproved:
		return unmarshalGovTx[ExecuteApprovedTx](dat)
	case GovTxTypeSetParams:
		return unmarshalGovTx[SetParamsTx](dat)
	case GovTxTypeTransferAuthority:
		return unmarshalGovTx[TransferAuthorityTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalGovTx(btx *GovTx) (dat []byte, err error) {
	return json.Marshal(btx)
}

// NewGovTx wraps a payload in an unsigned envelope, picking the type from the payload.
func NewGovTx(nonce uint64, payload any) (*GovTx, error) {
	var tp GovTxType
	switch payload.(type) {
	case *CreateProposalTx:
		tp = GovTxTypeCreateProposal
	case *VoteTx:
		tp = GovTxTypeVote
	case *ResolveVotingTx:
		tp = GovTxTypeResolveVoting
	case *ExecuteApprovedTx:
		tp = GovTxTypeExecuteApproved
	case *SetParamsTx:
		tp = GovTxTypeSetParams
	case *TransferAuthorityTx:
		tp = GovTxTypeTransferAuthority
	default:
		return nil, ErrUnsupportedTxType
	}
	return &GovTx{
		Version: GovTxVersion0,
		Type:    tp,
		Nonce:   nonce,
		Tx:      payload,
	}, nil
}
