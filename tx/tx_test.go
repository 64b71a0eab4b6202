package tx

import (
	"math/big"
	"testing"

	"github.com/calehh/phishgov/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	btx, err := NewGovTx(3, &CreateProposalTx{
		Type:        types.ProposalTypeAddURL,
		Url:         "https://evil.example",
		Description: "drainer",
		Duration:    60,
	})
	require.NoError(t, err)
	require.NoError(t, btx.Sign("test-chain", key))
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), btx.Sender)

	dat, err := MarshalGovTx(btx)
	require.NoError(t, err)
	decoded, err := UnmarshalGovTx(dat)
	require.NoError(t, err)
	assert.Equal(t, GovTxTypeCreateProposal, decoded.Type)
	assert.Equal(t, uint64(3), decoded.Nonce)
	payload, ok := decoded.Tx.(*CreateProposalTx)
	require.True(t, ok)
	assert.Equal(t, "https://evil.example", payload.Url)

	require.NoError(t, decoded.Verify("test-chain"))
	assert.ErrorIs(t, decoded.Verify("other-chain"), ErrTxSigInvalid)

	payload.Duration = 1
	assert.ErrorIs(t, decoded.Verify("test-chain"), ErrTxSigInvalid)
}

func TestSetParamsPayloadSurvivesEncoding(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	params := types.DefaultGovParams()
	params.MinTokensToPropose = new(big.Int).Lsh(big.NewInt(1), 100)

	btx, err := NewGovTx(0, &SetParamsTx{Params: params})
	require.NoError(t, err)
	require.NoError(t, btx.Sign("c", key))
	dat, err := MarshalGovTx(btx)
	require.NoError(t, err)

	decoded, err := UnmarshalGovTx(dat)
	require.NoError(t, err)
	require.NoError(t, decoded.Verify("c"))
	got := decoded.Tx.(*SetParamsTx)
	assert.Zero(t, params.MinTokensToPropose.Cmp(got.Params.MinTokensToPropose))
}

func TestUnmarshalRejectsUnknown(t *testing.T) {
	_, err := UnmarshalGovTx([]byte(`{"type":42}`))
	assert.ErrorIs(t, err, ErrUnsupportedTxType)
	_, err = UnmarshalGovTx([]byte(`not json`))
	assert.ErrorIs(t, err, ErrUnsupportedTxType)
	_, err = UnmarshalGovTx([]byte(`{"version":9,"type":2,"tx":{"proposal":1}}`))
	assert.ErrorIs(t, err, ErrUnsupportedTxVersion)
	_, err = NewGovTx(0, common.Address{})
	assert.ErrorIs(t, err, ErrUnsupportedTxType)

	btx := &GovTx{Type: GovTxTypeVote, Tx: &VoteTx{Proposal: 1}, Sig: []byte{1, 2}}
	assert.ErrorIs(t, btx.Verify("c"), ErrTxSigInvalid)
}
