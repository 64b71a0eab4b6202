package main

import (
	"testing"

	"github.com/calehh/phishgov/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProposalType(t *testing.T) {
	for in, want := range map[string]types.ProposalType{
		"add-url":         types.ProposalTypeAddURL,
		"ADD_ADDRESS":     types.ProposalTypeAddAddress,
		"remove-url":      types.ProposalTypeRemoveURL,
		" remove-address": types.ProposalTypeRemoveAddress,
	} {
		got, err := parseProposalType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseProposalType("ban")
	assert.Error(t, err)
}

func TestParseAllocations(t *testing.T) {
	res, err := parseAllocations([]string{"0x00000000000000000000000000000000000a11ce=100"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "100", res[0].Balance)

	_, err = parseAllocations([]string{"alice=100"})
	assert.Error(t, err)
	_, err = parseAllocations([]string{"0x00000000000000000000000000000000000a11ce"})
	assert.Error(t, err)
}

func TestRpcUrl(t *testing.T) {
	u, err := rpcUrl("tcp://127.0.0.1:26657")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:26657", u)
	assert.Equal(t, "/abs/key", resolvePath("/home", "/abs/key"))
	assert.Equal(t, "/home/key", resolvePath("/home", "key"))
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, Version, versionString(""))
	assert.Equal(t, Version, versionString("abc"))
	assert.Equal(t, Version+"-0123abcd", versionString("0123abcdef4567"))
}
