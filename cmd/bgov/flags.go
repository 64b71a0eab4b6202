package main

import (
	"github.com/calehh/phishgov/client"
	"github.com/spf13/cobra"
)

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", client.DefaultNodeUrl, "node rpc url")
}

func keyFlag(cmd *cobra.Command, key *string) {
	cmd.Flags().StringVarP(key, "key", "k", "./config/owner_key", "signer private key file")
}

func asyncFlag(cmd *cobra.Command, async *bool) {
	cmd.Flags().BoolVarP(async, "async", "", false, "return after CheckTx instead of waiting for the block")
}
