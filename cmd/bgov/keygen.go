package main

import (
	"encoding/hex"
	"fmt"

	phcrypto "github.com/calehh/phishgov/crypto"
	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/spf13/cobra"
)

type keygenArguments struct {
	Skey string
	Show bool
}

var keygenArgs keygenArguments

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create an account key, or show the address of an existing one",
	Args:  cobra.ExactArgs(0),
	RunE:  keygenRun,
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenArgs.Skey, "key", "k", "./account_key", "private key path")
	keygenCmd.Flags().BoolVarP(&keygenArgs.Show, "show", "", false, "only print the key at --key")
}

func keygenRun(cmd *cobra.Command, args []string) error {
	var (
		key *phcrypto.Key
		err error
	)
	switch {
	case keygenArgs.Show:
		key, err = phcrypto.LoadKeyFile(keygenArgs.Skey)
	case cmtos.FileExists(keygenArgs.Skey):
		return fmt.Errorf("key file %s already exists, use --show to print it", keygenArgs.Skey)
	default:
		key, err = phcrypto.LoadOrGenKeyFile(keygenArgs.Skey)
	}
	if err != nil {
		return err
	}
	fmt.Println("pubkey:", hex.EncodeToString(key.PublicKey()))
	fmt.Println("address:", key.Address().Hex())
	return nil
}
