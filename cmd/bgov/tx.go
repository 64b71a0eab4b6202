package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/calehh/phishgov/client"
	phcrypto "github.com/calehh/phishgov/crypto"
	"github.com/calehh/phishgov/tx"
	"github.com/calehh/phishgov/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type txArguments struct {
	Url   string
	Key   string
	Async bool
}

func (a *txArguments) register(cmd *cobra.Command) {
	urlFlag(cmd, &a.Url)
	keyFlag(cmd, &a.Key)
	asyncFlag(cmd, &a.Async)
}

func (a *txArguments) dial() (*client.Client, *phcrypto.Key, error) {
	key, err := phcrypto.LoadKeyFile(a.Key)
	if err != nil {
		return nil, nil, err
	}
	cli, err := client.Dial(a.Url)
	if err != nil {
		return nil, nil, err
	}
	return cli, key, nil
}

// send broadcasts payload and prints the result. Delivery failures are returned as errors.
func (a *txArguments) send(payload any) (*client.Result, error) {
	cli, key, err := a.dial()
	if err != nil {
		return nil, err
	}
	res, err := cli.Send(context.Background(), key, payload, !a.Async)
	if err != nil {
		return nil, err
	}
	printJSON(res)
	return res, res.Err()
}

func printJSON(v any) {
	dat, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(dat))
}

func parseProposalType(s string) (types.ProposalType, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for t := types.ProposalTypeAddURL; t <= types.ProposalTypeRemoveAddress; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown proposal type %q, want add-url, add-address, remove-url or remove-address", s)
}

type proposeArguments struct {
	txArguments
	Type        string
	Target      string
	Description string
	Duration    uint64
}

var proposeArgs proposeArguments

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose adding or removing a blacklist entry",
	Args:  cobra.ExactArgs(0),
	RunE:  proposeRun,
}

func init() {
	proposeArgs.register(proposeCmd)
	proposeCmd.Flags().StringVarP(&proposeArgs.Type, "type", "t", "add-url", "add-url, add-address, remove-url or remove-address")
	proposeCmd.Flags().StringVarP(&proposeArgs.Target, "target", "", "", "url or address the proposal acts on")
	proposeCmd.Flags().StringVarP(&proposeArgs.Description, "description", "", "", "evidence and reasoning")
	proposeCmd.Flags().Uint64VarP(&proposeArgs.Duration, "duration", "", types.DefaultMinVotingPeriod, "voting period in seconds")
}

func proposeRun(cmd *cobra.Command, args []string) error {
	pt, err := parseProposalType(proposeArgs.Type)
	if err != nil {
		return err
	}
	ptx := &tx.CreateProposalTx{
		Type:        pt,
		Description: proposeArgs.Description,
		Duration:    proposeArgs.Duration,
	}
	et, _ := pt.EntryType()
	if et == types.EntryTypeURL {
		ptx.Url = proposeArgs.Target
	} else {
		if !common.IsHexAddress(proposeArgs.Target) {
			return fmt.Errorf("invalid address target %q", proposeArgs.Target)
		}
		ptx.Address = common.HexToAddress(proposeArgs.Target)
	}
	if _, err = proposeArgs.send(ptx); err != nil {
		return err
	}
	return nil
}

type voteArguments struct {
	txArguments
	Proposal uint64
	Against  bool
}

var voteArgs voteArguments

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Vote on an active proposal",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := voteArgs.send(&tx.VoteTx{Proposal: voteArgs.Proposal, Support: !voteArgs.Against})
		return err
	},
}

func init() {
	voteArgs.register(voteCmd)
	voteCmd.Flags().Uint64VarP(&voteArgs.Proposal, "proposal", "p", 0, "proposal id")
	voteCmd.Flags().BoolVarP(&voteArgs.Against, "against", "", false, "vote no")
}

type proposalTxArguments struct {
	txArguments
	Proposal uint64
}

var resolveArgs proposalTxArguments

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Settle a proposal whose voting period has ended",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := resolveArgs.send(&tx.ResolveVotingTx{Proposal: resolveArgs.Proposal})
		return err
	},
}

var executeArgs proposalTxArguments

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Apply an approved proposal to the blacklist (owner only)",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := executeArgs.send(&tx.ExecuteApprovedTx{Proposal: executeArgs.Proposal})
		return err
	},
}

func init() {
	resolveArgs.register(resolveCmd)
	resolveCmd.Flags().Uint64VarP(&resolveArgs.Proposal, "proposal", "p", 0, "proposal id")
	executeArgs.register(executeCmd)
	executeCmd.Flags().Uint64VarP(&executeArgs.Proposal, "proposal", "p", 0, "proposal id")
}

type paramsArguments struct {
	txArguments
	MinVotingPeriod            uint64
	MinVotesForApproval        uint64
	ApprovalMajorityPercentage uint64
	MinTokensToPropose         string
}

var paramsArgs paramsArguments

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Update governance thresholds (owner only); unset flags keep current values",
	Args:  cobra.ExactArgs(0),
	RunE:  paramsRun,
}

func init() {
	paramsArgs.register(paramsCmd)
	paramsCmd.Flags().Uint64VarP(&paramsArgs.MinVotingPeriod, "min-voting-period", "", 0, "minimum voting period in seconds")
	paramsCmd.Flags().Uint64VarP(&paramsArgs.MinVotesForApproval, "min-votes", "", 0, "minimum votes for approval")
	paramsCmd.Flags().Uint64VarP(&paramsArgs.ApprovalMajorityPercentage, "majority", "", 0, "approval majority percentage")
	paramsCmd.Flags().StringVarP(&paramsArgs.MinTokensToPropose, "min-tokens", "", "", "minimum token balance to propose")
}

func paramsRun(cmd *cobra.Command, args []string) error {
	cli, err := client.Dial(paramsArgs.Url)
	if err != nil {
		return err
	}
	gov, err := cli.Governance(context.Background())
	if err != nil {
		return err
	}
	params := gov.Params
	flags := cmd.Flags()
	if flags.Changed("min-voting-period") {
		params.MinVotingPeriod = paramsArgs.MinVotingPeriod
	}
	if flags.Changed("min-votes") {
		params.MinVotesForApproval = paramsArgs.MinVotesForApproval
	}
	if flags.Changed("majority") {
		params.ApprovalMajorityPercentage = paramsArgs.ApprovalMajorityPercentage
	}
	if flags.Changed("min-tokens") {
		v, ok := new(big.Int).SetString(paramsArgs.MinTokensToPropose, 10)
		if !ok {
			return fmt.Errorf("invalid token amount %q", paramsArgs.MinTokensToPropose)
		}
		params.MinTokensToPropose = v
	}
	_, err = paramsArgs.send(&tx.SetParamsTx{Params: params})
	return err
}

type transferAuthorityArguments struct {
	txArguments
	NewOwner string
}

var transferAuthorityArgs transferAuthorityArguments

var transferAuthorityCmd = &cobra.Command{
	Use:   "transfer-authority",
	Short: "Hand governance ownership to another address (owner only)",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(transferAuthorityArgs.NewOwner) {
			return fmt.Errorf("invalid new owner %q", transferAuthorityArgs.NewOwner)
		}
		_, err := transferAuthorityArgs.send(&tx.TransferAuthorityTx{NewOwner: common.HexToAddress(transferAuthorityArgs.NewOwner)})
		return err
	},
}

func init() {
	transferAuthorityArgs.register(transferAuthorityCmd)
	transferAuthorityCmd.Flags().StringVarP(&transferAuthorityArgs.NewOwner, "new-owner", "", "", "address of the new owner")
}
