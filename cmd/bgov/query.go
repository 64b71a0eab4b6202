package main

import (
	"context"
	"fmt"

	"github.com/calehh/phishgov/client"
	"github.com/calehh/phishgov/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type queryArguments struct {
	Url      string
	Proposal uint64
	Address  string
	Filter   string
	Type     string
}

var queryArgs queryArguments

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Read governance and blacklist state from a node",
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&queryArgs.Url, "url", "u", client.DefaultNodeUrl, "node rpc url")
	queryProposalCmd.Flags().Uint64VarP(&queryArgs.Proposal, "proposal", "p", 0, "proposal id")
	queryResultsCmd.Flags().Uint64VarP(&queryArgs.Proposal, "proposal", "p", 0, "proposal id")
	queryVotedCmd.Flags().Uint64VarP(&queryArgs.Proposal, "proposal", "p", 0, "proposal id")
	queryVotedCmd.Flags().StringVarP(&queryArgs.Address, "voter", "", "", "voter address")
	queryProposalsCmd.Flags().StringVarP(&queryArgs.Filter, "filter", "f", types.ProposalFilterAll, "all, active or ready")
	queryProposalsCmd.Flags().StringVarP(&queryArgs.Address, "proposer", "", "", "only proposals by this address")
	queryCheckCmd.Flags().StringVarP(&queryArgs.Type, "type", "t", "url", "url or address")
	queryEntriesCmd.Flags().StringVarP(&queryArgs.Type, "type", "t", "url", "url or address")
	queryAccountCmd.Flags().StringVarP(&queryArgs.Address, "address", "a", "", "account address")

	queryCmd.AddCommand(queryProposalCmd)
	queryCmd.AddCommand(queryProposalsCmd)
	queryCmd.AddCommand(queryResultsCmd)
	queryCmd.AddCommand(queryVotedCmd)
	queryCmd.AddCommand(queryCheckCmd)
	queryCmd.AddCommand(queryEntriesCmd)
	queryCmd.AddCommand(queryGovernanceCmd)
	queryCmd.AddCommand(queryAccountCmd)
	queryCmd.AddCommand(queryAccountsCmd)
}

func address(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// queryRun dials the node and prints what fn returns.
func queryRun(fn func(ctx context.Context, cli *client.Client) (any, error)) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cli, err := client.Dial(queryArgs.Url)
		if err != nil {
			return err
		}
		v, err := fn(context.Background(), cli)
		if err != nil {
			return err
		}
		printJSON(v)
		return nil
	}
}

var queryProposalCmd = &cobra.Command{
	Use:   "proposal",
	Short: "Show one proposal",
	RunE: queryRun(func(ctx context.Context, cli *client.Client) (any, error) {
		return cli.Proposal(ctx, queryArgs.Proposal)
	}),
}

var queryProposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "List proposals",
	RunE: queryRun(func(ctx context.Context, cli *client.Client) (any, error) {
		if queryArgs.Address != "" {
			proposer, err := address(queryArgs.Address)
			if err != nil {
				return nil, err
			}
			return cli.ProposalsByProposer(ctx, proposer)
		}
		return cli.Proposals(ctx, queryArgs.Filter)
	}),
}

var queryResultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show the tally of a proposal and whether it would pass now",
	RunE: queryRun(func(ctx context.Context, cli *client.Client) (any, error) {
		res, err := cli.VotingResults(ctx, queryArgs.Proposal)
		if err != nil {
			return nil, err
		}
		pass, err := cli.WillPass(ctx, queryArgs.Proposal)
		if err != nil {
			return nil, err
		}
		return struct {
			*types.VotingResults
			WillPass bool `json:"will_pass"`
		}{res, pass}, nil
	}),
}

var queryVotedCmd = &cobra.Command{
	Use:   "voted",
	Short: "Report whether an address voted on a proposal",
	RunE: queryRun(func(ctx context.Context, cli *client.Client) (any, error) {
		voter, err := address(queryArgs.Address)
		if err != nil {
			return nil, err
		}
		return cli.HasVoted(ctx, queryArgs.Proposal, voter)
	}),
}

var queryCheckCmd = &cobra.Command{
	Use:   "check [value...]",
	Short: "Check values against the blacklist, answers in input order",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		et, err := types.ParseEntryType(queryArgs.Type)
		if err != nil {
			return err
		}
		return queryRun(func(ctx context.Context, cli *client.Client) (any, error) {
			return cli.BatchCheck(ctx, et, args)
		})(cmd, args)
	},
}

var queryEntriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List blacklist entries of one type",
	RunE: queryRun(func(ctx context.Context, cli *client.Client) (any, error) {
		et, err := types.ParseEntryType(queryArgs.Type)
		if err != nil {
			return nil, err
		}
		return cli.Entries(ctx, et)
	}),
}

var queryGovernanceCmd = &cobra.Command{
	Use:   "governance",
	Short: "Show owner, thresholds, proposal count and blacklist size",
	RunE: queryRun(func(ctx context.Context, cli *client.Client) (any, error) {
		return cli.Governance(ctx)
	}),
}

var queryAccountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show nonce and ledger balance of an address",
	RunE: queryRun(func(ctx context.Context, cli *client.Client) (any, error) {
		addr, err := address(queryArgs.Address)
		if err != nil {
			return nil, err
		}
		return cli.Account(ctx, addr)
	}),
}

var queryAccountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List every known account with nonce and ledger balance",
	RunE: queryRun(func(ctx context.Context, cli *client.Client) (any, error) {
		return cli.Accounts(ctx)
	}),
}
