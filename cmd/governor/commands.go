package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"runtime/debug"
	"slices"
	"strconv"
	"syscall"

	"github.com/CosmWasm/tinyjson"
	"github.com/spf13/cobra"

	"okinoko_governor/contract"
	"okinoko_governor/indexer"
	"okinoko_governor/internal/node"
	"okinoko_governor/sdk"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "devel"

func deployCommand() *cobra.Command {
	var admin string
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Initialize the ledger, the treasury and the governor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(n *node.Node) error {
				owner := sdk.Address(admin)
				if owner.IsNull() {
					owner = n.Config().AdminAddress
				}
				if err := n.Deploy(cmd.Context(), owner); err != nil {
					return err
				}
				cfg := n.Config()
				fmt.Fprintf(cmd.OutOrStdout(), "token:    %s\ntreasury: %s\ngovernor: %s\n",
					cfg.TokenAddress, cfg.TreasuryAddress, cfg.GovernorAddress)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "administrator of the three components (default: adminAddress from config)")
	return cmd
}

func callCommand() *cobra.Command {
	var sender string
	cmd := &cobra.Command{
		Use:   "call <contract> <action> [json-payload]",
		Short: "Run one contract action",
		Example: `  governor call contract:token mint '{"to":"hive:alice","amount":100}' --sender hive:admin
  governor call contract:governor proposal_vote '{"id":0,"support":true}' --sender hive:alice`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			if len(args) == 3 {
				payload = []byte(args[2])
			}
			return withNode(cmd, func(n *node.Node) error {
				from := sdk.Address(sender)
				if from.IsNull() {
					from = n.Config().AdminAddress
				}
				out, err := n.Call(cmd.Context(), from, sdk.Address(args[0]), args[1], payload)
				if err != nil {
					return err
				}
				if out != nil {
					fmt.Fprintln(cmd.OutOrStdout(), string(out))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sender, "sender", "", "account the action runs as (default: adminAddress from config)")
	return cmd
}

func proposalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "proposal <id>",
		Short: "Print a proposal and its state as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid proposal id %q", args[0])
			}
			return withNode(cmd, func(n *node.Node) error {
				view, err := n.Proposal(cmd.Context(), id)
				if err != nil {
					return err
				}
				out, err := tinyjson.Marshal(view)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
}

func eventsCommand() *cobra.Command {
	var filter indexer.Filter
	var proposal int64
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List indexed contract events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.Code != "" && !slices.Contains(contract.EventCodes, filter.Code) {
				return fmt.Errorf("unknown event type %q", filter.Code)
			}
			return withNode(cmd, func(n *node.Node) error {
				var records []indexer.EventRecord
				var err error
				if proposal >= 0 {
					records, err = n.Indexer().ProposalHistory(n.Config().GovernorAddress.String(), uint64(proposal))
				} else {
					records, err = n.Indexer().Query(filter)
				}
				if err != nil {
					return err
				}
				for _, rec := range records {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", rec.BlockHeight, rec.TxID, rec.Contract, rec.Line)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.Code, "type", "", "event code, e.g. pc or v")
	cmd.Flags().StringVar(&filter.Contract, "contract", "", "only events of this contract")
	cmd.Flags().IntVar(&filter.Limit, "limit", 100, "maximum number of events")
	cmd.Flags().Int64Var(&proposal, "proposal", -1, "history of one proposal id")
	return cmd
}

func depositCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <address> <amount>",
		Short: "Credit native value to an account (development faucet)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			return withNode(cmd, func(n *node.Node) error {
				return n.Deposit(cmd.Context(), sdk.Address(args[0]), amount)
			})
		},
	}
}

func actionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions <contract>",
		Short: "List the actions a deployed contract accepts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(n *node.Node) error {
				names, err := n.Engine().Actions(sdk.Address(args[0]))
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve metrics and the call API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withNode(cmd, func(n *node.Node) error {
				err := n.Serve(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// no config needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

func versionString() string {
	v := programName + " " + version
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 8 {
				v += " (" + s.Value[:8] + ")"
			}
		}
	}
	return v
}
