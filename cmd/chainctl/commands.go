package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vitos/crypto_reentry_chain/internal/config"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"github.com/vitos/crypto_reentry_chain/internal/infrastructure/storage"
	"github.com/vitos/crypto_reentry_chain/internal/usecase"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
	driver     string
	path       string
}

// openRegistry opens the configured store read-only and wraps it in a
// registry that is never loaded, so every read goes to storage.
func (o *rootOptions) openRegistry() (*usecase.ChainRegistry, func() error, error) {
	driver, path := o.driver, o.path
	if path == "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return nil, nil, err
		}
		driver, path = cfg.Storage.Driver, cfg.Storage.Path
	}
	store, err := storage.Open(driver, path, true)
	if err != nil {
		return nil, nil, err
	}
	reg := usecase.NewChainRegistry(store, usecase.NewChainStateMachine(), usecase.DefaultRegistryConfig(), zap.NewNop())
	return reg, store.Close, nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "chainctl",
		Short:         "Inspect persisted re-entry chains",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "config file")
	cmd.PersistentFlags().StringVar(&opts.driver, "driver", storage.DriverSQLite, "storage driver when --store is set (sqlite|badger)")
	cmd.PersistentFlags().StringVar(&opts.path, "store", "", "store path, overrides the config file")

	cmd.AddCommand(
		newListCmd(opts),
		newShowCmd(opts),
		newStatsCmd(opts),
		newReconcileCmd(opts),
	)
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ACTIVE chains (--all for history)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, closeFn, err := opts.openRegistry()
			if err != nil {
				return err
			}
			defer closeFn()

			chains, err := reg.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			if !all {
				chains = filter(chains, func(c *domain.Chain) bool { return c.Status == domain.ChainActive })
			}
			return printChains(cmd.OutOrStdout(), chains)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include COMPLETED and STOPPED chains")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one chain with its levels as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, closeFn, err := opts.openRegistry()
			if err != nil {
				return err
			}
			defer closeFn()

			chain, err := reg.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), chain)
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate chain statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, closeFn, err := opts.openRegistry()
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := reg.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "List chains whose broker state must be checked by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, closeFn, err := opts.openRegistry()
			if err != nil {
				return err
			}
			defer closeFn()

			chains, err := reg.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			chains = filter(chains, func(c *domain.Chain) bool { return c.NeedsReconcile })
			if len(chains) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to reconcile")
				return nil
			}
			return printChains(cmd.OutOrStdout(), chains)
		},
	}
}

func filter(chains []*domain.Chain, keep func(*domain.Chain) bool) []*domain.Chain {
	var out []*domain.Chain
	for _, c := range chains {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func printChains(out io.Writer, chains []*domain.Chain) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSYMBOL\tSIDE\tSTATUS\tLEVEL\tPROFIT\tREASON\tRECONCILE")
	for _, c := range chains {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\t%t\n",
			c.ID, c.Symbol, c.Side, c.Status, c.CurrentLevel, c.MaxLevel,
			c.RealizedProfit().StringFixed(2), c.StopReason, c.NeedsReconcile)
	}
	return tw.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
