package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nuln/fsbox/drivers"
)

func (a *app) schemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemes",
		Short: "List configured schemes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCHEME\tDRIVER\tURL")
			for _, sc := range a.cfg.Schemes {
				marker := sc.BaseURL
				if sc.Scheme == a.cfg.DefaultScheme {
					marker += " (default)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", sc.Scheme, sc.Driver, marker)
			}
			return tw.Flush()
		},
	}
}

func (a *app) driversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List available storage drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range drivers.List() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (a *app) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sweep SCHEME...",
		Aliases: []string{"gc"},
		Short:   "Reclaim storage no object references, such as orphan chunks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, scheme := range args {
				n, err := a.stack.Store.Sweep(cmd.Context(), scheme)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d unreferenced chunks from %s\n", n, scheme)
			}
			return nil
		},
	}
}
