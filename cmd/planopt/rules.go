package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/kasuganosora/planopt/pkg/optimizer"
	"github.com/spf13/cobra"
)

func newRulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the optimizer rules and whether the config enables them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			all := optimizer.DefaultRuleSet()
			mask, err := all.MaskFromDisabled(cfg.Optimizer.DisabledRules)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tENABLED")
			for _, r := range all {
				fmt.Fprintf(w, "%d\t%s\t%t\n", r.ID(), r.Name(), cfg.Optimizer.Enabled && mask.Test(r.ID()))
			}
			return w.Flush()
		},
	}
}
