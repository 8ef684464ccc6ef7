package main

import (
	"fmt"

	"github.com/kasuganosora/planopt/pkg/plan"
	"github.com/spf13/cobra"
)

func newExplainCommand() *cobra.Command {
	var (
		rules      []string
		noOptimize bool
	)
	cmd := &cobra.Command{
		Use:   "explain <sql>",
		Short: "Print the plan of a query before and after optimization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if noOptimize {
				cfg.Optimizer.Enabled = false
			}
			if cmd.Flags().Changed("rules") {
				if cfg.Optimizer.DisabledRules, err = disabledRules(rules); err != nil {
					return err
				}
			}
			p, err := newPlanner(cfg)
			if err != nil {
				return err
			}

			return withMetrics(cmd, cfg.Monitor.MetricsAddr, p, func() error {
				res, err := p.Plan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Original plan:")
				fmt.Fprint(out, plan.Explain(res.Original))
				if !cfg.Optimizer.Enabled {
					return nil
				}
				fmt.Fprintln(out, "Optimized plan:")
				fmt.Fprint(out, plan.Explain(res.Optimized))
				for _, r := range p.RuleStats().GetSnapshot().Rules {
					fmt.Fprintf(out, "%s: fired %d of %d\n", r.Rule, r.Fires, r.Invocations)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "Enable only these rules, by name")
	cmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "Only build the plan")
	return cmd
}
