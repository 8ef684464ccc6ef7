package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/plan"
	"github.com/kasuganosora/planopt/pkg/planbuilder"
	"github.com/spf13/cobra"
)

func newBatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file>",
		Short: "Plan the ;-separated queries of a file concurrently. Use - to read stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			script, err := readScript(cmd, args[0])
			if err != nil {
				return err
			}
			sqls, err := planbuilder.SplitStatements(script)
			if err != nil {
				return err
			}
			p, err := newPlanner(cfg)
			if err != nil {
				return err
			}

			return withMetrics(cmd, cfg.Monitor.MetricsAddr, p, func() error {
				results, err := p.PlanBatch(cmd.Context(), sqls)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				failed := 0
				for i, r := range results {
					fmt.Fprintf(out, "-- [%d] %s\n", i+1, r.SQL)
					if r.Err != nil {
						failed++
						fmt.Fprintf(out, "error: %v\n", r.Err)
						continue
					}
					fmt.Fprint(out, plan.Explain(r.Result.Optimized))
				}

				snap := p.Metrics().GetSnapshot()
				fmt.Fprintf(out, "-- planned %d queries, %d failed, %d slow, avg %s\n",
					snap.PlanCount, snap.PlanError, snap.SlowPlanCount, snap.AvgDuration)
				if failed > 0 {
					return errors.Newf("%d of %d queries failed", failed, len(results))
				}
				return nil
			})
		},
	}
}

func readScript(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return string(data), nil
}
