package main

import (
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/config"
	"github.com/kasuganosora/planopt/pkg/logutil"
	"github.com/kasuganosora/planopt/pkg/monitor"
	"github.com/kasuganosora/planopt/pkg/optimizer"
	"github.com/kasuganosora/planopt/pkg/planner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	// FlagConfig is the name of the config file flag.
	FlagConfig = "config"
	// FlagLogLevel is the name of log-level flag.
	FlagLogLevel = "log-level"
	// FlagDDL is the name of the flag naming a file of CREATE TABLE statements.
	FlagDDL = "ddl"
	// FlagMetricsAddr is the name of metrics-addr flag.
	FlagMetricsAddr = "metrics-addr"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "planopt",
		Short:        "planopt reorders adjacent window operators in query plans.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringP(FlagConfig, "c", "",
		"Set the config file (.toml or .json). Defaults to $"+config.ConfigEnv+" or a well-known path")
	cmd.PersistentFlags().StringP(FlagLogLevel, "L", "",
		"Override the configured log level")
	cmd.PersistentFlags().String(FlagDDL, "",
		"Load CREATE TABLE statements from this file into the catalog")
	cmd.PersistentFlags().String(FlagMetricsAddr, "",
		"Serve Prometheus metrics on this address until interrupted. Set to empty string to disable")

	cmd.AddCommand(
		newExplainCommand(),
		newBatchCommand(),
		newRulesCommand(),
	)
	return cmd
}

// loadConfig 加载配置并用命令行参数覆盖，然后初始化日志
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString(FlagConfig)
	if err != nil {
		return nil, err
	}
	var cfg *config.Config
	if path == "" {
		cfg = config.LoadConfigOrDefault()
	} else if cfg, err = config.LoadConfig(path); err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString(FlagLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if ddl, _ := cmd.Flags().GetString(FlagDDL); ddl != "" {
		cfg.Catalog.DDLFile = ddl
	}
	if addr, _ := cmd.Flags().GetString(FlagMetricsAddr); addr != "" {
		cfg.Monitor.MetricsAddr = addr
	}

	if err := logutil.InitLogger(&cfg.Log); err != nil {
		return nil, errors.Wrap(err, "init logger")
	}
	return cfg, nil
}

func newPlanner(cfg *config.Config) (*planner.Planner, error) {
	catalog, err := planner.NewCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	logutil.BgLogger().Debug("catalog loaded", zap.Strings("tables", catalog.TableNames()))
	return planner.New(cfg, catalog)
}

// disabledRules 返回 enabled 之外的规则名，enabled 中的未知规则名返回错误
func disabledRules(enabled []string) ([]string, error) {
	all := optimizer.DefaultRuleSet()
	keep := make(map[string]struct{}, len(enabled))
	for _, name := range enabled {
		if all.Lookup(name) == nil {
			return nil, errors.Newf("unknown rule %s", name)
		}
		keep[name] = struct{}{}
	}
	var disabled []string
	for _, r := range all {
		if _, ok := keep[r.Name()]; !ok {
			disabled = append(disabled, r.Name())
		}
	}
	return disabled, nil
}

// withMetrics runs fn. When addr is set, the planner's metrics are served
// on addr/metrics while fn runs and afterwards until the command's context
// is canceled.
func withMetrics(cmd *cobra.Command, addr string, p *planner.Planner, fn func() error) error {
	if addr == "" {
		return fn()
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(monitor.NewCollector(p.RuleStats(), p.Metrics())); err != nil {
		return errors.Wrap(err, "register metrics")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.BgLogger().Warn("metrics server stopped", zap.Error(err))
		}
	}()
	defer srv.Close()

	if err := fn(); err != nil {
		return err
	}
	cmd.PrintErrf("serving metrics on http://%s/metrics, press ^C to exit\n", ln.Addr())
	<-cmd.Context().Done()
	return nil
}
