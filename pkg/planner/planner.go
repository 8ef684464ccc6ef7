// Package planner ties the plan builder, the iterative optimizer and the
// sanity checks together, and plans batches of queries concurrently.
package planner

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/kasuganosora/planopt/pkg/config"
	"github.com/kasuganosora/planopt/pkg/logutil"
	"github.com/kasuganosora/planopt/pkg/monitor"
	"github.com/kasuganosora/planopt/pkg/optimizer"
	"github.com/kasuganosora/planopt/pkg/optimizer/sanity"
	"github.com/kasuganosora/planopt/pkg/plan"
	"github.com/kasuganosora/planopt/pkg/planbuilder"
	"github.com/kasuganosora/planopt/pkg/workerpool"
	"go.uber.org/zap"
)

// Stage 规划阶段
type Stage string

const (
	StageBuild    Stage = "build"
	StageOptimize Stage = "optimize"
	StageSanity   Stage = "sanity"
)

// PlanningError 规划失败，记录失败的查询和阶段
type PlanningError struct {
	QueryID string
	Stage   Stage
	Cause   error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("query %s: %s failed: %v", e.QueryID, e.Stage, e.Cause)
}

func (e *PlanningError) Unwrap() error {
	return e.Cause
}

// Result 一个查询的规划结果
type Result struct {
	QueryID   string
	SQL       string
	Original  *plan.OutputNode
	Optimized plan.Node
}

// Table 返回查询扫描的表名
func (r *Result) Table() string {
	return scannedTable(r.Original)
}

func scannedTable(root *plan.OutputNode) string {
	var table string
	if root == nil {
		return table
	}
	plan.Walk(root, func(n plan.Node) bool {
		if scan, ok := n.(*plan.TableScanNode); ok {
			table = scan.Table()
			return false
		}
		return table == ""
	})
	return table
}

// Planner 查询规划器，可以被多个 goroutine 同时使用
type Planner struct {
	catalog   planbuilder.Catalog
	rules     optimizer.RuleSet
	optimizer *optimizer.IterativeOptimizer
	checker   *sanity.PlanChecker
	poolCfg   workerpool.Config

	stats   *monitor.RuleStats
	metrics *monitor.PlanMetrics
	slowLog *monitor.SlowPlanLog
}

// New 按配置创建规划器
func New(cfg *config.Config, catalog planbuilder.Catalog) (*Planner, error) {
	all := optimizer.DefaultRuleSet()
	mask, err := all.MaskFromDisabled(cfg.Optimizer.DisabledRules)
	if err != nil {
		return nil, err
	}

	p := &Planner{
		catalog: catalog,
		rules:   all.Filter(mask),
		poolCfg: workerpool.Config{
			Size:      cfg.Pool.MaxWorkers,
			QueueSize: cfg.Pool.QueueSize,
		},
		stats:   monitor.NewRuleStats(),
		metrics: monitor.NewPlanMetrics(),
		slowLog: monitor.NewSlowPlanLog(cfg.Monitor.SlowQuery.Threshold.Duration, cfg.Monitor.SlowQuery.MaxEntries),
	}
	if cfg.Optimizer.Enabled {
		p.optimizer = optimizer.NewIterativeOptimizer(p.rules,
			optimizer.WithMaxIterations(cfg.Optimizer.MaxIterations),
			optimizer.WithTimeout(cfg.Optimizer.Timeout.Duration),
			optimizer.WithStats(p.stats))
	}
	if cfg.Optimizer.SanityChecks {
		p.checker = sanity.DefaultPlanChecker()
	}
	return p, nil
}

// NewCatalog 按配置构建内存 catalog
func NewCatalog(cfg config.CatalogConfig) (*planbuilder.MemoryCatalog, error) {
	catalog := planbuilder.NewMemoryCatalog()
	for _, t := range cfg.Tables {
		table := &planbuilder.Table{Name: t.Name}
		for _, c := range t.Columns {
			table.Columns = append(table.Columns, planbuilder.Column{Name: c.Name, Type: c.Type})
		}
		if err := catalog.AddTable(table); err != nil {
			return nil, err
		}
	}
	if cfg.DDL != "" {
		if err := catalog.LoadDDL(cfg.DDL); err != nil {
			return nil, err
		}
	}
	if cfg.DDLFile != "" {
		ddl, err := os.ReadFile(cfg.DDLFile)
		if err != nil {
			return nil, errors.Wrapf(err, "read DDL file %s", cfg.DDLFile)
		}
		if err := catalog.LoadDDL(string(ddl)); err != nil {
			return nil, errors.Wrapf(err, "load DDL file %s", cfg.DDLFile)
		}
	}
	return catalog, nil
}

// Rules 返回启用的规则
func (p *Planner) Rules() optimizer.RuleSet { return p.rules }

// RuleStats 返回规则统计
func (p *Planner) RuleStats() *monitor.RuleStats { return p.stats }

// Metrics 返回规划指标
func (p *Planner) Metrics() *monitor.PlanMetrics { return p.metrics }

// SlowLog 返回慢规划日志
func (p *Planner) SlowLog() *monitor.SlowPlanLog { return p.slowLog }

// Plan 构建、优化并检查一个查询的计划。失败时返回 *PlanningError。
func (p *Planner) Plan(ctx context.Context, sql string) (res *Result, err error) {
	queryID := uuid.NewString()
	ctx = logutil.WithQueryID(ctx, queryID)
	logger := logutil.Logger(ctx)
	trace := monitor.StartTrace(p.metrics, p.slowLog, queryID, sql)

	var (
		stage Stage
		root  *plan.OutputNode
	)
	defer func() {
		var optimized plan.Node
		if res != nil {
			optimized = res.Optimized
		}
		duration := trace.End(scannedTable(root), string(stage), err, func() string {
			if optimized == nil {
				return ""
			}
			return plan.Explain(optimized)
		})
		if err != nil {
			logger.Warn("planning failed", zap.String("stage", string(stage)), zap.Duration("duration", duration), zap.Error(err))
			return
		}
		logger.Debug("planned query", zap.Duration("duration", duration))
	}()
	fail := func(s Stage, cause error) (*Result, error) {
		stage = s
		return nil, &PlanningError{QueryID: queryID, Stage: s, Cause: cause}
	}

	ids, vars := plan.NewIDAllocator(), plan.NewVariableAllocator()
	root, err = planbuilder.NewBuilder(p.catalog, ids, vars).Build(sql)
	if err != nil {
		return fail(StageBuild, err)
	}

	var optimized plan.Node = root
	if p.optimizer != nil {
		optimized, err = p.optimizer.Optimize(ctx, root, optimizer.NewContext(queryID, ids, vars, logger))
		if err != nil {
			return fail(StageOptimize, err)
		}
	}

	if p.checker != nil {
		if err := p.checker.Validate(optimized); err != nil {
			return fail(StageSanity, err)
		}
	}

	return &Result{QueryID: queryID, SQL: sql, Original: root, Optimized: optimized}, nil
}

// BatchResult PlanBatch 中一个查询的结果，Err 不为空时 Result 为空
type BatchResult struct {
	SQL    string
	Result *Result
	Err    error
}

// PlanBatch 在 worker 池上并发规划互不相关的查询，结果顺序与输入一致。
// 单个查询失败不影响其他查询；ctx 取消时未开始的查询返回取消错误。
func (p *Planner) PlanBatch(ctx context.Context, sqls []string) ([]BatchResult, error) {
	pool, err := workerpool.New(p.poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool")
	}
	if err := pool.Start(); err != nil {
		return nil, err
	}
	defer pool.Close()

	results := make([]BatchResult, len(sqls))
	pending := make([]<-chan workerpool.Result, len(sqls))
	for i, sql := range sqls {
		results[i].SQL = sql
		ch, err := pool.SubmitFunc(ctx, func(ctx context.Context) (interface{}, error) {
			return p.Plan(ctx, sql)
		})
		if err != nil {
			results[i].Err = err
			continue
		}
		pending[i] = ch
	}

	for i, ch := range pending {
		if ch == nil {
			continue
		}
		r := <-ch
		if r.Error != nil {
			results[i].Err = r.Error
			continue
		}
		results[i].Result = r.Value.(*Result)
	}
	logutil.BgLogger().Debug("batch planned", zap.Int("queries", len(sqls)), zap.Stringer("pool", pool.Stats()))
	return results, nil
}
