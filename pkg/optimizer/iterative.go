package optimizer

import (
	"context"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/monitor"
	"github.com/kasuganosora/planopt/pkg/plan"
	"go.uber.org/zap"
)

var (
	// ErrTimeLimitExceeded 优化超时
	ErrTimeLimitExceeded = errors.New("optimizer exceeded time limit")
	// ErrIterationLimitExceeded 规则触发次数超过上限，通常意味着规则之间互相改写
	ErrIterationLimitExceeded = errors.New("optimizer exceeded iteration limit")
)

const defaultMaxIterations = 10000

// IterativeOptimizer 迭代优化器：反复在计划树上应用规则，直到没有规则再触发
type IterativeOptimizer struct {
	rules         map[Operand]RuleSet
	anyRules      RuleSet
	maxIterations int
	timeout       time.Duration
	stats         *monitor.RuleStats
}

// Option 迭代优化器选项
type Option func(*IterativeOptimizer)

// WithMaxIterations 设置单次优化中规则触发次数上限
func WithMaxIterations(n int) Option {
	return func(o *IterativeOptimizer) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithTimeout 设置单次优化的时间上限，0 表示不限制
func WithTimeout(d time.Duration) Option {
	return func(o *IterativeOptimizer) {
		o.timeout = d
	}
}

// WithStats 记录规则统计
func WithStats(stats *monitor.RuleStats) Option {
	return func(o *IterativeOptimizer) {
		o.stats = stats
	}
}

// NewIterativeOptimizer 创建迭代优化器
func NewIterativeOptimizer(rules RuleSet, opts ...Option) *IterativeOptimizer {
	o := &IterativeOptimizer{
		rules:         rules.byOperand(),
		maxIterations: defaultMaxIterations,
	}
	o.anyRules = o.rules[OperandAny]
	delete(o.rules, OperandAny)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type pass struct {
	optCtx *Context
	fired  int
}

// Optimize 优化以 root 为根的计划，返回新的计划。输入计划不会被修改；
// 出错时不会返回部分改写的结果。
func (o *IterativeOptimizer) Optimize(ctx context.Context, root plan.Node, optCtx *Context) (_ plan.Node, err error) {
	start := time.Now()
	defer func() {
		o.stats.RecordPass(time.Since(start), err)
	}()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	p := &pass{optCtx: optCtx}
	result, _, err := o.exploreGroup(ctx, root, p)
	if err != nil {
		optCtx.Logger.Debug("optimization failed", zap.Int("fired", p.fired), zap.Error(err))
		return nil, err
	}
	optCtx.Logger.Debug("optimization finished",
		zap.Int("fired", p.fired),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// exploreGroup 先在节点上应用规则直到不再触发，再处理子节点；
// 子节点有变化时重新处理该节点。
func (o *IterativeOptimizer) exploreGroup(ctx context.Context, node plan.Node, p *pass) (plan.Node, bool, error) {
	progress := false
	for {
		n, fired, err := o.exploreNode(ctx, node, p)
		if err != nil {
			return nil, false, err
		}
		node = n
		progress = progress || fired

		n, changed, err := o.exploreChildren(ctx, node, p)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return node, progress, nil
		}
		node = n
		progress = true
	}
}

func (o *IterativeOptimizer) exploreNode(ctx context.Context, node plan.Node, p *pass) (plan.Node, bool, error) {
	progress := false
	for {
		if err := checkContext(ctx); err != nil {
			return nil, false, err
		}
		fired := false
		for _, rule := range o.candidates(node) {
			if !rule.Pattern().Match(node) {
				continue
			}
			res, err := o.applyRule(ctx, rule, node, p.optCtx)
			if err != nil {
				return nil, false, wrapRuleError(rule, err)
			}
			if res.IsEmpty() {
				continue
			}
			if err := checkOutputs(rule, node, res.Node()); err != nil {
				return nil, false, err
			}
			p.fired++
			if p.fired > o.maxIterations {
				return nil, false, errors.Wrapf(ErrIterationLimitExceeded, "%d rule applications", o.maxIterations)
			}
			p.optCtx.Logger.Debug("rule fired",
				zap.String("rule", rule.Name()),
				zap.Stringer("node", node.ID()))
			node = res.Node()
			fired = true
			progress = true
			// 根节点类型可能改变，重新选择候选规则
			break
		}
		if !fired {
			return node, progress, nil
		}
	}
}

func (o *IterativeOptimizer) exploreChildren(ctx context.Context, node plan.Node, p *pass) (plan.Node, bool, error) {
	sources := node.Sources()
	if len(sources) == 0 {
		return node, false, nil
	}
	changed := false
	newSources := make([]plan.Node, len(sources))
	for i, s := range sources {
		n, progress, err := o.exploreGroup(ctx, s, p)
		if err != nil {
			return nil, false, err
		}
		newSources[i] = n
		changed = changed || progress
	}
	if !changed {
		return node, false, nil
	}
	return node.ReplaceChildren(newSources), true, nil
}

func (o *IterativeOptimizer) candidates(node plan.Node) RuleSet {
	rules := o.rules[GetOperand(node)]
	if len(o.anyRules) == 0 {
		return rules
	}
	return append(append(RuleSet(nil), rules...), o.anyRules...)
}

// applyRule 调用规则，规则内部的断言失败以错误形式返回
func (o *IterativeOptimizer) applyRule(ctx context.Context, rule Rule, node plan.Node, optCtx *Context) (res Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			// 只捕获 error 类型的 panic，其它 panic 继续向上抛
			e, ok := r.(error)
			if !ok {
				o.stats.RecordInvocation(rule.Name(), time.Since(start), false, errors.Newf("rule %s panicked: %v", rule.Name(), r))
				panic(r)
			}
			if _, isRuntime := e.(runtime.Error); isRuntime {
				e = errors.NewAssertionErrorWithWrappedErrf(e, "runtime error in rule %s", rule.Name())
			}
			res, err = NoMatch(), e
		}
		o.stats.RecordInvocation(rule.Name(), time.Since(start), !res.IsEmpty(), err)
	}()
	return rule.Apply(ctx, node, optCtx)
}

// wrapRuleError 给规则错误加上规则名，断言失败包装后仍是断言失败
func wrapRuleError(rule Rule, err error) error {
	if errors.HasAssertionFailure(err) {
		return errors.NewAssertionErrorWithWrappedErrf(err, "rule %s", rule.Name())
	}
	return errors.Wrapf(err, "rule %s", rule.Name())
}

func checkOutputs(rule Rule, before, after plan.Node) error {
	if !plan.NewVariableSet(before.OutputVariables()...).Equals(plan.NewVariableSet(after.OutputVariables()...)) {
		return errors.AssertionFailedf("rule %s changed the outputs of node %d", rule.Name(), before.ID())
	}
	return nil
}

func checkContext(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return errors.WithStack(ErrTimeLimitExceeded)
	default:
		return errors.Wrap(err, "optimization canceled")
	}
}
