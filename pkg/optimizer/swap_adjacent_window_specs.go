package optimizer

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/plan"
	"go.uber.org/zap"
)

// SwapResult 窗口交换结果。Matched 为 false 时 Parent/Child 为空
type SwapResult struct {
	Matched bool
	// Parent 新的上层窗口，Child 是它唯一的子节点
	Parent *plan.WindowNode
	Child  *plan.WindowNode
}

// SwapAdjacentWindows 对 outer(inner(source)) 两层窗口链尝试交换。
//
// 当 outer 不读取 inner 产生的任何变量，且 inner 的分区集合严格包含
// outer 的分区集合时，交换两者，使分区要求较小的窗口靠近数据源：
//
//	Window(specO, funcsO, Window(specI, funcsI, source))
//	=> Window(specI, funcsI, Window(specO, funcsO, source))
//
// 节点 id 跟随各自的 specification 和函数表。outer 的子节点不是窗口时属于调用方错误。
func SwapAdjacentWindows(outer *plan.WindowNode) SwapResult {
	inner, ok := outer.Source().(*plan.WindowNode)
	if !ok {
		panic(errors.AssertionFailedf("window %d: expected a window source, got %T", outer.ID(), outer.Source()))
	}

	if plan.DependsOn(outer, inner) {
		return SwapResult{}
	}

	if plan.Compare(inner.Specification(), outer.Specification()) != plan.SupersetOf {
		return SwapResult{}
	}

	child := outer.ReplaceChildren([]plan.Node{inner.Source()}).(*plan.WindowNode)
	parent := inner.ReplaceChildren([]plan.Node{child}).(*plan.WindowNode)
	return SwapResult{Matched: true, Parent: parent, Child: child}
}

// SwapAdjacentWindowsRule 把 SwapAdjacentWindows 接入迭代优化器
type SwapAdjacentWindowsRule struct{}

// NewSwapAdjacentWindowsRule 创建规则
func NewSwapAdjacentWindowsRule() *SwapAdjacentWindowsRule {
	return &SwapAdjacentWindowsRule{}
}

var swapAdjacentWindowsPattern = BuildPattern(OperandWindow, BuildPattern(OperandWindow))

// ID 规则编号
func (*SwapAdjacentWindowsRule) ID() uint { return RuleSwapAdjacentWindows }

// Name 规则名称
func (*SwapAdjacentWindowsRule) Name() string { return "SwapAdjacentWindowsBySpecifications" }

// Pattern Window(Window(Any))
func (*SwapAdjacentWindowsRule) Pattern() *Pattern { return swapAdjacentWindowsPattern }

// Apply 应用规则
func (r *SwapAdjacentWindowsRule) Apply(_ context.Context, node plan.Node, optCtx *Context) (Result, error) {
	outer, ok := node.(*plan.WindowNode)
	if !ok {
		return NoMatch(), errors.AssertionFailedf("%s applied to %T", r.Name(), node)
	}
	res := SwapAdjacentWindows(outer)
	if !res.Matched {
		return NoMatch(), nil
	}
	optCtx.Logger.Debug("swapped adjacent windows",
		zap.Stringer("parent", res.Parent.ID()),
		zap.Stringer("child", res.Child.ID()),
		zap.Stringer("childSpecification", res.Child.Specification()))
	return Replace(res.Parent), nil
}
