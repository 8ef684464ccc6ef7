package optimizer

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/plan"
	"go.uber.org/zap"
)

// MergeAdjacentWindows 合并 specification 相同且互不依赖的两层窗口：
//
//	Window(spec, f2, Window(spec, f1, source)) => Window(spec, f1 ++ f2, source)
//
// 合并后的节点沿用上层窗口的 id 和 specification。
func MergeAdjacentWindows(outer *plan.WindowNode) (*plan.WindowNode, bool, error) {
	inner, ok := outer.Source().(*plan.WindowNode)
	if !ok {
		return nil, false, errors.AssertionFailedf("window %d: expected a window source, got %T", outer.ID(), outer.Source())
	}
	if plan.DependsOn(outer, inner) {
		return nil, false, nil
	}
	if plan.Compare(inner.Specification(), outer.Specification()) != plan.Equal {
		return nil, false, nil
	}
	functions, err := inner.Functions().Concat(outer.Functions())
	if err != nil {
		return nil, false, errors.Wrapf(err, "merging windows %d and %d", outer.ID(), inner.ID())
	}
	return plan.NewWindowNode(outer.ID(), inner.Source(), outer.Specification(), functions), true, nil
}

// MergeAdjacentWindowsRule 把 MergeAdjacentWindows 接入迭代优化器
type MergeAdjacentWindowsRule struct{}

// NewMergeAdjacentWindowsRule 创建规则
func NewMergeAdjacentWindowsRule() *MergeAdjacentWindowsRule {
	return &MergeAdjacentWindowsRule{}
}

var mergeAdjacentWindowsPattern = BuildPattern(OperandWindow, BuildPattern(OperandWindow))

func (*MergeAdjacentWindowsRule) ID() uint          { return RuleMergeAdjacentWindows }
func (*MergeAdjacentWindowsRule) Name() string      { return "MergeAdjacentWindows" }
func (*MergeAdjacentWindowsRule) Pattern() *Pattern { return mergeAdjacentWindowsPattern }

// Apply 应用规则
func (r *MergeAdjacentWindowsRule) Apply(_ context.Context, node plan.Node, optCtx *Context) (Result, error) {
	outer, ok := node.(*plan.WindowNode)
	if !ok {
		return NoMatch(), errors.AssertionFailedf("%s applied to %T", r.Name(), node)
	}
	merged, ok, err := MergeAdjacentWindows(outer)
	if err != nil || !ok {
		return NoMatch(), err
	}
	optCtx.Logger.Debug("merged adjacent windows",
		zap.Stringer("window", merged.ID()),
		zap.Int("functions", merged.Functions().Len()))
	return Replace(merged), nil
}
