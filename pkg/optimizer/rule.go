package optimizer

import (
	"context"

	"github.com/kasuganosora/planopt/pkg/plan"
	"go.uber.org/zap"
)

// Rule 优化规则接口
type Rule interface {
	// ID 规则编号，用于规则掩码
	ID() uint
	// Name 规则名称
	Name() string
	// Pattern 规则匹配的子树形状，驱动器只会把匹配的子树交给 Apply
	Pattern() *Pattern
	// Apply 应用规则。不匹配时返回空的 Result，不是错误
	Apply(ctx context.Context, node plan.Node, optCtx *Context) (Result, error)
}

// Result 规则应用结果
type Result struct {
	node plan.Node
}

// NoMatch 表示规则没有改写
func NoMatch() Result {
	return Result{}
}

// Replace 用 node 替换被匹配的子树
func Replace(node plan.Node) Result {
	return Result{node: node}
}

// IsEmpty 规则是否没有改写
func (r Result) IsEmpty() bool {
	return r.node == nil
}

// Node 返回替换后的子树
func (r Result) Node() plan.Node {
	return r.node
}

// Context 单次优化的上下文，每个查询独享
type Context struct {
	QueryID   string
	IDs       *plan.IDAllocator
	Variables *plan.VariableAllocator
	Logger    *zap.Logger
}

// NewContext 创建优化上下文
func NewContext(queryID string, ids *plan.IDAllocator, vars *plan.VariableAllocator, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{QueryID: queryID, IDs: ids, Variables: vars, Logger: logger}
}
