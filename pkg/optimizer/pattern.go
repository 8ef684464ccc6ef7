package optimizer

import (
	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/plan"
)

// Operand 模式树节点，只描述算子类型
type Operand int

const (
	OperandAny Operand = iota
	OperandTableScan
	OperandValues
	OperandProject
	OperandWindow
	OperandOutput
)

func (o Operand) String() string {
	switch o {
	case OperandAny:
		return "Any"
	case OperandTableScan:
		return "TableScan"
	case OperandValues:
		return "Values"
	case OperandProject:
		return "Project"
	case OperandWindow:
		return "Window"
	case OperandOutput:
		return "Output"
	default:
		return "Unknown"
	}
}

// GetOperand 将计划节点映射为 Operand
func GetOperand(n plan.Node) Operand {
	switch n.(type) {
	case *plan.TableScanNode:
		return OperandTableScan
	case *plan.ValuesNode:
		return OperandValues
	case *plan.ProjectNode:
		return OperandProject
	case *plan.WindowNode:
		return OperandWindow
	case *plan.OutputNode:
		return OperandOutput
	default:
		panic(errors.AssertionFailedf("unhandled plan node %T", n))
	}
}

func (o Operand) match(t Operand) bool {
	return o == OperandAny || t == OperandAny || o == t
}

// Pattern 规则匹配模式，树形结构，每个节点是一个 Operand。
// 没有子模式的节点匹配任意子树。
type Pattern struct {
	operand  Operand
	children []*Pattern
}

// BuildPattern 由 Operand 和子模式构造 Pattern
func BuildPattern(operand Operand, children ...*Pattern) *Pattern {
	return &Pattern{operand: operand, children: children}
}

// Operand 返回根节点的 Operand
func (p *Pattern) Operand() Operand {
	return p.operand
}

// Match 检查以 n 为根的子树是否符合模式
func (p *Pattern) Match(n plan.Node) bool {
	if !p.operand.match(GetOperand(n)) {
		return false
	}
	if len(p.children) == 0 {
		return true
	}
	sources := n.Sources()
	if len(sources) != len(p.children) {
		return false
	}
	for i, child := range p.children {
		if !child.Match(sources[i]) {
			return false
		}
	}
	return true
}

func (p *Pattern) String() string {
	s := p.operand.String()
	if len(p.children) == 0 {
		return s
	}
	s += "("
	for i, c := range p.children {
		if i > 0 {
			s += ", "
		}
		s += c.String()
	}
	return s + ")"
}
