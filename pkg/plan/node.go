package plan

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// NodeID identifies a plan node within one plan.
type NodeID int

func (id NodeID) String() string {
	return strconv.Itoa(int(id))
}

// IDAllocator hands out plan node ids. Not safe for concurrent use.
type IDAllocator struct {
	next NodeID
}

// NewIDAllocator creates an allocator whose first id is 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

// Next returns a fresh id.
func (a *IDAllocator) Next() NodeID {
	id := a.next
	a.next++
	return id
}

// Node is a logical plan node. Nodes are immutable: rewrites build new nodes
// through ReplaceChildren or the constructors. The implementations are closed
// to this package.
type Node interface {
	ID() NodeID
	// Sources returns the child nodes.
	Sources() []Node
	// OutputVariables returns the variables the node produces, in order.
	OutputVariables() []Variable
	// ReplaceChildren returns a copy of the node, same id, over children.
	ReplaceChildren(children []Node) Node

	planNode()
}

func checkArity(n Node, children []Node, want int) {
	if len(children) != want {
		panic(errors.AssertionFailedf("%T %d expects %d children, got %d", n, n.ID(), want, len(children)))
	}
}

// TableScanNode reads a table.
type TableScanNode struct {
	id      NodeID
	table   string
	outputs []Variable
}

// NewTableScanNode creates a table scan producing outputs.
func NewTableScanNode(id NodeID, table string, outputs []Variable) *TableScanNode {
	return &TableScanNode{id: id, table: table, outputs: append([]Variable(nil), outputs...)}
}

func (n *TableScanNode) ID() NodeID                  { return n.id }
func (n *TableScanNode) Sources() []Node             { return nil }
func (n *TableScanNode) OutputVariables() []Variable { return append([]Variable(nil), n.outputs...) }
func (n *TableScanNode) Table() string               { return n.table }
func (*TableScanNode) planNode()                     {}

func (n *TableScanNode) ReplaceChildren(children []Node) Node {
	checkArity(n, children, 0)
	return n
}

// ValuesNode produces literal rows.
type ValuesNode struct {
	id      NodeID
	outputs []Variable
	rows    [][]RowExpression
}

// NewValuesNode creates a values node. Every row must have one expression per output.
func NewValuesNode(id NodeID, outputs []Variable, rows ...[]RowExpression) *ValuesNode {
	for i, row := range rows {
		if len(row) != len(outputs) {
			panic(errors.AssertionFailedf("values row %d has %d expressions, want %d", i, len(row), len(outputs)))
		}
	}
	copied := make([][]RowExpression, len(rows))
	for i, row := range rows {
		copied[i] = append([]RowExpression(nil), row...)
	}
	return &ValuesNode{id: id, outputs: append([]Variable(nil), outputs...), rows: copied}
}

func (n *ValuesNode) ID() NodeID                  { return n.id }
func (n *ValuesNode) Sources() []Node             { return nil }
func (n *ValuesNode) OutputVariables() []Variable { return append([]Variable(nil), n.outputs...) }
func (*ValuesNode) planNode()                     {}

// Rows returns the literal rows.
func (n *ValuesNode) Rows() [][]RowExpression {
	return n.rows
}

func (n *ValuesNode) ReplaceChildren(children []Node) Node {
	checkArity(n, children, 0)
	return n
}

// Assignment binds an output variable to an expression.
type Assignment struct {
	Output     Variable
	Expression RowExpression
}

// IdentityAssignments passes vars through unchanged.
func IdentityAssignments(vars ...Variable) []Assignment {
	out := make([]Assignment, len(vars))
	for i, v := range vars {
		out[i] = Assignment{Output: v, Expression: v}
	}
	return out
}

// ProjectNode computes one expression per output.
type ProjectNode struct {
	id          NodeID
	source      Node
	assignments []Assignment
}

// NewProjectNode creates a projection. Outputs must be distinct.
func NewProjectNode(id NodeID, source Node, assignments []Assignment) *ProjectNode {
	seen := make(VariableSet, len(assignments))
	for _, a := range assignments {
		if seen.Contains(a.Output) {
			panic(errors.AssertionFailedf("duplicate projection output %s", a.Output.Name))
		}
		seen.Add(a.Output)
	}
	return &ProjectNode{id: id, source: source, assignments: append([]Assignment(nil), assignments...)}
}

func (n *ProjectNode) ID() NodeID      { return n.id }
func (n *ProjectNode) Sources() []Node { return []Node{n.source} }
func (n *ProjectNode) Source() Node    { return n.source }
func (*ProjectNode) planNode()         {}

// Assignments returns a copy of the assignments.
func (n *ProjectNode) Assignments() []Assignment {
	return append([]Assignment(nil), n.assignments...)
}

func (n *ProjectNode) OutputVariables() []Variable {
	out := make([]Variable, len(n.assignments))
	for i, a := range n.assignments {
		out[i] = a.Output
	}
	return out
}

func (n *ProjectNode) ReplaceChildren(children []Node) Node {
	checkArity(n, children, 1)
	return &ProjectNode{id: n.id, source: children[0], assignments: n.assignments}
}

// WindowNode computes window functions that share one specification.
type WindowNode struct {
	id            NodeID
	source        Node
	specification Specification
	functions     WindowFunctions
}

// NewWindowNode creates a window operator over source.
func NewWindowNode(id NodeID, source Node, spec Specification, functions WindowFunctions) *WindowNode {
	return &WindowNode{id: id, source: source, specification: spec, functions: functions}
}

func (n *WindowNode) ID() NodeID                   { return n.id }
func (n *WindowNode) Sources() []Node              { return []Node{n.source} }
func (n *WindowNode) Source() Node                 { return n.source }
func (n *WindowNode) Specification() Specification { return n.specification }
func (n *WindowNode) Functions() WindowFunctions   { return n.functions }
func (*WindowNode) planNode()                      {}

// OutputVariables returns the source outputs followed by the function outputs.
func (n *WindowNode) OutputVariables() []Variable {
	return append(n.source.OutputVariables(), n.functions.Outputs()...)
}

func (n *WindowNode) ReplaceChildren(children []Node) Node {
	checkArity(n, children, 1)
	return &WindowNode{id: n.id, source: children[0], specification: n.specification, functions: n.functions}
}

// OutputNode is the plan root; it names the result columns.
type OutputNode struct {
	id          NodeID
	source      Node
	columnNames []string
	outputs     []Variable
}

// NewOutputNode creates the root node. columnNames and outputs pair up by position.
func NewOutputNode(id NodeID, source Node, columnNames []string, outputs []Variable) *OutputNode {
	if len(columnNames) != len(outputs) {
		panic(errors.AssertionFailedf("output has %d column names for %d variables", len(columnNames), len(outputs)))
	}
	return &OutputNode{
		id:          id,
		source:      source,
		columnNames: append([]string(nil), columnNames...),
		outputs:     append([]Variable(nil), outputs...),
	}
}

func (n *OutputNode) ID() NodeID                  { return n.id }
func (n *OutputNode) Sources() []Node             { return []Node{n.source} }
func (n *OutputNode) Source() Node                { return n.source }
func (n *OutputNode) OutputVariables() []Variable { return append([]Variable(nil), n.outputs...) }
func (n *OutputNode) ColumnNames() []string       { return append([]string(nil), n.columnNames...) }
func (*OutputNode) planNode()                     {}

func (n *OutputNode) ReplaceChildren(children []Node) Node {
	checkArity(n, children, 1)
	return &OutputNode{id: n.id, source: children[0], columnNames: n.columnNames, outputs: n.outputs}
}

// Walk visits root and its descendants in pre-order. Returning false from fn
// skips the node's children.
func Walk(root Node, fn func(Node) bool) {
	if root == nil || !fn(root) {
		return
	}
	for _, s := range root.Sources() {
		Walk(s, fn)
	}
}

// ExpressionsOf returns the expressions a node evaluates itself, excluding its
// sources. Window functions contribute their calls.
func ExpressionsOf(n Node) []RowExpression {
	switch n := n.(type) {
	case *TableScanNode:
		return nil
	case *ValuesNode:
		var out []RowExpression
		for _, row := range n.rows {
			out = append(out, row...)
		}
		return out
	case *ProjectNode:
		out := make([]RowExpression, len(n.assignments))
		for i, a := range n.assignments {
			out[i] = a.Expression
		}
		return out
	case *WindowNode:
		out := make([]RowExpression, 0, n.functions.Len())
		for _, e := range n.functions.entries {
			out = append(out, e.Function.Call)
		}
		return out
	case *OutputNode:
		out := make([]RowExpression, len(n.outputs))
		for i, v := range n.outputs {
			out[i] = v
		}
		return out
	default:
		panic(errors.AssertionFailedf("unhandled plan node %T", n))
	}
}

// ExtractExpressions returns every expression evaluated anywhere in the plan.
func ExtractExpressions(root Node) []RowExpression {
	var out []RowExpression
	Walk(root, func(n Node) bool {
		out = append(out, ExpressionsOf(n)...)
		return true
	})
	return out
}
