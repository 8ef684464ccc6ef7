package plan

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// EqualPlans compares two plans structurally. Node ids are ignored, so a rewritten
// plan can be compared with one built from scratch.
func EqualPlans(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !nodeEqual(a, b) {
		return false
	}
	as, bs := a.Sources(), b.Sources()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !EqualPlans(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func sameVariables(a, b []Variable) bool {
	return slices.EqualFunc(a, b, Variable.Same)
}

func nodeEqual(a, b Node) bool {
	switch x := a.(type) {
	case *TableScanNode:
		y, ok := b.(*TableScanNode)
		return ok && x.table == y.table && sameVariables(x.outputs, y.outputs)
	case *ValuesNode:
		y, ok := b.(*ValuesNode)
		if !ok || !sameVariables(x.outputs, y.outputs) || len(x.rows) != len(y.rows) {
			return false
		}
		for i := range x.rows {
			if !slices.EqualFunc(x.rows[i], y.rows[i], ExpressionsEqual) {
				return false
			}
		}
		return true
	case *ProjectNode:
		y, ok := b.(*ProjectNode)
		return ok && slices.EqualFunc(x.assignments, y.assignments, func(p, q Assignment) bool {
			return p.Output.Same(q.Output) && ExpressionsEqual(p.Expression, q.Expression)
		})
	case *WindowNode:
		y, ok := b.(*WindowNode)
		return ok && x.specification.Equal(y.specification) && x.functions.Equal(y.functions)
	case *OutputNode:
		y, ok := b.(*OutputNode)
		return ok && slices.Equal(x.columnNames, y.columnNames) && sameVariables(x.outputs, y.outputs)
	default:
		panic(errors.AssertionFailedf("unhandled plan node %T", a))
	}
}
