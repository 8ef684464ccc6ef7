package optimizer

import (
	"github.com/kasuganosora/planopt/pkg/plan"
)

// planBuilder builds hand-written plans with fresh node ids.
type planBuilder struct {
	ids *plan.IDAllocator
}

func newPlanBuilder() *planBuilder {
	return &planBuilder{ids: plan.NewIDAllocator()}
}

func (b *planBuilder) values(vars ...plan.Variable) *plan.ValuesNode {
	return plan.NewValuesNode(b.ids.Next(), vars)
}

func (b *planBuilder) window(spec plan.Specification, source plan.Node, fns ...plan.WindowAssignment) *plan.WindowNode {
	return plan.NewWindowNode(b.ids.Next(), source, spec, plan.MustWindowFunctions(fns...))
}

func (b *planBuilder) output(source plan.Node) *plan.OutputNode {
	outs := source.OutputVariables()
	names := make([]string, len(outs))
	for i, v := range outs {
		names[i] = v.Name
	}
	return plan.NewOutputNode(b.ids.Next(), source, names, outs)
}

func bigint(name string) plan.Variable {
	return plan.NewVariable(name, "bigint")
}

func double(name string) plan.Variable {
	return plan.NewVariable(name, "double")
}

func partitionBy(vars ...plan.Variable) plan.Specification {
	return plan.NewSpecification(vars, nil)
}

func ordered(spec plan.Specification, v plan.Variable, order plan.SortOrder) plan.Specification {
	return plan.NewSpecification(spec.PartitionBy(), plan.NewOrderingScheme(plan.Ordering{Variable: v, SortOrder: order}))
}

func assign(out plan.Variable, fn plan.WindowFunction) plan.WindowAssignment {
	return plan.WindowAssignment{Output: out, Function: fn}
}

func avgOf(args ...plan.Variable) plan.WindowFunction {
	exprs := make([]plan.RowExpression, len(args))
	for i, a := range args {
		exprs[i] = a
	}
	return plan.WindowFunction{Call: plan.NewCall("avg", "double", exprs...), Frame: plan.DefaultFrame()}
}

func rank() plan.WindowFunction {
	return plan.WindowFunction{Call: plan.NewCall("rank", "bigint"), Frame: plan.DefaultFrame()}
}
