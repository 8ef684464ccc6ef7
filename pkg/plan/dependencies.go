package plan

// ConsumedVariables returns every variable the window operator reads: the
// variables in its function arguments and the variables its frames reference.
// The child is not inspected.
func ConsumedVariables(w *WindowNode) VariableSet {
	out := make(VariableSet)
	for _, e := range w.functions.entries {
		out.AddAll(e.Function.Variables())
	}
	return out
}

// ProducedVariables returns the outputs of the operator's function map.
func ProducedVariables(w *WindowNode) VariableSet {
	return NewVariableSet(w.functions.Outputs()...)
}

// DependsOn reports whether outer reads anything inner produces, in which case
// the two operators must keep their relative order.
func DependsOn(outer, inner *WindowNode) bool {
	return ConsumedVariables(outer).Intersects(ProducedVariables(inner))
}

// RequiredVariables returns the variables a node reads from its sources.
func RequiredVariables(n Node) VariableSet {
	out := make(VariableSet)
	switch n := n.(type) {
	case *WindowNode:
		out.AddAll(ConsumedVariables(n))
		out.AddAll(n.specification.Variables())
	default:
		for _, expr := range ExpressionsOf(n) {
			out.AddAll(VariablesIn(expr))
		}
	}
	return out
}
