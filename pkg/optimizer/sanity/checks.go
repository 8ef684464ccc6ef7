package sanity

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/plan"
)

// VerifyNoUnresolvedSymbolExpression fails when a placeholder for an unbound
// name is still reachable from the plan.
type VerifyNoUnresolvedSymbolExpression struct{}

func (VerifyNoUnresolvedSymbolExpression) Name() string { return "VerifyNoUnresolvedSymbolExpression" }

func (VerifyNoUnresolvedSymbolExpression) Validate(root plan.Node) error {
	var err error
	for _, expr := range plan.ExtractExpressions(root) {
		plan.WalkExpression(expr, func(e plan.RowExpression) bool {
			if u, ok := e.(plan.UnresolvedSymbol); ok && err == nil {
				err = errors.AssertionFailedf("unexpected UnresolvedSymbolExpression in logical plan: %s",
					strings.Join(u.Parts, "."))
			}
			return err == nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ValidateDependencies checks that every node reads only variables its
// sources produce.
type ValidateDependencies struct{}

func (ValidateDependencies) Name() string { return "ValidateDependencies" }

func (ValidateDependencies) Validate(root plan.Node) error {
	var err error
	plan.Walk(root, func(n plan.Node) bool {
		if err != nil {
			return false
		}
		available := make(plan.VariableSet)
		for _, s := range n.Sources() {
			available.AddAll(plan.NewVariableSet(s.OutputVariables()...))
		}
		if missing := plan.RequiredVariables(n).Difference(available); missing.Len() > 0 {
			err = errors.AssertionFailedf("node %d (%T) reads %s, not produced by its sources", n.ID(), n, missing)
			return false
		}
		return true
	})
	return err
}

// NoDuplicatePlanNodeIDs checks that plan node ids are unique.
type NoDuplicatePlanNodeIDs struct{}

func (NoDuplicatePlanNodeIDs) Name() string { return "NoDuplicatePlanNodeIDs" }

func (NoDuplicatePlanNodeIDs) Validate(root plan.Node) error {
	seen := make(map[plan.NodeID]struct{})
	var err error
	plan.Walk(root, func(n plan.Node) bool {
		if err != nil {
			return false
		}
		if _, dup := seen[n.ID()]; dup {
			err = errors.AssertionFailedf("duplicate plan node id %d", n.ID())
			return false
		}
		seen[n.ID()] = struct{}{}
		return true
	})
	return err
}
