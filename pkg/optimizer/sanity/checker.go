// Package sanity validates optimized plans. A failing check means an optimizer
// rule produced an invalid plan, never that the query itself was wrong.
package sanity

import (
	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/plan"
)

// Checker validates one property of a plan.
type Checker interface {
	Name() string
	Validate(root plan.Node) error
}

// PlanChecker runs checkers in order and stops at the first failure.
type PlanChecker struct {
	checkers []Checker
}

// NewPlanChecker creates a checker running checkers in the given order.
func NewPlanChecker(checkers ...Checker) *PlanChecker {
	return &PlanChecker{checkers: checkers}
}

// DefaultPlanChecker runs every built-in check.
func DefaultPlanChecker() *PlanChecker {
	return NewPlanChecker(
		VerifyNoUnresolvedSymbolExpression{},
		ValidateDependencies{},
		NoDuplicatePlanNodeIDs{},
	)
}

// Checkers returns the configured checkers.
func (c *PlanChecker) Checkers() []Checker {
	return append([]Checker(nil), c.checkers...)
}

// Validate runs all checks against root.
func (c *PlanChecker) Validate(root plan.Node) error {
	for _, checker := range c.checkers {
		if err := checker.Validate(root); err != nil {
			return errors.Wrapf(err, "%s", checker.Name())
		}
	}
	return nil
}

// Lookup returns the built-in checker with the given name.
func Lookup(name string) (Checker, bool) {
	for _, c := range DefaultPlanChecker().checkers {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}
