package plan

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// RowExpression is a scalar expression evaluated per row. The set of
// implementations is closed: Variable, Constant, Call and UnresolvedSymbol.
type RowExpression interface {
	fmt.Stringer
	rowExpression()
}

// Constant is a literal value. Literal holds its SQL text.
type Constant struct {
	Literal string
	Type    string
}

func (Constant) rowExpression() {}

func (c Constant) String() string {
	return c.Literal
}

// Call is a function invocation, e.g. avg(b).
type Call struct {
	Name       string
	ReturnType string
	Arguments  []RowExpression
}

// NewCall creates a call expression. The argument slice is copied.
func NewCall(name, returnType string, args ...RowExpression) Call {
	return Call{Name: name, ReturnType: returnType, Arguments: append([]RowExpression(nil), args...)}
}

func (Call) rowExpression() {}

func (c Call) String() string {
	args := make([]string, len(c.Arguments))
	for i, arg := range c.Arguments {
		args[i] = arg.String()
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}

// UnresolvedSymbol is a name the analyzer could not bind. It may appear while
// a plan is being built but must never survive optimization.
type UnresolvedSymbol struct {
	Parts []string
}

func (UnresolvedSymbol) rowExpression() {}

func (u UnresolvedSymbol) String() string {
	return "?" + strings.Join(u.Parts, ".")
}

// WalkExpression calls fn for expr and, while fn returns true, for every
// sub-expression in pre-order.
func WalkExpression(expr RowExpression, fn func(RowExpression) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case Variable, Constant, UnresolvedSymbol:
	case Call:
		for _, arg := range e.Arguments {
			WalkExpression(arg, fn)
		}
	default:
		panic(errors.AssertionFailedf("unhandled row expression %T", expr))
	}
}

// VariablesIn returns the variables referenced anywhere in expr.
func VariablesIn(expr RowExpression) VariableSet {
	out := make(VariableSet)
	WalkExpression(expr, func(e RowExpression) bool {
		if v, ok := e.(Variable); ok {
			out.Add(v)
		}
		return true
	})
	return out
}

// ExpressionsEqual compares two expressions structurally.
func ExpressionsEqual(a, b RowExpression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Variable:
		y, ok := b.(Variable)
		return ok && x.Same(y)
	case Constant:
		y, ok := b.(Constant)
		return ok && x == y
	case Call:
		y, ok := b.(Call)
		return ok && x.Equal(y)
	case UnresolvedSymbol:
		y, ok := b.(UnresolvedSymbol)
		if !ok || len(x.Parts) != len(y.Parts) {
			return false
		}
		for i := range x.Parts {
			if x.Parts[i] != y.Parts[i] {
				return false
			}
		}
		return true
	default:
		panic(errors.AssertionFailedf("unhandled row expression %T", a))
	}
}

// Equal compares two calls structurally.
func (c Call) Equal(o Call) bool {
	if c.Name != o.Name || c.ReturnType != o.ReturnType || len(c.Arguments) != len(o.Arguments) {
		return false
	}
	for i := range c.Arguments {
		if !ExpressionsEqual(c.Arguments[i], o.Arguments[i]) {
			return false
		}
	}
	return true
}
