package optimizer

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/kasuganosora/planopt/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	a       = bigint("a")
	b       = bigint("b")
	c       = bigint("c")
	sortkey = bigint("sortkey")
)

func applySwap(t *testing.T, node plan.Node) Result {
	t.Helper()
	rule := NewSwapAdjacentWindowsRule()
	if !rule.Pattern().Match(node) {
		return NoMatch()
	}
	res, err := rule.Apply(context.Background(), node, NewContext("test", nil, nil, nil))
	require.NoError(t, err)
	return res
}

func TestSwapAdjacentWindowsRule_Name(t *testing.T) {
	rule := NewSwapAdjacentWindowsRule()
	assert.Equal(t, "SwapAdjacentWindowsBySpecifications", rule.Name())
	assert.Equal(t, RuleSwapAdjacentWindows, rule.ID())
	assert.Equal(t, "Window(Window)", rule.Pattern().String())
}

func TestSwapAdjacentWindows_DoesNotFireWithoutWindows(t *testing.T) {
	p := newPlanBuilder()
	assert.True(t, applySwap(t, p.values(a)).IsEmpty())
}

func TestSwapAdjacentWindows_DoesNotFireOnSingleWindow(t *testing.T) {
	p := newPlanBuilder()
	w := p.window(partitionBy(a), p.values(a), assign(double("avg_1"), avgOf()))
	assert.True(t, applySwap(t, w).IsEmpty())
}

func TestSwapAdjacentWindows_SubsetComesFirst(t *testing.T) {
	p := newPlanBuilder()
	source := p.values(a, b)
	inner := p.window(partitionBy(a, b), source, assign(double("avg_2"), avgOf(b)))
	outer := p.window(partitionBy(a), inner, assign(double("avg_1"), avgOf(a)))

	res := applySwap(t, outer)
	require.False(t, res.IsEmpty())

	parent, ok := res.Node().(*plan.WindowNode)
	require.True(t, ok)
	child, ok := parent.Source().(*plan.WindowNode)
	require.True(t, ok)

	assert.True(t, parent.Specification().Equal(partitionBy(a, b)))
	assert.True(t, parent.Functions().Equal(inner.Functions()))
	assert.True(t, child.Specification().Equal(partitionBy(a)))
	assert.True(t, child.Functions().Equal(outer.Functions()))
	assert.Same(t, source, child.Source())

	// ids travel with their operators
	assert.Equal(t, inner.ID(), parent.ID())
	assert.Equal(t, outer.ID(), child.ID())

	assert.ElementsMatch(t, outer.OutputVariables(), parent.OutputVariables())

	// the input plan is untouched
	assert.Same(t, inner, outer.Source())

	// already canonical
	assert.True(t, applySwap(t, parent).IsEmpty())
}

func TestSwapAdjacentWindows_Stability(t *testing.T) {
	tests := []struct {
		name  string
		inner plan.Specification
		outer plan.Specification
	}{
		{"equal specifications", partitionBy(a), partitionBy(a)},
		{"equal sets in different order", partitionBy(a, b), partitionBy(b, a)},
		{"subset already below", partitionBy(a), partitionBy(a, b)},
		{"disjoint", partitionBy(a), partitionBy(b)},
		{"overlapping", partitionBy(a, b), partitionBy(b, c)},
		{
			"conflicting ordering",
			ordered(partitionBy(a, b), sortkey, plan.AscNullsFirst),
			ordered(partitionBy(a), sortkey, plan.DescNullsLast),
		},
		{
			"ordered subset over unordered superset",
			partitionBy(a, b),
			ordered(partitionBy(a), sortkey, plan.AscNullsFirst),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlanBuilder()
			inner := p.window(tt.inner, p.values(a, b, c, sortkey), assign(double("avg_2"), avgOf(b)))
			outer := p.window(tt.outer, inner, assign(double("avg_1"), avgOf(a)))
			assert.True(t, applySwap(t, outer).IsEmpty())
		})
	}
}

func TestSwapAdjacentWindows_OrderedSuperset(t *testing.T) {
	p := newPlanBuilder()
	inner := p.window(ordered(partitionBy(a, b), sortkey, plan.AscNullsFirst), p.values(a, b, sortkey), assign(double("avg_2"), avgOf(b)))
	outer := p.window(partitionBy(a), inner, assign(double("avg_1"), avgOf(a)))

	res := applySwap(t, outer)
	require.False(t, res.IsEmpty())
	assert.True(t, res.Node().(*plan.WindowNode).Specification().Equal(inner.Specification()))
}

func TestSwapAdjacentWindows_DependentWindowsAreNotReordered(t *testing.T) {
	startValue := bigint("startValue")
	rows := plan.Frame{Type: plan.FrameRows, StartType: plan.Preceding, EndType: plan.CurrentRow, StartValue: &startValue}
	coerced := bigint("sortKeyCoercedForFrameStartComparison")
	rangeFrame := plan.Frame{
		Type:                        plan.FrameRange,
		StartType:                   plan.Preceding,
		EndType:                     plan.CurrentRow,
		StartValue:                  &startValue,
		SortKeyCoercedForFrameStart: &coerced,
	}
	offsetOnly := plan.Frame{Type: plan.FrameRows, StartType: plan.Preceding, EndType: plan.CurrentRow, StartOffset: &startValue}
	withFrame := func(frame plan.Frame) plan.WindowFunction {
		fn := avgOf(a)
		fn.Frame = frame
		return fn
	}

	tests := []struct {
		name      string
		innerOut  plan.Variable
		innerFn   plan.WindowFunction
		outerFn   plan.WindowFunction
		innerSpec plan.Specification
		outerSpec plan.Specification
	}{
		{
			name:      "argument",
			innerOut:  bigint("avg_2"),
			innerFn:   avgOf(a),
			outerFn:   avgOf(bigint("avg_2")),
			innerSpec: partitionBy(a, b),
			outerSpec: partitionBy(a),
		},
		{
			name:      "argument with incomparable specifications",
			innerOut:  bigint("avg_2"),
			innerFn:   avgOf(a),
			outerFn:   avgOf(bigint("avg_2")),
			innerSpec: partitionBy(b),
			outerSpec: partitionBy(a),
		},
		{
			name:      "rows frame start value",
			innerOut:  startValue,
			innerFn:   rank(),
			outerFn:   withFrame(rows),
			innerSpec: ordered(partitionBy(a, b), sortkey, plan.AscNullsFirst),
			outerSpec: ordered(partitionBy(a), sortkey, plan.AscNullsFirst),
		},
		{
			name:      "range frame start value",
			innerOut:  startValue,
			innerFn:   rank(),
			outerFn:   withFrame(rangeFrame),
			innerSpec: ordered(partitionBy(a, b), sortkey, plan.AscNullsFirst),
			outerSpec: ordered(partitionBy(a), sortkey, plan.AscNullsFirst),
		},
		{
			name:      "frame start offset",
			innerOut:  startValue,
			innerFn:   rank(),
			outerFn:   withFrame(offsetOnly),
			innerSpec: partitionBy(a, b),
			outerSpec: partitionBy(a),
		},
		{
			name:      "sort key coercion",
			innerOut:  coerced,
			innerFn:   rank(),
			outerFn:   withFrame(plan.Frame{Type: plan.FrameRange, StartType: plan.Preceding, EndType: plan.CurrentRow, SortKeyCoercedForFrameStart: &coerced}),
			innerSpec: partitionBy(a, b),
			outerSpec: partitionBy(a),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlanBuilder()
			inner := p.window(tt.innerSpec, p.values(a, b, sortkey), assign(tt.innerOut, tt.innerFn))
			outer := p.window(tt.outerSpec, inner, assign(double("avg_1"), tt.outerFn))
			require.True(t, plan.DependsOn(outer, inner))
			assert.True(t, applySwap(t, outer).IsEmpty())
			assert.False(t, SwapAdjacentWindows(outer).Matched)
		})
	}
}

func TestSwapAdjacentWindows_ContractViolation(t *testing.T) {
	p := newPlanBuilder()
	w := p.window(partitionBy(a), p.values(a), assign(double("avg_1"), avgOf(a)))

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.IsAssertionFailure(err))
	}()
	SwapAdjacentWindows(w)
}

func TestSwapAdjacentWindows_RejectsNonWindow(t *testing.T) {
	p := newPlanBuilder()
	_, err := NewSwapAdjacentWindowsRule().Apply(context.Background(), p.values(a), NewContext("test", nil, nil, nil))
	require.Error(t, err)
	assert.True(t, errors.IsAssertionFailure(err))
}
