package plan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	varA       = NewVariable("a", "bigint")
	varB       = NewVariable("b", "bigint")
	varC       = NewVariable("c", "bigint")
	varSortkey = NewVariable("sortkey", "bigint")
)

func orderBy(v Variable, o SortOrder) *OrderingScheme {
	return NewOrderingScheme(Ordering{Variable: v, SortOrder: o})
}

func TestCompare(t *testing.T) {
	asc := orderBy(varSortkey, AscNullsFirst)
	desc := orderBy(varSortkey, DescNullsLast)

	tests := []struct {
		name string
		a    Specification
		b    Specification
		want Relation
	}{
		{
			name: "same partition no ordering",
			a:    NewSpecification([]Variable{varA}, nil),
			b:    NewSpecification([]Variable{varA}, nil),
			want: Equal,
		},
		{
			name: "same partition set in different order",
			a:    NewSpecification([]Variable{varA, varB}, nil),
			b:    NewSpecification([]Variable{varB, varA}, nil),
			want: Equal,
		},
		{
			name: "both empty",
			a:    NewSpecification(nil, nil),
			b:    NewSpecification(nil, nil),
			want: Equal,
		},
		{
			name: "same partition same ordering",
			a:    NewSpecification([]Variable{varA}, asc),
			b:    NewSpecification([]Variable{varA}, orderBy(varSortkey, AscNullsFirst)),
			want: Equal,
		},
		{
			name: "same partition different direction",
			a:    NewSpecification([]Variable{varA}, asc),
			b:    NewSpecification([]Variable{varA}, desc),
			want: Incomparable,
		},
		{
			name: "same partition one side ordered",
			a:    NewSpecification([]Variable{varA}, nil),
			b:    NewSpecification([]Variable{varA}, asc),
			want: Incomparable,
		},
		{
			name: "strict subset",
			a:    NewSpecification([]Variable{varA}, nil),
			b:    NewSpecification([]Variable{varA, varB}, nil),
			want: SubsetOf,
		},
		{
			name: "empty partition is subset of any",
			a:    NewSpecification(nil, nil),
			b:    NewSpecification([]Variable{varC}, nil),
			want: SubsetOf,
		},
		{
			name: "strict superset",
			a:    NewSpecification([]Variable{varA, varB}, nil),
			b:    NewSpecification([]Variable{varA}, nil),
			want: SupersetOf,
		},
		{
			name: "subset with same ordering",
			a:    NewSpecification([]Variable{varA}, asc),
			b:    NewSpecification([]Variable{varA, varB}, asc),
			want: SubsetOf,
		},
		{
			name: "unordered subset of ordered",
			a:    NewSpecification([]Variable{varA}, nil),
			b:    NewSpecification([]Variable{varA, varB}, asc),
			want: SubsetOf,
		},
		{
			name: "ordered subset of unordered",
			a:    NewSpecification([]Variable{varA}, asc),
			b:    NewSpecification([]Variable{varA, varB}, nil),
			want: Incomparable,
		},
		{
			name: "superset over unordered subset",
			a:    NewSpecification([]Variable{varA, varB}, asc),
			b:    NewSpecification([]Variable{varA}, nil),
			want: SupersetOf,
		},
		{
			name: "subset with conflicting ordering",
			a:    NewSpecification([]Variable{varA}, asc),
			b:    NewSpecification([]Variable{varA, varB}, desc),
			want: Incomparable,
		},
		{
			name: "disjoint",
			a:    NewSpecification([]Variable{varA}, nil),
			b:    NewSpecification([]Variable{varB}, nil),
			want: Incomparable,
		},
		{
			name: "overlapping",
			a:    NewSpecification([]Variable{varA, varB}, nil),
			b:    NewSpecification([]Variable{varB, varC}, nil),
			want: Incomparable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestCompare_Mirror(t *testing.T) {
	mirror := map[Relation]Relation{
		Equal:        Equal,
		Incomparable: Incomparable,
		SubsetOf:     SupersetOf,
		SupersetOf:   SubsetOf,
	}
	specs := []Specification{
		NewSpecification(nil, nil),
		NewSpecification([]Variable{varA}, nil),
		NewSpecification([]Variable{varA, varB}, nil),
		NewSpecification([]Variable{varB}, orderBy(varC, AscNullsLast)),
		NewSpecification([]Variable{varA, varB}, orderBy(varC, AscNullsLast)),
	}
	for _, a := range specs {
		for _, b := range specs {
			assert.Equal(t, mirror[Compare(a, b)], Compare(b, a), "%s vs %s", a, b)
		}
	}
}

func TestSpecification_Equal(t *testing.T) {
	ab := NewSpecification([]Variable{varA, varB}, nil)
	assert.True(t, ab.Equal(NewSpecification([]Variable{varA, varB}, nil)))
	// Exact equality is order sensitive, unlike Compare.
	assert.False(t, ab.Equal(NewSpecification([]Variable{varB, varA}, nil)))
	assert.False(t, ab.Equal(NewSpecification([]Variable{varA, varB}, orderBy(varC, AscNullsLast))))
}

func TestCompare_VariablesMatchByName(t *testing.T) {
	aDouble := NewVariable("a", "double")
	keyDouble := NewVariable("sortkey", "double")

	assert.Equal(t, Equal, Compare(
		NewSpecification([]Variable{varA}, nil),
		NewSpecification([]Variable{aDouble}, nil)))
	assert.Equal(t, Equal, Compare(
		NewSpecification([]Variable{varA}, orderBy(varSortkey, AscNullsLast)),
		NewSpecification([]Variable{varA}, orderBy(keyDouble, AscNullsLast))))
	assert.Equal(t, SupersetOf, Compare(
		NewSpecification([]Variable{varA, varB}, orderBy(varSortkey, AscNullsLast)),
		NewSpecification([]Variable{aDouble}, orderBy(keyDouble, AscNullsLast))))

	assert.True(t, orderBy(varSortkey, AscNullsLast).Equal(orderBy(keyDouble, AscNullsLast)))
	assert.False(t, orderBy(varSortkey, AscNullsLast).Equal(orderBy(keyDouble, DescNullsLast)))
	assert.True(t, NewSpecification([]Variable{varA}, nil).Equal(NewSpecification([]Variable{aDouble}, nil)))

	f := Frame{Type: FrameRows, StartType: Preceding, EndType: CurrentRow, StartValue: &varA}
	g := f
	g.StartValue = &aDouble
	assert.True(t, f.Equal(g))
	assert.True(t, ExpressionsEqual(varA, aDouble))
}

func TestSpecification_String(t *testing.T) {
	tests := []struct {
		spec Specification
		want string
	}{
		{NewSpecification(nil, nil), ""},
		{NewSpecification([]Variable{varA, varB}, nil), "partition by (a, b)"},
		{NewSpecification(nil, orderBy(varC, DescNullsFirst)), "order by (c DESC_NULLS_FIRST)"},
		{
			NewSpecification([]Variable{varA}, NewOrderingScheme(
				Ordering{Variable: varB, SortOrder: AscNullsLast},
				Ordering{Variable: varC, SortOrder: DescNullsLast},
			)),
			"partition by (a), order by (b ASC_NULLS_LAST, c DESC_NULLS_LAST)",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.spec.String())
	}
}

func TestSpecification_Contract(t *testing.T) {
	assertPanicsWithAssertion := func(t *testing.T, fn func()) {
		defer func() {
			r := recover()
			require.NotNil(t, r)
			err, ok := r.(error)
			require.True(t, ok)
			assert.True(t, errors.IsAssertionFailure(err))
		}()
		fn()
	}

	t.Run("duplicate partition variable", func(t *testing.T) {
		assertPanicsWithAssertion(t, func() { NewSpecification([]Variable{varA, varA}, nil) })
	})
	t.Run("empty ordering scheme", func(t *testing.T) {
		assertPanicsWithAssertion(t, func() { NewOrderingScheme() })
	})
	t.Run("duplicate ordering variable", func(t *testing.T) {
		assertPanicsWithAssertion(t, func() {
			NewOrderingScheme(Ordering{Variable: varA}, Ordering{Variable: varA, SortOrder: DescNullsLast})
		})
	})
}
