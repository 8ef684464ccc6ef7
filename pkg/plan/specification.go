package plan

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// SortOrder is the direction and null placement of one ordering key.
type SortOrder int

const (
	AscNullsFirst SortOrder = iota
	AscNullsLast
	DescNullsFirst
	DescNullsLast
)

// String returns the SortOrder name.
func (o SortOrder) String() string {
	switch o {
	case AscNullsFirst:
		return "ASC_NULLS_FIRST"
	case AscNullsLast:
		return "ASC_NULLS_LAST"
	case DescNullsFirst:
		return "DESC_NULLS_FIRST"
	case DescNullsLast:
		return "DESC_NULLS_LAST"
	default:
		return "UNKNOWN"
	}
}

// IsAscending reports whether the order sorts low values first.
func (o SortOrder) IsAscending() bool {
	return o == AscNullsFirst || o == AscNullsLast
}

// Ordering is one key of an ordering scheme.
type Ordering struct {
	Variable  Variable
	SortOrder SortOrder
}

func (o Ordering) String() string {
	return o.Variable.Name + " " + o.SortOrder.String()
}

// OrderingScheme is a non-empty sequence of orderings over distinct variables.
type OrderingScheme struct {
	orderBy []Ordering
}

// NewOrderingScheme creates an ordering scheme. An empty list or a repeated
// variable violates the plan contract.
func NewOrderingScheme(orderBy ...Ordering) *OrderingScheme {
	if len(orderBy) == 0 {
		panic(errors.AssertionFailedf("ordering scheme must not be empty"))
	}
	seen := make(VariableSet, len(orderBy))
	for _, o := range orderBy {
		if seen.Contains(o.Variable) {
			panic(errors.AssertionFailedf("duplicate ordering variable %s", o.Variable.Name))
		}
		seen.Add(o.Variable)
	}
	return &OrderingScheme{orderBy: append([]Ordering(nil), orderBy...)}
}

// OrderBy returns a copy of the orderings.
func (s *OrderingScheme) OrderBy() []Ordering {
	if s == nil {
		return nil
	}
	return append([]Ordering(nil), s.orderBy...)
}

// Variables returns the ordering variables in order.
func (s *OrderingScheme) Variables() []Variable {
	if s == nil {
		return nil
	}
	out := make([]Variable, len(s.orderBy))
	for i, o := range s.orderBy {
		out[i] = o.Variable
	}
	return out
}

// Equal reports whether two schemes have the same keys, directions and order.
// Two absent schemes are equal.
func (s *OrderingScheme) Equal(o *OrderingScheme) bool {
	if s == nil || o == nil {
		return s == nil && o == nil
	}
	if len(s.orderBy) != len(o.orderBy) {
		return false
	}
	for i := range s.orderBy {
		if !s.orderBy[i].Variable.Same(o.orderBy[i].Variable) || s.orderBy[i].SortOrder != o.orderBy[i].SortOrder {
			return false
		}
	}
	return true
}

func (s *OrderingScheme) String() string {
	if s == nil {
		return ""
	}
	parts := make([]string, len(s.orderBy))
	for i, o := range s.orderBy {
		parts[i] = o.String()
	}
	return strings.Join(parts, ", ")
}

// Specification is the partitioning and ordering requirement shared by the
// functions of one window operator.
type Specification struct {
	partitionBy    []Variable
	orderingScheme *OrderingScheme
}

// NewSpecification creates a specification. ordering may be nil. Partition
// variables must be distinct.
func NewSpecification(partitionBy []Variable, ordering *OrderingScheme) Specification {
	seen := make(VariableSet, len(partitionBy))
	for _, v := range partitionBy {
		if seen.Contains(v) {
			panic(errors.AssertionFailedf("duplicate partition variable %s", v.Name))
		}
		seen.Add(v)
	}
	return Specification{
		partitionBy:    append([]Variable(nil), partitionBy...),
		orderingScheme: ordering,
	}
}

// PartitionBy returns a copy of the partition variables in declaration order.
func (s Specification) PartitionBy() []Variable {
	return append([]Variable(nil), s.partitionBy...)
}

// PartitionSet returns the partition variables as a set.
func (s Specification) PartitionSet() VariableSet {
	return NewVariableSet(s.partitionBy...)
}

// OrderingScheme returns the ordering scheme, nil when absent.
func (s Specification) OrderingScheme() *OrderingScheme {
	return s.orderingScheme
}

// Variables returns every variable the specification reads.
func (s Specification) Variables() VariableSet {
	out := s.PartitionSet()
	for _, v := range s.orderingScheme.Variables() {
		out.Add(v)
	}
	return out
}

// Equal is exact equality: same partition list in the same order and the same
// ordering scheme. Compare is the set-based relation used by the rules.
func (s Specification) Equal(o Specification) bool {
	if len(s.partitionBy) != len(o.partitionBy) {
		return false
	}
	for i := range s.partitionBy {
		if !s.partitionBy[i].Same(o.partitionBy[i]) {
			return false
		}
	}
	return s.orderingScheme.Equal(o.orderingScheme)
}

func (s Specification) String() string {
	var parts []string
	if len(s.partitionBy) > 0 {
		parts = append(parts, "partition by ("+joinVariables(s.partitionBy)+")")
	}
	if s.orderingScheme != nil {
		parts = append(parts, "order by ("+s.orderingScheme.String()+")")
	}
	return strings.Join(parts, ", ")
}

// Relation is the result of comparing two specifications.
type Relation int

const (
	Incomparable Relation = iota
	Equal
	SubsetOf
	SupersetOf
)

func (r Relation) String() string {
	switch r {
	case Incomparable:
		return "Incomparable"
	case Equal:
		return "Equal"
	case SubsetOf:
		return "SubsetOf"
	case SupersetOf:
		return "SupersetOf"
	default:
		return "Unknown"
	}
}

// Compare relates a to b by their partition sets.
//
//   - Equal: same partition set and equal ordering schemes (or both absent).
//   - SubsetOf: a's set is a strict subset of b's, and the schemes are equal or
//     a has none.
//   - SupersetOf: the mirror of SubsetOf.
//   - Incomparable: everything else, including conflicting ordering schemes.
func Compare(a, b Specification) Relation {
	setA, setB := a.PartitionSet(), b.PartitionSet()
	sameOrdering := a.orderingScheme.Equal(b.orderingScheme)

	switch {
	case setA.Equals(setB):
		if sameOrdering {
			return Equal
		}
		return Incomparable
	case setA.SubsetOf(setB):
		if sameOrdering || a.orderingScheme == nil {
			return SubsetOf
		}
		return Incomparable
	case setB.SubsetOf(setA):
		if sameOrdering || b.orderingScheme == nil {
			return SupersetOf
		}
		return Incomparable
	default:
		return Incomparable
	}
}
