package plan

import (
	"fmt"
	"slices"
	"strings"
)

// Variable is a reference to a column or value produced somewhere in the plan.
// Two variables are the same variable when their names are equal.
type Variable struct {
	Name string
	Type string
}

// NewVariable creates a variable reference.
func NewVariable(name, typ string) Variable {
	return Variable{Name: name, Type: typ}
}

func (Variable) rowExpression() {}

// Same reports whether v and o are the same variable. Only names are compared.
func (v Variable) Same(o Variable) bool {
	return v.Name == o.Name
}

// String returns the variable name.
func (v Variable) String() string {
	return v.Name
}

// Typed returns "name:type", the form used in plan output lists.
func (v Variable) Typed() string {
	return v.Name + ":" + v.Type
}

// VariableSet is a set of variables keyed by name.
type VariableSet map[string]Variable

// NewVariableSet creates a set holding vars.
func NewVariableSet(vars ...Variable) VariableSet {
	s := make(VariableSet, len(vars))
	for _, v := range vars {
		s[v.Name] = v
	}
	return s
}

// Add inserts v.
func (s VariableSet) Add(v Variable) {
	s[v.Name] = v
}

// AddAll inserts every member of other.
func (s VariableSet) AddAll(other VariableSet) {
	for name, v := range other {
		s[name] = v
	}
}

// Contains reports whether a variable with v's name is a member.
func (s VariableSet) Contains(v Variable) bool {
	_, ok := s[v.Name]
	return ok
}

// Len returns the number of members.
func (s VariableSet) Len() int {
	return len(s)
}

// Intersect returns the members present in both sets.
func (s VariableSet) Intersect(other VariableSet) VariableSet {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	out := make(VariableSet)
	for name, v := range small {
		if _, ok := large[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Intersects reports whether the sets share at least one member.
func (s VariableSet) Intersects(other VariableSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for name := range small {
		if _, ok := large[name]; ok {
			return true
		}
	}
	return false
}

// Difference returns the members of s missing from other.
func (s VariableSet) Difference(other VariableSet) VariableSet {
	out := make(VariableSet)
	for name, v := range s {
		if _, ok := other[name]; !ok {
			out[name] = v
		}
	}
	return out
}

// SubsetOf reports whether every member of s is in other.
func (s VariableSet) SubsetOf(other VariableSet) bool {
	if len(s) > len(other) {
		return false
	}
	for name := range s {
		if _, ok := other[name]; !ok {
			return false
		}
	}
	return true
}

// Equals reports whether both sets have the same members.
func (s VariableSet) Equals(other VariableSet) bool {
	return len(s) == len(other) && s.SubsetOf(other)
}

// Sorted returns the members ordered by name.
func (s VariableSet) Sorted() []Variable {
	out := make([]Variable, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b Variable) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// String formats the set as {a, b, c} in name order.
func (s VariableSet) String() string {
	return "{" + joinVariables(s.Sorted()) + "}"
}

func joinVariables(vars []Variable) string {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return strings.Join(names, ", ")
}

func joinTyped(vars []Variable) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = v.Typed()
	}
	return strings.Join(parts, ", ")
}

// VariableAllocator hands out variable names that are unique within one plan.
// It is not safe for concurrent use; every query owns its allocator.
type VariableAllocator struct {
	used     map[string]struct{}
	counters map[string]int
}

// NewVariableAllocator creates an empty allocator.
func NewVariableAllocator() *VariableAllocator {
	return &VariableAllocator{
		used:     make(map[string]struct{}),
		counters: make(map[string]int),
	}
}

// NewVariable returns a variable named hint, or hint_N with the smallest N >= 1
// that is still free.
func (a *VariableAllocator) NewVariable(hint, typ string) Variable {
	name := hint
	if _, taken := a.used[name]; taken {
		for {
			a.counters[hint]++
			name = fmt.Sprintf("%s_%d", hint, a.counters[hint])
			if _, taken := a.used[name]; !taken {
				break
			}
		}
	}
	a.used[name] = struct{}{}
	return NewVariable(name, typ)
}

// Register marks v's name as taken, e.g. for variables built outside the allocator.
func (a *VariableAllocator) Register(v Variable) {
	a.used[v.Name] = struct{}{}
}
