package plan

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// FrameType is the unit a window frame is measured in.
type FrameType int

const (
	FrameRange FrameType = iota
	FrameRows
)

func (t FrameType) String() string {
	switch t {
	case FrameRange:
		return "RANGE"
	case FrameRows:
		return "ROWS"
	default:
		return "UNKNOWN"
	}
}

// BoundType is the kind of a frame start or end bound.
type BoundType int

const (
	UnboundedPreceding BoundType = iota
	Preceding
	CurrentRow
	Following
	UnboundedFollowing
)

func (b BoundType) String() string {
	switch b {
	case UnboundedPreceding:
		return "UNBOUNDED PRECEDING"
	case Preceding:
		return "PRECEDING"
	case CurrentRow:
		return "CURRENT ROW"
	case Following:
		return "FOLLOWING"
	case UnboundedFollowing:
		return "UNBOUNDED FOLLOWING"
	default:
		return "UNKNOWN"
	}
}

// HasValue reports whether the bound needs an offset value.
func (b BoundType) HasValue() bool {
	return b == Preceding || b == Following
}

// Frame is the row window a function aggregates over. The optional variables
// are all inputs the frame reads at run time.
type Frame struct {
	Type      FrameType
	StartType BoundType
	EndType   BoundType

	StartValue *Variable
	EndValue   *Variable
	// StartOffset is the output of the expression that computed the start
	// offset, when it was planned separately from StartValue.
	StartOffset *Variable
	// Sort key shifted by the offset, used to compare RANGE bounds.
	SortKeyCoercedForFrameStart *Variable
	SortKeyCoercedForFrameEnd   *Variable
}

// DefaultFrame is RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW.
func DefaultFrame() Frame {
	return Frame{Type: FrameRange, StartType: UnboundedPreceding, EndType: CurrentRow}
}

// Variables returns every variable the frame reads.
func (f Frame) Variables() VariableSet {
	out := make(VariableSet)
	for _, v := range []*Variable{
		f.StartValue,
		f.EndValue,
		f.StartOffset,
		f.SortKeyCoercedForFrameStart,
		f.SortKeyCoercedForFrameEnd,
	} {
		if v != nil {
			out.Add(*v)
		}
	}
	return out
}

// Equal compares two frames structurally.
func (f Frame) Equal(o Frame) bool {
	return f.Type == o.Type &&
		f.StartType == o.StartType &&
		f.EndType == o.EndType &&
		optionalEqual(f.StartValue, o.StartValue) &&
		optionalEqual(f.EndValue, o.EndValue) &&
		optionalEqual(f.StartOffset, o.StartOffset) &&
		optionalEqual(f.SortKeyCoercedForFrameStart, o.SortKeyCoercedForFrameStart) &&
		optionalEqual(f.SortKeyCoercedForFrameEnd, o.SortKeyCoercedForFrameEnd)
}

func optionalEqual(a, b *Variable) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Same(*b)
}

// String renders the frame as "ROWS BETWEEN x PRECEDING AND CURRENT ROW".
func (f Frame) String() string {
	return f.Type.String() + " BETWEEN " + boundString(f.StartType, f.StartValue) +
		" AND " + boundString(f.EndType, f.EndValue)
}

func boundString(t BoundType, value *Variable) string {
	if value != nil && t.HasValue() {
		return value.Name + " " + t.String()
	}
	return t.String()
}

// WindowFunction is one function computed by a window operator.
type WindowFunction struct {
	Call        Call
	Frame       Frame
	IgnoreNulls bool
}

// Variables returns the variables read by the call arguments and the frame.
func (f WindowFunction) Variables() VariableSet {
	out := make(VariableSet)
	for _, arg := range f.Call.Arguments {
		out.AddAll(VariablesIn(arg))
	}
	out.AddAll(f.Frame.Variables())
	return out
}

// Equal compares two window functions structurally.
func (f WindowFunction) Equal(o WindowFunction) bool {
	return f.IgnoreNulls == o.IgnoreNulls && f.Call.Equal(o.Call) && f.Frame.Equal(o.Frame)
}

func (f WindowFunction) String() string {
	var sb strings.Builder
	sb.WriteString(f.Call.String())
	if f.IgnoreNulls {
		sb.WriteString(" IGNORE NULLS")
	}
	sb.WriteString(" ")
	sb.WriteString(f.Frame.String())
	return sb.String()
}

// WindowAssignment binds an output variable to the function computing it.
type WindowAssignment struct {
	Output   Variable
	Function WindowFunction
}

// WindowFunctions maps output variables to window functions. Keys are unique;
// iteration follows insertion order so plans print deterministically.
type WindowFunctions struct {
	entries []WindowAssignment
}

// NewWindowFunctions builds the map, rejecting duplicate outputs.
func NewWindowFunctions(entries ...WindowAssignment) (WindowFunctions, error) {
	seen := make(VariableSet, len(entries))
	for _, e := range entries {
		if seen.Contains(e.Output) {
			return WindowFunctions{}, errors.AssertionFailedf("duplicate window function output %s", e.Output.Name)
		}
		seen.Add(e.Output)
	}
	return WindowFunctions{entries: append([]WindowAssignment(nil), entries...)}, nil
}

// MustWindowFunctions is NewWindowFunctions that panics on duplicates.
func MustWindowFunctions(entries ...WindowAssignment) WindowFunctions {
	fns, err := NewWindowFunctions(entries...)
	if err != nil {
		panic(err)
	}
	return fns
}

// Len returns the number of functions.
func (f WindowFunctions) Len() int {
	return len(f.entries)
}

// Entries returns a copy of the assignments in order.
func (f WindowFunctions) Entries() []WindowAssignment {
	return append([]WindowAssignment(nil), f.entries...)
}

// Get returns the function bound to output.
func (f WindowFunctions) Get(output Variable) (WindowFunction, bool) {
	for _, e := range f.entries {
		if e.Output.Name == output.Name {
			return e.Function, true
		}
	}
	return WindowFunction{}, false
}

// Outputs returns the output variables in order.
func (f WindowFunctions) Outputs() []Variable {
	out := make([]Variable, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Output
	}
	return out
}

// Concat returns f followed by other.
func (f WindowFunctions) Concat(other WindowFunctions) (WindowFunctions, error) {
	return NewWindowFunctions(append(f.Entries(), other.entries...)...)
}

// Equal compares two maps as maps: same keys bound to equal functions.
func (f WindowFunctions) Equal(o WindowFunctions) bool {
	if len(f.entries) != len(o.entries) {
		return false
	}
	other := make(map[string]WindowAssignment, len(o.entries))
	for _, e := range o.entries {
		other[e.Output.Name] = e
	}
	for _, e := range f.entries {
		oe, ok := other[e.Output.Name]
		if !ok || !oe.Function.Equal(e.Function) {
			return false
		}
	}
	return true
}
