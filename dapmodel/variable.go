package dapmodel

import "regexp"

// nameRe is the variable-name invariant from the data model: names match
// [A-Za-z_][A-Za-z0-9_]*, unique per parent.
var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether name satisfies the variable-naming invariant.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// Row is one tuple of a Sequence, naming each child variable's value for
// that row.
type Row map[string]any

// Variable is a single node in a VariableTree: a tagged variant carrying
// whichever of Value/Elements/Rows/Children/Dimensions its Type uses.
type Variable struct {
	Name       string
	Type       Kind
	Projected  bool
	ReadFlag   bool
	Attributes []Attribute

	// Children holds declared-order child variables for Structure and Grid
	// (data array first, then one map array per dimension), and the row
	// schema (column definitions) for Sequence.
	Children []*Variable

	// Dimensions describes an Array's shape; empty for scalar types.
	Dimensions []Dimension

	// ElemType is an Array's element type tag; unused otherwise.
	ElemType Kind

	// Value holds a scalar's materialized value once ReadFlag is true.
	Value any

	// Elements holds an Array's materialized values in row-major order over
	// the full (unconstrained) extent; Serialize applies the constrained
	// slice at emission time.
	Elements []any

	// Rows holds a Sequence's materialized data, one Row per tuple.
	Rows []Row

	// SequenceRole is set by TagNestedSequences; meaningful only when Type
	// is KindSequence.
	SequenceRole SequenceRole
}

// NewVariable constructs a named variable of the given kind. Panics if name
// fails the naming invariant, matching the "unique, well-formed name"
// precondition every tree constructor in this package relies on.
func NewVariable(name string, kind Kind) *Variable {
	if !ValidName(name) {
		panic("dapmodel: invalid variable name " + name)
	}
	return &Variable{Name: name, Type: kind}
}

// FindChild returns the direct child named name, or nil.
func (v *Variable) FindChild(name string) *Variable {
	for _, c := range v.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// constrainedElementCount is the number of Array elements the current
// per-dimension constraints select, i.e. the product of each dimension's
// ConstrainedSize.
func (v *Variable) constrainedElementCount() uint64 {
	count := uint64(1)
	for _, d := range v.Dimensions {
		count *= d.ConstrainedSize()
	}
	return count
}
