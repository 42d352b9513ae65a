package dapmodel

import (
	"io"

	"github.com/marmos91/dapserve/internal/xdr"
)

// VariableTree is the contract the response builder consumes for a
// dataset's variable hierarchy (C3). Dataset adapters supply concrete
// implementations; Tree in this package is the reference one, used by the
// builder's own tests and suitable as a starting point for a real adapter.
type VariableTree interface {
	// Root returns the tree's root variable.
	Root() *Variable

	// PrintAscii writes a human-readable dump of structure and attributes.
	PrintAscii(w io.Writer) error

	// PrintXML writes the DDX XML form. When constrained, only variables
	// with Projected set appear. When blobCID is nonempty, a blob-reference
	// element carrying that CID is included.
	PrintXML(w io.Writer, constrained bool, blobCID string) error

	// IterateChildren returns the root's direct children in declared order.
	IterateChildren() []*Variable

	// SetProjectedRecursive sets or clears the Projected flag on every
	// variable in the tree.
	SetProjectedRecursive(projected bool)

	// TagNestedSequences marks every Sequence variable as a parent or leaf
	// depending on whether any descendant is itself a Sequence. Must run
	// before Serialize on any tree containing sequences.
	TagNestedSequences()

	// Serialize writes the tree's projected slice to enc in declared child
	// order. When evaluateSelection is true, Sequence rows are filtered
	// through evaluator's selection predicate before being written.
	Serialize(evaluator CEEvaluator, enc *xdr.Encoder, evaluateSelection bool) error

	// RequestSize estimates the byte count a Serialize call would emit,
	// honoring the constrained projection when constrained is true.
	RequestSize(constrained bool) uint64
}

// FunctionKind classifies a registered server function.
type FunctionKind int

const (
	// FunctionProjection filters the current projection in place.
	FunctionProjection FunctionKind = iota
	// FunctionSelection filters sequence rows in place.
	FunctionSelection
	// FunctionBTP ("back to the parser") materializes a new VariableTree.
	FunctionBTP
)

func (k FunctionKind) String() string {
	switch k {
	case FunctionProjection:
		return "projection"
	case FunctionSelection:
		return "selection"
	case FunctionBTP:
		return "btp"
	default:
		return "unknown"
	}
}

// CEEvaluator is the contract for constraint parsing/evaluation and server
// function discovery (C4). The CE grammar itself is out of scope for this
// package; SimpleEvaluator implements just enough of it to drive the
// response builder's control flow and this package's own tests.
type CEEvaluator interface {
	// ParseConstraint parses ce against tree, mutating projection and
	// slicing flags. Returns a *dapcode.ResponseError (ErrCEParse) on
	// malformed input or an unknown variable reference.
	ParseConstraint(ce string, tree VariableTree) error

	// FindFunction looks up name in the function registry.
	FindFunction(name string) (found bool, kind FunctionKind)

	// EvalFunctionClauses runs every BTP function call discovered by the
	// most recent ParseConstraint call and returns a newly allocated tree
	// owned by the caller.
	EvalFunctionClauses(tree VariableTree) (VariableTree, error)

	// HasFunctionClauses reports whether the most recent ParseConstraint
	// call discovered any BTP function call.
	HasFunctionClauses() bool

	// HasFunctionalExpression reports whether the entire CE parsed was a
	// single function invocation — illegal for structure-only responses.
	HasFunctionalExpression() bool
}
