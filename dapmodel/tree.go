package dapmodel

import (
	"fmt"
	"io"

	"github.com/marmos91/dapserve/internal/xdr"
)

// Tree is the reference VariableTree implementation: an arena-free tree of
// *Variable nodes linked by ordinary pointers. Grids reference their map
// arrays and attribute tables reference their parents only by value, never
// by a back-pointer, so there is no cyclic ownership to worry about.
type Tree struct {
	root *Variable
}

// NewTree wraps root as a Tree.
func NewTree(root *Variable) *Tree {
	return &Tree{root: root}
}

func (t *Tree) Root() *Variable { return t.root }

func (t *Tree) IterateChildren() []*Variable {
	return t.root.Children
}

func (t *Tree) SetProjectedRecursive(projected bool) {
	var walk func(v *Variable)
	walk = func(v *Variable) {
		v.Projected = projected
		for _, c := range v.Children {
			walk(c)
		}
	}
	walk(t.root)
}

// TagNestedSequences marks every Sequence as SequenceRoleParent if any
// descendant is itself a Sequence, else SequenceRoleLeaf.
func (t *Tree) TagNestedSequences() {
	var walk func(v *Variable) bool // returns true if v or a descendant is a Sequence
	walk = func(v *Variable) bool {
		containsSequence := false
		for _, c := range v.Children {
			if walk(c) {
				containsSequence = true
			}
		}
		if v.Type == KindSequence {
			if containsSequence {
				v.SequenceRole = SequenceRoleParent
			} else {
				v.SequenceRole = SequenceRoleLeaf
			}
			return true
		}
		return containsSequence
	}
	walk(t.root)
}

// PrintAscii writes a human-readable structure+attribute dump, in the style
// of the original DAS/DDS ascii renderer: one indented line per variable.
func (t *Tree) PrintAscii(w io.Writer) error {
	var walk func(v *Variable, depth int) error
	walk = func(v *Variable, depth int) error {
		indent := ""
		for i := 0; i < depth; i++ {
			indent += "    "
		}
		if _, err := fmt.Fprintf(w, "%s%s %s;\n", indent, v.Type, v.Name); err != nil {
			return err
		}
		for _, a := range v.Attributes {
			if _, err := fmt.Fprintf(w, "%s    %s %q;\n", indent, a.Name, a.Values); err != nil {
				return err
			}
		}
		for _, c := range v.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if _, err := fmt.Fprintln(w, "Attributes {"); err != nil {
		return err
	}
	if err := walk(t.root, 1); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// PrintXML writes the DDX XML form. When constrained, unprojected variables
// are skipped entirely (including their subtrees). When blobCID is
// nonempty, a <blob/> element referencing it is appended as the last child
// of the root — the DataDDX convention linking the DDX part to its binary
// companion part.
func (t *Tree) PrintXML(w io.Writer, constrained bool, blobCID string) error {
	var walk func(v *Variable, depth int) error
	walk = func(v *Variable, depth int) error {
		if constrained && !v.Projected {
			return nil
		}
		indent := ""
		for i := 0; i < depth; i++ {
			indent += "  "
		}
		if _, err := fmt.Fprintf(w, "%s<%s name=%q>\n", indent, v.Type, v.Name); err != nil {
			return err
		}
		for _, a := range v.Attributes {
			if _, err := fmt.Fprintf(w, "%s  <Attribute name=%q values=%q/>\n", indent, a.Name, a.Values); err != nil {
				return err
			}
		}
		for _, c := range v.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%s</%s>\n", indent, v.Type)
		return err
	}

	if _, err := fmt.Fprintln(w, `<?xml version="1.0" encoding="UTF-8"?>`); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "<Dataset>"); err != nil {
		return err
	}
	if err := walk(t.root, 1); err != nil {
		return err
	}
	if blobCID != "" {
		if _, err := fmt.Fprintf(w, "  <blob href=\"cid:%s\"/>\n", blobCID); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "</Dataset>")
	return err
}

// RequestSize estimates the byte count Serialize would emit. Composite
// sizes recurse over (constrained ? projected : all) children; array sizes
// use the per-kind fixed element width times the constrained element count.
func (t *Tree) RequestSize(constrained bool) uint64 {
	var size func(v *Variable) uint64
	size = func(v *Variable) uint64 {
		if constrained && !v.Projected {
			return 0
		}
		switch v.Type {
		case KindArray:
			return 4 + v.constrainedElementCount()*elementWidth(v.ElemType)
		case KindStructure, KindGrid:
			var total uint64
			for _, c := range v.Children {
				total += size(c)
			}
			return total
		case KindSequence:
			var rowWidth uint64
			for _, c := range v.Children {
				rowWidth += size(c)
			}
			return uint64(len(v.Rows))*(rowWidth+4) + 4
		default:
			return elementWidth(v.Type)
		}
	}
	return size(t.root)
}

func elementWidth(k Kind) uint64 {
	switch k {
	case KindByte:
		return 4 // padded to the 4-byte unit like every other XDR primitive
	case KindInt16, KindUint16:
		return 4
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindFloat64:
		return 8
	case KindString, KindURL:
		return 4 // length prefix; actual payload is data-dependent
	default:
		return 0
	}
}

// Serialize writes the tree's projected slice in declared order. Variable
// serialization is per-kind rather than virtual-dispatched: a tagged
// variant plus a type switch stands in for the original class hierarchy.
func (t *Tree) Serialize(evaluator CEEvaluator, enc *xdr.Encoder, evaluateSelection bool) error {
	return serializeVariable(t.root, evaluator, enc, evaluateSelection)
}

// SerializeVariable writes a single variable (and its subtree, if
// composite), the same per-kind logic Tree.Serialize uses for the whole
// tree. The response builder calls this directly, one top-level child at a
// time, so it has a safe point to check the timeout controller between
// variables without reaching into this package's internals.
func SerializeVariable(v *Variable, evaluator CEEvaluator, enc *xdr.Encoder, evaluateSelection bool) error {
	return serializeVariable(v, evaluator, enc, evaluateSelection)
}

func serializeVariable(v *Variable, evaluator CEEvaluator, enc *xdr.Encoder, evaluateSelection bool) error {
	if !v.Projected {
		return nil
	}
	switch v.Type {
	case KindByte:
		return enc.WriteByte(valueAsByte(v.Value))
	case KindInt16:
		return enc.WriteInt16(valueAsInt16(v.Value))
	case KindUint16:
		return enc.WriteUint16(valueAsUint16(v.Value))
	case KindInt32:
		return enc.WriteInt32(valueAsInt32(v.Value))
	case KindUint32:
		return enc.WriteUint32(valueAsUint32(v.Value))
	case KindFloat32:
		return enc.WriteFloat32(valueAsFloat32(v.Value))
	case KindFloat64:
		return enc.WriteFloat64(valueAsFloat64(v.Value))
	case KindString, KindURL:
		return enc.WriteString(valueAsString(v.Value))
	case KindArray:
		return serializeArray(v, enc)
	case KindStructure, KindGrid:
		for _, c := range v.Children {
			if err := serializeVariable(c, evaluator, enc, evaluateSelection); err != nil {
				return err
			}
		}
		return nil
	case KindSequence:
		return serializeSequence(v, evaluator, enc, evaluateSelection)
	default:
		return fmt.Errorf("dapmodel: unknown variable kind %s", v.Type)
	}
}

func serializeArray(v *Variable, enc *xdr.Encoder) error {
	count := v.constrainedElementCount()
	if err := enc.WriteArrayLength(uint32(count)); err != nil {
		return err
	}
	indices := constrainedIndices(v.Dimensions)
	for _, idx := range indices {
		val := v.Elements[idx]
		var err error
		switch v.ElemType {
		case KindByte:
			err = enc.WriteByte(valueAsByte(val))
		case KindInt16:
			err = enc.WriteInt16(valueAsInt16(val))
		case KindUint16:
			err = enc.WriteUint16(valueAsUint16(val))
		case KindInt32:
			err = enc.WriteInt32(valueAsInt32(val))
		case KindUint32:
			err = enc.WriteUint32(valueAsUint32(val))
		case KindFloat32:
			err = enc.WriteFloat32(valueAsFloat32(val))
		case KindFloat64:
			err = enc.WriteFloat64(valueAsFloat64(val))
		case KindString, KindURL:
			err = enc.WriteString(valueAsString(val))
		default:
			err = fmt.Errorf("dapmodel: unsupported array element kind %s", v.ElemType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// constrainedIndices returns the flat, row-major element indices selected
// by dims' per-dimension constraints, over the original unconstrained
// extent.
func constrainedIndices(dims []Dimension) []uint64 {
	if len(dims) == 0 {
		return nil
	}
	axisIdx := make([][]uint64, len(dims))
	for i, d := range dims {
		c := d.Constraint
		if c == nil {
			for j := uint64(0); j < d.Size; j++ {
				axisIdx[i] = append(axisIdx[i], j)
			}
			continue
		}
		stop := c.Stop
		if c.Rest {
			if d.Size == 0 {
				continue
			}
			stop = d.Size - 1
		}
		for j := c.Start; j <= stop && c.Stride > 0; j += c.Stride {
			axisIdx[i] = append(axisIdx[i], j)
		}
	}

	strides := make([]uint64, len(dims))
	acc := uint64(1)
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= dims[i].Size
	}

	var result []uint64
	var combine func(axis int, offset uint64)
	combine = func(axis int, offset uint64) {
		if axis == len(dims) {
			result = append(result, offset)
			return
		}
		for _, j := range axisIdx[axis] {
			combine(axis+1, offset+j*strides[axis])
		}
	}
	combine(0, 0)
	return result
}

// serializeSequence writes each row preceded by a uint32 continuation flag
// (1 = another row follows, 0 = end of sequence), the XDR convention for a
// variable-length stream of fixed-schema tuples.
func serializeSequence(v *Variable, evaluator CEEvaluator, enc *xdr.Encoder, evaluateSelection bool) error {
	rowEvaluator, _ := evaluator.(RowEvaluator)
	for _, row := range v.Rows {
		if evaluateSelection && rowEvaluator != nil && !rowEvaluator.EvaluateRow(row) {
			continue
		}
		if err := enc.WriteUint32(1); err != nil {
			return err
		}
		for _, col := range v.Children {
			if !col.Projected {
				continue
			}
			scratch := *col
			scratch.Value = row[col.Name]
			if err := serializeVariable(&scratch, evaluator, enc, evaluateSelection); err != nil {
				return err
			}
		}
	}
	return enc.WriteUint32(0)
}

// RowEvaluator is an optional extension a CEEvaluator may implement to
// support selection-clause filtering of Sequence rows.
type RowEvaluator interface {
	EvaluateRow(row Row) bool
}

func valueAsByte(v any) byte {
	n, _ := v.(byte)
	return n
}
func valueAsInt16(v any) int16 {
	n, _ := v.(int16)
	return n
}
func valueAsUint16(v any) uint16 {
	n, _ := v.(uint16)
	return n
}
func valueAsInt32(v any) int32 {
	n, _ := v.(int32)
	return n
}
func valueAsUint32(v any) uint32 {
	n, _ := v.(uint32)
	return n
}
func valueAsFloat32(v any) float32 {
	n, _ := v.(float32)
	return n
}
func valueAsFloat64(v any) float64 {
	n, _ := v.(float64)
	return n
}
func valueAsString(v any) string {
	s, _ := v.(string)
	return s
}
