package dapmodel

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dapserve/internal/xdr"
)

func TestSerializeScalarFloat64(t *testing.T) {
	root := NewVariable("t", KindFloat64)
	root.Projected = true
	root.Value = 3.5

	tree := NewTree(root)
	var buf bytes.Buffer
	enc := xdr.NewEncoder(&buf)
	require.NoError(t, tree.Serialize(NewSimpleEvaluator(), enc, false))
	assert.Equal(t, 8, buf.Len())

	dec := xdr.NewDecoder(bytes.NewReader(buf.Bytes()))
	v, err := dec.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)
}

func TestSerializeStructureWritesChildrenInDeclaredOrder(t *testing.T) {
	root := NewVariable("s", KindStructure)
	root.Projected = true
	a := NewVariable("a", KindInt32)
	a.Projected = true
	a.Value = int32(1)
	b := NewVariable("b", KindInt32)
	b.Projected = true
	b.Value = int32(2)
	root.Children = []*Variable{a, b}

	var buf bytes.Buffer
	enc := xdr.NewEncoder(&buf)
	require.NoError(t, NewTree(root).Serialize(NewSimpleEvaluator(), enc, false))

	dec := xdr.NewDecoder(bytes.NewReader(buf.Bytes()))
	first, err := dec.ReadInt32()
	require.NoError(t, err)
	second, err := dec.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(1), first)
	assert.Equal(t, int32(2), second)
}

func TestSerializeSkipsUnprojectedChildren(t *testing.T) {
	root := NewVariable("s", KindStructure)
	root.Projected = true
	a := NewVariable("a", KindInt32)
	a.Projected = false
	a.Value = int32(1)
	b := NewVariable("b", KindInt32)
	b.Projected = true
	b.Value = int32(2)
	root.Children = []*Variable{a, b}

	var buf bytes.Buffer
	enc := xdr.NewEncoder(&buf)
	require.NoError(t, NewTree(root).Serialize(NewSimpleEvaluator(), enc, false))

	dec := xdr.NewDecoder(bytes.NewReader(buf.Bytes()))
	only, err := dec.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(2), only)
}

func TestSerializeArraySliceEmitsConstrainedExtent(t *testing.T) {
	root := NewVariable("arr", KindArray)
	root.Projected = true
	root.ElemType = KindInt32
	root.Dimensions = []Dimension{{Name: "i", Size: 10}}
	root.Elements = make([]any, 10)
	for i := range root.Elements {
		root.Elements[i] = int32(i)
	}

	// [5:2:] — from index 5 to end with stride 2 → indices 5,7,9.
	root.Dimensions[0].Constraint = &SliceConstraint{Start: 5, Stride: 2, Rest: true}

	var buf bytes.Buffer
	enc := xdr.NewEncoder(&buf)
	require.NoError(t, NewTree(root).Serialize(NewSimpleEvaluator(), enc, false))

	dec := xdr.NewDecoder(bytes.NewReader(buf.Bytes()))
	count, err := dec.ReadArrayLength()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count)

	var got []int32
	for i := uint32(0); i < count; i++ {
		v, err := dec.ReadInt32()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int32{5, 7, 9}, got)
}

func TestSerializeArraySingleElementSlice(t *testing.T) {
	root := NewVariable("arr", KindArray)
	root.Projected = true
	root.ElemType = KindInt32
	root.Dimensions = []Dimension{{Name: "i", Size: 5, Constraint: &SliceConstraint{Start: 0, Stride: 1, Stop: 0}}}
	root.Elements = []any{int32(10), int32(11), int32(12), int32(13), int32(14)}

	var buf bytes.Buffer
	enc := xdr.NewEncoder(&buf)
	require.NoError(t, NewTree(root).Serialize(NewSimpleEvaluator(), enc, false))

	dec := xdr.NewDecoder(bytes.NewReader(buf.Bytes()))
	count, err := dec.ReadArrayLength()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)
}

func TestSerializeSequenceRowsWithContinuationFlags(t *testing.T) {
	col := NewVariable("t", KindFloat64)
	col.Projected = true
	seq := NewVariable("obs", KindSequence)
	seq.Projected = true
	seq.Children = []*Variable{col}
	seq.Rows = []Row{{"t": 1.0}, {"t": 2.0}}

	var buf bytes.Buffer
	enc := xdr.NewEncoder(&buf)
	require.NoError(t, NewTree(seq).Serialize(NewSimpleEvaluator(), enc, false))

	dec := xdr.NewDecoder(bytes.NewReader(buf.Bytes()))
	flag, err := dec.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), flag)
	v, err := dec.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	flag, err = dec.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), flag)
	v, err = dec.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	terminator, err := dec.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), terminator)
}

func TestSerializeSequenceAppliesSelectionFilter(t *testing.T) {
	col := NewVariable("t", KindFloat64)
	col.Projected = true
	seq := NewVariable("obs", KindSequence)
	seq.Projected = true
	seq.Children = []*Variable{col}
	seq.Rows = []Row{{"t": 1.0}, {"t": 10.0}}

	eval := NewSimpleEvaluator()
	require.NoError(t, eval.ParseConstraint("&t>5", NewTree(NewVariable("root", KindStructure))))

	var buf bytes.Buffer
	enc := xdr.NewEncoder(&buf)
	require.NoError(t, NewTree(seq).Serialize(eval, enc, true))

	dec := xdr.NewDecoder(bytes.NewReader(buf.Bytes()))
	flag, err := dec.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), flag)
	v, err := dec.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	terminator, err := dec.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), terminator)
}

func TestTagNestedSequencesMarksParentAndLeaf(t *testing.T) {
	inner := NewVariable("inner", KindSequence)
	outer := NewVariable("outer", KindSequence)
	outer.Children = []*Variable{inner}

	NewTree(outer).TagNestedSequences()
	assert.Equal(t, SequenceRoleParent, outer.SequenceRole)
	assert.Equal(t, SequenceRoleLeaf, inner.SequenceRole)
}

func TestSetProjectedRecursiveAppliesToWholeTree(t *testing.T) {
	child := NewVariable("c", KindInt32)
	root := NewVariable("root", KindStructure)
	root.Children = []*Variable{child}

	tree := NewTree(root)
	tree.SetProjectedRecursive(true)
	assert.True(t, root.Projected)
	assert.True(t, child.Projected)

	tree.SetProjectedRecursive(false)
	assert.False(t, root.Projected)
	assert.False(t, child.Projected)
}

func TestRequestSizeCountsOnlyProjectedWhenConstrained(t *testing.T) {
	a := NewVariable("a", KindFloat64)
	a.Projected = true
	b := NewVariable("b", KindFloat64)
	b.Projected = false
	root := NewVariable("root", KindStructure)
	root.Projected = true
	root.Children = []*Variable{a, b}

	tree := NewTree(root)
	assert.Equal(t, uint64(8), tree.RequestSize(true))
	assert.Equal(t, uint64(16), tree.RequestSize(false))
}

func TestPrintAsciiAndPrintXMLProduceNonEmptyOutput(t *testing.T) {
	child := NewVariable("t", KindFloat64)
	child.Projected = true
	child.Attributes = []Attribute{{Name: "units", Values: []string{"K"}}}
	root := NewVariable("Sample", KindStructure)
	root.Projected = true
	root.Children = []*Variable{child}
	tree := NewTree(root)

	var ascii bytes.Buffer
	require.NoError(t, tree.PrintAscii(&ascii))
	assert.Contains(t, ascii.String(), "t;")

	var xml bytes.Buffer
	require.NoError(t, tree.PrintXML(&xml, true, "blob-cid@opendap.org"))
	out := xml.String()
	assert.True(t, strings.Contains(out, "<Dataset>"))
	assert.Contains(t, out, "blob-cid@opendap.org")
}
