package main

import (
	"strings"

	"github.com/marmos91/dapserve/dapmodel"
)

// newSampleDataset builds the illustrative in-memory "Sample" dataset this
// binary serves: a scalar time coordinate t, a 100-element Float64 array x,
// and a string attribute-bearing scalar region. A real deployment replaces
// this with a dataset adapter (out of scope here, see SPEC_FULL.md §1).
func newSampleDataset() dapmodel.VariableTree {
	root := dapmodel.NewVariable("Sample", dapmodel.KindStructure)

	t := dapmodel.NewVariable("t", dapmodel.KindFloat64)
	t.ReadFlag = true
	t.Value = 3.5

	x := dapmodel.NewVariable("x", dapmodel.KindArray)
	x.ElemType = dapmodel.KindFloat64
	x.Dimensions = []dapmodel.Dimension{{Name: "i", Size: 100}}
	x.Elements = make([]any, 100)
	for i := range x.Elements {
		x.Elements[i] = float64(i)
	}

	region := dapmodel.NewVariable("region", dapmodel.KindString)
	region.ReadFlag = true
	region.Value = "arctic"
	region.Attributes = []dapmodel.Attribute{{Name: "units", Values: []string{"none"}}}

	root.Children = []*dapmodel.Variable{t, x, region}
	return dapmodel.NewTree(root)
}

// newDemoEvaluator registers the one server function the sample dataset
// exercises: mean(var, dim), which collapses an Array into its scalar
// average, the same reference BTP function the builder's own tests use.
func newDemoEvaluator() *dapmodel.SimpleEvaluator {
	eval := dapmodel.NewSimpleEvaluator()
	eval.RegisterBTPFunction("mean", func(tree dapmodel.VariableTree, args []string) (dapmodel.VariableTree, error) {
		src := tree.Root().FindChild(strings.TrimSpace(args[0]))
		var sum float64
		for _, v := range src.Elements {
			sum += v.(float64)
		}
		avg := sum / float64(len(src.Elements))

		newRoot := dapmodel.NewVariable(tree.Root().Name, dapmodel.KindStructure)
		meanVar := dapmodel.NewVariable(src.Name, dapmodel.KindFloat64)
		meanVar.ReadFlag = true
		meanVar.Value = avg
		meanVar.Projected = true
		newRoot.Children = []*dapmodel.Variable{meanVar}
		return dapmodel.NewTree(newRoot), nil
	})
	return eval
}
