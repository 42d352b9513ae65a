package dapmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestEvaluatorWithMean() *SimpleEvaluator {
	e := NewSimpleEvaluator()
	e.RegisterBTPFunction("mean", func(tree VariableTree, args []string) (VariableTree, error) {
		return tree, nil
	})
	return e
}

func TestSplitCEExtractsBTPFunctionCall(t *testing.T) {
	e := newTestEvaluatorWithMean()
	funcCE, residual := SplitCE("mean(x,0),region", e)
	assert.Equal(t, "mean(x,0)", funcCE)
	assert.Equal(t, "region", residual)
}

func TestSplitCELeavesNonBTPCallsInResidual(t *testing.T) {
	e := NewSimpleEvaluator()
	e.RegisterProjectionFunction("grid", func(tree VariableTree, args []string) error { return nil })
	funcCE, residual := SplitCE("grid(x,0),region", e)
	assert.Empty(t, funcCE)
	assert.Equal(t, "grid(x,0),region", residual)
}

func TestSplitCEEmptyFunctionCE(t *testing.T) {
	e := newTestEvaluatorWithMean()
	funcCE, residual := SplitCE("t,u,v", e)
	assert.Empty(t, funcCE)
	assert.Equal(t, "t,u,v", residual)
}

func TestSplitCEEmptyResidual(t *testing.T) {
	e := newTestEvaluatorWithMean()
	funcCE, residual := SplitCE("mean(x,0)", e)
	assert.Equal(t, "mean(x,0)", funcCE)
	assert.Empty(t, residual)
}

func TestSplitCEWithSelectionSuffixKeepsItInResidual(t *testing.T) {
	e := newTestEvaluatorWithMean()
	funcCE, residual := SplitCE("mean(x,0),region&t>5", e)
	assert.Equal(t, "mean(x,0)", funcCE)
	assert.Equal(t, "region&t>5", residual)
}

func TestSplitCERecoversEveryTermExactlyOnce(t *testing.T) {
	e := newTestEvaluatorWithMean()
	cases := []string{
		"t",
		"mean(x,0)",
		"mean(x,0),region",
		"a,mean(x,0),b,mean(y,1),c",
	}
	for _, ce := range cases {
		funcCE, residual := SplitCE(ce, e)
		var recombined []string
		if funcCE != "" {
			recombined = append(recombined, splitTopLevelCommas(funcCE)...)
		}
		if residual != "" {
			recombined = append(recombined, splitTopLevelCommas(residual)...)
		}
		original := splitTopLevelCommas(ce)
		assert.ElementsMatch(t, original, recombined, "ce=%q", ce)
	}
}
