package responsebuilder

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dapserve/dapmodel"
	"github.com/marmos91/dapserve/internal/dapcode"
	"github.com/marmos91/dapserve/internal/rescache"
	"github.com/marmos91/dapserve/internal/xdr"
)

// sampleTree builds the "Sample" dataset used across the end-to-end
// scenarios: a scalar Float64 t, a Float64 array x with 100 elements, and a
// string region attribute-bearing scalar.
func sampleTree() dapmodel.VariableTree {
	root := dapmodel.NewVariable("Sample", dapmodel.KindStructure)

	t := dapmodel.NewVariable("t", dapmodel.KindFloat64)
	t.Value = 3.5

	x := dapmodel.NewVariable("x", dapmodel.KindArray)
	x.ElemType = dapmodel.KindFloat64
	x.Dimensions = []dapmodel.Dimension{{Name: "i", Size: 100}}
	x.Elements = make([]any, 100)
	for i := range x.Elements {
		x.Elements[i] = float64(i)
	}

	region := dapmodel.NewVariable("region", dapmodel.KindString)
	region.Value = "arctic"

	root.Children = []*dapmodel.Variable{t, x, region}
	return dapmodel.NewTree(root)
}

func meanEvaluator() *dapmodel.SimpleEvaluator {
	eval := dapmodel.NewSimpleEvaluator()
	eval.RegisterBTPFunction("mean", func(tree dapmodel.VariableTree, args []string) (dapmodel.VariableTree, error) {
		src := tree.Root().FindChild(strings.TrimSpace(args[0]))
		var sum float64
		for _, v := range src.Elements {
			sum += v.(float64)
		}
		avg := sum / float64(len(src.Elements))

		newRoot := dapmodel.NewVariable("Sample", dapmodel.KindStructure)
		meanVar := dapmodel.NewVariable(src.Name, dapmodel.KindFloat64)
		meanVar.Value = avg
		meanVar.Projected = true
		region := dapmodel.NewVariable("region", dapmodel.KindString)
		region.Value = "arctic"
		newRoot.Children = []*dapmodel.Variable{meanVar, region}
		return dapmodel.NewTree(newRoot), nil
	})
	return eval
}

func TestSendDASWritesAttributesBlock(t *testing.T) {
	tree := sampleTree()
	b := New(Config{}, nil, nil, nil, nil)

	var buf bytes.Buffer
	require.NoError(t, b.SendDAS(context.Background(), &buf, tree, false))
	assert.Contains(t, buf.String(), "Attributes {")
}

func TestSendDataDDSSimpleProjectionWritesEightByteFloat(t *testing.T) {
	tree := sampleTree()
	eval := dapmodel.NewSimpleEvaluator()
	b := New(Config{}, nil, nil, nil, nil)

	req := NewRequestContext("Sample", "t", 0, "3.2")
	var buf bytes.Buffer
	require.NoError(t, b.SendDataDDS(context.Background(), req, &buf, tree, eval, false))

	out := buf.String()
	idx := strings.Index(out, dataMarker)
	require.NotEqual(t, -1, idx)
	payload := out[idx+len(dataMarker):]
	assert.Equal(t, 8, len(payload))
}

func TestSendDataDDSDataMarkerAppearsExactlyOnce(t *testing.T) {
	tree := sampleTree()
	eval := dapmodel.NewSimpleEvaluator()
	b := New(Config{}, nil, nil, nil, nil)

	req := NewRequestContext("Sample", "t", 0, "3.2")
	var buf bytes.Buffer
	require.NoError(t, b.SendDataDDS(context.Background(), req, &buf, tree, eval, false))

	assert.Equal(t, 1, strings.Count(buf.String(), dataMarker))
}

func TestKeywordAndProjectionStripsKeywordIntoRequestContext(t *testing.T) {
	req := NewRequestContext("Sample", "dap4.0,u,v", 0, "")
	assert.True(t, req.Keywords["dap4.0"])
	assert.Equal(t, "u,v", req.RawCE)
}

func TestFunctionalCEFirstRequestWritesCacheThenSecondRequestHitsIt(t *testing.T) {
	dir := t.TempDir()
	cache, err := rescache.Open(rescache.Config{RootDir: dir, Prefix: "dap_", MaxBytes: 1 << 20}, rescache.NewUnixLockProvider(), nil)
	require.NoError(t, err)
	defer cache.Close()

	eval := meanEvaluator()
	b := New(Config{}, cache, nil, nil, nil)

	req := NewRequestContext("Sample", "mean(x,0)", 0, "")

	var first bytes.Buffer
	require.NoError(t, b.SendDataDDS(context.Background(), req, &first, sampleTree(), eval, false))
	assert.Contains(t, first.String(), dataMarker)

	key := rescache.CacheKey("Sample", "mean(x,0)")
	path := cache.PathFor(key)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	var second bytes.Buffer
	require.NoError(t, b.SendDataDDS(context.Background(), req, &second, sampleTree(), meanEvaluator(), false))
	assert.Contains(t, second.String(), dataMarker)
}

func TestFunctionalCEWithResidualProjectionStreamsOnlyResidual(t *testing.T) {
	dir := t.TempDir()
	cache, err := rescache.Open(rescache.Config{RootDir: dir, Prefix: "dap_", MaxBytes: 1 << 20}, rescache.NewUnixLockProvider(), nil)
	require.NoError(t, err)
	defer cache.Close()

	eval := meanEvaluator()
	b := New(Config{}, cache, nil, nil, nil)
	req := NewRequestContext("Sample", "mean(x,0),region", 0, "")

	var buf bytes.Buffer
	require.NoError(t, b.SendDataDDS(context.Background(), req, &buf, sampleTree(), eval, false))
	assert.Contains(t, buf.String(), dataMarker)
}

// TestSizeLimitRejectsWithExactMessage builds a 511-element Float64 array
// (4 + 511*8 = 4092 bytes, rounding up to 4KB) against a 1024-byte (1KB)
// limit, reproducing the exact message shape from the size-limit scenario.
func TestSizeLimitRejectsWithExactMessage(t *testing.T) {
	root := dapmodel.NewVariable("Sample", dapmodel.KindStructure)
	x := dapmodel.NewVariable("x", dapmodel.KindArray)
	x.ElemType = dapmodel.KindFloat64
	x.Dimensions = []dapmodel.Dimension{{Name: "i", Size: 511}}
	x.Elements = make([]any, 511)
	for i := range x.Elements {
		x.Elements[i] = float64(i)
	}
	root.Children = []*dapmodel.Variable{x}
	tree := dapmodel.NewTree(root)

	eval := dapmodel.NewSimpleEvaluator()
	b := New(Config{ResponseLimit: 1024}, nil, nil, nil, nil)

	req := NewRequestContext("Sample", "x", 0, "")
	var buf bytes.Buffer
	err := b.SendDataDDS(context.Background(), req, &buf, tree, eval, false)
	require.Error(t, err)

	respErr, ok := err.(*dapcode.ResponseError)
	require.True(t, ok)
	assert.Equal(t, dapcode.ErrRequestTooLarge, respErr.Code)
	assert.Equal(t, "The Request for 4KB is too large; requests for this user are limited to 1KB.", respErr.Message)
}

// TestTimeoutMidEmissionInjectsSerializedError exercises prepare (which
// arms the deadline) and streamChildren (which checks it) separately, with
// a real sleep between them standing in for "emission of a large array
// takes >1s" — the production streaming loop itself has no artificial
// delay, so the delay has to happen between these two steps rather than
// inside a single SendDataDDS call.
func TestTimeoutMidEmissionInjectsSerializedError(t *testing.T) {
	tree := sampleTree()
	eval := dapmodel.NewSimpleEvaluator()
	b := New(Config{}, nil, nil, nil, nil)

	req := NewRequestContext("Sample", "x", 1, "")
	ctx := context.Background()
	working, release, err := b.prepare(ctx, req, tree, eval, true)
	require.NoError(t, err)
	defer release()

	time.Sleep(1100 * time.Millisecond)

	var buf bytes.Buffer
	enc := xdr.NewEncoder(&buf)
	streamErr := b.streamChildren(ctx, &buf, working, eval, enc, req.TimeoutSeconds, "data-dds")
	require.Error(t, streamErr)

	respErr, ok := streamErr.(*dapcode.ResponseError)
	require.True(t, ok)
	assert.Equal(t, dapcode.ErrTimeoutExceeded, respErr.Code)
	assert.Contains(t, buf.String(), "\r\n\r\n")
}

func TestDisabledCacheReEvaluatesEveryFunctionalCE(t *testing.T) {
	eval := meanEvaluator()
	b := New(Config{}, nil, nil, nil, nil)
	req := NewRequestContext("Sample", "mean(x,0)", 0, "")

	var buf1, buf2 bytes.Buffer
	require.NoError(t, b.SendDataDDS(context.Background(), req, &buf1, sampleTree(), eval, false))
	require.NoError(t, b.SendDataDDS(context.Background(), req, &buf2, sampleTree(), meanEvaluator(), false))
	assert.Equal(t, buf1.String(), buf2.String())
}

func TestFunctionalExpressionAloneRejectedForDDS(t *testing.T) {
	eval := meanEvaluator()
	b := New(Config{}, nil, nil, nil, nil)
	req := NewRequestContext("Sample", "mean(x,0)", 0, "")

	var buf bytes.Buffer
	err := b.SendDDS(context.Background(), req, &buf, sampleTree(), eval, true, false)
	require.Error(t, err)
	respErr, ok := err.(*dapcode.ResponseError)
	require.True(t, ok)
	assert.Equal(t, dapcode.ErrFunctionalOnlyInDataResponse, respErr.Code)
}
