package responsebuilder

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/dapserve/dapmodel"
	"github.com/marmos91/dapserve/internal/mime"
	"github.com/marmos91/dapserve/internal/xdr"
)

func init() {
	for _, v := range []any{byte(0), int16(0), uint16(0), int32(0), uint32(0), float32(0), float64(0), ""} {
		gob.Register(v)
	}
}

// writeCacheEntry serializes tree to path as a self-contained DataDDX
// multipart payload: MIME part headers, DDX XML (with a blob CID
// reference), and the XDR blob, in the same part layout SendDataDDX writes
// to a response sink (the DDX part here carries the fixed ddxPartCID) —
// per spec.md §6, "each cache entry is a self-contained
// DataDDX multipart payload". Alongside it, a structured gob snapshot of
// the tree is written to path+".snap": re-parsing DDX XML back into a
// VariableTree is a dataset-adapter concern (out of scope, see
// DESIGN.md), so this implementation's own cache-hit path reads the
// snapshot rather than re-deriving it from the XML it just wrote.
func writeCacheEntry(path string, tree dapmodel.VariableTree, evaluator dapmodel.CEEvaluator) error {
	boundary := "dapserve-cache-boundary"
	cid, err := mime.NewCID()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := writeDataDDXBody(&buf, tree, evaluator, boundary, cid); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write cache entry %s: %w", path, err)
	}

	var snap bytes.Buffer
	if err := gob.NewEncoder(&snap).Encode(tree.Root()); err != nil {
		return fmt.Errorf("snapshot cache entry %s: %w", path, err)
	}
	if err := os.WriteFile(snapshotPath(path), snap.Bytes(), 0644); err != nil {
		return fmt.Errorf("write cache snapshot %s: %w", path, err)
	}
	return nil
}

// readCacheEntry reconstructs the VariableTree previously written by
// writeCacheEntry, via newTree (the "factory" spec.md §4.8 step 3c calls
// for) wrapping the decoded root.
func readCacheEntry(path string, newTree func(root *dapmodel.Variable) dapmodel.VariableTree) (dapmodel.VariableTree, error) {
	data, err := os.ReadFile(snapshotPath(path))
	if err != nil {
		return nil, fmt.Errorf("read cache snapshot %s: %w", path, err)
	}
	var root dapmodel.Variable
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode cache snapshot %s: %w", path, err)
	}
	return newTree(&root), nil
}

func snapshotPath(path string) string {
	return path + ".snap"
}

// writeDataDDXBody writes the two-part multipart/related body (DDX XML part
// then XDR blob part, closing boundary) for the cache-entry writer.
// SendDataDDX writes the same layout inline rather than calling it.
func writeDataDDXBody(w io.Writer, tree dapmodel.VariableTree, evaluator dapmodel.CEEvaluator, boundary, dataCID string) error {
	if err := mime.WritePartBoundary(w, boundary, ddxPartCID, mime.DescriptionDAP4DDX, mime.EncodingPlain); err != nil {
		return err
	}
	if err := tree.PrintXML(w, true, dataCID); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "\r\n--%s\r\n", boundary); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Type: application/octet-stream\r\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Id: <%s>\r\n", dataCID); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Description: %s\r\n\r\n", mime.DescriptionDAP4Data); err != nil {
		return err
	}

	enc := xdr.NewEncoder(w)
	if err := tree.Serialize(evaluator, enc, true); err != nil {
		return err
	}

	return mime.WriteClosingBoundary(w, boundary)
}

const ddxPartCID = "ddx-part"
