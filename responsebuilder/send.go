package responsebuilder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/dapserve/dapmodel"
	"github.com/marmos91/dapserve/internal/dapcode"
	"github.com/marmos91/dapserve/internal/mime"
	"github.com/marmos91/dapserve/internal/telemetry"
	"github.com/marmos91/dapserve/internal/timeout"
	"github.com/marmos91/dapserve/internal/xdr"
	"github.com/marmos91/dapserve/pkg/metrics"
)

// dataMarker is the literal line separating a response's headers/DDS text
// from its binary payload. It is written exactly once per DataDDS
// response, never duplicated across cache hits or retries.
const dataMarker = "Data:\n"

// SendDAS writes a DAS (attribute-only) response: no CE splitting, no
// cache interaction, no data. withHeaders selects whether MIME/HTTP headers
// precede the body (false is used for cache-internal writers and tests that
// only care about the payload).
func (b *Builder) SendDAS(ctx context.Context, w io.Writer, tree dapmodel.VariableTree, withHeaders bool) (err error) {
	ctx, span := telemetry.StartBuildSpan(ctx, "das", "", "")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordResponse(b.metrics, "das", time.Since(start), err == nil)
		telemetry.RecordError(ctx, err)
	}()

	if withHeaders {
		if err := mime.WriteHeaders(w, mime.Headers{Kind: mime.KindText, IsXML: false, Description: mime.DescriptionDODSDAS, ProtocolVer: b.cfg.DefaultProtocol}); err != nil {
			return dapcode.NewEncoderIOError(err)
		}
	}
	if err := tree.PrintAscii(w); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	return nil
}

// SendDDS writes a DDS (structure-only) response. The CE is split and the
// function sub-CE resolved exactly as for a data response (a DDS can
// legitimately ask "what would the shape of mean(x,0) be"), but a CE that
// is nothing but a function call is rejected: DDS carries no data to
// compute over.
func (b *Builder) SendDDS(ctx context.Context, req RequestContext, w io.Writer, tree dapmodel.VariableTree, evaluator dapmodel.CEEvaluator, constrained bool, withHeaders bool) (err error) {
	protocolVer := b.protocolVersion(req)
	ctx, span := telemetry.StartBuildSpan(ctx, "dds", req.DatasetName, req.RawCE, telemetry.Protocol(protocolVer))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordResponse(b.metrics, "dds", time.Since(start), err == nil)
		telemetry.RecordError(ctx, err)
	}()

	working := tree
	if constrained {
		var release func()
		working, release, err = b.prepare(ctx, req, tree, evaluator, false)
		defer release()
		if err != nil {
			err = b.sendPreambleError(w, withHeaders, err)
			return err
		}
	} else {
		working.SetProjectedRecursive(true)
	}

	if withHeaders {
		if err := mime.WriteHeaders(w, mime.Headers{Kind: mime.KindText, IsXML: false, Description: mime.DescriptionDODSDDS, ProtocolVer: protocolVer}); err != nil {
			return dapcode.NewEncoderIOError(err)
		}
	}
	if err := working.PrintAscii(w); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	return nil
}

// SendDDX writes a DDX (DAP4 XML structure) response, the DAP4 analogue of
// SendDDS. No blob CID is attached: DDX alone carries no data part.
func (b *Builder) SendDDX(ctx context.Context, req RequestContext, w io.Writer, tree dapmodel.VariableTree, evaluator dapmodel.CEEvaluator, withHeaders bool) (err error) {
	protocolVer := b.protocolVersion(req)
	ctx, span := telemetry.StartBuildSpan(ctx, "ddx", req.DatasetName, req.RawCE, telemetry.Protocol(protocolVer))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordResponse(b.metrics, "ddx", time.Since(start), err == nil)
		telemetry.RecordError(ctx, err)
	}()

	working, release, prepErr := b.prepare(ctx, req, tree, evaluator, false)
	defer release()
	if prepErr != nil {
		err = b.sendPreambleError(w, withHeaders, prepErr)
		return err
	}

	if withHeaders {
		if err := mime.WriteHeaders(w, mime.Headers{Kind: mime.KindText, IsXML: true, Description: mime.DescriptionDAP4DDX, ProtocolVer: protocolVer}); err != nil {
			return dapcode.NewEncoderIOError(err)
		}
	}
	if err := working.PrintXML(w, true, ""); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	return nil
}

// SendDataDDS writes a DAP2-style DataDDS response: DDS text, the literal
// "Data:\n" marker, then the XDR-encoded payload. Values are serialized one
// top-level child at a time so the timeout controller can be polled between
// them (spec.md §5's cooperative-check strategy); a deadline firing
// mid-emission injects a CRLF CRLF plus a serialized TimeoutExceeded error
// into the still-open stream rather than aborting silently.
func (b *Builder) SendDataDDS(ctx context.Context, req RequestContext, w io.Writer, tree dapmodel.VariableTree, evaluator dapmodel.CEEvaluator, withHeaders bool) (err error) {
	protocolVer := b.protocolVersion(req)
	ctx, span := telemetry.StartBuildSpan(ctx, "data-dds", req.DatasetName, req.RawCE, telemetry.Protocol(protocolVer))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordResponse(b.metrics, "data-dds", time.Since(start), err == nil)
		telemetry.RecordError(ctx, err)
	}()

	working, release, err := b.prepare(ctx, req, tree, evaluator, true)
	defer release()
	if err != nil {
		return b.sendPreambleError(w, withHeaders, err)
	}

	if withHeaders {
		if err := mime.WriteHeaders(w, mime.Headers{Kind: mime.KindBinary, Description: mime.DescriptionDODSData, ProtocolVer: protocolVer}); err != nil {
			return dapcode.NewEncoderIOError(err)
		}
	}
	if err := working.PrintAscii(w); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	if _, err := io.WriteString(w, dataMarker); err != nil {
		return dapcode.NewEncoderIOError(err)
	}

	enc := xdr.NewEncoder(w)
	return b.streamChildren(ctx, w, working, evaluator, enc, req.TimeoutSeconds, "data-dds")
}

// SendDataDDX writes a DAP4 DataDDX response: a multipart/related envelope
// whose first part is the DDX XML (with a blob CID referencing the second
// part) and whose second part is the XDR payload.
func (b *Builder) SendDataDDX(ctx context.Context, req RequestContext, w io.Writer, tree dapmodel.VariableTree, evaluator dapmodel.CEEvaluator, boundary string, withHeaders bool) (err error) {
	protocolVer := b.protocolVersion(req)
	ctx, span := telemetry.StartBuildSpan(ctx, "data-ddx", req.DatasetName, req.RawCE, telemetry.Protocol(protocolVer))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordResponse(b.metrics, "data-ddx", time.Since(start), err == nil)
		telemetry.RecordError(ctx, err)
	}()

	working, release, err := b.prepare(ctx, req, tree, evaluator, true)
	defer release()
	if err != nil {
		return b.sendPreambleError(w, withHeaders, err)
	}

	dataCID, err := mime.NewCID()
	if err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	ddxCID, err := mime.NewCID()
	if err != nil {
		return dapcode.NewEncoderIOError(err)
	}

	if withHeaders {
		h := mime.Headers{Kind: mime.KindMultipart, Description: mime.DescriptionDAP4DataDDX, ProtocolVer: protocolVer, Boundary: boundary, StartCID: ddxCID}
		if err := mime.WriteHeaders(w, h); err != nil {
			return dapcode.NewEncoderIOError(err)
		}
	}

	if err := mime.WritePartBoundary(w, boundary, ddxCID, mime.DescriptionDAP4DDX, mime.EncodingPlain); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	if err := working.PrintXML(w, true, dataCID); err != nil {
		return dapcode.NewEncoderIOError(err)
	}

	if _, err := fmt.Fprintf(w, "\r\n--%s\r\n", boundary); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	if _, err := fmt.Fprintf(w, "Content-Type: application/octet-stream\r\n"); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	if _, err := fmt.Fprintf(w, "Content-Id: <%s>\r\n", dataCID); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	if _, err := fmt.Fprintf(w, "Content-Description: %s\r\n\r\n", mime.DescriptionDAP4Data); err != nil {
		return dapcode.NewEncoderIOError(err)
	}

	enc := xdr.NewEncoder(w)
	if err := b.streamChildren(ctx, w, working, evaluator, enc, req.TimeoutSeconds, "data-ddx"); err != nil {
		return err
	}

	if err := mime.WriteClosingBoundary(w, boundary); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	return nil
}

// streamChildren writes working's top-level projected children one at a
// time, checking the timeout controller between each. A deadline that has
// already fired by the time a child is about to be written stops emission
// and injects a mid-stream TimeoutExceeded error instead of a partial,
// unexplained truncation.
func (b *Builder) streamChildren(ctx context.Context, w io.Writer, working dapmodel.VariableTree, evaluator dapmodel.CEEvaluator, enc *xdr.Encoder, timeoutSeconds int, kind string) error {
	for _, child := range working.IterateChildren() {
		if timeout.Fired() {
			metrics.RecordTimeoutFired(b.metrics, kind)
			telemetry.SetAttributes(ctx, telemetry.TimeoutFired(true))
			return b.injectMidStreamError(w, dapcode.NewTimeoutExceededError(timeoutSeconds), evaluator)
		}
		if !child.Projected {
			continue
		}
		if err := dapmodel.SerializeVariable(child, evaluator, enc, true); err != nil {
			return dapcode.NewEncoderIOError(err)
		}
	}
	if timeout.Fired() {
		metrics.RecordTimeoutFired(b.metrics, kind)
		telemetry.SetAttributes(ctx, telemetry.TimeoutFired(true))
		return b.injectMidStreamError(w, dapcode.NewTimeoutExceededError(timeoutSeconds), evaluator)
	}
	return nil
}

// injectMidStreamError writes the CRLF CRLF separator and a serialized
// error record into an already-open data stream, per spec.md §7's
// mid-stream error recovery.
func (b *Builder) injectMidStreamError(w io.Writer, respErr *dapcode.ResponseError, _ dapmodel.CEEvaluator) error {
	if _, err := io.WriteString(w, "\r\n\r\n"); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	if _, err := fmt.Fprintf(w, "Error { code = %d; message = %q; }\n", int(respErr.Code), respErr.Message); err != nil {
		return dapcode.NewEncoderIOError(err)
	}
	return respErr
}

// sendPreambleError writes a fresh error envelope: used when a failure is
// detected before any payload byte was written (spec.md §7 KindPreamble).
func (b *Builder) sendPreambleError(w io.Writer, withHeaders bool, err error) error {
	respErr, ok := err.(*dapcode.ResponseError)
	if !ok {
		respErr = dapcode.NewDatasetError(err.Error(), false)
	}
	if withHeaders {
		h := mime.Headers{Kind: mime.KindError, Description: mime.DescriptionDODSError}
		if hdrErr := mime.WriteHeaders(w, h); hdrErr != nil {
			return dapcode.NewEncoderIOError(hdrErr)
		}
	}
	if _, writeErr := fmt.Fprintf(w, "Error { code = %d; message = %q; }\n", int(respErr.Code), respErr.Message); writeErr != nil {
		return dapcode.NewEncoderIOError(writeErr)
	}
	return respErr
}
