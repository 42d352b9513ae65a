// Package mime writes the byte-exact MIME envelopes the response builder
// wraps around each response kind: a single status line and header block for
// DAS/DDS/DDX/DataDDS, or a multipart/related envelope for DataDDX.
//
// Every line ends in CRLF, matching HTTP/1.0 framing; nothing in this
// package depends on an actual HTTP transport, since the builder writes to
// an abstract sink.
package mime

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

const crlf = "\r\n"

// ContentDescription enumerates the recognized Content-Description header
// values.
type ContentDescription string

const (
	DescriptionUnknown     ContentDescription = "unknown"
	DescriptionDODSDAS     ContentDescription = "dods_das"
	DescriptionDODSDDS     ContentDescription = "dods_dds"
	DescriptionDODSData    ContentDescription = "dods_data"
	DescriptionDODSError   ContentDescription = "dods_error"
	DescriptionWebError    ContentDescription = "web_error"
	DescriptionDAP4DDX     ContentDescription = "dap4-ddx"
	DescriptionDAP4Data    ContentDescription = "dap4-data"
	DescriptionDAP4Error   ContentDescription = "dap4-error"
	DescriptionDAP4DataDDX ContentDescription = "dap4-data-ddx"
	DescriptionDODSDDX     ContentDescription = "dods_ddx"
)

// ContentEncoding enumerates the recognized Content-Encoding header values.
// EncodingPlain is never emitted: it signals "no Content-Encoding header".
type ContentEncoding string

const (
	EncodingPlain   ContentEncoding = "x-plain"
	EncodingDeflate ContentEncoding = "deflate"
	EncodingGzip    ContentEncoding = "gzip"
	EncodingBinary  ContentEncoding = "binary"
)

// Kind selects which envelope shape WriteHeaders produces.
type Kind int

const (
	KindText Kind = iota
	KindHTML
	KindBinary
	KindMultipart
	KindError
)

// Headers carries everything WriteHeaders needs to write one envelope.
type Headers struct {
	Kind         Kind
	StatusLine   string // e.g. "HTTP/1.0 200 OK"; defaults applied if empty
	ProtocolVer  string // value of the XDAP header
	LastModified time.Time
	Description  ContentDescription
	Encoding     ContentEncoding // EncodingPlain suppresses the header
	IsXML        bool            // true selects text/xml over text/plain for KindText

	// Multipart-only fields.
	Boundary string
	StartCID string
}

// domainName resolves the system hostname, falling back to opendap.org, for
// use as the CID domain suffix — the Go analogue of getdomainname(2) in the
// original C implementation.
func domainName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "opendap.org"
}

// NewCID mints a fresh MIME Content-Id value of the form "<uuid>@<domain>".
func NewCID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate cid: %w", err)
	}
	return fmt.Sprintf("%s@%s", id.String(), domainName()), nil
}

func writeLine(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format+crlf, args...)
	return err
}

// WriteHeaders writes the status line and header block for h.Kind, ending
// with the blank CRLF line that separates headers from payload.
func WriteHeaders(w io.Writer, h Headers) error {
	status := h.StatusLine
	if status == "" {
		status = "HTTP/1.0 200 OK"
	}
	if err := writeLine(w, "%s", status); err != nil {
		return err
	}
	if err := writeLine(w, "XDODS-Server: dapserve/1.0"); err != nil {
		return err
	}
	if err := writeLine(w, "XOPeNDAP-Server: dapserve/1.0"); err != nil {
		return err
	}
	proto := h.ProtocolVer
	if proto == "" {
		proto = "3.2"
	}
	if err := writeLine(w, "XDAP: %s", proto); err != nil {
		return err
	}
	if err := writeLine(w, "Date: %s", time.Now().UTC().Format(time.RFC1123)); err != nil {
		return err
	}
	lastMod := h.LastModified
	if lastMod.IsZero() {
		lastMod = time.Now()
	}
	if err := writeLine(w, "Last-Modified: %s", lastMod.UTC().Format(time.RFC1123)); err != nil {
		return err
	}

	contentType, err := contentTypeFor(h)
	if err != nil {
		return err
	}
	if err := writeLine(w, "Content-Type: %s", contentType); err != nil {
		return err
	}

	description := h.Description
	if description == "" {
		description = DescriptionUnknown
	}
	if err := writeLine(w, "Content-Description: %s", description); err != nil {
		return err
	}

	if h.Kind == KindError {
		if err := writeLine(w, "Cache-Control: no-cache"); err != nil {
			return err
		}
	}

	if h.Encoding != "" && h.Encoding != EncodingPlain {
		if err := writeLine(w, "Content-Encoding: %s", h.Encoding); err != nil {
			return err
		}
	}

	return writeLine(w, "")
}

func contentTypeFor(h Headers) (string, error) {
	switch h.Kind {
	case KindText:
		if h.IsXML {
			return "text/xml", nil
		}
		return "text/plain", nil
	case KindHTML:
		return "text/html", nil
	case KindBinary:
		return "application/octet-stream", nil
	case KindMultipart:
		return fmt.Sprintf(
			`Multipart/Related; boundary=%s; start="<%s>"; type="Text/xml"`,
			h.Boundary, h.StartCID,
		), nil
	case KindError:
		return "text/plain", nil
	default:
		return "", fmt.Errorf("mime: unknown header kind %d", h.Kind)
	}
}

// WritePartBoundary writes a "--boundary" separator followed by the part's
// own headers and the blank line that precedes its payload.
func WritePartBoundary(w io.Writer, boundary, cid string, description ContentDescription, encoding ContentEncoding) error {
	if err := writeLine(w, "--%s", boundary); err != nil {
		return err
	}
	if err := writeLine(w, "Content-Type: Text/xml; charset=iso-8859-1"); err != nil {
		return err
	}
	if err := writeLine(w, "Content-Id: <%s>", cid); err != nil {
		return err
	}
	if err := writeLine(w, "Content-Description: %s", description); err != nil {
		return err
	}
	if encoding != "" && encoding != EncodingPlain {
		if err := writeLine(w, "Content-Encoding: %s", encoding); err != nil {
			return err
		}
	}
	return writeLine(w, "")
}

// WriteClosingBoundary writes the final "CRLF--boundary--CRLF" that
// terminates a multipart response.
func WriteClosingBoundary(w io.Writer, boundary string) error {
	_, err := fmt.Fprintf(w, "%s--%s--%s", crlf, boundary, crlf)
	return err
}
