package mime

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHeadersTextOrdersFieldsAndUsesCRLF(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHeaders(&buf, Headers{
		Kind:        KindText,
		Description: DescriptionDODSDAS,
	})
	require.NoError(t, err)

	lines := strings.Split(buf.String(), "\r\n")
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.0 200 OK", lines[0])
	assert.Equal(t, "XDODS-Server: dapserve/1.0", lines[1])
	assert.Equal(t, "XOPeNDAP-Server: dapserve/1.0", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "XDAP:"))
	assert.True(t, strings.HasPrefix(lines[4], "Date:"))
	assert.True(t, strings.HasPrefix(lines[5], "Last-Modified:"))
	assert.Equal(t, "Content-Type: text/plain", lines[6])
	assert.Equal(t, "Content-Description: dods_das", lines[7])
	assert.Equal(t, "", lines[8])
	assert.True(t, strings.HasSuffix(buf.String(), "\r\n\r\n"))
}

func TestWriteHeadersSuppressesPlainEncoding(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeaders(&buf, Headers{
		Kind:        KindText,
		Description: DescriptionDODSDDS,
		Encoding:    EncodingPlain,
	}))
	assert.NotContains(t, buf.String(), "Content-Encoding")
}

func TestWriteHeadersEmitsEncodingWhenNotPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeaders(&buf, Headers{
		Kind:        KindBinary,
		Description: DescriptionDODSData,
		Encoding:    EncodingDeflate,
	}))
	assert.Contains(t, buf.String(), "Content-Encoding: deflate")
}

func TestWriteHeadersErrorAddsCacheControl(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeaders(&buf, Headers{
		Kind:        KindError,
		Description: DescriptionDODSError,
	}))
	assert.Contains(t, buf.String(), "Cache-Control: no-cache")
}

func TestWriteHeadersMultipartContentType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeaders(&buf, Headers{
		Kind:     KindMultipart,
		Boundary: "boundary123",
		StartCID: "abc@opendap.org",
	}))
	assert.Contains(t, buf.String(), `Multipart/Related; boundary=boundary123; start="<abc@opendap.org>"; type="Text/xml"`)
}

func TestPartBoundaryAndClosing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePartBoundary(&buf, "B", "cid1@x", DescriptionDAP4DDX, EncodingPlain))
	assert.Contains(t, buf.String(), "--B\r\n")
	assert.Contains(t, buf.String(), "Content-Id: <cid1@x>\r\n")
	assert.NotContains(t, buf.String(), "Content-Encoding")

	buf.Reset()
	require.NoError(t, WriteClosingBoundary(&buf, "B"))
	assert.Equal(t, "\r\n--B--\r\n", buf.String())
}

func TestNewCIDShapeIsUUIDAtDomain(t *testing.T) {
	cid, err := NewCID()
	require.NoError(t, err)
	parts := strings.SplitN(cid, "@", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 36) // canonical UUID string length
	assert.NotEmpty(t, parts[1])
}
