// Package xdr implements the binary encoder/decoder for the DAP response
// pipeline: portable big-endian, 4-byte-aligned data per RFC 4506 (XDR).
//
// Unlike a reflection-based marshaler, this package streams values directly
// to and from an io.Reader/io.Writer one primitive at a time, so a caller can
// interleave encoding calls with tree traversal instead of building a
// complete in-memory representation before writing a single byte.
//
// Reference: RFC 4506 - XDR: External Data Representation Standard.
package xdr

// Padding returns the number of zero bytes needed to align dataLen to a
// 4-byte boundary, per RFC 4506 Section 4.9/4.11.
func Padding(dataLen uint32) uint32 {
	return (4 - (dataLen % 4)) % 4
}
