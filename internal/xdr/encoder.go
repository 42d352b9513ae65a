package xdr

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Encoder streams XDR-encoded primitive and aggregate values directly to a
// sink. It holds no buffered state of its own: every Write* call emits bytes
// immediately, so a caller serializing a large array never needs to hold the
// whole response in memory.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps sink in an Encoder.
func NewEncoder(sink io.Writer) *Encoder {
	return &Encoder{w: sink}
}

var zeroPad [4]byte

func (e *Encoder) writePad(n uint32) error {
	if n == 0 {
		return nil
	}
	if _, err := e.w.Write(zeroPad[:n]); err != nil {
		return fmt.Errorf("write padding: %w", err)
	}
	return nil
}

// WriteByte encodes a single byte, padded to 4 bytes (RFC 4506 Section 4.1:
// the smallest XDR unit is always 4 bytes).
func (e *Encoder) WriteByte(v byte) error {
	buf := [4]byte{0, 0, 0, v}
	if _, err := e.w.Write(buf[:]); err != nil {
		return fmt.Errorf("write byte: %w", err)
	}
	return nil
}

// WriteInt16 encodes a signed 16-bit integer, sign-extended into a 4-byte
// big-endian slot.
func (e *Encoder) WriteInt16(v int16) error {
	return e.WriteInt32(int32(v))
}

// WriteUint16 encodes an unsigned 16-bit integer, zero-extended into a
// 4-byte big-endian slot.
func (e *Encoder) WriteUint16(v uint16) error {
	return e.WriteUint32(uint32(v))
}

// WriteInt32 encodes a signed 32-bit integer, big-endian.
func (e *Encoder) WriteInt32(v int32) error {
	return e.WriteUint32(uint32(v))
}

// WriteUint32 encodes an unsigned 32-bit integer, big-endian.
func (e *Encoder) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	if _, err := e.w.Write(buf[:]); err != nil {
		return fmt.Errorf("write uint32: %w", err)
	}
	return nil
}

// WriteInt64 encodes a signed 64-bit integer (XDR "hyper"), big-endian.
func (e *Encoder) WriteInt64(v int64) error {
	return e.WriteUint64(uint64(v))
}

// WriteUint64 encodes an unsigned 64-bit integer (XDR "unsigned hyper"),
// big-endian.
func (e *Encoder) WriteUint64(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	if _, err := e.w.Write(buf[:]); err != nil {
		return fmt.Errorf("write uint64: %w", err)
	}
	return nil
}

// WriteFloat32 encodes an IEEE-754 single-precision float, big-endian.
func (e *Encoder) WriteFloat32(v float32) error {
	return e.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 encodes an IEEE-754 double-precision float, big-endian.
func (e *Encoder) WriteFloat64(v float64) error {
	return e.WriteUint64(math.Float64bits(v))
}

// WriteBool encodes a boolean as a uint32: 0 for false, 1 for true.
func (e *Encoder) WriteBool(v bool) error {
	if v {
		return e.WriteUint32(1)
	}
	return e.WriteUint32(0)
}

// WriteOpaque encodes variable-length opaque data: a uint32 length prefix,
// the raw bytes, then 0-3 zero pad bytes to the next 4-byte boundary.
func (e *Encoder) WriteOpaque(data []byte) error {
	length := uint32(len(data))
	if err := e.WriteUint32(length); err != nil {
		return fmt.Errorf("write opaque length: %w", err)
	}
	if len(data) > 0 {
		if _, err := e.w.Write(data); err != nil {
			return fmt.Errorf("write opaque data: %w", err)
		}
	}
	return e.writePad(Padding(length))
}

// WriteString encodes s using the same length-prefixed, padded encoding as
// WriteOpaque.
func (e *Encoder) WriteString(s string) error {
	return e.WriteOpaque([]byte(s))
}

// WriteArrayLength encodes the element count that precedes an XDR array's
// elements.
func (e *Encoder) WriteArrayLength(n uint32) error {
	return e.WriteUint32(n)
}
