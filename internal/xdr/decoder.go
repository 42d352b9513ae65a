package xdr

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Decoder reads XDR-encoded primitive and aggregate values from a source,
// the inverse of Encoder. The function-result cache does not use it: a cache
// hit decodes the gob snapshot written beside each entry (see
// responsebuilder/cache_entry.go). Within this module only the xdr tests
// call it.
type Decoder struct {
	r io.Reader
}

// NewDecoder wraps src in a Decoder.
func NewDecoder(src io.Reader) *Decoder {
	return &Decoder{r: src}
}

// maxOpaqueLength guards against a corrupt or malicious cache entry driving
// an unbounded allocation.
const maxOpaqueLength = 64 * 1024 * 1024

func (d *Decoder) skipPad(n uint32) error {
	if n == 0 {
		return nil
	}
	var pad [4]byte
	if _, err := io.ReadFull(d.r, pad[:n]); err != nil {
		return fmt.Errorf("skip padding: %w", err)
	}
	return nil
}

// ReadByte decodes a single byte from its 4-byte-padded slot.
func (d *Decoder) ReadByte() (byte, error) {
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, fmt.Errorf("read byte: %w", err)
	}
	return buf[3], nil
}

// ReadUint32 decodes an unsigned 32-bit integer, big-endian.
func (d *Decoder) ReadUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, fmt.Errorf("read uint32: %w", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadInt32 decodes a signed 32-bit integer, big-endian.
func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

// ReadUint16 decodes an unsigned 16-bit integer stored in a 4-byte slot.
func (d *Decoder) ReadUint16() (uint16, error) {
	v, err := d.ReadUint32()
	return uint16(v), err
}

// ReadInt16 decodes a signed 16-bit integer stored in a 4-byte slot.
func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint32()
	return int16(v), err
}

// ReadUint64 decodes an unsigned 64-bit integer (XDR "unsigned hyper").
func (d *Decoder) ReadUint64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, fmt.Errorf("read uint64: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// ReadInt64 decodes a signed 64-bit integer (XDR "hyper").
func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// ReadFloat32 decodes an IEEE-754 single-precision float, big-endian.
func (d *Decoder) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 decodes an IEEE-754 double-precision float, big-endian.
func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBool decodes a boolean encoded as a uint32 (0 = false, nonzero = true).
func (d *Decoder) ReadBool() (bool, error) {
	v, err := d.ReadUint32()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadOpaque decodes variable-length opaque data: a uint32 length prefix,
// the raw bytes, then their zero padding.
func (d *Decoder) ReadOpaque() ([]byte, error) {
	length, err := d.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("read opaque length: %w", err)
	}
	if length > maxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, maxOpaqueLength)
	}
	data := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(d.r, data); err != nil {
			return nil, fmt.Errorf("read opaque data: %w", err)
		}
	}
	if err := d.skipPad(Padding(length)); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadString decodes a string using the same encoding as ReadOpaque.
func (d *Decoder) ReadString() (string, error) {
	data, err := d.ReadOpaque()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadArrayLength decodes the element count that precedes an XDR array's
// elements.
func (d *Decoder) ReadArrayLength() (uint32, error) {
	return d.ReadUint32()
}
