package intenc

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrTruncated is returned when a value extends past the end of the buffer.
	ErrTruncated = errors.New("truncated input")
	// ErrOverflow is returned when a varint does not fit its target type.
	ErrOverflow = errors.New("varint overflow")
	// ErrMalformed is set by Fail when a caller rejects decoded content.
	ErrMalformed = errors.New("malformed input")
)

//
// Append (encode) side
//

// AppendUint appends v as an unsigned varint.
func AppendUint(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}

// AppendInt appends v as a zigzag-encoded varint.
func AppendInt(buf []byte, v int64) []byte {
	return binary.AppendVarint(buf, v)
}

// AppendFloat appends the 4-byte little-endian bit pattern of v.
func AppendFloat(buf []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
}

// AppendDouble appends the 8-byte little-endian bit pattern of v.
func AppendDouble(buf []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
}

// AppendBool appends a single 0/1 byte.
func AppendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// AppendBytes appends a length prefix followed by the raw bytes.
func AppendBytes(buf []byte, b []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// AppendString appends a length prefix followed by the raw bytes of s.
func AppendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

//
// Read (decode) side
//
// A Reader consumes a buffer front to back. Every method reports
// truncation instead of panicking; once an error occurs all further
// reads fail with the same error.
//

// Reader is a forward-only cursor over an immutable byte buffer.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over buf. The buffer is not copied and
// must not be mutated while the reader is in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Remaining reports the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Offset reports the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Fail puts the reader into the error state. Callers use it to reject
// input that decodes cleanly but is semantically impossible, so the
// usual sticky-error reporting applies.
func (r *Reader) Fail() {
	r.fail(ErrMalformed)
}

// Byte reads a single byte.
func (r *Reader) Byte() byte {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.buf) {
		r.fail(ErrTruncated)
		return 0
	}
	b := r.buf[r.off]
	r.off++
	return b
}

// Uint reads an unsigned varint.
func (r *Reader) Uint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		if n == 0 {
			r.fail(ErrTruncated)
		} else {
			r.fail(ErrOverflow)
		}
		return 0
	}
	r.off += n
	return v
}

// Int reads a zigzag-encoded varint.
func (r *Reader) Int() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.buf[r.off:])
	if n <= 0 {
		if n == 0 {
			r.fail(ErrTruncated)
		} else {
			r.fail(ErrOverflow)
		}
		return 0
	}
	r.off += n
	return v
}

// Index reads an unsigned varint and narrows it to int, used for row,
// column and table indices.
func (r *Reader) Index() int {
	v := r.Uint()
	if r.err != nil {
		return 0
	}
	if v > math.MaxInt32 {
		r.fail(ErrOverflow)
		return 0
	}
	return int(v)
}

// Float reads a 4-byte little-endian float bit pattern.
func (r *Reader) Float() float32 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.buf) {
		r.fail(ErrTruncated)
		return 0
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return v
}

// Double reads an 8-byte little-endian double bit pattern.
func (r *Reader) Double() float64 {
	if r.err != nil {
		return 0
	}
	if r.off+8 > len(r.buf) {
		r.fail(ErrTruncated)
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.buf[r.off:]))
	r.off += 8
	return v
}

// Bool reads a single 0/1 byte.
func (r *Reader) Bool() bool {
	return r.Byte() != 0
}

// Bytes reads a length-prefixed byte payload. The returned slice is a
// defensive copy, safe to retain.
func (r *Reader) Bytes() []byte {
	n := r.Uint()
	if r.err != nil {
		return nil
	}
	if n > uint64(r.Remaining()) {
		r.fail(ErrTruncated)
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:])
	r.off += int(n)
	return out
}

// String reads a length-prefixed string payload.
func (r *Reader) String() string {
	n := r.Uint()
	if r.err != nil {
		return ""
	}
	if n > uint64(r.Remaining()) {
		r.fail(ErrTruncated)
		return ""
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s
}
