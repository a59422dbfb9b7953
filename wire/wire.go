// Package wire implements the element-level binary encoding rules shared by
// every message in the registry: native little-endian integers, fixed
// arrays, length-prefixed bounded slices, tail-consuming unbounded slices,
// null-terminated strings and fixed 16-byte blocks.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the fixed packet header magic value.
const Magic uint16 = 0xB7E2

// Header byte sizes, with and without the optional checksum field.
const (
	HeaderSizePlain    = 6
	HeaderSizeChecksum = 10
)

// ErrShortBuffer is returned by Reader methods when fewer bytes remain than
// the field being decoded requires.
var ErrShortBuffer = errors.New("wire: short buffer")

// ErrBadMagic is returned when a header's magic field does not match Magic.
var ErrBadMagic = errors.New("wire: bad magic")

// ErrHeaderTooShort is returned when a header's length field is smaller than
// the header itself.
var ErrHeaderTooShort = errors.New("wire: length shorter than header")

// Header is the fixed packet header every frame starts with. Checksum is
// meaningful only when HasChecksum is true (the client-facing stream).
type Header struct {
	Length      uint16
	Checksum    uint32
	ID          uint16
	HasChecksum bool
}

// Size returns the encoded byte size of the header.
func (h Header) Size() int {
	if h.HasChecksum {
		return HeaderSizeChecksum
	}
	return HeaderSizePlain
}

// Encode writes the header into buf, which must be at least h.Size() bytes.
func (h Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], Magic)
	binary.LittleEndian.PutUint16(buf[2:4], h.Length)
	if h.HasChecksum {
		binary.LittleEndian.PutUint32(buf[4:8], h.Checksum)
		binary.LittleEndian.PutUint16(buf[8:10], h.ID)
	} else {
		binary.LittleEndian.PutUint16(buf[4:6], h.ID)
	}
}

// DecodeHeader parses a header of the given flavor from buf.
func DecodeHeader(buf []byte, hasChecksum bool) (Header, error) {
	size := HeaderSizePlain
	if hasChecksum {
		size = HeaderSizeChecksum
	}
	if len(buf) < size {
		return Header{}, ErrShortBuffer
	}
	magic := binary.LittleEndian.Uint16(buf[0:2])
	if magic != Magic {
		return Header{}, ErrBadMagic
	}
	length := binary.LittleEndian.Uint16(buf[2:4])
	if int(length) < size {
		return Header{}, ErrHeaderTooShort
	}
	h := Header{Length: length, HasChecksum: hasChecksum}
	if hasChecksum {
		h.Checksum = binary.LittleEndian.Uint32(buf[4:8])
		h.ID = binary.LittleEndian.Uint16(buf[8:10])
	} else {
		h.ID = binary.LittleEndian.Uint16(buf[4:6])
	}
	return h, nil
}

// Checksum computes the header checksum: the XOR of every payload byte.
// A payload of length zero checksums to zero ("unchecked").
func Checksum(payload []byte) uint32 {
	var sum uint32
	for _, b := range payload {
		sum ^= uint32(b)
	}
	return sum
}

// Writer is an append-only little-endian cursor used by message Encode
// methods.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with buf as its backing storage, which may be
// nil.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Bytes returns the accumulated output.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) U8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) U16(v uint16) { w.buf = appendU16(w.buf, v) }
func (w *Writer) U32(v uint32) { w.buf = appendU32(w.buf, v) }
func (w *Writer) U64(v uint64) { w.buf = appendU64(w.buf, v) }

// Raw appends b verbatim (fixed arrays, element-wise, no length prefix).
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

// Block appends a fixed 16-byte block.
func (w *Writer) Block(b [16]byte) { w.buf = append(w.buf, b[:]...) }

// Bounded8 writes an 8-bit length prefix followed by data.
func (w *Writer) Bounded8(data []byte) {
	w.U8(uint8(len(data)))
	w.Raw(data)
}

// Bounded16 writes a 16-bit little-endian length prefix followed by data.
func (w *Writer) Bounded16(data []byte) {
	w.U16(uint16(len(data)))
	w.Raw(data)
}

// Bounded32 writes a 32-bit little-endian length prefix followed by data.
func (w *Writer) Bounded32(data []byte) {
	w.U32(uint32(len(data)))
	w.Raw(data)
}

// NullString writes s followed by a single 0x00 terminator.
func (w *Writer) NullString(s string) {
	w.Raw([]byte(s))
	w.U8(0)
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

// Reader is a cursor over a byte slice used by message Decode methods. It
// tracks how many bytes remain so callers (the message registry) can
// enforce the "all payload bytes consumed" invariant.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Rest returns every unconsumed byte without advancing the cursor.
func (r *Reader) Rest() []byte { return r.buf[r.pos:] }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, n, r.Remaining())
	}
	return nil
}

func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// Raw reads exactly n bytes (a fixed array element).
func (r *Reader) Raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// Block reads a fixed 16-byte block.
func (r *Reader) Block() ([16]byte, error) {
	var out [16]byte
	b, err := r.Raw(16)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// Bounded8 reads an 8-bit length prefix followed by that many bytes.
func (r *Reader) Bounded8() ([]byte, error) {
	n, err := r.U8()
	if err != nil {
		return nil, err
	}
	return r.Raw(int(n))
}

// Bounded16 reads a 16-bit little-endian length prefix followed by that
// many bytes.
func (r *Reader) Bounded16() ([]byte, error) {
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	return r.Raw(int(n))
}

// Bounded32 reads a 32-bit little-endian length prefix followed by that
// many bytes.
func (r *Reader) Bounded32() ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	return r.Raw(int(n))
}

// Unbounded consumes every remaining byte (the tail element rule).
func (r *Reader) Unbounded() []byte {
	v := r.buf[r.pos:]
	r.pos = len(r.buf)
	return v
}

// NullString reads bytes up to and including the first 0x00, returning the
// bytes before it as a string.
func (r *Reader) NullString() (string, error) {
	for i := r.pos; i < len(r.buf); i++ {
		if r.buf[i] == 0 {
			s := string(r.buf[r.pos:i])
			r.pos = i + 1
			return s, nil
		}
	}
	return "", fmt.Errorf("wire: unterminated string")
}
