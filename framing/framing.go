// Package framing implements the fabric's link framing: a length-prefixed
// header followed by a payload that is optionally checksummed,
// with the whole frame optionally masked by a seed-derived keystream table.
//
// The frame format (plain flavor, used between internal services) is:
//
//	uint16_t magic   (0xB7E2, little endian)
//	uint16_t length  (total frame length including header)
//	uint16_t id
//	uint8_t[] payload
//
// The checksummed flavor (used on the client-facing stream) inserts a
// 32-bit checksum between length and id:
//
//	uint16_t magic
//	uint16_t length
//	uint32_t checksum (XOR of every payload byte)
//	uint16_t id
//	uint8_t[] payload
//
// When obfuscation is enabled, every byte of the frame — header included —
// is XORed with the obfuscation table entry at the stream's current index;
// the index then advances by the number of bytes XORed and wraps modulo
// 256. Encoder and decoder each track their own index
// independently, synchronized only by the seed exchanged at handshake
// time.
package framing

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dchest/siphash"

	"github.com/ashenvale/fabric/wire"
)

const (
	// MaximumFrameLength is the largest frame this package will encode or
	// accept, matching the header's 16-bit length field.
	MaximumFrameLength = 0xffff

	// MaximumPayloadLength is the largest payload that fits in a single
	// frame using the checksummed header flavor (the larger of the two).
	MaximumPayloadLength = MaximumFrameLength - wire.HeaderSizeChecksum
)

// ErrAgain is returned by Decoder.Decode when the buffer does not yet hold
// a complete frame; the caller should read more data and retry.
var ErrAgain = errors.New("framing: more data needed to decode")

// ErrChecksumMismatch is returned when a checksummed frame's payload does
// not match its header checksum.
var ErrChecksumMismatch = errors.New("framing: checksum mismatch")

// InvalidPayloadLengthError is returned by Encoder.Encode when the payload
// does not fit in a single frame.
type InvalidPayloadLengthError int

func (e InvalidPayloadLengthError) Error() string {
	return fmt.Sprintf("framing: invalid payload length: %d", int(e))
}

// ObfuscationTable is the 256-byte keystream mask derived from a 32-bit
// seed exchanged during the Login handshake ("xor_seed_2").
// table[i] is the mask byte applied to the i-th position since a stream's
// index last wrapped; both the table and the starting index must match
// between the two ends of a connection for the stream to decode cleanly.
type ObfuscationTable struct {
	table [256]byte
}

// NewObfuscationTable derives the table from seed using SipHash-2-4 as a
// keyed PRF to drive a Fisher-Yates shuffle of the identity byte sequence.
// The same seed always yields the same table, letting both ends of a
// connection rebuild it independently from the negotiated seed alone.
func NewObfuscationTable(seed uint32) *ObfuscationTable {
	var key [16]byte
	key[0] = byte(seed)
	key[1] = byte(seed >> 8)
	key[2] = byte(seed >> 16)
	key[3] = byte(seed >> 24)
	// Repeat the seed bytes to fill out the 16-byte SipHash key; the seed
	// is the only entropy source, so there is nothing else to mix in.
	copy(key[4:], key[:4])
	copy(key[8:], key[:4])
	copy(key[12:], key[:4])

	h := siphash.New(key[:])

	var table [256]byte
	for i := range table {
		table[i] = byte(i)
	}

	// Fisher-Yates, drawing the swap index from the SipHash digest of the
	// current position i so the shuffle is a pure function of seed.
	for i := 255; i > 0; i-- {
		var ctr [4]byte
		ctr[0] = byte(i)
		ctr[1] = byte(i >> 8)
		h.Reset()
		h.Write(ctr[:])
		sum := h.Sum(nil)
		j := int((uint16(sum[0]) | uint16(sum[1])<<8) % uint16(i+1))
		table[i], table[j] = table[j], table[i]
	}

	return &ObfuscationTable{table: table}
}

// xorAt XORs dst in place against successive table entries starting at
// index start, returning the next index (mod 256).
func (t *ObfuscationTable) xorAt(dst []byte, start int) int {
	if t == nil {
		return start
	}
	idx := start
	for i := range dst {
		dst[i] ^= t.table[idx]
		idx = (idx + 1) % 256
	}
	return idx
}

// Encoder turns (id, payload) pairs into wire frames.
type Encoder struct {
	hasChecksum bool
	obfs        *ObfuscationTable
	index       int
}

// NewEncoder constructs an Encoder. obfs may be nil to disable
// obfuscation (the internal-service flavor never obfuscates); startIndex
// is the table index negotiated at handshake time.
func NewEncoder(hasChecksum bool, obfs *ObfuscationTable, startIndex uint8) *Encoder {
	return &Encoder{hasChecksum: hasChecksum, obfs: obfs, index: int(startIndex)}
}

// Encode serializes a single frame, applying obfuscation (if enabled) to
// the header and payload alike.
func (e *Encoder) Encode(id uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaximumPayloadLength {
		return nil, InvalidPayloadLengthError(len(payload))
	}

	h := wire.Header{ID: id, HasChecksum: e.hasChecksum}
	h.Length = uint16(h.Size() + len(payload))
	if e.hasChecksum {
		h.Checksum = wire.Checksum(payload)
	}

	frame := make([]byte, h.Size()+len(payload))
	h.Encode(frame)
	copy(frame[h.Size():], payload)

	e.index = e.obfs.xorAt(frame, e.index)
	return frame, nil
}

// Decoder reconstructs (id, payload) pairs from a byte stream.
type Decoder struct {
	hasChecksum bool
	obfs        *ObfuscationTable
	index       int
}

// NewDecoder constructs a Decoder matching the peer Encoder's flavor and
// starting table index.
func NewDecoder(hasChecksum bool, obfs *ObfuscationTable, startIndex uint8) *Decoder {
	return &Decoder{hasChecksum: hasChecksum, obfs: obfs, index: int(startIndex)}
}

// Decode attempts to pull one complete frame out of data. It returns
// ErrAgain when fewer bytes are buffered than the next frame requires;
// the caller should read more and retry. The decoder's table index only
// advances once a complete frame has actually been consumed, so a retried
// partial read never desynchronizes the keystream.
func (d *Decoder) Decode(data *bytes.Buffer) (uint16, []byte, error) {
	headerSize := wire.HeaderSizePlain
	if d.hasChecksum {
		headerSize = wire.HeaderSizeChecksum
	}

	buf := data.Bytes()
	if len(buf) < headerSize {
		return 0, nil, ErrAgain
	}

	hdrPeek := make([]byte, headerSize)
	copy(hdrPeek, buf[:headerSize])
	d.obfs.xorAt(hdrPeek, d.index)

	h, err := wire.DecodeHeader(hdrPeek, d.hasChecksum)
	if err != nil {
		return 0, nil, err
	}
	if int(h.Length) > len(buf) {
		return 0, nil, ErrAgain
	}

	frame := make([]byte, h.Length)
	if _, err := data.Read(frame); err != nil {
		return 0, nil, err
	}
	d.index = d.obfs.xorAt(frame, d.index)

	// Header fields are already known from the trial decode above; only
	// the checksum needs the now-plaintext payload to verify.
	payload := frame[headerSize:]
	if d.hasChecksum {
		if wire.Checksum(payload) != h.Checksum {
			return 0, nil, ErrChecksumMismatch
		}
	}

	return h.ID, payload, nil
}
