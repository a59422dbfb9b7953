// Package message implements the tagged union over every message kind
// exchanged across the fabric: one Go type per message
// id, dispatched through a single codec table keyed by numeric id.
package message

import (
	"errors"
	"fmt"

	"github.com/ashenvale/fabric/wire"
)

// Message is implemented by every message variant.
type Message interface {
	ID() uint16
	encode(w *wire.Writer)
	decode(r *wire.Reader) error
}

// ErrTrailingBytes is returned by Decode when a variant's decoder consumed
// fewer bytes than the payload contained; every payload byte must be
// consumed.
var ErrTrailingBytes = errors.New("message: trailing bytes after decode")

// DecodeError wraps a decode failure with the offending message id, so
// callers can log which variant misbehaved without type-switching.
type DecodeError struct {
	ID  uint16
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("message: decode id=0x%03x: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type codecEntry struct {
	newDefault func() Message
}

var registry = map[uint16]codecEntry{}

func register(id uint16, newDefault func() Message) {
	registry[id] = codecEntry{newDefault: newDefault}
}

// NewDefault returns the zero-value fixture for id, or Unknown(id, nil)
// if id is not in the registry.
func NewDefault(id uint16) Message {
	if entry, ok := registry[id]; ok {
		return entry.newDefault()
	}
	return &Unknown{IDValue: id}
}

// Decode parses payload as the variant named by id, or as Unknown if id is
// not registered. Every byte of payload must be consumed by a registered
// variant's decoder; a short decode is ErrTrailingBytes. Unknown absorbs
// the tail verbatim and is never considered to have trailing bytes.
func Decode(id uint16, payload []byte) (Message, error) {
	entry, ok := registry[id]
	if !ok {
		return &Unknown{IDValue: id, Payload: append([]byte(nil), payload...)}, nil
	}

	m := entry.newDefault()
	r := wire.NewReader(payload)
	if err := m.decode(r); err != nil {
		return nil, &DecodeError{ID: id, Err: err}
	}
	if r.Remaining() != 0 {
		return nil, &DecodeError{ID: id, Err: ErrTrailingBytes}
	}
	return m, nil
}

// Encode serializes m's payload (header-less; framing.Encoder attaches the
// header) and returns the id to put in the frame header.
func Encode(m Message) (uint16, []byte) {
	w := wire.NewWriter(nil)
	m.encode(w)
	return m.ID(), w.Bytes()
}

// ID returns m's numeric message id.
func ID(m Message) uint16 { return m.ID() }

// Unknown absorbs any message id with no registered variant, carrying the
// raw undecoded payload bytes.
// Unknown is also the documented default for a bare Payload id (id=0).
type Unknown struct {
	IDValue uint16
	Payload []byte
}

func (u *Unknown) ID() uint16 { return u.IDValue }

func (u *Unknown) encode(w *wire.Writer) { w.Raw(u.Payload) }

func (u *Unknown) decode(r *wire.Reader) error {
	u.Payload = append([]byte(nil), r.Unbounded()...)
	return nil
}

func init() {
	register(0, func() Message { return &Unknown{IDValue: 0, Payload: nil} })
}
