package framing

import (
	"bytes"
	"net"

	"github.com/ashenvale/fabric/message"
)

// readChunkSize is how much is pulled off the socket per underfilled Recv.
const readChunkSize = 4096

// Stream pairs an Encoder/Decoder with a live connection, giving callers
// message-level send/recv instead of raw bytes.
type Stream struct {
	conn        net.Conn
	hasChecksum bool
	enc         *Encoder
	dec         *Decoder
	buf         bytes.Buffer
	tmp         [readChunkSize]byte
}

// NewStream wraps conn. hasChecksum, encObfs/encStart and decObfs/decStart
// mirror the Encoder/Decoder constructors; pass a nil table on either side
// to disable obfuscation for that direction (the plaintext inter-service
// flavor always does).
func NewStream(conn net.Conn, hasChecksum bool, encObfs *ObfuscationTable, encStart uint8, decObfs *ObfuscationTable, decStart uint8) *Stream {
	return &Stream{
		conn:        conn,
		hasChecksum: hasChecksum,
		enc:         NewEncoder(hasChecksum, encObfs, encStart),
		dec:         NewDecoder(hasChecksum, decObfs, decStart),
	}
}

// Reobfuscate swaps in a new encode/decode obfuscation table and start
// index for both directions, taking effect starting with the next frame
// sent or received. Login's user handshake uses this to switch the
// stream onto the negotiated seed once it has been chosen.
func (s *Stream) Reobfuscate(encObfs *ObfuscationTable, encStart uint8, decObfs *ObfuscationTable, decStart uint8) {
	s.enc = NewEncoder(s.hasChecksum, encObfs, encStart)
	s.dec = NewDecoder(s.hasChecksum, decObfs, decStart)
}

// Conn returns the underlying connection, e.g. for RemoteAddr/Close.
func (s *Stream) Conn() net.Conn { return s.conn }

// Send encodes and writes m as a single frame.
func (s *Stream) Send(m message.Message) error {
	id, payload := message.Encode(m)
	frame, err := s.enc.Encode(id, payload)
	if err != nil {
		return err
	}
	_, err = s.conn.Write(frame)
	return err
}

// Recv blocks on the socket until a full frame is available, then decodes
// and returns the message it carries.
func (s *Stream) Recv() (message.Message, error) {
	for {
		id, payload, err := s.dec.Decode(&s.buf)
		if err == nil {
			return message.Decode(id, payload)
		}
		if err != ErrAgain {
			return nil, err
		}
		n, rerr := s.conn.Read(s.tmp[:])
		if n > 0 {
			s.buf.Write(s.tmp[:n])
		}
		if rerr != nil {
			return nil, rerr
		}
	}
}
