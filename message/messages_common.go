package message

import (
	"github.com/ashenvale/fabric/wire"
)

// Connect is a peer's service-identification handshake message, sent as
// the first frame on every connection type.
type Connect struct {
	Service wire.ServiceKind
	WorldID uint16
	Channel uint16
	Zeros   [16]byte
}

func (m *Connect) ID() uint16 { return IDConnect }

func (m *Connect) encode(w *wire.Writer) {
	w.U8(uint8(m.Service))
	w.U16(m.WorldID)
	w.U16(m.Channel)
	w.Block(m.Zeros)
}

func (m *Connect) decode(r *wire.Reader) error {
	svc, err := r.U8()
	if err != nil {
		return err
	}
	m.Service = wire.ServiceKind(svc)
	if m.WorldID, err = r.U16(); err != nil {
		return err
	}
	if m.Channel, err = r.U16(); err != nil {
		return err
	}
	m.Zeros, err = r.Block()
	return err
}

// ConnectAck is the common raw form shared by every service's handshake
// acknowledgement. The raw form is authoritative; the event and world
// flavors re-parse the same 10 raw bytes via AsEvent/AsWorld.
type ConnectAck struct {
	WorldID uint16
	Channel uint16
	Raw     [10]byte
}

func (m *ConnectAck) ID() uint16 { return IDConnectAck }

func (m *ConnectAck) encode(w *wire.Writer) {
	w.U16(m.WorldID)
	w.U16(m.Channel)
	w.Raw(m.Raw[:])
}

func (m *ConnectAck) decode(r *wire.Reader) error {
	var err error
	if m.WorldID, err = r.U16(); err != nil {
		return err
	}
	if m.Channel, err = r.U16(); err != nil {
		return err
	}
	raw, err := r.Raw(10)
	if err != nil {
		return err
	}
	copy(m.Raw[:], raw)
	return nil
}

// EventAck is the event-flavor view of ConnectAck.Raw: a 9-byte Unk2
// plus a trailing Unk4 byte.
type EventAck struct {
	Unk2 [9]byte
	Unk4 uint8
}

// AsEvent re-parses the common raw form as the event flavor.
func (m *ConnectAck) AsEvent() EventAck {
	var ev EventAck
	copy(ev.Unk2[:], m.Raw[:9])
	ev.Unk4 = m.Raw[9]
	return ev
}

// WorldAck is the world-flavor view of ConnectAck.Raw: an 8-byte Unk1 plus
// a trailing service id byte.
type WorldAck struct {
	Unk1      [8]byte
	ServiceID uint8
}

// AsWorld re-parses the common raw form as the world flavor.
func (m *ConnectAck) AsWorld() WorldAck {
	var wa WorldAck
	copy(wa.Unk1[:], m.Raw[:8])
	wa.ServiceID = m.Raw[9]
	return wa
}

// NewEventConnectAck builds the fixed event-service ack:
// unk2 = [00,FF,00,FF,F5,00,00,00,00], unk4=1.
func NewEventConnectAck(worldID, channel uint16) *ConnectAck {
	m := &ConnectAck{WorldID: worldID, Channel: channel}
	copy(m.Raw[:9], []byte{0x00, 0xff, 0x00, 0xff, 0xf5, 0x00, 0x00, 0x00, 0x00})
	m.Raw[9] = 1
	return m
}

// NewCryptoConnectAck builds the fixed crypto-service ack: unk3=0xF6,
// unk4=0xF6, unk5=0x398AB300, unk6=0x1F, packed into the common 10-byte
// raw form as unk3, unk4, unk5 (4 bytes LE), unk6, remaining 3 bytes
// zero.
func NewCryptoConnectAck() *ConnectAck {
	m := &ConnectAck{}
	m.Raw[0] = 0xf6
	m.Raw[1] = 0xf6
	m.Raw[2] = 0x00
	m.Raw[3] = 0xb3
	m.Raw[4] = 0x8a
	m.Raw[5] = 0x39
	m.Raw[6] = 0x1f
	return m
}

// Keepalive is the empty-body liveness ping, id 0x2B3.
type Keepalive struct{}

func (m *Keepalive) ID() uint16          { return IDKeepalive }
func (m *Keepalive) encode(w *wire.Writer) {}
func (m *Keepalive) decode(r *wire.Reader) error { return nil }

func init() {
	register(IDConnect, func() Message { return &Connect{} })
	register(IDConnectAck, func() Message { return &ConnectAck{} })
	register(IDKeepalive, func() Message { return &Keepalive{} })
}
