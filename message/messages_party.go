package message

import "github.com/ashenvale/fabric/wire"

// clientConnectPad is the fixed padding length bounced back verbatim with
// ClientConnect.
const clientConnectPad = 370

// ClientConnect announces (or re-announces) a character on a channel.
type ClientConnect struct {
	CharID  uint32
	Channel uint16
	Level   uint16
	Class   uint16
	Name    string
	Pad     [clientConnectPad]byte
}

func (m *ClientConnect) ID() uint16 { return IDClientConnect }
func (m *ClientConnect) encode(w *wire.Writer) {
	w.U32(m.CharID)
	w.U16(m.Channel)
	w.U16(m.Level)
	w.U16(m.Class)
	w.NullString(m.Name)
	w.Raw(m.Pad[:])
}
func (m *ClientConnect) decode(r *wire.Reader) error {
	var err error
	if m.CharID, err = r.U32(); err != nil {
		return err
	}
	if m.Channel, err = r.U16(); err != nil {
		return err
	}
	if m.Level, err = r.U16(); err != nil {
		return err
	}
	if m.Class, err = r.U16(); err != nil {
		return err
	}
	if m.Name, err = r.NullString(); err != nil {
		return err
	}
	pad, err := r.Raw(clientConnectPad)
	if err != nil {
		return err
	}
	copy(m.Pad[:], pad)
	return nil
}

// ClientDisconnect marks a character offline.
type ClientDisconnect struct {
	CharID uint32
}

func (m *ClientDisconnect) ID() uint16          { return IDClientDisconnect }
func (m *ClientDisconnect) encode(w *wire.Writer) { w.U32(m.CharID) }
func (m *ClientDisconnect) decode(r *wire.Reader) error {
	v, err := r.U32()
	m.CharID = v
	return err
}

// PartyInvite is the inviter's request to invite invitee into a party.
type PartyInvite struct {
	InviterID    uint32
	InviteeID    uint32
	InviterLevel uint16
	InviteeLevel uint16
}

func (m *PartyInvite) ID() uint16 { return IDPartyInvite }
func (m *PartyInvite) encode(w *wire.Writer) {
	w.U32(m.InviterID)
	w.U32(m.InviteeID)
	w.U16(m.InviterLevel)
	w.U16(m.InviteeLevel)
}
func (m *PartyInvite) decode(r *wire.Reader) error {
	var err error
	if m.InviterID, err = r.U32(); err != nil {
		return err
	}
	if m.InviteeID, err = r.U32(); err != nil {
		return err
	}
	if m.InviterLevel, err = r.U16(); err != nil {
		return err
	}
	m.InviteeLevel, err = r.U16()
	return err
}

// PartyInviteAck is echoed back after updating inviter/invitee level.
type PartyInviteAck struct {
	InviterID uint32
	InviteeID uint32
}

func (m *PartyInviteAck) ID() uint16 { return IDPartyInviteAck }
func (m *PartyInviteAck) encode(w *wire.Writer) {
	w.U32(m.InviterID)
	w.U32(m.InviteeID)
}
func (m *PartyInviteAck) decode(r *wire.Reader) error {
	var err error
	if m.InviterID, err = r.U32(); err != nil {
		return err
	}
	m.InviteeID, err = r.U32()
	return err
}

// PartyInviteResult carries the invitee's accept/decline decision.
type PartyInviteResult struct {
	Accepted  uint8
	InviterID uint32
	InviteeID uint32
}

func (m *PartyInviteResult) ID() uint16 { return IDPartyInviteResult }
func (m *PartyInviteResult) encode(w *wire.Writer) {
	w.U8(m.Accepted)
	w.U32(m.InviterID)
	w.U32(m.InviteeID)
}
func (m *PartyInviteResult) decode(r *wire.Reader) error {
	var err error
	if m.Accepted, err = r.U8(); err != nil {
		return err
	}
	if m.InviterID, err = r.U32(); err != nil {
		return err
	}
	m.InviteeID, err = r.U32()
	return err
}

// PartyInviteResultAck answers PartyInviteResult: unk1=0 on acceptance,
// unk1=1 on decline.
type PartyInviteResultAck struct {
	Unk1 uint8
}

func (m *PartyInviteResultAck) ID() uint16          { return IDPartyInviteResultAck }
func (m *PartyInviteResultAck) encode(w *wire.Writer) { w.U8(m.Unk1) }
func (m *PartyInviteResultAck) decode(r *wire.Reader) error {
	v, err := r.U8()
	m.Unk1 = v
	return err
}

// PartyMemberAdd announces a new member's stats to an already-formed
// party.
type PartyMemberAdd struct {
	PartyID uint16
	CharID  uint32
	Level   uint16
	Class   uint16
	Name    string
}

func (m *PartyMemberAdd) ID() uint16 { return IDPartyMemberAdd }
func (m *PartyMemberAdd) encode(w *wire.Writer) {
	w.U16(m.PartyID)
	w.U32(m.CharID)
	w.U16(m.Level)
	w.U16(m.Class)
	w.NullString(m.Name)
}
func (m *PartyMemberAdd) decode(r *wire.Reader) error {
	var err error
	if m.PartyID, err = r.U16(); err != nil {
		return err
	}
	if m.CharID, err = r.U32(); err != nil {
		return err
	}
	if m.Level, err = r.U16(); err != nil {
		return err
	}
	if m.Class, err = r.U16(); err != nil {
		return err
	}
	m.Name, err = r.NullString()
	return err
}

// PartyMember is one member entry within PartyStats.
type PartyMember struct {
	CharID uint32
	Level  uint16
	Class  uint16
	Name   string
}

// PartyStats carries the full party roster, sent to members on formation
// or growth.
type PartyStats struct {
	PartyID  uint16
	LeaderID uint32
	Members  []PartyMember
}

func (m *PartyStats) ID() uint16 { return IDPartyStats }
func (m *PartyStats) encode(w *wire.Writer) {
	w.U16(m.PartyID)
	w.U32(m.LeaderID)
	w.U8(uint8(len(m.Members)))
	for _, mem := range m.Members {
		w.U32(mem.CharID)
		w.U16(mem.Level)
		w.U16(mem.Class)
		w.NullString(mem.Name)
	}
}
func (m *PartyStats) decode(r *wire.Reader) error {
	var err error
	if m.PartyID, err = r.U16(); err != nil {
		return err
	}
	if m.LeaderID, err = r.U32(); err != nil {
		return err
	}
	n, err := r.U8()
	if err != nil {
		return err
	}
	m.Members = nil
	for i := uint8(0); i < n; i++ {
		charID, err := r.U32()
		if err != nil {
			return err
		}
		level, err := r.U16()
		if err != nil {
			return err
		}
		class, err := r.U16()
		if err != nil {
			return err
		}
		name, err := r.NullString()
		if err != nil {
			return err
		}
		m.Members = append(m.Members, PartyMember{CharID: charID, Level: level, Class: class, Name: name})
	}
	return nil
}

// PartyLeave requests a character's removal from a party.
type PartyLeave struct {
	CharID  uint32
	PartyID uint16
}

func (m *PartyLeave) ID() uint16 { return IDPartyLeave }
func (m *PartyLeave) encode(w *wire.Writer) {
	w.U32(m.CharID)
	w.U16(m.PartyID)
}
func (m *PartyLeave) decode(r *wire.Reader) error {
	var err error
	if m.CharID, err = r.U32(); err != nil {
		return err
	}
	m.PartyID, err = r.U16()
	return err
}

// PartyLeaveAck always follows a PartyLeave, whether or not it caused a
// disband.
type PartyLeaveAck struct {
	CharID  uint32
	PartyID uint16
}

func (m *PartyLeaveAck) ID() uint16 { return IDPartyLeaveAck }
func (m *PartyLeaveAck) encode(w *wire.Writer) {
	w.U32(m.CharID)
	w.U16(m.PartyID)
}
func (m *PartyLeaveAck) decode(r *wire.Reader) error {
	var err error
	if m.CharID, err = r.U32(); err != nil {
		return err
	}
	m.PartyID, err = r.U16()
	return err
}

// PartyClear announces that a party has been fully disbanded.
type PartyClear struct {
	PartyID uint16
}

func (m *PartyClear) ID() uint16          { return IDPartyClear }
func (m *PartyClear) encode(w *wire.Writer) { w.U16(m.PartyID) }
func (m *PartyClear) decode(r *wire.Reader) error {
	v, err := r.U16()
	m.PartyID = v
	return err
}

func init() {
	register(IDClientConnect, func() Message { return &ClientConnect{} })
	register(IDClientDisconnect, func() Message { return &ClientDisconnect{} })
	register(IDPartyInvite, func() Message { return &PartyInvite{} })
	register(IDPartyInviteAck, func() Message { return &PartyInviteAck{} })
	register(IDPartyInviteResult, func() Message { return &PartyInviteResult{} })
	register(IDPartyInviteResultAck, func() Message { return &PartyInviteResultAck{} })
	register(IDPartyMemberAdd, func() Message { return &PartyMemberAdd{} })
	register(IDPartyStats, func() Message { return &PartyStats{} })
	register(IDPartyLeave, func() Message { return &PartyLeave{} })
	register(IDPartyLeaveAck, func() Message { return &PartyLeaveAck{} })
	register(IDPartyClear, func() Message { return &PartyClear{} })
}
