package message

import "github.com/ashenvale/fabric/wire"

// ChangeChannelType reports a channel's current state;
// state 5 means "unknown".
type ChangeChannelType struct {
	State uint8
}

func (m *ChangeChannelType) ID() uint16          { return IDChangeChannelType }
func (m *ChangeChannelType) encode(w *wire.Writer) { w.U8(m.State) }
func (m *ChangeChannelType) decode(r *wire.Reader) error {
	v, err := r.U8()
	m.State = v
	return err
}

// DailyQuestResetTime carries the next 04:00 UTC-anchored daily boundary
// as a Unix timestamp.
type DailyQuestResetTime struct {
	ResetUnix uint64
}

func (m *DailyQuestResetTime) ID() uint16          { return IDDailyQuestResetTime }
func (m *DailyQuestResetTime) encode(w *wire.Writer) { w.U64(m.ResetUnix) }
func (m *DailyQuestResetTime) decode(r *wire.Reader) error {
	v, err := r.U64()
	m.ResetUnix = v
	return err
}

// AdditionalDungeonInstanceCount is sent with both counts zeroed at
// channel registration.
type AdditionalDungeonInstanceCount struct {
	Normal uint32
	Hard   uint32
}

func (m *AdditionalDungeonInstanceCount) ID() uint16 { return IDAdditionalDungeonInstanceCount }
func (m *AdditionalDungeonInstanceCount) encode(w *wire.Writer) {
	w.U32(m.Normal)
	w.U32(m.Hard)
}
func (m *AdditionalDungeonInstanceCount) decode(r *wire.Reader) error {
	var err error
	if m.Normal, err = r.U32(); err != nil {
		return err
	}
	m.Hard, err = r.U32()
	return err
}

// ProfilePathRequest asks the hub for the three scp resource descriptors.
type ProfilePathRequest struct{}

func (m *ProfilePathRequest) ID() uint16              { return IDProfilePathRequest }
func (m *ProfilePathRequest) encode(w *wire.Writer)   {}
func (m *ProfilePathRequest) decode(r *wire.Reader) error { return nil }

// ScpFile is one (id, path) descriptor within ProfilePathResponse.
type ScpFile struct {
	FileID uint8
	Path   string
}

// ProfilePathResponse carries the three scp file descriptors
// (id 4/2/1).
type ProfilePathResponse struct {
	Files [3]ScpFile
}

func (m *ProfilePathResponse) ID() uint16 { return IDProfilePathResponse }
func (m *ProfilePathResponse) encode(w *wire.Writer) {
	for _, f := range m.Files {
		w.U8(f.FileID)
		w.NullString(f.Path)
	}
}
func (m *ProfilePathResponse) decode(r *wire.Reader) error {
	for i := range m.Files {
		id, err := r.U8()
		if err != nil {
			return err
		}
		path, err := r.NullString()
		if err != nil {
			return err
		}
		m.Files[i] = ScpFile{FileID: id, Path: path}
	}
	return nil
}

// NotifyUserCount reports a channel's ip/port plus its 200-slot
// population table.
type NotifyUserCount struct {
	IP     [16]byte
	Port   uint16
	Counts [200]uint8
}

func (m *NotifyUserCount) ID() uint16 { return IDNotifyUserCount }
func (m *NotifyUserCount) encode(w *wire.Writer) {
	w.Block(m.IP)
	w.U16(m.Port)
	w.Raw(m.Counts[:])
}
func (m *NotifyUserCount) decode(r *wire.Reader) error {
	var err error
	if m.IP, err = r.Block(); err != nil {
		return err
	}
	if m.Port, err = r.U16(); err != nil {
		return err
	}
	b, err := r.Raw(200)
	if err != nil {
		return err
	}
	copy(m.Counts[:], b)
	return nil
}

// ChannelOptionSync records channel metadata fields; carried as an
// Unbounded tail since the exact field set is game-logic-specific and out
// of scope.
type ChannelOptionSync struct {
	Raw []byte
}

func (m *ChannelOptionSync) ID() uint16            { return IDChannelOptionSync }
func (m *ChannelOptionSync) encode(w *wire.Writer) { w.Raw(m.Raw) }
func (m *ChannelOptionSync) decode(r *wire.Reader) error {
	m.Raw = append([]byte(nil), r.Unbounded()...)
	return nil
}

// ShutdownStatsSet is recorded only; payload shape is
// out of scope, kept as a raw tail.
type ShutdownStatsSet struct {
	Raw []byte
}

func (m *ShutdownStatsSet) ID() uint16            { return IDShutdownStatsSet }
func (m *ShutdownStatsSet) encode(w *wire.Writer) { w.Raw(m.Raw) }
func (m *ShutdownStatsSet) decode(r *wire.Reader) error {
	m.Raw = append([]byte(nil), r.Unbounded()...)
	return nil
}

// DuplexRouteHeader addresses a RoutePacket at a specific service/
// world/channel and carries the fields needed to synthesize a response
// header.
type DuplexRouteHeader struct {
	OriginMainCmd uint16
	ServerID      uint16
	GroupID       uint16
	RespMainCmd   uint16
	RespServerID  uint16
	RespGroupID   uint16
}

// RoutePacket wraps an inner payload to be re-dispatched by the hub under
// a synthesized header using OriginMainCmd as id.
type RoutePacket struct {
	Header DuplexRouteHeader
	Data   []byte
}

func (m *RoutePacket) ID() uint16 { return IDRoutePacket }
func (m *RoutePacket) encode(w *wire.Writer) {
	w.U16(m.Header.OriginMainCmd)
	w.U16(m.Header.ServerID)
	w.U16(m.Header.GroupID)
	w.U16(m.Header.RespMainCmd)
	w.U16(m.Header.RespServerID)
	w.U16(m.Header.RespGroupID)
	w.Raw(m.Data)
}
func (m *RoutePacket) decode(r *wire.Reader) error {
	var err error
	if m.Header.OriginMainCmd, err = r.U16(); err != nil {
		return err
	}
	if m.Header.ServerID, err = r.U16(); err != nil {
		return err
	}
	if m.Header.GroupID, err = r.U16(); err != nil {
		return err
	}
	if m.Header.RespMainCmd, err = r.U16(); err != nil {
		return err
	}
	if m.Header.RespServerID, err = r.U16(); err != nil {
		return err
	}
	if m.Header.RespGroupID, err = r.U16(); err != nil {
		return err
	}
	m.Data = append([]byte(nil), r.Unbounded()...)
	return nil
}

// SubPasswordCheckRequest asks whether a sub-password (PIN) challenge is
// required.
type SubPasswordCheckRequest struct{}

func (m *SubPasswordCheckRequest) ID() uint16              { return IDSubPasswordCheckRequest }
func (m *SubPasswordCheckRequest) encode(w *wire.Writer)   {}
func (m *SubPasswordCheckRequest) decode(r *wire.Reader) error { return nil }

// SubPasswordCheckResponse answers SubPasswordCheckRequest; the hub
// always replies auth_needed=0: a PIN is never asked for.
type SubPasswordCheckResponse struct {
	AuthNeeded uint8
}

func (m *SubPasswordCheckResponse) ID() uint16          { return IDSubPasswordCheckResponse }
func (m *SubPasswordCheckResponse) encode(w *wire.Writer) { w.U8(m.AuthNeeded) }
func (m *SubPasswordCheckResponse) decode(r *wire.Reader) error {
	v, err := r.U8()
	m.AuthNeeded = v
	return err
}

// SetLoginInstance is a no-op notification.
type SetLoginInstance struct {
	Raw []byte
}

func (m *SetLoginInstance) ID() uint16            { return IDSetLoginInstance }
func (m *SetLoginInstance) encode(w *wire.Writer) { w.Raw(m.Raw) }
func (m *SetLoginInstance) decode(r *wire.Reader) error {
	m.Raw = append([]byte(nil), r.Unbounded()...)
	return nil
}

// ChannelGroup is one world's channel-group entry within ServerState.
type ChannelGroup struct {
	ServerID uint16
	GroupID  uint16
	State    uint8
}

// ServerState fans out the known channel/group topology; the hub sends a
// World-flavored list and a Login-flavored list with a synthetic sentinel
// entry (id=0x80).
type ServerState struct {
	Groups []ChannelGroup
}

func (m *ServerState) ID() uint16 { return IDServerState }
func (m *ServerState) encode(w *wire.Writer) {
	w.U16(uint16(len(m.Groups)))
	for _, g := range m.Groups {
		w.U16(g.ServerID)
		w.U16(g.GroupID)
		w.U8(g.State)
	}
}
func (m *ServerState) decode(r *wire.Reader) error {
	n, err := r.U16()
	if err != nil {
		return err
	}
	// A nil slice stays nil through an encode/decode round trip; only
	// allocate when there are entries.
	m.Groups = nil
	for i := uint16(0); i < n; i++ {
		sid, err := r.U16()
		if err != nil {
			return err
		}
		gid, err := r.U16()
		if err != nil {
			return err
		}
		st, err := r.U8()
		if err != nil {
			return err
		}
		m.Groups = append(m.Groups, ChannelGroup{ServerID: sid, GroupID: gid, State: st})
	}
	return nil
}

// SystemMessage is a free-text broadcast originating from a Login peer.
type SystemMessage struct {
	Text string
}

func (m *SystemMessage) ID() uint16          { return IDSystemMessage }
func (m *SystemMessage) encode(w *wire.Writer) { w.NullString(m.Text) }
func (m *SystemMessage) decode(r *wire.Reader) error {
	v, err := r.NullString()
	m.Text = v
	return err
}

// SystemMessageForwarded is SystemMessage re-sent to every World and back
// to the originating Login peer.
type SystemMessageForwarded struct {
	Text string
}

func (m *SystemMessageForwarded) ID() uint16          { return IDSystemMessageForwarded }
func (m *SystemMessageForwarded) encode(w *wire.Writer) { w.NullString(m.Text) }
func (m *SystemMessageForwarded) decode(r *wire.Reader) error {
	v, err := r.NullString()
	m.Text = v
	return err
}

func init() {
	register(IDChangeChannelType, func() Message { return &ChangeChannelType{} })
	register(IDDailyQuestResetTime, func() Message { return &DailyQuestResetTime{} })
	register(IDAdditionalDungeonInstanceCount, func() Message { return &AdditionalDungeonInstanceCount{} })
	register(IDProfilePathRequest, func() Message { return &ProfilePathRequest{} })
	register(IDProfilePathResponse, func() Message { return &ProfilePathResponse{} })
	register(IDNotifyUserCount, func() Message { return &NotifyUserCount{} })
	register(IDChannelOptionSync, func() Message { return &ChannelOptionSync{} })
	register(IDShutdownStatsSet, func() Message { return &ShutdownStatsSet{} })
	register(IDRoutePacket, func() Message { return &RoutePacket{} })
	register(IDSubPasswordCheckRequest, func() Message { return &SubPasswordCheckRequest{} })
	register(IDSubPasswordCheckResponse, func() Message { return &SubPasswordCheckResponse{} })
	register(IDSetLoginInstance, func() Message { return &SetLoginInstance{} })
	register(IDServerState, func() Message { return &ServerState{} })
	register(IDSystemMessage, func() Message { return &SystemMessage{} })
	register(IDSystemMessageForwarded, func() Message { return &SystemMessageForwarded{} })
}
