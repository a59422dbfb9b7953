package message

import "github.com/ashenvale/fabric/wire"

// C2SConnect is the user client's first frame to Login.
type C2SConnect struct {
	AuthKey uint32
}

func (m *C2SConnect) ID() uint16          { return IDC2SConnect }
func (m *C2SConnect) encode(w *wire.Writer) { w.U32(m.AuthKey) }
func (m *C2SConnect) decode(r *wire.Reader) error {
	v, err := r.U32()
	m.AuthKey = v
	return err
}

// S2CConnect replies with the obfuscation seed/index the client must
// synchronize its encoder against.
type S2CConnect struct {
	XorSeed2  uint32
	AuthKey   uint16
	UserIdx   uint32
	XorKeyIdx uint8
}

func (m *S2CConnect) ID() uint16 { return IDS2CConnect }
func (m *S2CConnect) encode(w *wire.Writer) {
	w.U32(m.XorSeed2)
	w.U16(m.AuthKey)
	w.U32(m.UserIdx)
	w.U8(m.XorKeyIdx)
}
func (m *S2CConnect) decode(r *wire.Reader) error {
	var err error
	if m.XorSeed2, err = r.U32(); err != nil {
		return err
	}
	if m.AuthKey, err = r.U16(); err != nil {
		return err
	}
	if m.UserIdx, err = r.U32(); err != nil {
		return err
	}
	m.XorKeyIdx, err = r.U8()
	return err
}

// C2SCheckVersion carries the client build number;
// the service rejects anything but 374.
type C2SCheckVersion struct {
	ClientVersion uint32
}

func (m *C2SCheckVersion) ID() uint16          { return IDC2SCheckVersion }
func (m *C2SCheckVersion) encode(w *wire.Writer) { w.U32(m.ClientVersion) }
func (m *C2SCheckVersion) decode(r *wire.Reader) error {
	v, err := r.U32()
	m.ClientVersion = v
	return err
}

// S2CCheckVersion acknowledges a passed version gate, echoing the
// client's build number alongside the server magic key.
type S2CCheckVersion struct {
	ServerVersion  uint32
	ServerMagicKey uint32
	Unk2           uint32
	Unk3           uint32
}

func (m *S2CCheckVersion) ID() uint16 { return IDS2CCheckVersion }
func (m *S2CCheckVersion) encode(w *wire.Writer) {
	w.U32(m.ServerVersion)
	w.U32(m.ServerMagicKey)
	w.U32(m.Unk2)
	w.U32(m.Unk3)
}
func (m *S2CCheckVersion) decode(r *wire.Reader) error {
	var err error
	if m.ServerVersion, err = r.U32(); err != nil {
		return err
	}
	if m.ServerMagicKey, err = r.U32(); err != nil {
		return err
	}
	if m.Unk2, err = r.U32(); err != nil {
		return err
	}
	m.Unk3, err = r.U32()
	return err
}

// C2SEnvironment carries the client's chosen username.
type C2SEnvironment struct {
	Username string
}

func (m *C2SEnvironment) ID() uint16            { return IDC2SEnvironment }
func (m *C2SEnvironment) encode(w *wire.Writer) { w.NullString(m.Username) }
func (m *C2SEnvironment) decode(r *wire.Reader) error {
	v, err := r.NullString()
	m.Username = v
	return err
}

// C2SRequestRsaPubKey asks for the service's RSA public key; it
// carries no fields.
type C2SRequestRsaPubKey struct{}

func (m *C2SRequestRsaPubKey) ID() uint16              { return IDC2SRequestRsaPubKey }
func (m *C2SRequestRsaPubKey) encode(w *wire.Writer)   {}
func (m *C2SRequestRsaPubKey) decode(r *wire.Reader) error { return nil }

// S2CRsaPubKey carries the DER-encoded RSA public key.
type S2CRsaPubKey struct {
	DER []byte
}

func (m *S2CRsaPubKey) ID() uint16 { return IDS2CRsaPubKey }
func (m *S2CRsaPubKey) encode(w *wire.Writer) {
	w.Bounded16(m.DER)
}
func (m *S2CRsaPubKey) decode(r *wire.Reader) error {
	v, err := r.Bounded16()
	m.DER = append([]byte(nil), v...)
	return err
}

// C2SAuthAccount carries the RSA-OAEP-SHA1-encrypted username+password
// blob.
type C2SAuthAccount struct {
	EncodedPass []byte
}

func (m *C2SAuthAccount) ID() uint16 { return IDC2SAuthAccount }
func (m *C2SAuthAccount) encode(w *wire.Writer) {
	w.Bounded16(m.EncodedPass)
}
func (m *C2SAuthAccount) decode(r *wire.Reader) error {
	v, err := r.Bounded16()
	m.EncodedPass = append([]byte(nil), v...)
	return err
}

// RequestAuthAccount is Login's forward to the DB Agent of a decrypted
// username/password pair.
type RequestAuthAccount struct {
	Username string
	Password string
}

func (m *RequestAuthAccount) ID() uint16 { return IDRequestAuthAccount }
func (m *RequestAuthAccount) encode(w *wire.Writer) {
	w.NullString(m.Username)
	w.NullString(m.Password)
}
func (m *RequestAuthAccount) decode(r *wire.Reader) error {
	var err error
	if m.Username, err = r.NullString(); err != nil {
		return err
	}
	m.Password, err = r.NullString()
	return err
}

// ResponseAuthAccount is the DB Agent's verdict on a RequestAuthAccount.
type ResponseAuthAccount struct {
	Success uint8
	UserIdx uint32
}

func (m *ResponseAuthAccount) ID() uint16 { return IDResponseAuthAccount }
func (m *ResponseAuthAccount) encode(w *wire.Writer) {
	w.U8(m.Success)
	w.U32(m.UserIdx)
}
func (m *ResponseAuthAccount) decode(r *wire.Reader) error {
	var err error
	if m.Success, err = r.U8(); err != nil {
		return err
	}
	m.UserIdx, err = r.U32()
	return err
}

// VerifyLinks arrives at Login on its GMS connection and is answered on
// that connection with a VerifyLinksResult echoing Origin; Login does not
// forward it anywhere.
type VerifyLinks struct {
	Origin []byte
}

func (m *VerifyLinks) ID() uint16            { return IDVerifyLinks }
func (m *VerifyLinks) encode(w *wire.Writer) { w.Raw(m.Origin) }
func (m *VerifyLinks) decode(r *wire.Reader) error {
	m.Origin = append([]byte(nil), r.Unbounded()...)
	return nil
}

// VerifyLinksResult echoes the caller's origin fields back.
type VerifyLinksResult struct {
	Origin []byte
}

func (m *VerifyLinksResult) ID() uint16            { return IDVerifyLinksResult }
func (m *VerifyLinksResult) encode(w *wire.Writer) { w.Raw(m.Origin) }
func (m *VerifyLinksResult) decode(r *wire.Reader) error {
	m.Origin = append([]byte(nil), r.Unbounded()...)
	return nil
}

// MultipleLoginDisconnectResponse is a no-op notification on the
// Login↔GMS peer.
type MultipleLoginDisconnectResponse struct {
	Raw []byte
}

func (m *MultipleLoginDisconnectResponse) ID() uint16            { return IDMultipleLoginDisconnectResponse }
func (m *MultipleLoginDisconnectResponse) encode(w *wire.Writer) { w.Raw(m.Raw) }
func (m *MultipleLoginDisconnectResponse) decode(r *wire.Reader) error {
	m.Raw = append([]byte(nil), r.Unbounded()...)
	return nil
}

// ChangeServerState is a no-op notification on the Login↔GMS peer.
type ChangeServerState struct {
	Raw []byte
}

func (m *ChangeServerState) ID() uint16            { return IDChangeServerState }
func (m *ChangeServerState) encode(w *wire.Writer) { w.Raw(m.Raw) }
func (m *ChangeServerState) decode(r *wire.Reader) error {
	m.Raw = append([]byte(nil), r.Unbounded()...)
	return nil
}

// RequestClientVersion is sent by Login to the DB Agent right after
// the ack.
type RequestClientVersion struct{}

func (m *RequestClientVersion) ID() uint16              { return IDRequestClientVersion }
func (m *RequestClientVersion) encode(w *wire.Writer)   {}
func (m *RequestClientVersion) decode(r *wire.Reader) error { return nil }

// ClientVersionNotify is the DB Agent's reply to RequestClientVersion.
type ClientVersionNotify struct {
	ClientVersion uint32
}

func (m *ClientVersionNotify) ID() uint16          { return IDClientVersionNotify }
func (m *ClientVersionNotify) encode(w *wire.Writer) { w.U32(m.ClientVersion) }
func (m *ClientVersionNotify) decode(r *wire.Reader) error {
	v, err := r.U32()
	m.ClientVersion = v
	return err
}

func init() {
	register(IDC2SConnect, func() Message { return &C2SConnect{} })
	register(IDS2CConnect, func() Message { return &S2CConnect{} })
	register(IDC2SCheckVersion, func() Message { return &C2SCheckVersion{} })
	register(IDS2CCheckVersion, func() Message { return &S2CCheckVersion{} })
	register(IDC2SEnvironment, func() Message { return &C2SEnvironment{} })
	register(IDC2SRequestRsaPubKey, func() Message { return &C2SRequestRsaPubKey{} })
	register(IDS2CRsaPubKey, func() Message { return &S2CRsaPubKey{} })
	register(IDC2SAuthAccount, func() Message { return &C2SAuthAccount{} })
	register(IDRequestAuthAccount, func() Message { return &RequestAuthAccount{} })
	register(IDResponseAuthAccount, func() Message { return &ResponseAuthAccount{} })
	register(IDVerifyLinks, func() Message { return &VerifyLinks{} })
	register(IDVerifyLinksResult, func() Message { return &VerifyLinksResult{} })
	register(IDMultipleLoginDisconnectResponse, func() Message { return &MultipleLoginDisconnectResponse{} })
	register(IDChangeServerState, func() Message { return &ChangeServerState{} })
	register(IDRequestClientVersion, func() Message { return &RequestClientVersion{} })
	register(IDClientVersionNotify, func() Message { return &ClientVersionNotify{} })
}
