package message

import "github.com/ashenvale/fabric/wire"

// EncryptKey2Request carries the xor-obfuscated split point for the
// session shortkey.
type EncryptKey2Request struct {
	XorKeySplitPoint uint32
}

func (m *EncryptKey2Request) ID() uint16 { return IDEncryptKey2Request }
func (m *EncryptKey2Request) encode(w *wire.Writer) {
	w.U32(m.XorKeySplitPoint)
}
func (m *EncryptKey2Request) decode(r *wire.Reader) error {
	v, err := r.U32()
	m.XorKeySplitPoint = v
	return err
}

// EncryptKey2Response replies with the split point and the 9-byte
// XOR-masked shortkey.
type EncryptKey2Response struct {
	SplitPoint uint32
	ShortKey   [9]byte
}

func (m *EncryptKey2Response) ID() uint16 { return IDEncryptKey2Response }
func (m *EncryptKey2Response) encode(w *wire.Writer) {
	w.U32(m.SplitPoint)
	w.Raw(m.ShortKey[:])
}
func (m *EncryptKey2Response) decode(r *wire.Reader) error {
	var err error
	if m.SplitPoint, err = r.U32(); err != nil {
		return err
	}
	raw, err := r.Raw(9)
	if err != nil {
		return err
	}
	copy(m.ShortKey[:], raw)
	return nil
}

// KeyAuthRequest carries the client's identity fields, each a 16-byte
// cipher block (or run of blocks) encrypted under the session key and
// XOR-masked on the wire. Unk1/Unk2 are always zero.
type KeyAuthRequest struct {
	Unk1    uint32
	Unk2    uint32
	Netmask [16]byte
	Nation  [16]byte
	SrcHash [4][16]byte
	BinBuf  [4][16]byte
	XorPort uint32
}

func (m *KeyAuthRequest) ID() uint16 { return IDKeyAuthRequest }
func (m *KeyAuthRequest) encode(w *wire.Writer) {
	w.U32(m.Unk1)
	w.U32(m.Unk2)
	w.Block(m.Netmask)
	w.Block(m.Nation)
	for _, b := range m.SrcHash {
		w.Block(b)
	}
	for _, b := range m.BinBuf {
		w.Block(b)
	}
	w.U32(m.XorPort)
}
func (m *KeyAuthRequest) decode(r *wire.Reader) error {
	var err error
	if m.Unk1, err = r.U32(); err != nil {
		return err
	}
	if m.Unk2, err = r.U32(); err != nil {
		return err
	}
	if m.Netmask, err = r.Block(); err != nil {
		return err
	}
	if m.Nation, err = r.Block(); err != nil {
		return err
	}
	for i := range m.SrcHash {
		if m.SrcHash[i], err = r.Block(); err != nil {
			return err
		}
	}
	for i := range m.BinBuf {
		if m.BinBuf[i], err = r.Block(); err != nil {
			return err
		}
	}
	m.XorPort, err = r.U32()
	return err
}

// KeyAuthResponse carries the cipher-wrapped resource file paths (16
// blocks each, path in the leading block) plus the plaintext local ip
// block. The single-byte length fields ride XOR-masked, like the blocks.
type KeyAuthResponse struct {
	Unk1    uint32
	XorUnk2 uint32
	IPLocal [16]byte
	ItemLen uint8
	EncItem [16][16]byte
	MobsLen uint8
	EncMobs [16][16]byte
	WarpLen uint8
	EncWarp [16][16]byte
	Port    uint32
}

func (m *KeyAuthResponse) ID() uint16 { return IDKeyAuthResponse }
func (m *KeyAuthResponse) encode(w *wire.Writer) {
	w.U32(m.Unk1)
	w.U32(m.XorUnk2)
	w.Block(m.IPLocal)
	w.U8(m.ItemLen)
	for _, b := range m.EncItem {
		w.Block(b)
	}
	w.U8(m.MobsLen)
	for _, b := range m.EncMobs {
		w.Block(b)
	}
	w.U8(m.WarpLen)
	for _, b := range m.EncWarp {
		w.Block(b)
	}
	w.U32(m.Port)
}
func (m *KeyAuthResponse) decode(r *wire.Reader) error {
	var err error
	if m.Unk1, err = r.U32(); err != nil {
		return err
	}
	if m.XorUnk2, err = r.U32(); err != nil {
		return err
	}
	if m.IPLocal, err = r.Block(); err != nil {
		return err
	}
	if m.ItemLen, err = r.U8(); err != nil {
		return err
	}
	for i := range m.EncItem {
		if m.EncItem[i], err = r.Block(); err != nil {
			return err
		}
	}
	if m.MobsLen, err = r.U8(); err != nil {
		return err
	}
	for i := range m.EncMobs {
		if m.EncMobs[i], err = r.Block(); err != nil {
			return err
		}
	}
	if m.WarpLen, err = r.U8(); err != nil {
		return err
	}
	for i := range m.EncWarp {
		if m.EncWarp[i], err = r.Block(); err != nil {
			return err
		}
	}
	m.Port, err = r.U32()
	return err
}

// ESYMRequest asks the crypto service to serve a resource blob identified
// by its srchash.
type ESYMRequest struct {
	Nation  uint32
	SrcHash string
}

func (m *ESYMRequest) ID() uint16 { return IDESYMRequest }
func (m *ESYMRequest) encode(w *wire.Writer) {
	w.U32(m.Nation)
	w.NullString(m.SrcHash)
}
func (m *ESYMRequest) decode(r *wire.Reader) error {
	var err error
	if m.Nation, err = r.U32(); err != nil {
		return err
	}
	m.SrcHash, err = r.NullString()
	return err
}

// ESYMResponse carries the file size and raw contents of the resolved
// resource blob.
type ESYMResponse struct {
	FileSize uint32
	Contents []byte
}

func (m *ESYMResponse) ID() uint16 { return IDESYMResponse }
func (m *ESYMResponse) encode(w *wire.Writer) {
	w.U32(m.FileSize)
	w.Raw(m.Contents)
}
func (m *ESYMResponse) decode(r *wire.Reader) error {
	var err error
	if m.FileSize, err = r.U32(); err != nil {
		return err
	}
	m.Contents = append([]byte(nil), r.Unbounded()...)
	return nil
}

func init() {
	register(IDEncryptKey2Request, func() Message { return &EncryptKey2Request{} })
	register(IDEncryptKey2Response, func() Message { return &EncryptKey2Response{} })
	register(IDKeyAuthRequest, func() Message { return &KeyAuthRequest{} })
	register(IDKeyAuthResponse, func() Message { return &KeyAuthResponse{} })
	register(IDESYMRequest, func() Message { return &ESYMRequest{} })
	register(IDESYMResponse, func() Message { return &ESYMResponse{} })
}
