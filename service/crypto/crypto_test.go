package crypto

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashenvale/fabric/cipher"
	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/wire"
)

// TestHandshakeNegotiation drives the full client side of the key
// negotiation: connect, obtain the shortkey, reconstruct the session
// key, and verify the key-auth response decrypts to the three resource
// paths and the plaintext local address.
func TestHandshakeNegotiation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &Service{ResourcesDir: t.TempDir()}
	serverConn, clientConn := net.Pipe()
	go svc.handleConn(ctx, serverConn)

	client := framing.NewStream(clientConn, false, nil, 0, nil, 0)
	require.NoError(t, client.Send(&message.Connect{Service: wire.ServiceGlobalMgr, WorldID: 0xFD}))

	m, err := client.Recv()
	require.NoError(t, err)
	ack, ok := m.(*message.ConnectAck)
	require.True(t, ok)
	require.Equal(t, byte(0xf6), ack.Raw[0])
	require.Equal(t, byte(0xf6), ack.Raw[1])

	const splitPoint = 1
	require.NoError(t, client.Send(&message.EncryptKey2Request{XorKeySplitPoint: splitPoint ^ obfuscationConstant}))
	m, err = client.Recv()
	require.NoError(t, err)
	ekr, ok := m.(*message.EncryptKey2Response)
	require.True(t, ok)
	require.Equal(t, uint32(splitPoint), ekr.SplitPoint)

	// Unmask the 9-byte shortkey; the first 8 bytes must be ASCII
	// letters and the last the masked terminator.
	var masked [9]byte
	for i, b := range ekr.ShortKey {
		masked[i] = b ^ shortKeyXorByte
	}
	for _, c := range masked[:8] {
		isLetter := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		require.True(t, isLetter, "shortkey byte %q not a letter", c)
	}

	// Undo the server's left rotation to recover the session key.
	var shortKey [8]byte
	for i := range shortKey {
		shortKey[i] = masked[(i+8-splitPoint)%8]
	}
	var sessionKey [32]byte
	copy(sessionKey[:8], shortKey[:])
	enc, err := cipher.ExpandKey(sessionKey, cipher.Rounds16)
	require.NoError(t, err)
	dec := enc.DecryptSchedule()

	// Wrap the identity fields the way a real client does: pack into
	// blocks, encrypt under the session key, XOR-mask every byte.
	wrap := func(b [16]byte) [16]byte {
		out := cipher.EncryptBlock(enc, b)
		for i := range out {
			out[i] ^= shortKeyXorByte
		}
		return out
	}
	wrap4 := func(s string) [4][16]byte {
		var blocks [4][16]byte
		for i := range blocks {
			var b [16]byte
			if len(s) > i*16 {
				copy(b[:], s[i*16:])
			}
			blocks[i] = wrap(b)
		}
		return blocks
	}

	require.NoError(t, client.Send(&message.KeyAuthRequest{
		Netmask: wrap(asciiBlock("255.255.255.127")),
		Nation:  wrap(asciiBlock("BRA")),
		SrcHash: wrap4("f2b76e1ee8a92a8ce99a41c07926d3f3"),
		BinBuf:  wrap4("empty"),
		XorPort: 38180 ^ obfuscationConstant,
	}))
	m, err = client.Recv()
	require.NoError(t, err)
	kar, ok := m.(*message.KeyAuthResponse)
	require.True(t, ok)

	require.Equal(t, uint32(1), kar.Unk1)
	require.Equal(t, asciiBlock("127.0.0.1"), kar.IPLocal)
	require.Equal(t, uint32(38180), kar.Port)
	require.Equal(t, uint8(4), kar.ItemLen^shortKeyXorByte)
	require.Equal(t, uint8(2), kar.MobsLen^shortKeyXorByte)
	require.Equal(t, uint8(1), kar.WarpLen^shortKeyXorByte)
	require.Equal(t, uint32(0x03010101), kar.XorUnk2^obfuscationConstant)

	unwrap := func(blocks [16][16]byte) string {
		var out []byte
		for _, b := range blocks {
			for i := range b {
				b[i] ^= shortKeyXorByte
			}
			plain := cipher.DecryptBlock(dec, b)
			out = append(out, plain[:]...)
		}
		if i := bytes.IndexByte(out, 0); i >= 0 {
			out = out[:i]
		}
		return string(out)
	}
	require.Equal(t, "Data/Item.scp", unwrap(kar.EncItem))
	require.Equal(t, "Data/Mobs.scp", unwrap(kar.EncMobs))
	require.Equal(t, "Data/Warp.scp", unwrap(kar.EncWarp))
}

// TestESYMServesFileContents checks the esym blob lookup path relative
// to the resources dir.
func TestESYMServesFileContents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	esymDir := filepath.Join(dir, "resources", "esym")
	require.NoError(t, os.MkdirAll(esymDir, 0o755))
	blob := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	require.NoError(t, os.WriteFile(filepath.Join(esymDir, "f2b7.esym"), blob, 0o644))

	svc := &Service{ResourcesDir: dir}
	serverConn, clientConn := net.Pipe()
	go svc.handleConn(ctx, serverConn)

	client := framing.NewStream(clientConn, false, nil, 0, nil, 0)
	require.NoError(t, client.Send(&message.Connect{Service: wire.ServiceGlobalMgr, WorldID: 0xFD}))
	_, err := client.Recv()
	require.NoError(t, err)

	require.NoError(t, client.Send(&message.ESYMRequest{SrcHash: "f2b7"}))
	m, err := client.Recv()
	require.NoError(t, err)
	resp, ok := m.(*message.ESYMResponse)
	require.True(t, ok)
	require.Equal(t, uint32(len(blob)), resp.FileSize)
	require.Equal(t, blob, resp.Contents)
}

func TestRotateLeft(t *testing.T) {
	in := [8]byte{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h'}
	out := rotateLeft(in, 2)
	require.Equal(t, [8]byte{'c', 'd', 'e', 'f', 'g', 'h', 'a', 'b'}, out)
}

func TestRotateLeftZero(t *testing.T) {
	in := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.Equal(t, in, rotateLeft(in, 0))
	require.Equal(t, in, rotateLeft(in, 8))
}

func TestAsciiBlockPadsWithZeros(t *testing.T) {
	b := asciiBlock("Data/Item.scp")
	require.Equal(t, byte('D'), b[0])
	require.Equal(t, byte(0), b[13])
	require.Equal(t, byte(0), b[15])
}

func TestRandomASCIILetterIsLetter(t *testing.T) {
	for i := 0; i < 64; i++ {
		c := randomASCIILetter()
		isLetter := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		require.True(t, isLetter, "got %q", c)
	}
}

func TestIsASCIIPrintable(t *testing.T) {
	require.True(t, isASCIIPrintable([]byte("127.0.0.1")))
	require.False(t, isASCIIPrintable([]byte{0xff, 0x01}))
}
