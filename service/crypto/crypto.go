// Package crypto implements the Crypto service's session-key negotiation
// handshake: EncryptKey2 establishes a shortkey, KeyAuth
// exchanges resource paths wrapped under it, and ESYM serves opaque
// resource blobs by filename.
package crypto

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"unicode"

	"github.com/ashenvale/fabric/cipher"
	"github.com/ashenvale/fabric/csrand"
	"github.com/ashenvale/fabric/fabric"
	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/logging"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/metrics"
	"github.com/ashenvale/fabric/wire"
)

// obfuscationConstant de-xors EncryptKey2Request.XorKeySplitPoint,
// KeyAuthRequest.XorPort, and KeyAuthResponse.XorUnk2.
const obfuscationConstant = 0x1F398AB3

// shortKeyXorByte masks the wire-transmitted shortkey and every
// resource-path ciphertext block.
const shortKeyXorByte = 0xB3

// sessionAuthRounds is the round count the session key is always
// expanded with during key auth.
const sessionAuthRounds = cipher.Rounds16

// Service runs the Crypto handshake listener.
type Service struct {
	ResourcesDir string
}

// ListenAndServe accepts connections on addr until ctx is cancelled.
func (s *Service) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log := logging.Peer("crypto", addr)
	log.Info("listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		metrics.ConnectionsAccepted.WithLabelValues("crypto").Inc()
		go s.handleConn(ctx, conn)
	}
}

// session holds the per-connection handshake state that must survive
// across the three request/response steps: the saved split point and
// the derived encrypt/decrypt schedules.
type session struct {
	stream     *framing.Stream
	log        interface {
		Infof(string, ...interface{})
		Errorf(string, ...interface{})
		Warnf(string, ...interface{})
	}
	resources  string
	splitPoint uint32
	sessionKey [32]byte
	encSched   *cipher.Schedule
	decSched   *cipher.Schedule
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := logging.Peer("crypto", conn.RemoteAddr().String())

	stream := framing.NewStream(conn, false, nil, 0, nil, 0)

	m, err := stream.Recv()
	if err != nil {
		log.Errorf("recv first frame: %v", err)
		return
	}
	connect, ok := m.(*message.Connect)
	if !ok || connect.Service != wire.ServiceGlobalMgr || connect.WorldID != 0xFD {
		log.Errorf("unexpected first frame: %T", m)
		return
	}

	if err := stream.Send(message.NewCryptoConnectAck()); err != nil {
		log.Errorf("send connect ack: %v", err)
		return
	}

	sess := &session{stream: stream, log: log, resources: s.ResourcesDir}
	for {
		m, err := stream.Recv()
		if err != nil {
			log.Infof("connection closed: %v", err)
			return
		}
		if err := sess.dispatch(m); err != nil {
			log.Errorf("handshake error: %v", err)
			return
		}
	}
}

func (s *session) dispatch(m message.Message) error {
	switch req := m.(type) {
	case *message.EncryptKey2Request:
		return s.handleEncryptKey2(req)
	case *message.KeyAuthRequest:
		return s.handleKeyAuth(req)
	case *message.ESYMRequest:
		return s.handleESYM(req)
	default:
		s.log.Warnf("ignoring message id=0x%03x while in request loop", m.ID())
		return nil
	}
}

// handleEncryptKey2 negotiates the random session shortkey.
func (s *session) handleEncryptKey2(req *message.EncryptKey2Request) error {
	s.splitPoint = req.XorKeySplitPoint ^ obfuscationConstant

	var shortKey [8]byte
	for i := range shortKey {
		shortKey[i] = randomASCIILetter()
	}

	var key [32]byte
	copy(key[:8], shortKey[:])
	s.sessionKey = key

	rotated := rotateLeft(shortKey, int(s.splitPoint%8))
	var wire9 [9]byte
	copy(wire9[:8], rotated[:])
	wire9[8] = 0
	for i := range wire9 {
		wire9[i] ^= shortKeyXorByte
	}

	return s.stream.Send(&message.EncryptKey2Response{
		SplitPoint: s.splitPoint,
		ShortKey:   wire9,
	})
}

// handleKeyAuth answers the key-auth round: it proves the session key
// works by returning the cipher-wrapped resource paths.
func (s *session) handleKeyAuth(req *message.KeyAuthRequest) error {
	port := req.XorPort ^ obfuscationConstant
	if req.Unk1 != 0 || req.Unk2 != 0 {
		return &fabric.ProtocolError{Reason: "KeyAuthRequest: non-zero reserved fields"}
	}

	encSched, err := cipher.ExpandKey(s.sessionKey, sessionAuthRounds)
	if err != nil {
		return err
	}
	s.encSched = encSched
	s.decSched = encSched.DecryptSchedule()

	// Ciphertext fields are unwrapped only for the log line; their
	// contents never affect the response.
	netmask := s.unwrapString([][16]byte{req.Netmask})
	nation := s.unwrapString([][16]byte{req.Nation})
	srchash := s.unwrapString(req.SrcHash[:])
	binbuf := s.unwrapString(req.BinBuf[:])
	s.log.Infof("key auth: port=%d netmask=%q nation=%q srchash=%q binbuf=%q",
		port, netmask, nation, srchash, binbuf)

	resp := &message.KeyAuthResponse{
		Unk1:    0x1,
		XorUnk2: 0x03010101 ^ obfuscationConstant,
		IPLocal: asciiBlock("127.0.0.1"),
		ItemLen: 4 ^ shortKeyXorByte,
		EncItem: s.encryptPathBlocks("Data/Item.scp"),
		MobsLen: 2 ^ shortKeyXorByte,
		EncMobs: s.encryptPathBlocks("Data/Mobs.scp"),
		WarpLen: 1 ^ shortKeyXorByte,
		EncWarp: s.encryptPathBlocks("Data/Warp.scp"),
		Port:    38180,
	}
	return s.stream.Send(resp)
}

// unwrapString reverses the wire wrapping of a run of blocks (XOR mask,
// then session-key decrypt), returning the NUL-trimmed concatenation.
// Non-printable results are logged and replaced, never fatal.
func (s *session) unwrapString(blocks [][16]byte) string {
	var out []byte
	for _, b := range blocks {
		for i := range b {
			b[i] ^= shortKeyXorByte
		}
		plain := cipher.DecryptBlock(s.decSched, b)
		out = append(out, plain[:]...)
	}
	if i := bytes.IndexByte(out, 0); i >= 0 {
		out = out[:i]
	}
	if !isASCIIPrintable(out) {
		s.log.Warnf("key auth: field did not decrypt to printable ASCII")
		return ""
	}
	return string(out)
}

// encryptPathBlocks packs path into 16 blocks (path in the leading
// block, the rest zero), encrypting and XOR-masking each.
func (s *session) encryptPathBlocks(path string) [16][16]byte {
	var out [16][16]byte
	out[0] = asciiBlock(path)
	for i := range out {
		enc := cipher.EncryptBlock(s.encSched, out[i])
		for j := range enc {
			enc[j] ^= shortKeyXorByte
		}
		out[i] = enc
	}
	return out
}

// handleESYM serves an esym resource blob by its srchash.
func (s *session) handleESYM(req *message.ESYMRequest) error {
	path := filepath.Join(s.resources, "resources", "esym", req.SrcHash+".esym")
	contents, err := os.ReadFile(path)
	if err != nil {
		s.log.Errorf("esym read %s: %v", path, err)
		return err
	}
	return s.stream.Send(&message.ESYMResponse{
		FileSize: uint32(len(contents)),
		Contents: contents,
	})
}

// randomASCIILetter draws a single letter, mixed case with p=0.5.
func randomASCIILetter() byte {
	n := csrand.IntRange(0, 25)
	if csrand.Float64() < 0.5 {
		return byte('A' + n)
	}
	return byte('a' + n)
}

// rotateLeft rotates b left by n positions (mod len(b)).
func rotateLeft(b [8]byte, n int) [8]byte {
	n %= len(b)
	var out [8]byte
	for i := range b {
		out[i] = b[(i+n)%len(b)]
	}
	return out
}

// asciiBlock packs s as a NUL-terminated ASCII string in a 16-byte block,
// panicking if s (plus terminator) does not fit.
func asciiBlock(s string) [16]byte {
	if len(s) >= 16 {
		panic(fmt.Sprintf("crypto: %q does not fit a 16-byte block", s))
	}
	var out [16]byte
	copy(out[:], s)
	return out
}

// isASCIIPrintable reports whether b holds only printable ASCII, used to
// validate decrypted fields for logging only.
func isASCIIPrintable(b []byte) bool {
	for _, c := range b {
		if c > unicode.MaxASCII || !unicode.IsPrint(rune(c)) {
			return false
		}
	}
	return true
}
