// Package login implements the Login service: the user
// client's obfuscated handshake, the Login↔GMS peer relationship, and
// the Login↔DB peer relationship.
package login

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ashenvale/fabric/csrand"
	"github.com/ashenvale/fabric/fabric"
	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/logging"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/metrics"
	"github.com/ashenvale/fabric/wire"
)

// expectedClientVersion is the only accepted client build.
const expectedClientVersion = 374

// serverMagicKey is appended to the version echo so the client can tell
// it reached a live login server.
const serverMagicKey = 0x0059077c

// Service runs the Login listener plus its GMS and DB peer connections.
type Service struct {
	RSAKeyPath string
	GMSAddr    string
	DBAddr     string

	key *rsa.PrivateKey

	dbReg *fabric.Registry

	mu          sync.Mutex
	worldGroups []message.ChannelGroup
}

// ListenAndServe loads the RSA key, dials GMS and DB Agent if configured,
// and accepts user client connections on addr until ctx is cancelled.
func (s *Service) ListenAndServe(ctx context.Context, addr string) error {
	key, err := loadRSAKey(s.RSAKeyPath)
	if err != nil {
		return err
	}
	s.key = key
	s.dbReg = fabric.NewRegistry(1)

	if s.DBAddr != "" {
		go s.dialDB(ctx)
	}
	if s.GMSAddr != "" {
		go s.dialGMS(ctx)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log := logging.Peer("login", addr)
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
		metrics.ConnectionsAccepted.WithLabelValues("login").Inc()
		go s.handleUser(ctx, conn)
	}
}

func loadRSAKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, &fabric.ProtocolError{Reason: "login: no PEM block in rsa key file"}
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// handleUser runs the seven-step user handshake, then closes the
// connection — Login's client-facing protocol past login has no
// further steady-state loop documented.
func (s *Service) handleUser(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := logging.Peer("login", conn.RemoteAddr().String())
	// The client-facing stream always carries the checksummed header
	// flavor; inter-service streams use the short plaintext one.
	stream := framing.NewStream(conn, true, nil, 0, nil, 0)

	// Step 1: the very first frame arrives before any seed has been
	// negotiated, so it is read unobfuscated.
	m, err := stream.Recv()
	if err != nil {
		log.Errorf("recv C2SConnect: %v", err)
		return
	}
	c2sConnect, ok := m.(*message.C2SConnect)
	if !ok {
		log.Errorf("expected C2SConnect, got %T", m)
		return
	}
	log.Debugf("auth_key=%d", c2sConnect.AuthKey)

	// Step 2: pick a fresh seed/index, tell the client what it is, then
	// switch the stream onto it for everything after that reply.
	seed := csrand.CsRand.Uint32()
	startIdx := uint8(csrand.IntRange(0, 255))
	if err := stream.Send(&message.S2CConnect{XorSeed2: seed, AuthKey: 0x4663, UserIdx: 0, XorKeyIdx: startIdx}); err != nil {
		log.Errorf("send S2CConnect: %v", err)
		return
	}
	stream.Reobfuscate(
		framing.NewObfuscationTable(seed), startIdx,
		framing.NewObfuscationTable(seed), startIdx,
	)

	// Step 3: version gate. A passing client gets its version echoed
	// back with the server magic key appended.
	m, err = stream.Recv()
	if err != nil {
		log.Errorf("recv C2SCheckVersion: %v", err)
		return
	}
	checkVersion, ok := m.(*message.C2SCheckVersion)
	if !ok {
		log.Errorf("expected C2SCheckVersion, got %T", m)
		return
	}
	if checkVersion.ClientVersion != expectedClientVersion {
		log.Warnf("rejecting client version %d", checkVersion.ClientVersion)
		return
	}
	if err := stream.Send(&message.S2CCheckVersion{
		ServerVersion:  checkVersion.ClientVersion,
		ServerMagicKey: serverMagicKey,
	}); err != nil {
		log.Errorf("send S2CCheckVersion: %v", err)
		return
	}

	// Step 4.
	m, err = stream.Recv()
	if err != nil {
		log.Errorf("recv C2SEnvironment: %v", err)
		return
	}
	env, ok := m.(*message.C2SEnvironment)
	if !ok {
		log.Errorf("expected C2SEnvironment, got %T", m)
		return
	}
	username := env.Username
	log = logging.Peer("login", conn.RemoteAddr().String())
	log.Debugf("username=%s", username)

	// Step 5.
	m, err = stream.Recv()
	if err != nil {
		log.Errorf("recv C2SRequestRsaPubKey: %v", err)
		return
	}
	if _, ok := m.(*message.C2SRequestRsaPubKey); !ok {
		log.Errorf("expected C2SRequestRsaPubKey, got %T", m)
		return
	}
	der := x509.MarshalPKCS1PublicKey(&s.key.PublicKey)
	if err := stream.Send(&message.S2CRsaPubKey{DER: der}); err != nil {
		log.Errorf("send S2CRsaPubKey: %v", err)
		return
	}

	// Step 6.
	m, err = stream.Recv()
	if err != nil {
		log.Errorf("recv C2SAuthAccount: %v", err)
		return
	}
	authAccount, ok := m.(*message.C2SAuthAccount)
	if !ok {
		log.Errorf("expected C2SAuthAccount, got %T", m)
		return
	}
	plaintext, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, s.key, authAccount.EncodedPass, nil)
	if err != nil {
		log.Errorf("decrypt C2SAuthAccount: %v", err)
		return
	}
	if len(plaintext) < 33 {
		log.Errorf("decrypted auth payload too short: %d bytes", len(plaintext))
		return
	}
	decryptedUser := trimZero(plaintext[:33])
	password := string(plaintext[33:])
	if decryptedUser != username {
		log.Errorf("username mismatch: saved=%q decrypted=%q", username, decryptedUser)
		return
	}

	// Step 7.
	resp, err := s.requestAuthAccount(ctx, username, password)
	if err != nil {
		log.Errorf("RequestAuthAccount: %v", err)
		return
	}
	if err := stream.Send(resp); err != nil {
		log.Errorf("send auth result: %v", err)
		return
	}
}

func trimZero(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// requestAuthAccount borrows the single Login↔DB handle and issues the
// synchronous RequestAuthAccount/ResponseAuthAccount round trip.
// BorrowAs's channel-queued wait already serializes
// concurrent callers against the one shared connection; there is no
// separate owned resource for this call to lend out while it waits, so
// it borrows directly rather than wrapping itself in lend_self_until.
func (s *Service) requestAuthAccount(ctx context.Context, username, password string) (*message.ResponseAuthAccount, error) {
	handles := s.dbReg.Snapshot()
	if len(handles) == 0 {
		return nil, &fabric.ProtocolError{Reason: "login: no db connection registered"}
	}
	guard, err := fabric.BorrowAs[*dbConn](ctx, handles[0])
	if err != nil {
		return nil, err
	}
	defer guard.Release()
	return guard.State().requestAuth(username, password)
}

// dbConn is the registered owner of Login's single outbound DB Agent
// connection.
type dbConn struct {
	handle *fabric.Handle
	stream *framing.Stream
}

func (d *dbConn) requestAuth(username, password string) (*message.ResponseAuthAccount, error) {
	if err := d.stream.Send(&message.RequestAuthAccount{Username: username, Password: password}); err != nil {
		return nil, err
	}
	m, err := d.stream.Recv()
	if err != nil {
		return nil, err
	}
	resp, ok := m.(*message.ResponseAuthAccount)
	if !ok {
		return nil, &fabric.ProtocolError{Reason: "login: expected ResponseAuthAccount"}
	}
	return resp, nil
}

// dialDB holds the single Login↔DB Agent connection open for the
// service's lifetime: after the version handshake, its only job is to
// grant borrow requests from in-flight user handshakes.
func (s *Service) dialDB(ctx context.Context) {
	log := logging.Peer("login-db", s.DBAddr)
	conn, err := framing.DialRetry(ctx, s.DBAddr)
	if err != nil {
		log.Errorf("dial db: %v", err)
		return
	}
	defer conn.Close()
	stream := framing.NewStream(conn, false, nil, 0, nil, 0)

	if err := stream.Send(&message.Connect{Service: wire.ServiceLogin}); err != nil {
		log.Errorf("send connect: %v", err)
		return
	}
	if _, err := stream.Recv(); err != nil {
		log.Errorf("recv ack: %v", err)
		return
	}
	if err := stream.Send(&message.RequestClientVersion{}); err != nil {
		log.Errorf("send RequestClientVersion: %v", err)
		return
	}
	m, err := stream.Recv()
	if err != nil {
		log.Errorf("recv ClientVersionNotify: %v", err)
		return
	}
	if notify, ok := m.(*message.ClientVersionNotify); ok {
		log.Infof("db reports client version %d", notify.ClientVersion)
	}

	dc := &dbConn{stream: stream}
	handle, err := s.dbReg.Add(fabric.TagGlobalDb, dc)
	if err != nil {
		log.Errorf("register db conn: %v", err)
		return
	}
	dc.handle = handle
	defer s.dbReg.Retire(handle)

	log.Info("serving db borrow requests")
	for {
		select {
		case req := <-handle.Requests():
			handle.Grant(req)
		case <-ctx.Done():
			return
		}
	}
}

// dialGMS holds the Login↔GMS connection open, sending a NotifyUserCount
// heartbeat every 10 seconds and reacting to ServerState/
// MultipleLoginDisconnectResponse/ChangeServerState/VerifyLinks.
func (s *Service) dialGMS(ctx context.Context) {
	log := logging.Peer("login-gms", s.GMSAddr)
	conn, err := framing.DialRetry(ctx, s.GMSAddr)
	if err != nil {
		log.Errorf("dial gms: %v", err)
		return
	}
	defer conn.Close()
	stream := framing.NewStream(conn, false, nil, 0, nil, 0)

	if err := stream.Send(&message.Connect{Service: wire.ServiceLogin}); err != nil {
		log.Errorf("send connect: %v", err)
		return
	}
	if _, err := stream.Recv(); err != nil {
		log.Errorf("recv ack: %v", err)
		return
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	pending := make(chan struct {
		msg message.Message
		err error
	}, 1)
	recv := func() {
		go func() {
			m, err := stream.Recv()
			pending <- struct {
				msg message.Message
				err error
			}{m, err}
		}()
	}
	recv()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := stream.Send(&message.NotifyUserCount{}); err != nil {
				log.Errorf("send NotifyUserCount: %v", err)
				return
			}
		case res := <-pending:
			if res.err != nil {
				log.Infof("gms connection closed: %v", res.err)
				return
			}
			switch m := res.msg.(type) {
			case *message.ServerState:
				s.mu.Lock()
				s.worldGroups = m.Groups
				s.mu.Unlock()
			case *message.MultipleLoginDisconnectResponse:
			case *message.ChangeServerState:
			case *message.VerifyLinks:
				if err := stream.Send(&message.VerifyLinksResult{Origin: m.Origin}); err != nil {
					log.Errorf("send VerifyLinksResult: %v", err)
					return
				}
			default:
				log.Warnf("unexpected gms message %T", m)
			}
			recv()
		}
	}
}
