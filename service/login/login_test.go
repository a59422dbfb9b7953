package login

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashenvale/fabric/fabric"
	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/message"
)

func writeTestKey(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	path := filepath.Join(t.TempDir(), "login_rsa.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path, key
}

func TestLoadRSAKey(t *testing.T) {
	path, want := writeTestKey(t)
	got, err := loadRSAKey(path)
	require.NoError(t, err)
	require.Equal(t, want.D, got.D)
}

func TestTrimZero(t *testing.T) {
	require.Equal(t, "alice", trimZero([]byte("alice\x00\x00\x00")))
	require.Equal(t, "bob", trimZero([]byte("bob")))
}

// TestUserHandshakeUpToRsaExchange drives the client side of steps 1-5
// against handleUser over a net.Pipe and checks the obfuscation seed
// roundtrips and the RSA public key is well-formed DER.
func TestUserHandshakeUpToRsaExchange(t *testing.T) {
	path, key := writeTestKey(t)
	svc := &Service{RSAKeyPath: path}
	loaded, err := loadRSAKey(path)
	require.NoError(t, err)
	svc.key = loaded
	svc.dbReg = fabric.NewRegistry(1)

	// Register a fake DB connection so the auth round trip (not
	// exercised by this test) would have somewhere to borrow, without
	// actually dialing.
	dbServer, dbClient := net.Pipe()
	defer dbServer.Close()
	defer dbClient.Close()
	dc := &dbConn{stream: framing.NewStream(dbServer, false, nil, 0, nil, 0)}
	handle, err := svc.dbReg.Add(fabric.TagGlobalDb, dc)
	require.NoError(t, err)
	dc.handle = handle
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := dbClient.Read(buf); err != nil {
				return
			}
		}
	}()

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()
	go svc.handleUser(context.Background(), serverConn)

	client := framing.NewStream(clientConn, true, nil, 0, nil, 0)
	require.NoError(t, client.Send(&message.C2SConnect{AuthKey: 1}))

	m, err := client.Recv()
	require.NoError(t, err)
	s2c, ok := m.(*message.S2CConnect)
	require.True(t, ok)
	require.Equal(t, uint16(0x4663), s2c.AuthKey)

	client.Reobfuscate(
		framing.NewObfuscationTable(s2c.XorSeed2),
		s2c.XorKeyIdx,
		framing.NewObfuscationTable(s2c.XorSeed2),
		s2c.XorKeyIdx,
	)

	require.NoError(t, client.Send(&message.C2SCheckVersion{ClientVersion: expectedClientVersion}))
	m, err = client.Recv()
	require.NoError(t, err)
	ver, ok := m.(*message.S2CCheckVersion)
	require.True(t, ok)
	require.Equal(t, uint32(expectedClientVersion), ver.ServerVersion)
	require.Equal(t, uint32(serverMagicKey), ver.ServerMagicKey)

	require.NoError(t, client.Send(&message.C2SEnvironment{Username: "alice"}))
	require.NoError(t, client.Send(&message.C2SRequestRsaPubKey{}))

	m, err = client.Recv()
	require.NoError(t, err)
	pub, ok := m.(*message.S2CRsaPubKey)
	require.True(t, ok)
	parsed, err := x509.ParsePKCS1PublicKey(pub.DER)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey.N, parsed.N)

	plaintext := make([]byte, 33+5)
	copy(plaintext, "alice")
	copy(plaintext[33:], "hunter")
	ciphertext, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, &key.PublicKey, plaintext, nil)
	require.NoError(t, err)
	require.NoError(t, client.Send(&message.C2SAuthAccount{EncodedPass: ciphertext}))

	// The handler will now try to borrow the DB handle and block on
	// Recv against the fake dbServer pipe, which nothing answers in
	// this test; closing the connections on defer is enough to let
	// handleUser's goroutine unwind without asserting on the DB reply.
}
