package gms

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/wire"
)

func newPipePeer(t *testing.T, h *Hub, ctx context.Context) *framing.Stream {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	go h.handleConn(ctx, serverConn)
	return framing.NewStream(clientConn, false, nil, 0, nil, 0)
}

func mustRecvAck(t *testing.T, s *framing.Stream) {
	t.Helper()
	m, err := s.Recv()
	require.NoError(t, err)
	_, ok := m.(*message.Connect)
	require.True(t, ok)
}

func TestWorldRegistrationSendsInitialSequence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub("")

	client := newPipePeer(t, h, ctx)
	require.NoError(t, client.Send(&message.Connect{Service: wire.ServiceWorld, WorldID: 1, Channel: 1}))
	mustRecvAck(t, client)

	m, err := client.Recv()
	require.NoError(t, err)
	cct, ok := m.(*message.ChangeChannelType)
	require.True(t, ok)
	require.Equal(t, uint8(5), cct.State)

	m, err = client.Recv()
	require.NoError(t, err)
	_, ok = m.(*message.DailyQuestResetTime)
	require.True(t, ok)

	m, err = client.Recv()
	require.NoError(t, err)
	adc, ok := m.(*message.AdditionalDungeonInstanceCount)
	require.True(t, ok)
	require.Equal(t, uint32(0), adc.Normal)
	require.Equal(t, uint32(0), adc.Hard)
}

func TestProfilePathRequestReturnsThreeFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub("")

	client := newPipePeer(t, h, ctx)
	require.NoError(t, client.Send(&message.Connect{Service: wire.ServiceWorld, WorldID: 1, Channel: 1}))
	mustRecvAck(t, client)
	for i := 0; i < 3; i++ {
		_, err := client.Recv()
		require.NoError(t, err)
	}

	require.NoError(t, client.Send(&message.ProfilePathRequest{}))
	m, err := client.Recv()
	require.NoError(t, err)
	resp, ok := m.(*message.ProfilePathResponse)
	require.True(t, ok)
	require.Equal(t, uint8(4), resp.Files[0].FileID)
	require.Equal(t, "Data/Item.scp", resp.Files[0].Path)
	require.Equal(t, "Data/Warp.scp", resp.Files[2].Path)
}

func TestDuplicateWorldIdentityRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub("")

	first := newPipePeer(t, h, ctx)
	require.NoError(t, first.Send(&message.Connect{Service: wire.ServiceWorld, WorldID: 2, Channel: 1}))
	mustRecvAck(t, first)

	second := newPipePeer(t, h, ctx)
	require.NoError(t, second.Send(&message.Connect{Service: wire.ServiceWorld, WorldID: 2, Channel: 1}))
	_, err := second.Recv()
	require.Error(t, err)
}

func TestNotifyUserCountBroadcastsServerStateToLogin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub("")

	world := newPipePeer(t, h, ctx)
	require.NoError(t, world.Send(&message.Connect{Service: wire.ServiceWorld, WorldID: 3, Channel: 1}))
	mustRecvAck(t, world)
	for i := 0; i < 3; i++ {
		_, err := world.Recv()
		require.NoError(t, err)
	}

	login := newPipePeer(t, h, ctx)
	require.NoError(t, login.Send(&message.Connect{Service: wire.ServiceLogin, WorldID: 0, Channel: 0}))
	mustRecvAck(t, login)

	// Drain whatever the broadcast sends back to the World itself so
	// that send doesn't block forever on an unread net.Pipe and stall
	// the broadcast before it reaches the Login stream.
	go func() {
		for {
			if _, err := world.Recv(); err != nil {
				return
			}
		}
	}()

	var ip [16]byte
	copy(ip[:], "127.0.0.1")
	require.NoError(t, world.Send(&message.NotifyUserCount{IP: ip, Port: 9001}))

	deadline := time.Now().Add(2 * time.Second)
	for {
		m, err := login.Recv()
		require.NoError(t, err)
		if ss, ok := m.(*message.ServerState); ok {
			require.NotEmpty(t, ss.Groups)
			found := false
			for _, g := range ss.Groups {
				if g.GroupID == loginSentinelGroupID {
					found = true
				}
			}
			require.True(t, found, "expected sentinel group in login ServerState")
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for ServerState")
		}
	}
}

// TestRoutePacketDeliversToWorld routes a payload from a Login peer to a
// registered World and checks the World receives a frame whose id is the
// duplex header's origin command and whose body is the inner payload
// verbatim.
func TestRoutePacketDeliversToWorld(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub("")

	world := newPipePeer(t, h, ctx)
	require.NoError(t, world.Send(&message.Connect{Service: wire.ServiceWorld, WorldID: 1, Channel: 1}))
	mustRecvAck(t, world)
	for i := 0; i < 3; i++ {
		_, err := world.Recv()
		require.NoError(t, err)
	}

	login := newPipePeer(t, h, ctx)
	require.NoError(t, login.Send(&message.Connect{Service: wire.ServiceLogin, WorldID: 0, Channel: 0}))
	mustRecvAck(t, login)

	body := []byte{0xca, 0xfe, 0x01}
	require.NoError(t, login.Send(&message.RoutePacket{
		Header: message.DuplexRouteHeader{OriginMainCmd: 0x66, ServerID: 1, GroupID: 1},
		Data:   body,
	}))

	m, err := world.Recv()
	require.NoError(t, err)
	unk, ok := m.(*message.Unknown)
	require.True(t, ok)
	require.Equal(t, uint16(0x66), unk.ID())
	require.Equal(t, body, unk.Payload)
}

func TestRoutePacketMissingTargetIsNonFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub("")

	world := newPipePeer(t, h, ctx)
	require.NoError(t, world.Send(&message.Connect{Service: wire.ServiceWorld, WorldID: 4, Channel: 1}))
	mustRecvAck(t, world)
	for i := 0; i < 3; i++ {
		_, err := world.Recv()
		require.NoError(t, err)
	}

	require.NoError(t, world.Send(&message.RoutePacket{
		Header: message.DuplexRouteHeader{OriginMainCmd: 0x10, ServerID: 999, GroupID: 999},
		Data:   []byte("hi"),
	}))

	require.NoError(t, world.Send(&message.SubPasswordCheckRequest{}))
	m, err := world.Recv()
	require.NoError(t, err)
	resp, ok := m.(*message.SubPasswordCheckResponse)
	require.True(t, ok)
	require.Equal(t, uint8(0), resp.AuthNeeded)
}
