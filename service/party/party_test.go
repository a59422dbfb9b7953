package party

import (
	"context"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/wire"
)

func newWorldPeer(t *testing.T, s *Service, ctx context.Context, server, channel uint16) *framing.Stream {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	go s.handleConn(ctx, serverConn)
	stream := framing.NewStream(clientConn, false, nil, 0, nil, 0)
	require.NoError(t, stream.Send(&message.Connect{Service: wire.ServiceWorld, WorldID: server, Channel: channel}))
	m, err := stream.Recv()
	require.NoError(t, err)
	ack, ok := m.(*message.Connect)
	require.True(t, ok)
	require.Equal(t, wire.ServiceParty, ack.Service)
	return stream
}

func connectChar(t *testing.T, stream *framing.Stream, charID uint32, channel uint16, name string) {
	t.Helper()
	require.NoError(t, stream.Send(&message.ClientConnect{CharID: charID, Channel: channel, Level: 10, Class: 1, Name: name}))
	m, err := stream.Recv()
	require.NoError(t, err)
	bounce, ok := m.(*message.ClientConnect)
	require.True(t, ok)
	require.Equal(t, charID, bounce.CharID)
}

// formParty runs the invite/ack/result sequence on ch1 for A inviting B
// and returns the new party's id.
func formParty(t *testing.T, ch1 *framing.Stream, a, b uint32) uint16 {
	t.Helper()
	require.NoError(t, ch1.Send(&message.PartyInvite{InviterID: a, InviteeID: b, InviterLevel: 10, InviteeLevel: 10}))
	m, err := ch1.Recv()
	require.NoError(t, err)
	_, ok := m.(*message.PartyInvite)
	require.True(t, ok)

	require.NoError(t, ch1.Send(&message.PartyInviteAck{InviterID: a, InviteeID: b}))
	m, err = ch1.Recv()
	require.NoError(t, err)
	_, ok = m.(*message.PartyInviteAck)
	require.True(t, ok)

	require.NoError(t, ch1.Send(&message.PartyInviteResult{Accepted: 1, InviterID: a, InviteeID: b}))
	m, err = ch1.Recv()
	require.NoError(t, err)
	ack, ok := m.(*message.PartyInviteResultAck)
	require.True(t, ok)
	require.Equal(t, uint8(0), ack.Unk1)

	m, err = ch1.Recv()
	require.NoError(t, err)
	_, ok = m.(*message.PartyInviteResult)
	require.True(t, ok)

	var partyID uint16
	for i := 0; i < 2; i++ {
		m, err = ch1.Recv()
		require.NoError(t, err)
		stats, ok := m.(*message.PartyStats)
		require.True(t, ok)
		require.Len(t, stats.Members, 2)
		require.Equal(t, a, stats.LeaderID)
		partyID = stats.PartyID
	}
	return partyID
}

func TestPartyFormation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewService()

	ch1 := newWorldPeer(t, s, ctx, 1, 1)
	ch2 := newWorldPeer(t, s, ctx, 1, 2)
	connectChar(t, ch1, 100, 1, "Aria")
	connectChar(t, ch2, 200, 2, "Bran")

	partyID := formParty(t, ch1, 100, 200)
	require.NotZero(t, partyID)

	sv := s.server(1)
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	require.True(t, sv.chars[100].InParty)
	require.True(t, sv.chars[200].InParty)
	require.Equal(t, partyID, sv.chars[100].PartyID)
}

func TestPartyDisbandByLeaveReturnsIDToPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewService()

	ch1 := newWorldPeer(t, s, ctx, 1, 1)
	ch2 := newWorldPeer(t, s, ctx, 1, 2)
	connectChar(t, ch1, 100, 1, "Aria")
	connectChar(t, ch2, 200, 2, "Bran")
	partyID := formParty(t, ch1, 100, 200)

	require.NoError(t, ch1.Send(&message.PartyLeave{CharID: 100, PartyID: partyID}))
	m, err := ch1.Recv()
	require.NoError(t, err)
	_, ok := m.(*message.PartyLeave)
	require.True(t, ok)

	m, err = ch1.Recv()
	require.NoError(t, err)
	pc, ok := m.(*message.PartyClear)
	require.True(t, ok)
	require.Equal(t, partyID, pc.PartyID)

	m, err = ch1.Recv()
	require.NoError(t, err)
	ack, ok := m.(*message.PartyLeaveAck)
	require.True(t, ok)
	require.Equal(t, uint32(100), ack.CharID)
	require.Equal(t, partyID, ack.PartyID)

	// The freed id is handed right back to the next party formed.
	reused := formParty(t, ch1, 100, 200)
	require.Equal(t, partyID, reused)
}

func TestThirdMemberGetsMemberAddAndRoster(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewService()

	ch1 := newWorldPeer(t, s, ctx, 1, 1)
	connectChar(t, ch1, 100, 1, "Aria")
	connectChar(t, ch1, 200, 1, "Bran")
	connectChar(t, ch1, 300, 1, "Ciri")
	partyID := formParty(t, ch1, 100, 200)

	require.NoError(t, ch1.Send(&message.PartyInviteResult{Accepted: 1, InviterID: 100, InviteeID: 300}))
	m, err := ch1.Recv()
	require.NoError(t, err)
	ack, ok := m.(*message.PartyInviteResultAck)
	require.True(t, ok)
	require.Equal(t, uint8(0), ack.Unk1)

	m, err = ch1.Recv()
	require.NoError(t, err)
	_, ok = m.(*message.PartyInviteResult)
	require.True(t, ok)

	m, err = ch1.Recv()
	require.NoError(t, err)
	add, ok := m.(*message.PartyMemberAdd)
	require.True(t, ok)
	require.Equal(t, partyID, add.PartyID)
	require.Equal(t, uint32(300), add.CharID)

	m, err = ch1.Recv()
	require.NoError(t, err)
	stats, ok := m.(*message.PartyStats)
	require.True(t, ok)
	require.Len(t, stats.Members, 3)
	require.Equal(t, uint32(100), stats.LeaderID)
}

func TestDeclinedInviteAcksWithOne(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewService()

	ch1 := newWorldPeer(t, s, ctx, 1, 1)
	connectChar(t, ch1, 100, 1, "Aria")
	connectChar(t, ch1, 200, 1, "Bran")

	require.NoError(t, ch1.Send(&message.PartyInviteResult{Accepted: 0, InviterID: 100, InviteeID: 200}))
	m, err := ch1.Recv()
	require.NoError(t, err)
	ack, ok := m.(*message.PartyInviteResultAck)
	require.True(t, ok)
	require.Equal(t, uint8(1), ack.Unk1)
}

func TestOfflineKickNotifiesLastChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewService()
	s.OfflineTimeout = time.Millisecond

	ch1 := newWorldPeer(t, s, ctx, 1, 1)
	ch2 := newWorldPeer(t, s, ctx, 1, 2)
	connectChar(t, ch1, 100, 1, "Aria")
	connectChar(t, ch2, 200, 2, "Bran")
	partyID := formParty(t, ch1, 100, 200)

	require.NoError(t, ch1.Send(&message.ClientDisconnect{CharID: 100}))
	require.Eventually(t, func() bool {
		sv := s.server(1)
		sv.mu.RLock()
		defer sv.mu.RUnlock()
		c := sv.chars[100]
		return c != nil && !c.Online
	}, time.Second, 5*time.Millisecond)
	go s.groom(ctx, time.Now().Add(time.Second))

	m, err := ch1.Recv()
	require.NoError(t, err)
	leave, ok := m.(*message.PartyLeave)
	require.True(t, ok)
	require.Equal(t, uint32(100), leave.CharID)
	require.Equal(t, partyID, leave.PartyID)

	m, err = ch2.Recv()
	require.NoError(t, err)
	pc, ok := m.(*message.PartyClear)
	require.True(t, ok)
	require.Equal(t, partyID, pc.PartyID)

	sv := s.server(1)
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	require.Nil(t, sv.chars[100])
	require.False(t, sv.chars[200].InParty)
	require.Empty(t, sv.parties)
}

// TestPartyInvariantsUnderRandomOps drives the state mutations directly
// with a seeded operation mix and checks after every step that no live
// character points at a missing party, no party has fewer than two
// members, and every leader is a member of its own party.
func TestPartyInvariantsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sv := newServerState()
	const chars = 8
	for i := uint32(1); i <= chars; i++ {
		sv.upsertCharacter(&message.ClientConnect{CharID: i, Channel: 1, Level: 10, Name: "c"})
	}

	checkInvariants := func(step int) {
		for id, c := range sv.chars {
			if !c.InParty {
				continue
			}
			p := sv.parties[c.PartyID]
			require.NotNil(t, p, "step %d: char %d references missing party %d", step, id, c.PartyID)
			found := false
			for _, m := range p.Members {
				if m == id {
					found = true
				}
			}
			require.True(t, found, "step %d: char %d not a member of its party", step, id)
		}
		for id, p := range sv.parties {
			require.GreaterOrEqual(t, len(p.Members), 2, "step %d: party %d below two members", step, id)
			leaderFound := false
			for _, m := range p.Members {
				if m == p.LeaderID {
					leaderFound = true
				}
			}
			require.True(t, leaderFound, "step %d: party %d leader is not a member", step, id)
		}
	}

	for step := 0; step < 500; step++ {
		a := uint32(rng.Intn(chars)) + 1
		b := uint32(rng.Intn(chars)) + 1
		if rng.Intn(2) == 0 && a != b {
			sv.acceptInvite(a, b)
		} else if c := sv.chars[a]; c.InParty {
			sv.removeFromParty(a, c.PartyID)
		}
		checkInvariants(step)
	}
}
