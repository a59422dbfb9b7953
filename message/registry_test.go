package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRoundTripAllDefaults checks decode(encode(m)) == m over every
// registered variant's default fixture.
func TestRoundTripAllDefaults(t *testing.T) {
	for id := range registry {
		id := id
		t.Run("", func(t *testing.T) {
			m := NewDefault(id)
			encID, payload := Encode(m)
			require.Equal(t, id, encID)

			decoded, err := Decode(id, payload)
			require.NoError(t, err)
			require.Equal(t, m, decoded)
		})
	}
}

func TestUnknownFallback(t *testing.T) {
	m, err := Decode(0xdead, []byte{1, 2, 3})
	require.NoError(t, err)
	unk, ok := m.(*Unknown)
	require.True(t, ok)
	require.Equal(t, uint16(0xdead), unk.ID())
	require.Equal(t, []byte{1, 2, 3}, unk.Payload)
}

func TestTrailingBytesRejected(t *testing.T) {
	_, payload := Encode(&Keepalive{})
	payload = append(payload, 0xff)
	_, err := Decode(IDKeepalive, payload)
	require.ErrorIs(t, err, ErrTrailingBytes)
}

func TestShortPayloadRejected(t *testing.T) {
	_, err := Decode(IDClientDisconnect, []byte{1, 2})
	require.Error(t, err)
}

func TestConnectRoundTrip(t *testing.T) {
	c := &Connect{Service: 0, WorldID: 7, Channel: 3}
	c.Zeros[0] = 0xaa
	id, payload := Encode(c)
	decoded, err := Decode(id, payload)
	require.NoError(t, err)
	require.Equal(t, c, decoded)
}

func TestConnectAckFlavors(t *testing.T) {
	ack := NewEventConnectAck(1, 1)
	ev := ack.AsEvent()
	require.Equal(t, [9]byte{0x00, 0xff, 0x00, 0xff, 0xf5, 0x00, 0x00, 0x00, 0x00}, ev.Unk2)
	require.Equal(t, uint8(1), ev.Unk4)
}

func TestRoutePacketRoundTrip(t *testing.T) {
	rp := &RoutePacket{
		Header: DuplexRouteHeader{OriginMainCmd: 0x66, ServerID: 1, GroupID: 1},
		Data:   []byte("inner payload"),
	}
	id, payload := Encode(rp)
	decoded, err := Decode(id, payload)
	require.NoError(t, err)
	require.Equal(t, rp, decoded)
}

func TestPartyStatsRoundTrip(t *testing.T) {
	ps := &PartyStats{
		PartyID:  42,
		LeaderID: 100,
		Members: []PartyMember{
			{CharID: 100, Level: 10, Class: 1, Name: "Alice"},
			{CharID: 200, Level: 12, Class: 2, Name: "Bob"},
		},
	}
	id, payload := Encode(ps)
	decoded, err := Decode(id, payload)
	require.NoError(t, err)
	require.Equal(t, ps, decoded)
}
