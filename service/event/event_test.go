package event

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/message"
)

func TestConnectAckThenKeepalive(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	svc := &Service{}
	go svc.handleConn(serverConn)

	client := framing.NewStream(clientConn, false, nil, 0, nil, 0)
	require.NoError(t, client.Send(&message.Connect{Service: 0, WorldID: 1, Channel: 1}))

	ackMsg, err := client.Recv()
	require.NoError(t, err)
	ack, ok := ackMsg.(*message.ConnectAck)
	require.True(t, ok)
	ev := ack.AsEvent()
	require.Equal(t, [9]byte{0x00, 0xff, 0x00, 0xff, 0xf5, 0x00, 0x00, 0x00, 0x00}, ev.Unk2)
	require.Equal(t, uint8(1), ev.Unk4)
	require.Equal(t, uint16(1), ack.WorldID)
	require.Equal(t, uint16(1), ack.Channel)

	require.NoError(t, client.Send(&message.Keepalive{}))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Send(&message.Keepalive{}))
}

func TestWrongFirstMessageClosesConnection(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	svc := &Service{}
	done := make(chan struct{})
	go func() {
		svc.handleConn(serverConn)
		close(done)
	}()

	client := framing.NewStream(clientConn, false, nil, 0, nil, 0)
	require.NoError(t, client.Send(&message.Keepalive{}))

	_, err := client.Recv()
	require.Error(t, err)
	<-done
}
