package proxy

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/wire"
)

// TestProxyIsInvisibleToBothSides runs a Connect/ConnectAck exchange
// through the proxy against a downstream peer and checks both frames
// arrive intact.
func TestProxyIsInvisibleToBothSides(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	downLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer downLn.Close()
	go func() {
		conn, err := downLn.Accept()
		if err != nil {
			return
		}
		stream := framing.NewStream(conn, false, nil, 0, nil, 0)
		m, err := stream.Recv()
		if err != nil {
			return
		}
		connect, ok := m.(*message.Connect)
		if !ok {
			return
		}
		stream.Send(message.NewEventConnectAck(connect.WorldID, connect.Channel))
	}()

	s := &Service{DownstreamAddr: downLn.Addr().String()}
	serverConn, clientConn := net.Pipe()
	go s.handleConn(ctx, serverConn)

	client := framing.NewStream(clientConn, false, nil, 0, nil, 0)
	require.NoError(t, client.Send(&message.Connect{Service: wire.ServiceWorld, WorldID: 7, Channel: 3}))

	m, err := client.Recv()
	require.NoError(t, err)
	ack, ok := m.(*message.ConnectAck)
	require.True(t, ok)
	require.Equal(t, uint16(7), ack.WorldID)
	require.Equal(t, uint16(3), ack.Channel)
	require.Equal(t, uint8(1), ack.AsEvent().Unk4)
}
