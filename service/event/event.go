// Package event implements the Event service: a single
// ConnectAck followed by a pure receive loop with no side effects beyond
// keeping the socket alive.
package event

import (
	"context"
	"net"

	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/logging"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/metrics"
)

// Service runs the Event listener.
type Service struct{}

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

	log := logging.Peer("event", addr)
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
		metrics.ConnectionsAccepted.WithLabelValues("event").Inc()
		go s.handleConn(conn)
	}
}

func (s *Service) handleConn(conn net.Conn) {
	defer conn.Close()
	log := logging.Peer("event", conn.RemoteAddr().String())

	stream := framing.NewStream(conn, false, nil, 0, nil, 0)

	m, err := stream.Recv()
	if err != nil {
		log.Errorf("recv first frame: %v", err)
		return
	}
	connect, ok := m.(*message.Connect)
	if !ok {
		log.Errorf("expected Connect, got %T", m)
		return
	}

	log = logging.Conn("event", connect.WorldID, connect.Channel)
	ack := message.NewEventConnectAck(connect.WorldID, connect.Channel)
	if err := stream.Send(ack); err != nil {
		log.Errorf("send connect ack: %v", err)
		return
	}

	for {
		m, err := stream.Recv()
		if err != nil {
			log.Infof("connection closed: %v", err)
			return
		}
		metrics.FramesDecoded.WithLabelValues("event", "ok").Inc()
		log.Debugf("received message id=0x%03x", m.ID())
	}
}
