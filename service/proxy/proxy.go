// Package proxy implements a debugging man-in-the-middle: it accepts
// connections on an upstream port, opens a matching connection to the
// downstream port, and shuttles decoded frames in both directions,
// logging each by message id. Neither side can tell it is there.
package proxy

import (
	"context"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/logging"
	"github.com/ashenvale/fabric/metrics"
)

// Service shuttles frames between an upstream listener and a fixed
// downstream address.
type Service struct {
	DownstreamAddr string
}

// ListenAndServe accepts upstream connections on addr until ctx is
// cancelled.
func (s *Service) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logging.Peer("proxy", addr).Infof("listening, downstream %s", s.DownstreamAddr)
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
		metrics.ConnectionsAccepted.WithLabelValues("proxy").Inc()
		go s.handleConn(ctx, conn)
	}
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	plog := logging.Peer("proxy", conn.RemoteAddr().String())

	downConn, err := framing.DialRetry(ctx, s.DownstreamAddr)
	if err != nil {
		plog.Errorf("dial downstream: %v", err)
		return
	}
	defer downConn.Close()

	up := framing.NewStream(conn, false, nil, 0, nil, 0)
	down := framing.NewStream(downConn, false, nil, 0, nil, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	go shuttle(plog.WithField("dir", "up->down"), up, down, &wg)
	go shuttle(plog.WithField("dir", "down->up"), down, up, &wg)
	wg.Wait()
}

// shuttle copies decoded frames from src to dst until either side's
// socket errors, then closes both so the opposite direction unblocks.
func shuttle(plog *log.Entry, src, dst *framing.Stream, wg *sync.WaitGroup) {
	defer wg.Done()
	defer src.Conn().Close()
	defer dst.Conn().Close()
	for {
		m, err := src.Recv()
		if err != nil {
			plog.Infof("closed: %v", err)
			return
		}
		plog.Debugf("frame id=0x%03x %T", m.ID(), m)
		if err := dst.Send(m); err != nil {
			plog.Infof("forward failed: %v", err)
			return
		}
	}
}
