// Package party implements the party service: per-server character and
// party rosters driven by the world connections of that server, plus the
// background task that kicks characters that stayed offline past their
// reconnection window.
package party

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ashenvale/fabric/fabric"
	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/logging"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/metrics"
	"github.com/ashenvale/fabric/wire"
)

// registryCapacity bounds how many world connections the listener tracks
// over its lifetime; handles are append-only and never reused.
const registryCapacity = 1024

// offlineTimeout is how long a disconnected character stays eligible for
// reconnection before the groomer removes it.
const offlineTimeout = 10 * time.Minute

// groomInterval is how often the background task scans for timed-out
// characters.
const groomInterval = 10 * time.Second

// Service runs the party listener. One Service tracks any number of
// servers, each identified by the world id its connections hand over at
// handshake time.
type Service struct {
	// OfflineTimeout overrides the reconnection window; zero means the
	// default of ten minutes.
	OfflineTimeout time.Duration

	mu       sync.Mutex
	servers  map[uint16]*serverState
	registry *fabric.Registry
}

// NewService constructs a Service ready to accept world connections.
func NewService() *Service {
	return &Service{
		servers:  make(map[uint16]*serverState),
		registry: fabric.NewRegistry(registryCapacity),
	}
}

func (s *Service) timeout() time.Duration {
	if s.OfflineTimeout > 0 {
		return s.OfflineTimeout
	}
	return offlineTimeout
}

// server returns the state for id, creating it on first use.
func (s *Service) server(id uint16) *serverState {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv := s.servers[id]
	if sv == nil {
		sv = newServerState()
		s.servers[id] = sv
	}
	return sv
}

func (s *Service) serverSnapshot() []*serverState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*serverState, 0, len(s.servers))
	for _, sv := range s.servers {
		out = append(out, sv)
	}
	return out
}

// ListenAndServe accepts world connections on addr and runs the grooming
// task until ctx is cancelled.
func (s *Service) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	go s.groomLoop(ctx)

	log := logging.Peer("party", addr)
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
		metrics.ConnectionsAccepted.WithLabelValues("party").Inc()
		go s.handleConn(ctx, conn)
	}
}

// worldConn is the registered owner for one world connection of one
// server/channel pair.
type worldConn struct {
	handle  *fabric.Handle
	stream  *framing.Stream
	server  uint16
	channel uint16
}

func (w *worldConn) send(m message.Message) error {
	return w.stream.Send(m)
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := logging.Peer("party", conn.RemoteAddr().String())
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
	if connect.Service != wire.ServiceWorld {
		log.Errorf("expected a World peer, got %v", connect.Service)
		return
	}

	log = logging.Conn("party", connect.WorldID, connect.Channel)
	sv := s.server(connect.WorldID)
	wc := &worldConn{stream: stream, server: connect.WorldID, channel: connect.Channel}
	handle, err := s.registry.Add(fabric.TagPartyWorld, wc)
	if err != nil {
		log.Errorf("register world: %v", err)
		return
	}
	wc.handle = handle
	sv.mu.Lock()
	sv.worlds[connect.Channel] = handle
	sv.mu.Unlock()
	defer func() {
		s.registry.Retire(handle)
		sv.mu.Lock()
		if sv.worlds[connect.Channel] == handle {
			delete(sv.worlds, connect.Channel)
		}
		sv.mu.Unlock()
	}()

	if err := stream.Send(&message.Connect{Service: wire.ServiceParty, WorldID: connect.WorldID, Channel: connect.Channel}); err != nil {
		log.Errorf("send ack: %v", err)
		return
	}

	pending := recvAsync(stream)
	for {
		select {
		case req := <-handle.Requests():
			handle.Grant(req)
		case res := <-pending:
			if res.err != nil {
				log.Infof("connection closed: %v", res.err)
				return
			}
			if err := s.dispatch(sv, wc, log, res.msg); err != nil {
				log.Errorf("dispatch %T: %v", res.msg, err)
				return
			}
			pending = recvAsync(stream)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) dispatch(sv *serverState, wc *worldConn, log interface {
	Warnf(string, ...interface{})
}, m message.Message) error {
	switch req := m.(type) {
	case *message.ClientConnect:
		sv.mu.Lock()
		sv.upsertCharacter(req)
		sv.mu.Unlock()
		return wc.send(req)

	case *message.PartyInvite:
		sv.mu.Lock()
		sv.setLevel(req.InviterID, req.InviterLevel)
		sv.setLevel(req.InviteeID, req.InviteeLevel)
		sv.mu.Unlock()
		return wc.send(req)

	case *message.PartyInviteAck:
		return wc.send(req)

	case *message.PartyInviteResult:
		return s.handleInviteResult(sv, wc, log, req)

	case *message.PartyLeave:
		sv.mu.Lock()
		res := sv.removeFromParty(req.CharID, req.PartyID)
		sv.mu.Unlock()
		if !res.ok {
			log.Warnf("leave for char %d not in party %d", req.CharID, req.PartyID)
		}
		if err := wc.send(req); err != nil {
			return err
		}
		if res.disbanded {
			if err := wc.send(&message.PartyClear{PartyID: req.PartyID}); err != nil {
				return err
			}
		}
		return wc.send(&message.PartyLeaveAck{CharID: req.CharID, PartyID: req.PartyID})

	case *message.ClientDisconnect:
		sv.mu.Lock()
		if c := sv.chars[req.CharID]; c != nil {
			c.Online = false
			c.TimeoutAt = time.Now().Add(s.timeout())
		}
		sv.mu.Unlock()
		return nil

	default:
		log.Warnf("unexpected party message %T", m)
		return nil
	}
}

func (s *Service) handleInviteResult(sv *serverState, wc *worldConn, log interface {
	Warnf(string, ...interface{})
}, req *message.PartyInviteResult) error {
	if req.Accepted != 1 {
		return wc.send(&message.PartyInviteResultAck{Unk1: 1})
	}

	sv.mu.Lock()
	p, fresh, ok := sv.acceptInvite(req.InviterID, req.InviteeID)
	var roster *message.PartyStats
	var add *message.PartyMemberAdd
	if ok {
		roster = sv.partyStats(p)
		if !fresh {
			if c := sv.chars[req.InviteeID]; c != nil {
				add = &message.PartyMemberAdd{
					PartyID: p.ID,
					CharID:  c.CharID,
					Level:   c.Level,
					Class:   c.Class,
					Name:    c.Name,
				}
			}
		}
	}
	sv.mu.Unlock()

	if !ok {
		log.Warnf("invite result for unknown pair %d -> %d", req.InviterID, req.InviteeID)
		return nil
	}
	if err := wc.send(&message.PartyInviteResultAck{Unk1: 0}); err != nil {
		return err
	}
	if err := wc.send(req); err != nil {
		return err
	}
	if fresh {
		// A fresh party's both members get the full roster; a grown one
		// announces the newcomer to the rest and sends the roster only
		// to the newcomer.
		for range roster.Members {
			if err := wc.send(roster); err != nil {
				return err
			}
		}
		return nil
	}
	if add != nil {
		if err := wc.send(add); err != nil {
			return err
		}
	}
	return wc.send(roster)
}

func (s *Service) groomLoop(ctx context.Context) {
	ticker := time.NewTicker(groomInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.groom(ctx, time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// groom removes every character whose offline deadline has passed and
// fans the resulting party notifications out through the world handle of
// the channel each affected character was last on. Mutation happens
// under the server lock; the sends happen after it is released, since
// each send needs the target world's own loop to grant a borrow.
func (s *Service) groom(ctx context.Context, now time.Time) {
	for _, sv := range s.serverSnapshot() {
		sv.mu.Lock()
		notices := sv.expireCharacters(now)
		handles := make([]*fabric.Handle, len(notices))
		for i, n := range notices {
			handles[i] = sv.worlds[n.channel]
		}
		sv.mu.Unlock()

		for i, n := range notices {
			h := handles[i]
			if h == nil {
				continue
			}
			guard, err := fabric.BorrowAs[*worldConn](ctx, h)
			if err != nil {
				continue
			}
			if err := guard.State().send(n.msg); err != nil {
				logging.Conn("party", guard.State().server, n.channel).Warnf("kick notify: %v", err)
			}
			guard.Release()
		}
	}
}

// recvResult carries one frame (or terminal error) read off a stream on
// its own goroutine, so the owner's select loop can keep granting
// borrows while a read is in flight.
type recvResult struct {
	msg message.Message
	err error
}

func recvAsync(stream *framing.Stream) <-chan recvResult {
	ch := make(chan recvResult, 1)
	go func() {
		m, err := stream.Recv()
		ch <- recvResult{msg: m, err: err}
	}()
	return ch
}
