// Package gms implements the Global Manager hub: the
// fabric's registry and router. It accepts inbound connections from
// World, Login, Chat and Agent Shop instances, keeps one outbound
// connection to the DB Agent, and routes RoutePacket traffic between
// registered peers.
package gms

import (
	"context"
	"net"
	"sync"

	"github.com/ashenvale/fabric/fabric"
	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/logging"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/metrics"
	"github.com/ashenvale/fabric/wire"
)

// registryCapacity bounds how many peers of one kind the hub tracks at
// once.
const registryCapacity = 1024

// peerKey identifies a connection uniquely: a live (service, world,
// channel) triple may exist only once.
type peerKey struct {
	Service wire.ServiceKind
	WorldID uint16
	Channel uint16
}

// Hub owns one registry per peer-service kind plus the shared identity
// map used to reject duplicate connections, grounded on
// coordinator.Server's mutex-protected mutable-state struct.
type Hub struct {
	DBAddr string

	mu    sync.Mutex
	peers map[peerKey]bool

	worlds     *fabric.Registry
	logins     *fabric.Registry
	chats      *fabric.Registry
	agentShops *fabric.Registry
}

// NewHub constructs a Hub ready to accept connections.
func NewHub(dbAddr string) *Hub {
	return &Hub{
		DBAddr:     dbAddr,
		peers:      make(map[peerKey]bool),
		worlds:     fabric.NewRegistry(registryCapacity),
		logins:     fabric.NewRegistry(registryCapacity),
		chats:      fabric.NewRegistry(registryCapacity),
		agentShops: fabric.NewRegistry(registryCapacity),
	}
}

// acquireIdentity claims key for a new connection, failing if already
// held by a live connection.
func (h *Hub) acquireIdentity(key peerKey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[key] {
		return false
	}
	h.peers[key] = true
	return true
}

func (h *Hub) releaseIdentity(key peerKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, key)
}

// ListenAndServe accepts peer connections on addr and dials the DB Agent,
// running until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	if h.DBAddr != "" {
		go h.dialDB(ctx)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log := logging.Peer("gms", addr)
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
		metrics.ConnectionsAccepted.WithLabelValues("gms").Inc()
		go h.handleConn(ctx, conn)
	}
}

// dialDB holds a single outbound connection to the DB Agent open for
// the hub's lifetime. Its only job is staying connected.
func (h *Hub) dialDB(ctx context.Context) {
	log := logging.Peer("gms-db", h.DBAddr)
	conn, err := framing.DialRetry(ctx, h.DBAddr)
	if err != nil {
		log.Errorf("dial db: %v", err)
		return
	}
	defer conn.Close()
	stream := framing.NewStream(conn, false, nil, 0, nil, 0)
	log.Info("connected to db agent")
	for {
		if _, err := stream.Recv(); err != nil {
			log.Infof("db connection closed: %v", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (h *Hub) handleConn(ctx context.Context, conn net.Conn) {
	log := logging.Peer("gms", conn.RemoteAddr().String())
	stream := framing.NewStream(conn, false, nil, 0, nil, 0)

	m, err := stream.Recv()
	if err != nil {
		conn.Close()
		log.Errorf("recv first frame: %v", err)
		return
	}
	connect, ok := m.(*message.Connect)
	if !ok {
		conn.Close()
		log.Errorf("expected Connect, got %T", m)
		return
	}

	key := peerKey{Service: connect.Service, WorldID: connect.WorldID, Channel: connect.Channel}
	if !h.acquireIdentity(key) {
		conn.Close()
		log.Errorf("duplicate connection for %v", key)
		return
	}

	peer := wire.PeerIdentity{Service: connect.Service, WorldID: connect.WorldID, Channel: connect.Channel}
	switch connect.Service {
	case wire.ServiceWorld:
		h.runWorld(ctx, stream, peer, key)
	case wire.ServiceLogin:
		h.runLogin(ctx, stream, peer, key)
	case wire.ServiceChatNode:
		h.runGeneric(ctx, stream, peer, key, h.chats, fabric.TagGlobalChat)
	case wire.ServiceAgentShop:
		h.runGeneric(ctx, stream, peer, key, h.agentShops, fabric.TagGlobalAgentShop)
	default:
		h.releaseIdentity(key)
		conn.Close()
		log.Errorf("unexpected peer service %v", connect.Service)
	}
}

// runGeneric handles Chat and Agent Shop peers, which are routable
// endpoints with no subhandler-specific behavior.
func (h *Hub) runGeneric(ctx context.Context, stream *framing.Stream, peer wire.PeerIdentity, key peerKey, reg *fabric.Registry, tag fabric.ServiceTag) {
	defer h.releaseIdentity(key)
	defer stream.Conn().Close()

	log := logging.Conn("gms", peer.WorldID, peer.Channel)
	gc := &genericConn{stream: stream, peer: peer}
	handle, err := reg.Add(tag, gc)
	if err != nil {
		log.Errorf("register %v: %v", tag, err)
		return
	}
	gc.handle = handle
	defer reg.Retire(handle)

	if err := stream.Send(&message.Connect{Service: wire.ServiceGlobalMgr, WorldID: peer.WorldID, Channel: peer.Channel}); err != nil {
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
			log.Debugf("received message id=0x%03x", res.msg.ID())
			pending = recvAsync(stream)
		case <-ctx.Done():
			return
		}
	}
}

// nonFatal reports whether err is merely logged (RoutingError,
// BorrowError) rather than a protocol violation that must close the
// connection.
func nonFatal(err error) bool {
	switch err.(type) {
	case *fabric.RoutingError, *fabric.BorrowError:
		return true
	default:
		return false
	}
}

// recvResult is one frame (or error) read off a stream on a dedicated
// goroutine, so an owner's main select loop can multiplex "a frame
// arrived" against "a borrower wants access" without the blocking Recv
// call starving the lending mutex: the owner must fold borrow granting
// into its own select loop, not merely poll it between blocking
// operations.
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

// genericConn is the minimal routable owner used by Chat/AgentShop peers.
type genericConn struct {
	handle *fabric.Handle
	stream *framing.Stream
	peer   wire.PeerIdentity
}

func (g *genericConn) forward(id uint16, payload []byte) error {
	return g.stream.Send(&message.Unknown{IDValue: id, Payload: payload})
}
