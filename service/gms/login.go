package gms

import (
	"context"

	"github.com/ashenvale/fabric/fabric"
	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/logging"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/wire"
)

// loginConn is the registered owner for one Login connection.
type loginConn struct {
	handle *fabric.Handle
	stream *framing.Stream
	peer   wire.PeerIdentity
}

func (l *loginConn) forward(id uint16, payload []byte) error {
	return l.stream.Send(&message.Unknown{IDValue: id, Payload: payload})
}

// loginSentinelGroupID is appended to every Login-flavored ServerState so
// the client can tell a Login-origin list apart from a World-origin
// one.
const loginSentinelGroupID = 0x80

func (h *Hub) runLogin(ctx context.Context, stream *framing.Stream, peer wire.PeerIdentity, key peerKey) {
	defer h.releaseIdentity(key)
	defer stream.Conn().Close()

	log := logging.Conn("gms", peer.WorldID, peer.Channel)
	lc := &loginConn{stream: stream, peer: peer}
	handle, err := h.logins.Add(fabric.TagGlobalLogin, lc)
	if err != nil {
		log.Errorf("register login: %v", err)
		return
	}
	lc.handle = handle
	defer h.logins.Retire(handle)

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
			if err := h.dispatchLogin(ctx, lc, log, res.msg); err != nil {
				log.Errorf("dispatch %T: %v", res.msg, err)
				if !nonFatal(err) {
					return
				}
			}
			pending = recvAsync(stream)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) dispatchLogin(ctx context.Context, lc *loginConn, log interface {
	Debugf(string, ...interface{})
	Warnf(string, ...interface{})
}, m message.Message) error {
	switch req := m.(type) {
	case *message.NotifyUserCount:
		log.Debugf("login liveness notify from %v", lc.peer)
		return nil

	case *message.RoutePacket:
		return h.routePacket(ctx, req)

	case *message.SystemMessage:
		// Out-of-line for the same reason as broadcastServerState: this
		// broadcast borrows every Login handle, including this one.
		go h.broadcastSystemMessage(ctx, req.Text)
		return nil

	default:
		log.Warnf("unexpected login message %T", m)
		return nil
	}
}

// broadcastServerState runs whenever a World reports (or re-reports) its
// ip/port: it collects every World's current group_node() and sends a
// World-flavored list to each World and a Login-flavored list (plus the
// sentinel entry) to each Login. Each send goes through the borrow
// protocol, so a connection mid-flight still services concurrent
// borrowers while it blocks.
func (h *Hub) broadcastServerState(ctx context.Context) {
	groups := h.collectWorldGroups(ctx)

	_ = fabric.IterHandlers[*worldConn](ctx, h.worlds, func(g *fabric.Guard[*worldConn]) error {
		return g.State().stream.Send(&message.ServerState{Groups: groups})
	})

	loginGroups := append(append([]message.ChannelGroup(nil), groups...), message.ChannelGroup{
		ServerID: 0,
		GroupID:  loginSentinelGroupID,
		State:    0,
	})
	_ = fabric.IterHandlers[*loginConn](ctx, h.logins, func(g *fabric.Guard[*loginConn]) error {
		return g.State().stream.Send(&message.ServerState{Groups: loginGroups})
	})
}

func (h *Hub) collectWorldGroups(ctx context.Context) []message.ChannelGroup {
	var groups []message.ChannelGroup
	_ = fabric.IterHandlers[*worldConn](ctx, h.worlds, func(g *fabric.Guard[*worldConn]) error {
		if node, ok := g.State().groupNode(); ok {
			groups = append(groups, node)
		}
		return nil
	})
	return groups
}

// broadcastSystemMessage forwards text to every World and back to every
// Login connection as SystemMessageForwarded.
func (h *Hub) broadcastSystemMessage(ctx context.Context, text string) error {
	_ = fabric.IterHandlers[*worldConn](ctx, h.worlds, func(g *fabric.Guard[*worldConn]) error {
		return g.State().stream.Send(&message.SystemMessageForwarded{Text: text})
	})
	_ = fabric.IterHandlers[*loginConn](ctx, h.logins, func(g *fabric.Guard[*loginConn]) error {
		return g.State().stream.Send(&message.SystemMessageForwarded{Text: text})
	})
	return nil
}
