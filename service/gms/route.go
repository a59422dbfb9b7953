package gms

import (
	"context"

	"github.com/ashenvale/fabric/fabric"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/wire"
)

// routable is implemented by every connection kind the hub can forward a
// RoutePacket's inner payload to.
type routable interface {
	forward(id uint16, payload []byte) error
}

// identified is implemented by every routable owner, exposing the peer
// identity Peek needs to resolve a RoutePacket target without a full
// borrow round-trip.
type identified interface {
	identity() wire.PeerIdentity
}

func (w *worldConn) identity() wire.PeerIdentity  { return w.peer }
func (l *loginConn) identity() wire.PeerIdentity  { return l.peer }
func (g *genericConn) identity() wire.PeerIdentity { return g.peer }

// resolveTarget finds the World or Login handle addressed by serverID/
// groupID. The duplex route header carries no explicit target-service
// field, so World is tried first, then Login.
func (h *Hub) resolveTarget(serverID, groupID uint16) *fabric.Handle {
	for _, reg := range []*fabric.Registry{h.worlds, h.logins} {
		for _, handle := range reg.Snapshot() {
			if handle.Retired() {
				continue
			}
			id, ok := handle.Peek().(identified)
			if !ok {
				continue
			}
			peer := id.identity()
			if peer.WorldID == serverID && peer.Channel == groupID {
				return handle
			}
		}
	}
	return nil
}

// routePacket re-encodes rp's inner payload under OriginMainCmd and
// forwards it to the (server_id, group_id) target, or reports a routing
// error if no such handle is registered. A missing target is a
// RoutingError, logged by the caller without tearing down the
// originating connection.
func (h *Hub) routePacket(ctx context.Context, rp *message.RoutePacket) error {
	handle := h.resolveTarget(rp.Header.ServerID, rp.Header.GroupID)
	if handle == nil {
		return &fabric.RoutingError{Service: fabric.TagGlobalWorld, WorldID: rp.Header.ServerID, Channel: rp.Header.GroupID}
	}

	guard, err := fabric.BorrowAs[routable](ctx, handle)
	if err != nil {
		return &fabric.RoutingError{Service: handle.Tag, WorldID: rp.Header.ServerID, Channel: rp.Header.GroupID}
	}
	defer guard.Release()
	return guard.State().forward(rp.Header.OriginMainCmd, rp.Data)
}
