package gms

import (
	"context"
	"sync"
	"time"

	"github.com/ashenvale/fabric/fabric"
	"github.com/ashenvale/fabric/framing"
	"github.com/ashenvale/fabric/logging"
	"github.com/ashenvale/fabric/message"
	"github.com/ashenvale/fabric/wire"
)

// worldConn is the registered owner for one World channel connection.
type worldConn struct {
	handle *fabric.Handle
	stream *framing.Stream
	peer   wire.PeerIdentity

	mu      sync.Mutex
	state   uint8
	haveNet bool
	ip      [16]byte
	port    uint16
}

// groupNode snapshots the entry this World contributes to ServerState,
// skipping any channel that has not yet reported its ip/port via
// NotifyUserCount.
func (w *worldConn) groupNode() (message.ChannelGroup, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.haveNet {
		return message.ChannelGroup{}, false
	}
	return message.ChannelGroup{ServerID: w.peer.WorldID, GroupID: w.peer.Channel, State: w.state}, true
}

func (w *worldConn) forward(id uint16, payload []byte) error {
	return w.stream.Send(&message.Unknown{IDValue: id, Payload: payload})
}

// nextDailyResetUnix returns the next 04:00 UTC boundary strictly after
// now.
func nextDailyResetUnix(now time.Time) uint64 {
	reset := time.Date(now.Year(), now.Month(), now.Day(), 4, 0, 0, 0, time.UTC)
	if !reset.After(now) {
		reset = reset.Add(24 * time.Hour)
	}
	return uint64(reset.Unix())
}

func (h *Hub) runWorld(ctx context.Context, stream *framing.Stream, peer wire.PeerIdentity, key peerKey) {
	defer h.releaseIdentity(key)
	defer stream.Conn().Close()

	log := logging.Conn("gms", peer.WorldID, peer.Channel)
	wc := &worldConn{stream: stream, peer: peer, state: 5}
	handle, err := h.worlds.Add(fabric.TagGlobalWorld, wc)
	if err != nil {
		log.Errorf("register world: %v", err)
		return
	}
	wc.handle = handle
	defer h.worlds.Retire(handle)

	if err := stream.Send(&message.Connect{Service: wire.ServiceGlobalMgr, WorldID: peer.WorldID, Channel: peer.Channel}); err != nil {
		log.Errorf("send ack: %v", err)
		return
	}
	if err := stream.Send(&message.ChangeChannelType{State: wc.state}); err != nil {
		log.Errorf("send ChangeChannelType: %v", err)
		return
	}
	if err := stream.Send(&message.DailyQuestResetTime{ResetUnix: nextDailyResetUnix(time.Now().UTC())}); err != nil {
		log.Errorf("send DailyQuestResetTime: %v", err)
		return
	}
	if err := stream.Send(&message.AdditionalDungeonInstanceCount{Normal: 0, Hard: 0}); err != nil {
		log.Errorf("send AdditionalDungeonInstanceCount: %v", err)
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
			if err := h.dispatchWorld(ctx, wc, log, res.msg); err != nil {
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

func (h *Hub) dispatchWorld(ctx context.Context, wc *worldConn, log interface {
	Debugf(string, ...interface{})
	Warnf(string, ...interface{})
}, m message.Message) error {
	switch req := m.(type) {
	case *message.ProfilePathRequest:
		return wc.stream.Send(&message.ProfilePathResponse{Files: [3]message.ScpFile{
			{FileID: 4, Path: "Data/Item.scp"},
			{FileID: 2, Path: "Data/Mobs.scp"},
			{FileID: 1, Path: "Data/Warp.scp"},
		}})

	case *message.NotifyUserCount:
		wc.mu.Lock()
		first := !wc.haveNet
		if first {
			wc.ip = req.IP
			wc.port = req.Port
			wc.haveNet = true
		}
		wc.mu.Unlock()
		// Run out-of-line: broadcastServerState borrows every World
		// handle including this one, and this goroutine must return to
		// its own select loop to grant that borrow rather than block
		// here waiting for itself.
		go h.broadcastServerState(ctx)
		return nil

	case *message.ChannelOptionSync:
		log.Debugf("channel option sync: %d bytes", len(req.Raw))
		return nil

	case *message.ShutdownStatsSet:
		log.Debugf("shutdown stats set: %d bytes", len(req.Raw))
		return nil

	case *message.RoutePacket:
		return h.routePacket(ctx, req)

	case *message.SubPasswordCheckRequest:
		return wc.stream.Send(&message.SubPasswordCheckResponse{AuthNeeded: 0})

	case *message.SetLoginInstance:
		return nil

	default:
		log.Warnf("unexpected world message %T", m)
		return nil
	}
}
