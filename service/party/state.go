package party

import (
	"sync"
	"time"

	"github.com/ashenvale/fabric/fabric"
	"github.com/ashenvale/fabric/message"
)

// maxPartyID bounds the free-index pool: party ids are u16 and id 0 is
// never handed out, leaving 65535 allocatable slots per server.
const maxPartyID = 0xFFFF

// Character is one known player character on a server: its last-seen
// channel, its roster stats, and its party membership if any.
type Character struct {
	CharID    uint32
	Channel   uint16
	Online    bool
	TimeoutAt time.Time
	Level     uint16
	Class     uint16
	Name      string
	PartyID   uint16
	InParty   bool
}

// Party is a player group of two or more characters. Members is ordered;
// the leader is always one of the members.
type Party struct {
	ID       uint16
	LeaderID uint32
	Members  []uint32
}

// serverState holds everything the party service tracks for one server
// id. The mutex is held for writing around the state changes each
// inbound packet causes and released before that packet's replies are
// sent, so every mutation a single packet causes is atomic with respect
// to the grooming task and to other world connections of the same
// server, while the replies themselves are not.
type serverState struct {
	mu      sync.RWMutex
	chars   map[uint32]*Character
	parties map[uint16]*Party
	freeIDs []uint16
	nextID  uint16
	worlds  map[uint16]*fabric.Handle
}

func newServerState() *serverState {
	return &serverState{
		chars:   make(map[uint32]*Character),
		parties: make(map[uint16]*Party),
		worlds:  make(map[uint16]*fabric.Handle),
	}
}

// allocPartyID pops the most recently freed id, falling back to the next
// never-used one. ok is false only once all 65535 slots are live at once.
func (sv *serverState) allocPartyID() (uint16, bool) {
	if n := len(sv.freeIDs); n > 0 {
		id := sv.freeIDs[n-1]
		sv.freeIDs = sv.freeIDs[:n-1]
		return id, true
	}
	if sv.nextID >= maxPartyID {
		return 0, false
	}
	sv.nextID++
	return sv.nextID, true
}

func (sv *serverState) freePartyID(id uint16) {
	sv.freeIDs = append(sv.freeIDs, id)
}

// upsertCharacter inserts or refreshes a character from a ClientConnect,
// clearing any pending offline-kick deadline.
func (sv *serverState) upsertCharacter(req *message.ClientConnect) {
	c := sv.chars[req.CharID]
	if c == nil {
		c = &Character{CharID: req.CharID}
		sv.chars[req.CharID] = c
	}
	c.Channel = req.Channel
	c.Online = true
	c.TimeoutAt = time.Time{}
	c.Level = req.Level
	c.Class = req.Class
	c.Name = req.Name
}

// setLevel refreshes a character's level if it is known; invites carry
// fresher level data than the last ClientConnect did.
func (sv *serverState) setLevel(charID uint32, level uint16) {
	if c := sv.chars[charID]; c != nil {
		c.Level = level
	}
}

// acceptInvite forms a new two-member party led by the inviter, or grows
// the inviter's existing party by the invitee. fresh reports which of the
// two happened.
func (sv *serverState) acceptInvite(inviterID, inviteeID uint32) (p *Party, fresh bool, ok bool) {
	inviter := sv.chars[inviterID]
	invitee := sv.chars[inviteeID]
	if inviter == nil || invitee == nil || invitee.InParty {
		return nil, false, false
	}
	if !inviter.InParty {
		id, idOK := sv.allocPartyID()
		if !idOK {
			return nil, false, false
		}
		p = &Party{ID: id, LeaderID: inviterID, Members: []uint32{inviterID, inviteeID}}
		sv.parties[id] = p
		inviter.InParty = true
		inviter.PartyID = id
		invitee.InParty = true
		invitee.PartyID = id
		return p, true, true
	}
	p = sv.parties[inviter.PartyID]
	if p == nil {
		return nil, false, false
	}
	p.Members = append(p.Members, inviteeID)
	invitee.InParty = true
	invitee.PartyID = p.ID
	return p, false, true
}

// leaveResult describes what removing one character did to its party.
type leaveResult struct {
	ok        bool
	disbanded bool
	// remaining identifies the member kicked out by a disband, so the
	// caller can notify the world channel that member was last seen on.
	remainingID      uint32
	remainingChannel uint16
}

// removeFromParty takes charID out of partyID. A party left with fewer
// than two members is disbanded: the last member is removed too and the
// id goes back to the free pool. If the leader leaves a surviving party,
// leadership passes to the first remaining member.
func (sv *serverState) removeFromParty(charID uint32, partyID uint16) leaveResult {
	p := sv.parties[partyID]
	if p == nil {
		return leaveResult{}
	}
	idx := -1
	for i, id := range p.Members {
		if id == charID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return leaveResult{}
	}
	p.Members = append(p.Members[:idx], p.Members[idx+1:]...)
	if c := sv.chars[charID]; c != nil {
		c.InParty = false
		c.PartyID = 0
	}

	if len(p.Members) < 2 {
		res := leaveResult{ok: true, disbanded: true}
		if len(p.Members) == 1 {
			res.remainingID = p.Members[0]
			if c := sv.chars[res.remainingID]; c != nil {
				res.remainingChannel = c.Channel
				c.InParty = false
				c.PartyID = 0
			}
		}
		delete(sv.parties, p.ID)
		sv.freePartyID(p.ID)
		return res
	}
	if p.LeaderID == charID {
		p.LeaderID = p.Members[0]
	}
	return leaveResult{ok: true}
}

// partyStats snapshots p's full roster. Call with the server lock held.
func (sv *serverState) partyStats(p *Party) *message.PartyStats {
	stats := &message.PartyStats{PartyID: p.ID, LeaderID: p.LeaderID}
	for _, id := range p.Members {
		c := sv.chars[id]
		if c == nil {
			continue
		}
		stats.Members = append(stats.Members, message.PartyMember{
			CharID: c.CharID,
			Level:  c.Level,
			Class:  c.Class,
			Name:   c.Name,
		})
	}
	return stats
}

// kickNotice is one message the groomer owes a world connection after
// removing a timed-out character, addressed by the channel the affected
// character was last seen on.
type kickNotice struct {
	channel uint16
	msg     message.Message
}

// expireCharacters removes every offline character whose kick deadline
// has passed, unwinding its party membership, and returns the
// notifications to fan out once the lock is released.
func (sv *serverState) expireCharacters(now time.Time) []kickNotice {
	var notices []kickNotice
	for id, c := range sv.chars {
		if c.Online || c.TimeoutAt.IsZero() || now.Before(c.TimeoutAt) {
			continue
		}
		partyID := c.PartyID
		inParty := c.InParty
		channel := c.Channel
		delete(sv.chars, id)
		if !inParty {
			continue
		}
		res := sv.removeFromParty(id, partyID)
		if !res.ok {
			continue
		}
		notices = append(notices, kickNotice{channel: channel, msg: &message.PartyLeave{CharID: id, PartyID: partyID}})
		if res.disbanded && res.remainingID != 0 {
			notices = append(notices, kickNotice{channel: res.remainingChannel, msg: &message.PartyClear{PartyID: partyID}})
		}
	}
	return notices
}
