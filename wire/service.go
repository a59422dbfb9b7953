package wire

import "fmt"

// ServiceKind is the closed enumeration of service roles a peer connection
// identifies itself as during its handshake.
type ServiceKind uint8

const (
	ServiceWorld ServiceKind = iota
	ServiceLogin
	ServiceDBAgent
	ServiceAgentShop
	ServiceEventMgr
	ServiceGlobalMgr
	ServiceChatNode
	ServiceRockNRoll
	ServiceParty
	ServiceNone
)

func (s ServiceKind) String() string {
	switch s {
	case ServiceWorld:
		return "World"
	case ServiceLogin:
		return "Login"
	case ServiceDBAgent:
		return "DBAgent"
	case ServiceAgentShop:
		return "AgentShop"
	case ServiceEventMgr:
		return "EventMgr"
	case ServiceGlobalMgr:
		return "GlobalMgr"
	case ServiceChatNode:
		return "ChatNode"
	case ServiceRockNRoll:
		return "RockNRoll"
	case ServiceParty:
		return "Party"
	case ServiceNone:
		return "None"
	default:
		return fmt.Sprintf("ServiceKind(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the closed set of known service kinds.
func (s ServiceKind) Valid() bool {
	return s <= ServiceNone
}

// PeerIdentity is a peer's full address within the fabric: its service
// kind plus, for World connections, the world/channel pair that makes the
// connection unique to the GMS. World/channel are meaningful only for
// World peers.
type PeerIdentity struct {
	Service ServiceKind
	WorldID uint16
	Channel uint16
}

func (p PeerIdentity) String() string {
	if p.Service == ServiceWorld {
		return fmt.Sprintf("%s[world=%d,channel=%d]", p.Service, p.WorldID, p.Channel)
	}
	return p.Service.String()
}
