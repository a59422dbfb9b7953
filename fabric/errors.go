package fabric

import "fmt"

// ProtocolError is a fatal violation of connection-state expectations:
// wrong message id for the expected state, duplicate service connection,
// mismatched follow-up fields, client version mismatch.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "fabric: protocol error: " + e.Reason }

// RoutingError is logged but non-fatal to the connection that triggered
// it: a RoutePacket with no resolvable target handle.
type RoutingError struct {
	Service ServiceTag
	WorldID uint16
	Channel uint16
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("fabric: routing error: no handle for service=%v world=%d channel=%d", e.Service, e.WorldID, e.Channel)
}

// BorrowError is logged but non-fatal: a borrow request queue overflowed
// or was cancelled before the owner accepted it.
type BorrowError struct {
	Reason string
}

func (e *BorrowError) Error() string { return "fabric: borrow error: " + e.Reason }
