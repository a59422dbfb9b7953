package fabric

import "sync/atomic"

// maxBorrowQueueDepth bounds how many pending borrow requests a single
// handle will buffer before BorrowAs fails fast with a BorrowError.
const maxBorrowQueueDepth = 16

// Request lifecycle. A request leaves pending exactly once: either the
// owner commits to granting it, or the borrower withdraws it on
// cancellation. The compare-and-swap decides races between the two.
const (
	lendPending int32 = iota
	lendGranted
	lendWithdrawn
)

// lendRequest is a single borrower's ticket, handed to the owner's
// select loop via Handle.Requests. grant is closed once the owner has
// yielded access; release is closed by the borrower once it is done.
type lendRequest struct {
	state   int32
	grant   chan struct{}
	release chan struct{}
}

func newLendRequest() *lendRequest {
	return &lendRequest{grant: make(chan struct{}), release: make(chan struct{})}
}

func (r *lendRequest) tryGrant() bool {
	return atomic.CompareAndSwapInt32(&r.state, lendPending, lendGranted)
}

func (r *lendRequest) tryWithdraw() bool {
	return atomic.CompareAndSwapInt32(&r.state, lendPending, lendWithdrawn)
}

// Handle is one registry entry: a fixed owner value plus the channel
// machinery that lets other connection tasks borrow exclusive access to
// it without the owner's own loop giving up control of when that access
// is granted.
type Handle struct {
	Tag      ServiceTag
	owner    interface{}
	requests chan *lendRequest
	retired  int32
}

// NewHandle wraps owner (the connection state a borrower may later
// downcast to) under tag.
func NewHandle(tag ServiceTag, owner interface{}) *Handle {
	return &Handle{
		Tag:      tag,
		owner:    owner,
		requests: make(chan *lendRequest, maxBorrowQueueDepth),
	}
}

// Requests is the channel the owning connection's main select loop must
// service alongside its transport I/O: receiving a request here means a
// borrower is waiting for exclusive access to be handed over.
func (h *Handle) Requests() <-chan *lendRequest {
	return h.requests
}

// Grant yields access to a single waiting borrower, then blocks until
// that borrower calls Guard.Release. Call it from the owner's own
// goroutine only, in response to a receive on Requests. A request the
// borrower managed to withdraw first is a no-op.
func (h *Handle) Grant(req *lendRequest) {
	if !req.tryGrant() {
		return
	}
	close(req.grant)
	<-req.release
}

// Peek returns the handle's owner value without going through the
// borrow protocol. owner is fixed at construction time, so this is safe
// to call concurrently with Grant/BorrowAs; it exists for lookups that
// only need to inspect identity (e.g. routing by world/channel) without
// paying for a full borrow round-trip.
func (h *Handle) Peek() interface{} {
	return h.owner
}

// Retired reports whether the handle's owner has gone away; borrows and
// iteration skip retired handles.
func (h *Handle) Retired() bool {
	return atomic.LoadInt32(&h.retired) != 0
}

func (h *Handle) retire() {
	atomic.StoreInt32(&h.retired, 1)
}
