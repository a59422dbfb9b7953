// Package fabric implements the connection registry and lending-mutex
// machinery that lets one service's connection tasks borrow exclusive,
// type-checked access to another's state without a shared lock: the
// owning goroutine stays in control of exactly when a borrow is granted
// by folding it into its own select loop.
package fabric

import (
	"context"
	"sync"

	"github.com/ashenvale/fabric/metrics"
)

// Registry is the append-only, capacity-bounded set of handles a
// service hub tracks for one borrowable role. Handles are never removed
// from the slice once added — Retire just marks them dead so iteration
// and borrowing skip them, keeping indices (and any external references
// to them) stable for the registry's lifetime.
type Registry struct {
	mu       sync.RWMutex
	handles  []*Handle
	capacity int
}

// NewRegistry creates a registry that holds at most capacity handles.
func NewRegistry(capacity int) *Registry {
	return &Registry{capacity: capacity}
}

// Add registers owner under tag and returns its handle. It fails once
// the registry is at capacity.
func (r *Registry) Add(tag ServiceTag, owner interface{}) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.handles) >= r.capacity {
		return nil, &ProtocolError{Reason: "registry at capacity"}
	}
	h := NewHandle(tag, owner)
	r.handles = append(r.handles, h)
	return h, nil
}

// Retire marks h as gone. Any borrower currently holding it keeps its
// Guard valid until Release; future borrows and iteration skip it.
func (r *Registry) Retire(h *Handle) {
	h.retire()
}

// Snapshot returns the current handle slice under a read lock, for
// callers that need to inspect handles (e.g. by Peek) without borrowing
// each one. Handles themselves are pointers shared with the live
// registry, so retirement observed after the snapshot is still honored
// by callers checking Retired().
func (r *Registry) Snapshot() []*Handle {
	return r.snapshot()
}

// snapshot returns the current handle slice under a read lock. Handles
// themselves are pointers shared with the live registry, so retirement
// observed after the snapshot is still honored by callers checking
// Retired().
func (r *Registry) snapshot() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, len(r.handles))
	copy(out, r.handles)
	return out
}

// Guard is the proof of exclusive, type-checked access returned by
// BorrowAs. The caller must call Release exactly once, typically via
// defer, to hand control back to the owner's loop.
type Guard[H any] struct {
	handle  *Handle
	state   H
	release func()
}

// State returns the borrowed, type-asserted owner value.
func (g *Guard[H]) State() H { return g.state }

// Release signals the owner that the borrower is finished. Safe to call
// more than once; only the first call has effect.
func (g *Guard[H]) Release() { g.release() }

// BorrowAs requests exclusive access to h, blocking until the owner's
// loop grants it, ctx is cancelled, or the queue is full. It fails with
// a ProtocolError if h's owner value is not assignable to H — the
// runtime analogue of a type-tag mismatch.
func BorrowAs[H any](ctx context.Context, h *Handle) (*Guard[H], error) {
	state, ok := h.owner.(H)
	if !ok {
		return nil, &ProtocolError{Reason: "borrow: handle type mismatch"}
	}
	if h.Retired() {
		return nil, &BorrowError{Reason: "handle retired"}
	}

	req := newLendRequest()
	select {
	case h.requests <- req:
	default:
		return nil, &BorrowError{Reason: "borrow queue full"}
	}
	metrics.BorrowQueueDepth.WithLabelValues(h.Tag.String()).Inc()
	defer metrics.BorrowQueueDepth.WithLabelValues(h.Tag.String()).Dec()

	select {
	case <-req.grant:
		var once sync.Once
		release := func() { once.Do(func() { close(req.release) }) }
		return &Guard[H]{handle: h, state: state, release: release}, nil
	case <-ctx.Done():
		// The owner may have committed to this grant in the same
		// instant; if so the release signal is still owed, or its loop
		// would hang forever.
		if !req.tryWithdraw() {
			<-req.grant
			close(req.release)
		}
		return nil, ctx.Err()
	}
}

// LendSelfUntil runs fn while concurrently servicing borrow requests
// against h, granting each one as it arrives, and returns fn's result as
// soon as fn finishes; requests still queued at that point stay queued
// for the owner's own loop. Call this from the
// handle's owning goroutine when it must perform a blocking operation
// (a frame write, a name lookup) without starving borrowers that arrive
// during it.
func LendSelfUntil(ctx context.Context, h *Handle, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	for {
		select {
		case err := <-done:
			return err
		case req := <-h.requests:
			h.Grant(req)
		}
	}
}

// IterHandlers borrows every live handle in r whose owner is
// assignable to H, invoking fn with each guard and releasing it before
// moving on. Handles that are retired, fail their type assertion, or
// whose borrow is refused (queue full) are skipped rather than treated
// as an error. Iteration stops early, returning fn's error, the moment
// fn returns a non-nil error.
func IterHandlers[H any](ctx context.Context, r *Registry, fn func(*Guard[H]) error) error {
	for _, h := range r.snapshot() {
		if h.Retired() {
			continue
		}
		if _, ok := h.owner.(H); !ok {
			continue
		}
		g, err := BorrowAs[H](ctx, h)
		if err != nil {
			continue
		}
		err = func() error {
			defer g.Release()
			return fn(g)
		}()
		if err != nil {
			return err
		}
	}
	return nil
}
