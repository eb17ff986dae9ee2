package atomix

import (
	"runtime"
	"sync/atomic"
)

// oneshot is the record shared by a Sender and a Receiver.
// msg holds a valid value if and only if ready is true.
type oneshot[T any] struct {
	_       noCopy
	ready   atomic.Bool  // false: empty, true: message published and not taken
	handles atomic.Int32 // live handles, 2 at creation
	msg     cell[T]
}

// release drops one handle reference. The last one out finalizes a message
// that was sent but never received.
func (c *oneshot[T]) release() {
	if c.handles.Add(-1) != 0 {
		return
	}
	// The other handle's release happened before our Add, so a Send is
	// fully visible here.
	if c.ready.Swap(false) {
		c.msg.finalize()
	}
}

// Sender is the sending half of a one-shot channel. It may send once.
type Sender[T any] struct {
	c       *oneshot[T]
	used    atomic.Bool
	cleanup runtime.Cleanup
}

// Receiver is the receiving half of a one-shot channel. It may receive once.
type Receiver[T any] struct {
	c       *oneshot[T]
	used    atomic.Bool
	cleanup runtime.Cleanup
}

// NewOneShot creates a channel that carries exactly one message from one
// sending goroutine to one receiving goroutine.
//
// The receiver polls with IsReady and then calls Receive; Receive never waits.
// Using either handle from more than one goroutine is not supported, and neither
// is calling Send or Receive twice.
//
// A handle that becomes unreachable without being used or dropped is released
// by the garbage collector; Drop makes that deterministic.
func NewOneShot[T any]() (*Sender[T], *Receiver[T]) {
	c := &oneshot[T]{}
	c.handles.Store(2)

	s := &Sender[T]{c: c}
	r := &Receiver[T]{c: c}
	s.cleanup = runtime.AddCleanup(s, (*oneshot[T]).release, c)
	r.cleanup = runtime.AddCleanup(r, (*oneshot[T]).release, c)
	return s, r
}

// Send publishes msg to the receiver and consumes the sender.
// Panics if the sender was already used or dropped.
func (s *Sender[T]) Send(msg T) {
	if !s.used.CompareAndSwap(false, true) {
		panic("atomix: send on used or dropped oneshot sender")
	}
	s.cleanup.Stop()

	c := s.c
	// write the slot first: no receiver can look at it while ready is false
	c.msg.store(msg)
	// release: publishes msg to the Receive that swaps ready back
	c.ready.Store(true)
	c.release()
}

// Drop gives up the sender without sending.
// Dropping a used sender is a no-op.
func (s *Sender[T]) Drop() {
	if s == nil || !s.used.CompareAndSwap(false, true) {
		return
	}
	s.cleanup.Stop()
	s.c.release()
}

// IsReady reports whether a message is waiting. It is a hint for polling:
// once it returns true, Receive succeeds.
func (r *Receiver[T]) IsReady() bool {
	return r.c.ready.Load()
}

// Receive takes the message and consumes the receiver.
//
// Receiving before a message is ready is a programming error and panics,
// as does receiving twice. Check IsReady first, or use ReceiveContext.
func (r *Receiver[T]) Receive() T {
	if !r.used.CompareAndSwap(false, true) {
		panic("atomix: receive on used or dropped oneshot receiver")
	}
	r.cleanup.Stop()

	c := r.c
	// acquire on success: pairs with Send's store of true
	if !c.ready.Swap(false) {
		c.release()
		panic("atomix: no message available on oneshot channel")
	}
	msg := c.msg.take()
	c.release()
	return msg
}

// Drop gives up the receiver without receiving. A message that was already sent
// is finalized once both handles are gone.
// Dropping a used receiver is a no-op.
func (r *Receiver[T]) Drop() {
	if r == nil || !r.used.CompareAndSwap(false, true) {
		return
	}
	r.cleanup.Stop()
	r.c.release()
}
