package atomix

import (
	"sync/atomic"
)

// SpinLock is a mutual exclusion lock that busy-waits instead of parking the
// goroutine. It protects a value of type T that is only reachable through a
// Guard obtained from Lock or TryLock.
//
// Use it for critical sections that are a handful of instructions long. A
// waiter keeps its P for as long as it waits, so a long critical section
// burns a core per waiter.
//
// There is no poisoning: a panic while the guard is held releases the lock
// through the deferred Unlock and leaves the value as the panicking code left it.
//
// A SpinLock is safe for concurrent use and must not be copied after first use.
type SpinLock[T any] struct {
	_      noCopy
	locked atomic.Bool // false: unlocked, true: some Guard is live
	value  cell[T]

	// Optional padding to keep stats off the lock's cache line
	_            [64]byte
	acquisitions atomic.Uint64
	contended    atomic.Uint64
	spins        atomic.Uint64
	tryFailures  atomic.Uint64
}

// SpinLockStats is a snapshot of SpinLock counters.
type SpinLockStats struct {
	Acquisitions    uint64 // successful Lock and TryLock calls
	Contended       uint64 // Lock calls that found the lock held
	Spins           uint64 // backoff pauses issued by contended Lock calls
	TryLockFailures uint64
}

// NewSpinLock creates an unlocked SpinLock holding value.
func NewSpinLock[T any](value T) *SpinLock[T] {
	l := &SpinLock[T]{}
	l.value.store(value)
	return l
}

// Lock spins until the lock is acquired and returns the guard that grants
// exclusive access to the value. Release it with Unlock, typically deferred:
//
//	g := l.Lock()
//	defer g.Unlock()
//	g.Value().n++
//
// Lock is not reentrant: locking twice from the same goroutine spins forever.
func (l *SpinLock[T]) Lock() *Guard[T] {
	// fast path: uncontended
	if !l.locked.Swap(true) {
		l.acquisitions.Add(1)
		return &Guard[T]{lock: l}
	}

	var b backoff
	for {
		// wait on a plain load so waiters don't bounce the cache line with writes
		for l.locked.Load() {
			b.spin()
		}
		// the swap that observes false is the acquire that pairs with Unlock's store
		if !l.locked.Swap(true) {
			break
		}
	}

	l.acquisitions.Add(1)
	l.contended.Add(1)
	l.spins.Add(b.spins)
	return &Guard[T]{lock: l}
}

// TryLock makes a single attempt to acquire the lock.
// Returns (nil, false) if the lock is held by someone else.
func (l *SpinLock[T]) TryLock() (*Guard[T], bool) {
	if l.locked.Swap(true) {
		l.tryFailures.Add(1)
		return nil, false
	}
	l.acquisitions.Add(1)
	return &Guard[T]{lock: l}, true
}

// With runs fn with exclusive access to the value. The lock is released when fn
// returns or panics.
func (l *SpinLock[T]) With(fn func(v *T)) {
	g := l.Lock()
	defer g.Unlock()
	fn(g.Value())
}

// Stats retrieves the current statistics of the SpinLock.
func (l *SpinLock[T]) Stats() SpinLockStats {
	return SpinLockStats{
		Acquisitions:    l.acquisitions.Load(),
		Contended:       l.contended.Load(),
		Spins:           l.spins.Load(),
		TryLockFailures: l.tryFailures.Load(),
	}
}

// Guard is exclusive access to the value of a locked SpinLock.
// It is only handed out by a successful acquisition, so at most one live Guard
// exists per lock. A Guard belongs to the goroutine that holds it
// and must be released exactly once.
type Guard[T any] struct {
	lock     *SpinLock[T]
	released bool
}

// Value returns a pointer to the protected value. The pointer must not be used
// after Unlock.
func (g *Guard[T]) Value() *T {
	if g.released {
		panic("atomix: access through released spinlock guard")
	}
	return g.lock.value.ptr()
}

// Unlock releases the lock. Everything written through Value before Unlock
// is visible to the next goroutine that acquires the lock.
func (g *Guard[T]) Unlock() {
	if g.released {
		panic("atomix: unlock of unlocked spinlock")
	}
	g.released = true
	// release: publishes the critical section to the next acquiring Swap
	g.lock.locked.Store(false)
}
