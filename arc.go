package atomix

import (
	"math"
	"sync/atomic"
)

const (
	// maxRefs bounds both counters. Reaching it takes more live handles than
	// fit in memory, so hitting it means a counting bug.
	maxRefs = math.MaxUint64 / 2
	// weakLocked is stored in weak while GetMut checks for uniqueness.
	weakLocked = math.MaxUint64
)

// arcBlock is the control block shared by every Arc and Weak of one value.
//
// All Arc handles together own one unit of weak, so
// weak == number of Weak handles + (strong > 0 ? 1 : 0).
// The value lives while strong > 0; the block lives while weak > 0.
type arcBlock[T any] struct {
	_      noCopy
	strong atomic.Uint64 // number of Arc handles
	weak   atomic.Uint64 // number of Weak handles, plus one for all Arcs
	freed  atomic.Bool
	value  cell[T]
}

// dropStrong releases one strong reference and destroys the value on the
// last one.
func (b *arcBlock[T]) dropStrong() {
	if b.strong.Add(^uint64(0)) != 0 {
		return
	}
	// Go atomics are sequentially consistent: the Add above already acts as
	// the acquire fence, every other handle's use of the value happened before it.
	b.value.finalize()
	// give back the weak unit held on behalf of all Arcs
	b.dropWeak()
}

func (b *arcBlock[T]) dropWeak() {
	if b.weak.Add(^uint64(0)) != 0 {
		return
	}
	b.free()
}

// free marks the block dead. Its memory goes back to the GC once the last
// handle pointing at it is gone.
func (b *arcBlock[T]) free() {
	if b.freed.Swap(true) {
		panic("atomix: arc control block freed twice")
	}
}

// Arc is a shared-ownership handle to a value of type T. Every handle owns one
// strong reference. The value is finalized, through Dropper if it implements
// it, when the last handle is dropped.
//
// Each handle is used by one goroutine at a time; share the value by handing
// each goroutine its own Clone. Drop every handle exactly once.
type Arc[T any] struct {
	b       *arcBlock[T]
	dropped atomic.Bool
}

// NewArc allocates a control block holding v and returns its first handle.
func NewArc[T any](v T) *Arc[T] {
	b := &arcBlock[T]{}
	b.value.store(v)
	b.strong.Store(1)
	b.weak.Store(1)
	return &Arc[T]{b: b}
}

func (a *Arc[T]) block() *arcBlock[T] {
	if a.dropped.Load() {
		panic("atomix: use of dropped arc")
	}
	return a.b
}

// Get returns a pointer to the shared value. It stays valid while a is live.
// Other handles may read the value at the same time; use GetMut to modify it.
func (a *Arc[T]) Get() *T {
	return a.block().value.ptr()
}

// Clone returns a new handle to the same value.
func (a *Arc[T]) Clone() *Arc[T] {
	b := a.block()
	// no ordering needed: a being live proves the block is alive
	if b.strong.Add(1) > maxRefs {
		b.strong.Add(^uint64(0))
		panic("atomix: arc strong count overflow")
	}
	return &Arc[T]{b: b}
}

// Drop releases the handle. Dropping the last handle finalizes the value.
// Drop on a nil Arc is a no-op; dropping a handle twice panics.
func (a *Arc[T]) Drop() {
	if a == nil {
		return
	}
	if a.dropped.Swap(true) {
		panic("atomix: arc dropped twice")
	}
	a.b.dropStrong()
}

// Downgrade creates a Weak handle to the value.
func (a *Arc[T]) Downgrade() *Weak[T] {
	b := a.block()
	n := b.weak.Load()
	for {
		if n == weakLocked {
			// GetMut is checking for uniqueness, wait for it
			spinHint(1)
			n = b.weak.Load()
			continue
		}
		if n > maxRefs {
			panic("atomix: arc weak count overflow")
		}
		if b.weak.CompareAndSwap(n, n+1) {
			return &Weak[T]{b: b}
		}
		n = b.weak.Load()
	}
}

// GetMut returns exclusive access to the value if a is the only Arc and no
// Weak handle exists. Otherwise it returns (nil, false).
func (a *Arc[T]) GetMut() (*T, bool) {
	b := a.block()
	// Locking weak at 1 (no Weak handles) keeps Downgrade out while strong is checked.
	if !b.weak.CompareAndSwap(1, weakLocked) {
		return nil, false
	}
	unique := b.strong.Load() == 1
	b.weak.Store(1)
	if !unique {
		return nil, false
	}
	return b.value.ptr(), true
}

// Same reports whether a and other point to the same value.
func (a *Arc[T]) Same(other *Arc[T]) bool {
	return a.block() == other.block()
}

// StrongCount returns the number of Arc handles. The result may be stale
// by the time it is used.
func (a *Arc[T]) StrongCount() uint64 {
	return a.block().strong.Load()
}

// WeakCount returns the number of Weak handles. The result may be stale
// by the time it is used.
func (a *Arc[T]) WeakCount() uint64 {
	n := a.block().weak.Load()
	if n == weakLocked {
		// only GetMut locks weak, and only when no Weak exists
		return 0
	}
	// a is live, so the Arcs' unit is included
	return n - 1
}

// Weak is a non-owning handle to an Arc value. It keeps the control block
// alive but not the value; Upgrade yields an Arc while the value still exists.
type Weak[T any] struct {
	b       *arcBlock[T]
	dropped atomic.Bool
}

func (w *Weak[T]) block() *arcBlock[T] {
	if w.dropped.Load() {
		panic("atomix: use of dropped weak")
	}
	return w.b
}

// Upgrade returns a new Arc if the value is still alive.
// Once the last Arc is gone Upgrade always returns (nil, false).
func (w *Weak[T]) Upgrade() (*Arc[T], bool) {
	b := w.block()
	n := b.strong.Load()
	for {
		// zero is terminal: the value may already be half finalized
		if n == 0 {
			return nil, false
		}
		if n > maxRefs {
			panic("atomix: arc strong count overflow")
		}
		if b.strong.CompareAndSwap(n, n+1) {
			return &Arc[T]{b: b}, true
		}
		n = b.strong.Load()
	}
}

// Clone returns a new Weak handle to the same value.
func (w *Weak[T]) Clone() *Weak[T] {
	b := w.block()
	if b.weak.Add(1) > maxRefs {
		b.weak.Add(^uint64(0))
		panic("atomix: arc weak count overflow")
	}
	return &Weak[T]{b: b}
}

// Drop releases the handle. The control block is freed once the value is gone
// and no Weak remains.
// Drop on a nil Weak is a no-op; dropping a handle twice panics.
func (w *Weak[T]) Drop() {
	if w == nil {
		return
	}
	if w.dropped.Swap(true) {
		panic("atomix: weak dropped twice")
	}
	w.b.dropWeak()
}
