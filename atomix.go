// Package atomix provides low-level synchronization primitives built directly on
// atomic memory operations: a spin lock with a scoped guard, a single-use
// one-shot channel and an atomically reference-counted pointer with weak handles.
//
// None of the primitives blocks on the scheduler. Callers that want bounded
// waiting layer it on top with LockContext and ReceiveContext.
package atomix

// Dropper is implemented by values that own resources which must be released
// when a primitive destroys them.
// Drop is called exactly once, by whichever goroutine destroys the value.
type Dropper interface {
	Drop()
}

// cell holds a value that is mutated through a shared handle.
// It does no synchronization on its own, the owning primitive decides
// who may touch val and when.
type cell[T any] struct {
	val T // actual value stored in this cell
}

func (c *cell[T]) ptr() *T {
	return &c.val
}

func (c *cell[T]) store(v T) {
	c.val = v
}

// take moves the value out and zeroes the storage so the GC can reclaim
// whatever it referenced.
func (c *cell[T]) take() T {
	var zero T
	v := c.val
	c.val = zero
	return v
}

// finalize takes the value out of c and drops it if it knows how.
func (c *cell[T]) finalize() {
	v := c.take()
	if d, ok := any(v).(Dropper); ok {
		d.Drop()
	}
}

// noCopy may be embedded into structs which must not be copied after first use.
// See go vet -copylocks.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
