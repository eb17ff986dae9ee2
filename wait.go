package atomix

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

var (
	ErrTimeout = fmt.Errorf("timeout")
)

// WaitStrategy decides what a poller does between two failed attempts.
// The primitives themselves never wait; LockContext and ReceiveContext use a
// WaitStrategy to poll them.
type WaitStrategy interface {
	Wait()
}

// SpinWaitStrategy pauses the CPU for a number of cycles and keeps the P.
type SpinWaitStrategy struct {
	Cycles uint32
}

func (w SpinWaitStrategy) Wait() {
	cycles := w.Cycles
	if cycles == 0 {
		cycles = minBackoff
	}
	spinHint(cycles)
}

// SchedWaitStrategy yields the P with runtime.Gosched().
type SchedWaitStrategy struct{}

func (SchedWaitStrategy) Wait() {
	runtime.Gosched()
}

// SleepWaitStrategy parks the goroutine with time.Sleep.
type SleepWaitStrategy struct {
	D time.Duration
}

func (w SleepWaitStrategy) Wait() {
	time.Sleep(w.D)
}

// LockContext acquires l by polling TryLock, waiting with ws between attempts.
// Returns ErrTimeout if ctx is done before the lock is acquired.
// A nil ws means SchedWaitStrategy.
func LockContext[T any](ctx context.Context, l *SpinLock[T], ws WaitStrategy) (*Guard[T], error) {
	if ws == nil {
		ws = SchedWaitStrategy{}
	}
	for {
		if g, ok := l.TryLock(); ok {
			return g, nil
		}
		select {
		case <-ctx.Done():
			return nil, ErrTimeout
		default:
		}
		ws.Wait()
	}
}

// ReceiveContext polls r until a message is ready and receives it, waiting
// with ws between polls. Returns ErrTimeout if ctx is done first; r is not
// consumed in that case and may be polled again.
// A nil ws means SchedWaitStrategy.
func ReceiveContext[T any](ctx context.Context, r *Receiver[T], ws WaitStrategy) (T, error) {
	if ws == nil {
		ws = SchedWaitStrategy{}
	}
	for !r.IsReady() {
		select {
		case <-ctx.Done():
			var zero T
			return zero, ErrTimeout
		default:
		}
		ws.Wait()
	}
	return r.Receive(), nil
}
