package atomix

import (
	_ "unsafe"

	"github.com/valyala/fastrand"
)

const (
	minBackoff = 4       // pause cycles after the first failed attempt
	maxBackoff = 1 << 10 // upper bound for the jittered pause
)

//go:linkname procyield runtime.procyield
func procyield(cycles uint32)

// spinHint tells the CPU we are in a busy-wait loop (PAUSE on amd64, YIELD on arm64).
// The calling goroutine keeps its P.
func spinHint(cycles uint32) {
	procyield(cycles)
}

// backoff is a per-call exponential backoff for spin loops.
// The zero value is ready to use. It never yields to the scheduler.
type backoff struct {
	limit uint32
	spins uint64 // number of pauses issued so far
}

// spin pauses for a random number of cycles in [1, limit] and doubles limit
// up to maxBackoff. Jitter keeps contending waiters from retrying in lockstep.
func (b *backoff) spin() {
	if b.limit == 0 {
		b.limit = minBackoff
	}
	spinHint(fastrand.Uint32n(b.limit) + 1)
	if b.limit < maxBackoff {
		b.limit <<= 1
	}
	b.spins++
}
