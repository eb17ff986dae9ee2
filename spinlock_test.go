package atomix

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mutual exclusion: N goroutines incrementing K times must end at N*K.
func TestSpinLockCounter(t *testing.T) {
	const (
		N = 8
		K = 10_000
	)

	l := NewSpinLock(0)
	var wg sync.WaitGroup
	wg.Add(N)
	for i := 0; i < N; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < K; j++ {
				g := l.Lock()
				*g.Value()++
				g.Unlock()
			}
		}()
	}
	wg.Wait()

	g := l.Lock()
	defer g.Unlock()
	require.Equal(t, N*K, *g.Value())

	stats := l.Stats()
	assert.Equal(t, uint64(N*K+1), stats.Acquisitions)
	assert.LessOrEqual(t, stats.Contended, stats.Acquisitions)
}

// Two goroutines appending markers under the lock: no lost or duplicated entries.
func TestSpinLockAppend(t *testing.T) {
	const perWriter = 5_000

	l := NewSpinLock([]int(nil))
	var wg sync.WaitGroup
	wg.Add(2)
	for w := 0; w < 2; w++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				l.With(func(v *[]int) {
					*v = append(*v, base+i)
				})
			}
		}(w * perWriter)
	}
	wg.Wait()

	var got []int
	l.With(func(v *[]int) { got = *v })
	require.Len(t, got, 2*perWriter)

	seen := make([]int, 2*perWriter)
	last := [2]int{-1, -1}
	for _, m := range got {
		seen[m]++
		// each writer's markers keep their program order
		w := m / perWriter
		if m <= last[w] {
			t.Fatalf("marker %d after %d from the same writer", m, last[w])
		}
		last[w] = m
	}
	for i, n := range seen {
		if n != 1 {
			t.Fatalf("marker %d seen %d times (expected 1)", i, n)
		}
	}
}

// Lock, read, unlock leaves the value unchanged for the next locker.
func TestSpinLockReadOnlyRoundTrip(t *testing.T) {
	type point struct{ X, Y int }
	v := point{X: 3, Y: -7}
	l := NewSpinLock(v)

	g := l.Lock()
	assert.Equal(t, v, *g.Value())
	g.Unlock()

	g = l.Lock()
	defer g.Unlock()
	assert.Equal(t, v, *g.Value())
}

func TestSpinLockTryLock(t *testing.T) {
	l := NewSpinLock("x")

	g, ok := l.TryLock()
	require.True(t, ok)
	require.NotNil(t, g)

	g2, ok := l.TryLock()
	assert.False(t, ok)
	assert.Nil(t, g2)

	g.Unlock()

	g, ok = l.TryLock()
	require.True(t, ok)
	assert.Equal(t, "x", *g.Value())
	g.Unlock()

	stats := l.Stats()
	assert.Equal(t, uint64(2), stats.Acquisitions)
	assert.Equal(t, uint64(1), stats.TryLockFailures)
}

// A panic inside the critical section still releases the lock, and what was
// written before the panic stays.
func TestSpinLockWithPanic(t *testing.T) {
	l := NewSpinLock(0)

	assert.PanicsWithValue(t, "boom", func() {
		l.With(func(v *int) {
			*v = 42
			panic("boom")
		})
	})

	g, ok := l.TryLock()
	require.True(t, ok, "lock must be released while unwinding")
	defer g.Unlock()
	assert.Equal(t, 42, *g.Value())
}

func TestGuardMisuse(t *testing.T) {
	l := NewSpinLock(1)
	g := l.Lock()
	g.Unlock()

	assert.PanicsWithValue(t, "atomix: unlock of unlocked spinlock", g.Unlock)
	assert.PanicsWithValue(t, "atomix: access through released spinlock guard", func() {
		_ = g.Value()
	})

	// the stale guard must not have released someone else's lock
	g2 := l.Lock()
	_, ok := l.TryLock()
	assert.False(t, ok)
	g2.Unlock()
}

func BenchmarkSpinLock(b *testing.B) {
	l := NewSpinLock(0)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g := l.Lock()
			*g.Value()++
			g.Unlock()
		}
	})
}

func BenchmarkMutex(b *testing.B) {
	var mu sync.Mutex
	n := 0
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			mu.Lock()
			n++
			mu.Unlock()
		}
	})
}
