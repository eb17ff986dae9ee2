package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aradilov/atomix"
)

// buffer is a shared resource that reports when it is finalized.
type buffer struct {
	name string
	data []byte
}

func (b *buffer) Drop() {
	log.Printf("[buffer] %s released (%d bytes)", b.name, len(b.data))
}

func main() {
	const workers = 4

	shared := atomix.NewArc(&buffer{name: "shared", data: make([]byte, 1<<20)})
	watch := shared.Downgrade()
	total := atomix.NewSpinLock(0)

	var wg sync.WaitGroup
	results := make([]*atomix.Receiver[int], workers)
	for i := 0; i < workers; i++ {
		s, r := atomix.NewOneShot[int]()
		results[i] = r

		wg.Add(1)
		go func(id int, buf *atomix.Arc[*buffer]) {
			defer wg.Done()
			defer buf.Drop()

			n := len((*buf.Get()).data) / workers * (id + 1)
			total.With(func(v *int) { *v += n })
			s.Send(n)
		}(i, shared.Clone())
	}
	shared.Drop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i, r := range results {
		n, err := atomix.ReceiveContext(ctx, r, atomix.SleepWaitStrategy{D: time.Millisecond})
		if err != nil {
			log.Fatalf("worker %d: %v", i, err)
		}
		log.Printf("[worker %d] result=%d", i, n)
	}
	wg.Wait()

	if _, ok := watch.Upgrade(); ok {
		log.Fatalf("shared buffer still alive after all workers finished")
	}
	watch.Drop()

	g := total.Lock()
	log.Printf("total=%d stats=%+v", *g.Value(), total.Stats())
	g.Unlock()
}
