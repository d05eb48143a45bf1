package cache

import (
	"sync"
	"time"
)

// runner executes fn at a fixed interval on its own goroutine. Each
// background concern (TTL sweep, adaptive resize) gets its own runner so it
// can be cancelled individually during shutdown.
type runner struct {
	interval time.Duration
	fn       func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func newRunner(interval time.Duration, fn func()) *runner {
	return &runner{
		interval: interval,
		fn:       fn,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (r *runner) start() {
	go r.run()
}

func (r *runner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.fn()
		}
	}
}

// stop signals the goroutine and waits for it to finish. Safe to call more
// than once.
func (r *runner) stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
	})
}
