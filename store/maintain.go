package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Maintainer runs pruning and compaction for a store at fixed intervals.
// Each timer is independently disabled by a non-positive interval, and Stop
// cancels both cleanly for shutdown.
type Maintainer struct {
	store        Store
	pruneEvery   time.Duration
	compactEvery time.Duration
	log          *slog.Logger

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewMaintainer(s Store, pruneEvery, compactEvery time.Duration, log *slog.Logger) *Maintainer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Maintainer{
		store:        s,
		pruneEvery:   pruneEvery,
		compactEvery: compactEvery,
		log:          log,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

func (m *Maintainer) Start() {
	go m.run()
}

// Stop signals the maintenance goroutine and waits for it to finish. Safe to
// call multiple times.
func (m *Maintainer) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		<-m.doneCh
	})
}

func (m *Maintainer) run() {
	defer close(m.doneCh)

	var pruneC, compactC <-chan time.Time
	if m.pruneEvery > 0 {
		t := time.NewTicker(m.pruneEvery)
		defer t.Stop()
		pruneC = t.C
	}
	if m.compactEvery > 0 {
		t := time.NewTicker(m.compactEvery)
		defer t.Stop()
		compactC = t.C
	}

	for {
		select {
		case <-m.stopCh:
			return
		case <-pruneC:
			if n, err := m.store.Prune(context.Background()); err != nil {
				m.log.Debug("prune failed", slog.String("error", err.Error()))
			} else if n > 0 {
				m.log.Debug("pruned expired records", slog.Int("removed", n))
			}
		case <-compactC:
			if _, err := m.store.Compact(context.Background()); err != nil {
				m.log.Debug("compaction failed", slog.String("error", err.Error()))
			}
		}
	}
}
