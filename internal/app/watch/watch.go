// Package watch implements the synchronization loop: a bounded-interval
// observer that lets a requester detect a status change made by an
// approver without a push channel. Each observation is one-shot — it
// re-reads the tracked entity by id until a terminal status appears,
// fires its callback once, and stops.
package watch

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stampd-network/stampd/internal/infra/observability"
)

// DefaultInterval is the reference polling interval.
const DefaultInterval = 500 * time.Millisecond

// StatusSource reads the current status of a tracked entity.
// The boolean reports whether the status is terminal.
type StatusSource interface {
	EntityStatus(id string) (status string, terminal bool, err error)
}

// Watcher creates observations against a status source.
type Watcher struct {
	src      StatusSource
	interval time.Duration
	log      *zap.Logger
}

// New creates a watcher. A non-positive interval falls back to DefaultInterval.
func New(src StatusSource, interval time.Duration, log *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{src: src, interval: interval, log: log}
}

// Subscription is a handle to one live observation.
type Subscription struct {
	cancel sync.Once
	done   chan struct{}
}

// Cancel stops the observation. It is safe to call more than once and
// takes effect before the next tick fires.
func (s *Subscription) Cancel() {
	s.cancel.Do(func() { close(s.done) })
}

// Observe polls the tracked entity every interval until its status turns
// terminal, then invokes onTerminal exactly once and stops. A failed read
// is not a workflow failure — the tick is simply retried on the next
// interval. Callers tracking a new entity must Cancel the previous
// subscription first; at most one live observation per tracked entity.
func (w *Watcher) Observe(id string, onTerminal func(status string)) *Subscription {
	sub := &Subscription{done: make(chan struct{})}
	observability.WatcherActive.Inc()

	go func() {
		defer observability.WatcherActive.Dec()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-sub.done:
				return
			case <-ticker.C:
				observability.WatcherPolls.Inc()
				status, terminal, err := w.src.EntityStatus(id)
				if err != nil {
					w.log.Debug("observation tick failed, retrying",
						zap.String("entity_id", id), zap.Error(err))
					continue
				}
				if !terminal {
					continue
				}
				// Cancel may have raced the read; a cancelled observation
				// must not fire its callback.
				select {
				case <-sub.done:
					return
				default:
				}
				sub.Cancel()
				onTerminal(status)
				return
			}
		}
	}()

	return sub
}
