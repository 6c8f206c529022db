// Package redemption implements the reward-redemption session engine.
//
// A session is a time-boxed, staff-witnessed transaction: the countdown
// ticks once per second toward expiry while the customer presents the
// session to staff (step one) and a staff member confirms it (step two).
// The countdown tick and the external confirm race to finalize the same
// session; both funnel through store.MutateSession, which evaluates them
// against one consistent snapshot under the store lock. Expiry always wins
// over a late confirm: a confirm observed at or after the zero tick fails
// with ErrSessionExpired.
package redemption

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stampd-network/stampd/internal/domain"
	"github.com/stampd-network/stampd/internal/infra/observability"
	"github.com/stampd-network/stampd/internal/store"
)

// Journal receives finished sessions for the history views.
type Journal interface {
	RecordSession(domain.RedemptionSession) error
}

// Config controls session behavior.
type Config struct {
	TTLSeconds int           // session time-to-live; product policy envelope is 30–60
	Tick       time.Duration // countdown granularity (default 1s; shortened in tests)
}

// DefaultConfig returns the product defaults.
func DefaultConfig() Config {
	return Config{
		TTLSeconds: 60,
		Tick:       time.Second,
	}
}

// Engine owns the redemption session lifecycle and the per-session
// countdown goroutines.
type Engine struct {
	store   *store.Store
	journal Journal // nil disables journaling
	cfg     Config
	log     *zap.Logger

	mu     sync.Mutex
	timers map[string]chan struct{} // session id → countdown stop channel
}

// New creates the redemption session engine.
func New(st *store.Store, journal Journal, cfg Config, log *zap.Logger) *Engine {
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = DefaultConfig().TTLSeconds
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultConfig().Tick
	}
	return &Engine{
		store:   st,
		journal: journal,
		cfg:     cfg,
		log:     log,
		timers:  make(map[string]chan struct{}),
	}
}

// Start begins a redemption session for an unused reward and launches its
// countdown. A reward already consumed fails with ErrRewardUsed, and a
// reward with a live session fails with ErrInvalidTransition; earlier
// failed or expired sessions for the same reward do not block a retry.
func (e *Engine) Start(rewardID, walletID, storeID string) (domain.RedemptionSession, error) {
	sess, err := e.store.CreateSession(rewardID, walletID, storeID, e.cfg.TTLSeconds)
	if err != nil {
		return domain.RedemptionSession{}, err
	}

	stop := make(chan struct{})
	e.mu.Lock()
	e.timers[sess.ID] = stop
	e.mu.Unlock()

	observability.SessionsStarted.Inc()
	observability.ActiveSessions.Inc()
	go e.countdown(sess.ID, stop)

	e.log.Info("redemption session started",
		zap.String("session_id", sess.ID),
		zap.String("reward_id", rewardID),
		zap.Int("ttl_seconds", sess.TTLSeconds),
	)
	return sess, nil
}

// Present moves an active session to awaiting staff confirmation — the
// customer-side "show to staff" action. The countdown keeps running.
func (e *Engine) Present(id string) (domain.RedemptionSession, error) {
	return e.store.MutateSession(id, func(sess *domain.RedemptionSession, _ *domain.Reward) error {
		switch sess.Status {
		case domain.SessionActive:
			sess.Status = domain.SessionAwaitingConfirm
			return nil
		case domain.SessionExpired:
			return domain.ErrSessionExpired
		default:
			return fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, sess.Status)
		}
	})
}

// Confirm finalizes a presented session as succeeded and consumes the
// reward. This is the deliberate second action taken by staff; a customer
// cannot self-confirm, so confirming a session that was never presented
// fails with ErrInvalidTransition. A confirm arriving at or after the zero
// tick fails with ErrSessionExpired regardless of in-flight timing.
func (e *Engine) Confirm(id string) (domain.RedemptionSession, error) {
	sess, err := e.store.MutateSession(id, func(sess *domain.RedemptionSession, reward *domain.Reward) error {
		switch sess.Status {
		case domain.SessionAwaitingConfirm:
			// The snapshot is the last word: a reward consumed elsewhere
			// can never be consumed again through this session.
			if reward.IsUsed {
				return domain.ErrRewardUsed
			}
			sess.Status = domain.SessionSucceeded
			sess.FinishedAt = time.Now()
			reward.IsUsed = true
			return nil
		case domain.SessionExpired:
			return domain.ErrSessionExpired
		case domain.SessionActive:
			return fmt.Errorf("%w: session must be presented to staff before confirming", domain.ErrInvalidTransition)
		default:
			return fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, sess.Status)
		}
	})
	if err != nil {
		return sess, err
	}

	e.stopTimer(id)
	e.finalize(sess)
	return sess, nil
}

// Cancel finalizes a live session as failed. Either actor may cancel.
func (e *Engine) Cancel(id string) (domain.RedemptionSession, error) {
	sess, err := e.store.MutateSession(id, func(sess *domain.RedemptionSession, _ *domain.Reward) error {
		switch sess.Status {
		case domain.SessionActive, domain.SessionAwaitingConfirm:
			sess.Status = domain.SessionFailed
			sess.FinishedAt = time.Now()
			return nil
		default:
			return fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, sess.Status)
		}
	})
	if err != nil {
		return sess, err
	}

	e.stopTimer(id)
	e.finalize(sess)
	return sess, nil
}

// Get returns a session by id.
func (e *Engine) Get(id string) (domain.RedemptionSession, error) {
	return e.store.GetSession(id)
}

// Close stops every running countdown. Sessions are left as-is; the
// in-memory state does not outlive the process anyway.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, stop := range e.timers {
		close(stop)
		delete(e.timers, id)
	}
}

// ─── Countdown ──────────────────────────────────────────────────────────────

// countdown drives one session's clock. It exits when the session reaches
// a terminal state or its stop channel closes; after either, no tick ever
// mutates the session again.
func (e *Engine) countdown(id string, stop chan struct{}) {
	defer observability.ActiveSessions.Dec()

	ticker := time.NewTicker(e.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if e.tick(id) {
				e.stopTimer(id)
				return
			}
		}
	}
}

// tick decrements the session clock by one second and expires the session
// at zero. Returns true once the session is terminal. A tick that lands
// after an external finalize observes the terminal status under the store
// lock and leaves it untouched.
func (e *Engine) tick(id string) (terminal bool) {
	sess, err := e.store.MutateSession(id, func(sess *domain.RedemptionSession, _ *domain.Reward) error {
		if sess.Status.Terminal() {
			return nil
		}
		sess.RemainingSeconds--
		if sess.RemainingSeconds <= 0 {
			sess.RemainingSeconds = 0
			sess.Status = domain.SessionExpired
			sess.FinishedAt = time.Now()
		}
		return nil
	})
	if err != nil {
		// Session vanished from the store; nothing left to drive.
		return true
	}

	if sess.Status == domain.SessionExpired {
		e.finalize(sess)
		return true
	}
	return sess.Status.Terminal()
}

// stopTimer cancels a session's countdown if it is still registered.
// Whoever removes the map entry closes the channel, so a finalize racing
// the countdown's own exit cannot double-close.
func (e *Engine) stopTimer(id string) {
	e.mu.Lock()
	stop, ok := e.timers[id]
	if ok {
		delete(e.timers, id)
	}
	e.mu.Unlock()
	if ok {
		close(stop)
	}
}

// finalize records a terminal session exactly once: whichever path moved
// the session to its terminal state calls it.
func (e *Engine) finalize(sess domain.RedemptionSession) {
	observability.SessionsFinalized.WithLabelValues(string(sess.Status)).Inc()
	e.log.Info("redemption session finalized",
		zap.String("session_id", sess.ID),
		zap.String("outcome", string(sess.Status)),
	)

	if e.journal != nil {
		if err := e.journal.RecordSession(sess); err != nil {
			observability.JournalErrors.Inc()
			e.log.Warn("journal write failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
}
