package redemption

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stampd-network/stampd/internal/domain"
	"github.com/stampd-network/stampd/internal/store"
)

type recordingJournal struct {
	mu      sync.Mutex
	records []domain.RedemptionSession
}

func (j *recordingJournal) RecordSession(sess domain.RedemptionSession) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, sess)
	return nil
}

func (j *recordingJournal) snapshot() []domain.RedemptionSession {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.RedemptionSession(nil), j.records...)
}

// frozenTick keeps the automatic countdown from firing so tests can drive
// the clock by calling tick directly.
const frozenTick = time.Hour

func newEngine(t *testing.T, cfg Config) (*Engine, *store.Store, domain.Reward, *recordingJournal) {
	t.Helper()
	st := store.New()
	reward := st.CreateReward("wallet-1", "Free americano")

	journal := &recordingJournal{}
	e := New(st, journal, cfg, zap.NewNop())
	t.Cleanup(e.Close)
	return e, st, reward, journal
}

func TestStart(t *testing.T) {
	e, _, reward, _ := newEngine(t, Config{TTLSeconds: 60, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)
	require.Equal(t, domain.SessionActive, sess.Status)
	require.Equal(t, 60, sess.RemainingSeconds)
	require.Equal(t, 60, sess.TTLSeconds)
}

func TestStart_RewardAlreadyUsed(t *testing.T) {
	e, _, reward, _ := newEngine(t, Config{TTLSeconds: 60, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)
	_, err = e.Present(sess.ID)
	require.NoError(t, err)
	_, err = e.Confirm(sess.ID)
	require.NoError(t, err)

	_, err = e.Start(reward.ID, "wallet-1", "store-1")
	require.ErrorIs(t, err, domain.ErrRewardUsed)
}

func TestStart_RetryAfterFailedSession(t *testing.T) {
	e, _, reward, _ := newEngine(t, Config{TTLSeconds: 60, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)
	_, err = e.Cancel(sess.ID)
	require.NoError(t, err)

	// A failed session does not consume the reward; retry is allowed.
	retry, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)
	require.Equal(t, domain.SessionActive, retry.Status)
}

func TestStart_SecondLiveSessionRefused(t *testing.T) {
	e, _, reward, _ := newEngine(t, Config{TTLSeconds: 60, Tick: frozenTick})

	first, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)
	_, err = e.Present(first.ID)
	require.NoError(t, err)

	// Exactly one live session per reward: a duplicate start must not open
	// a second path to consuming the same reward.
	_, err = e.Start(reward.ID, "wallet-1", "store-1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// The first session is unaffected and confirms normally.
	confirmed, err := e.Confirm(first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionSucceeded, confirmed.Status)

	_, err = e.Start(reward.ID, "wallet-1", "store-1")
	require.ErrorIs(t, err, domain.ErrRewardUsed)
}

func TestConfirm_RefusesConsumedReward(t *testing.T) {
	e, st, reward, _ := newEngine(t, Config{TTLSeconds: 60, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)
	_, err = e.Present(sess.ID)
	require.NoError(t, err)

	// Consume the reward out from under the presented session.
	_, err = st.MutateSession(sess.ID, func(_ *domain.RedemptionSession, r *domain.Reward) error {
		r.IsUsed = true
		return nil
	})
	require.NoError(t, err)

	// The confirm snapshot sees the consumed reward and refuses; the
	// reward can never be consumed twice through a stale session.
	_, err = e.Confirm(sess.ID)
	require.ErrorIs(t, err, domain.ErrRewardUsed)

	got, err := e.Get(sess.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionAwaitingConfirm, got.Status)
}

func TestTwoStepConfirm(t *testing.T) {
	e, st, reward, journal := newEngine(t, Config{TTLSeconds: 60, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)

	// Step one: customer shows the session to staff.
	presented, err := e.Present(sess.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionAwaitingConfirm, presented.Status)

	// Step two: staff confirms.
	confirmed, err := e.Confirm(sess.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionSucceeded, confirmed.Status)
	require.False(t, confirmed.FinishedAt.IsZero())

	got, err := st.GetReward(reward.ID)
	require.NoError(t, err)
	require.True(t, got.IsUsed)

	records := journal.snapshot()
	require.Len(t, records, 1)
	require.Equal(t, domain.SessionSucceeded, records[0].Status)
}

func TestConfirm_RequiresPresentFirst(t *testing.T) {
	e, st, reward, _ := newEngine(t, Config{TTLSeconds: 60, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)

	// The customer cannot self-confirm: confirming an un-presented
	// session is refused.
	_, err = e.Confirm(sess.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := st.GetReward(reward.ID)
	require.NoError(t, err)
	require.False(t, got.IsUsed)
}

func TestCancel(t *testing.T) {
	e, st, reward, _ := newEngine(t, Config{TTLSeconds: 60, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)
	_, err = e.Present(sess.ID)
	require.NoError(t, err)

	cancelled, err := e.Cancel(sess.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionFailed, cancelled.Status)

	got, err := st.GetReward(reward.ID)
	require.NoError(t, err)
	require.False(t, got.IsUsed)

	// Terminal states are immutable.
	_, err = e.Cancel(sess.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = e.Confirm(sess.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCountdown_ExpiresSession(t *testing.T) {
	e, st, reward, journal := newEngine(t, Config{TTLSeconds: 2, Tick: time.Millisecond})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := e.Get(sess.ID)
		return err == nil && got.Status == domain.SessionExpired
	}, time.Second, time.Millisecond, "session should expire")

	got, err := e.Get(sess.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.RemainingSeconds)

	// Expiry never consumes the reward.
	r, err := st.GetReward(reward.ID)
	require.NoError(t, err)
	require.False(t, r.IsUsed)

	require.Eventually(t, func() bool {
		return len(journal.snapshot()) == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, domain.SessionExpired, journal.snapshot()[0].Status)
}

func TestExpiryBeatsLateConfirm(t *testing.T) {
	e, st, reward, _ := newEngine(t, Config{TTLSeconds: 3, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)
	_, err = e.Present(sess.ID)
	require.NoError(t, err)

	// Drive the clock by hand to the zero tick.
	for i := 0; i < 3; i++ {
		terminal := e.tick(sess.ID)
		require.Equal(t, i == 2, terminal, "tick %d", i)
	}

	got, err := e.Get(sess.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionExpired, got.Status)

	// A confirm arriving after the zero tick must not succeed.
	_, err = e.Confirm(sess.ID)
	require.ErrorIs(t, err, domain.ErrSessionExpired)
	_, err = e.Present(sess.ID)
	require.ErrorIs(t, err, domain.ErrSessionExpired)

	r, err := st.GetReward(reward.ID)
	require.NoError(t, err)
	require.False(t, r.IsUsed)
}

func TestCountdownKeepsRunningWhileAwaitingConfirm(t *testing.T) {
	e, _, reward, _ := newEngine(t, Config{TTLSeconds: 10, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)
	_, err = e.Present(sess.ID)
	require.NoError(t, err)

	// Presenting does not stop the countdown.
	e.tick(sess.ID)
	got, err := e.Get(sess.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionAwaitingConfirm, got.Status)
	require.Equal(t, 9, got.RemainingSeconds)
}

func TestTickAfterFinalizeIsNoOp(t *testing.T) {
	e, _, reward, journal := newEngine(t, Config{TTLSeconds: 60, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)
	_, err = e.Present(sess.ID)
	require.NoError(t, err)
	_, err = e.Confirm(sess.ID)
	require.NoError(t, err)

	// A tick landing after the finalize observes the terminal state and
	// leaves the session untouched.
	require.True(t, e.tick(sess.ID))

	got, err := e.Get(sess.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionSucceeded, got.Status)
	require.Equal(t, 60, got.RemainingSeconds)
	require.Len(t, journal.snapshot(), 1)
}

func TestRemainingSecondsMonotone(t *testing.T) {
	e, _, reward, _ := newEngine(t, Config{TTLSeconds: 5, Tick: frozenTick})

	sess, err := e.Start(reward.ID, "wallet-1", "store-1")
	require.NoError(t, err)

	prev := sess.RemainingSeconds
	for i := 0; i < 5; i++ {
		e.tick(sess.ID)
		got, err := e.Get(sess.ID)
		require.NoError(t, err)
		require.LessOrEqual(t, got.RemainingSeconds, prev)
		prev = got.RemainingSeconds
	}
	require.Equal(t, 0, prev)
}

func TestConfig_Defaults(t *testing.T) {
	e := New(store.New(), nil, Config{}, zap.NewNop())
	require.Equal(t, 60, e.cfg.TTLSeconds)
	require.Equal(t, time.Second, e.cfg.Tick)
}
