package watch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource is a scriptable status source.
type fakeSource struct {
	mu       sync.Mutex
	status   string
	terminal bool
	err      error
	reads    int
}

func (f *fakeSource) EntityStatus(string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.status, f.terminal, f.err
}

func (f *fakeSource) set(status string, terminal bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.terminal = terminal
	f.err = err
}

func (f *fakeSource) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func TestObserve_FiresOnceOnTerminal(t *testing.T) {
	src := &fakeSource{status: "pending"}
	w := New(src, 2*time.Millisecond, zap.NewNop())

	var mu sync.Mutex
	var fired []string
	sub := w.Observe("req-1", func(status string) {
		mu.Lock()
		fired = append(fired, status)
		mu.Unlock()
	})
	defer sub.Cancel()

	// A few pending reads go by without firing.
	require.Eventually(t, func() bool { return src.readCount() >= 3 }, time.Second, time.Millisecond)
	mu.Lock()
	require.Empty(t, fired)
	mu.Unlock()

	src.set("approved", true, nil)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 1 && fired[0] == "approved"
	}, time.Second, time.Millisecond)

	// The observation is one-shot: polling stops after the terminal read.
	settled := src.readCount()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, settled, src.readCount())

	mu.Lock()
	require.Len(t, fired, 1)
	mu.Unlock()
}

func TestObserve_CancelStopsPolling(t *testing.T) {
	src := &fakeSource{status: "pending"}
	w := New(src, 2*time.Millisecond, zap.NewNop())

	fired := make(chan string, 1)
	sub := w.Observe("req-1", func(status string) { fired <- status })

	require.Eventually(t, func() bool { return src.readCount() >= 1 }, time.Second, time.Millisecond)
	sub.Cancel()
	sub.Cancel() // repeated cancel is safe

	settled := src.readCount()
	time.Sleep(20 * time.Millisecond)
	// Cancellation is effective before the next tick: at most one tick was
	// already in flight when Cancel ran.
	require.LessOrEqual(t, src.readCount(), settled+1)

	// A terminal state after cancellation must not fire the callback.
	src.set("approved", true, nil)
	select {
	case status := <-fired:
		t.Fatalf("callback fired after cancel with %q", status)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestObserve_TransientErrorsAreRetried(t *testing.T) {
	src := &fakeSource{err: errors.New("store unavailable")}
	w := New(src, 2*time.Millisecond, zap.NewNop())

	fired := make(chan string, 1)
	sub := w.Observe("req-1", func(status string) { fired <- status })
	defer sub.Cancel()

	// Let a few failing ticks pass; the observation must survive them.
	require.Eventually(t, func() bool { return src.readCount() >= 3 }, time.Second, time.Millisecond)

	src.set("rejected", true, nil)

	select {
	case status := <-fired:
		require.Equal(t, "rejected", status)
	case <-time.After(time.Second):
		t.Fatal("callback never fired after errors cleared")
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	w := New(&fakeSource{}, 0, zap.NewNop())
	require.Equal(t, DefaultInterval, w.interval)
}
