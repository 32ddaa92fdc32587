package trustsdk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedVisibility replays a fixed visibility sequence, then stays on the
// last value.
type scriptedVisibility struct {
	mu     sync.Mutex
	states []bool
	i      int
}

func (s *scriptedVisibility) visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.i < len(s.states) {
		v := s.states[s.i]
		s.i++
		return v
	}
	return s.states[len(s.states)-1]
}

// manualWatcher wires a watcher to a hand-driven tick channel.
func manualWatcher(foreground func() bool) (*WatchTimeWatcher, chan time.Time) {
	ticks := make(chan time.Time)
	w := NewWatchTimeWatcher(foreground)
	w.Interval = time.Second
	w.newTicker = func(d time.Duration) (<-chan time.Time, func()) {
		return ticks, func() {}
	}
	return w, ticks
}

func TestWatchTimeWatcher(t *testing.T) {
	t.Run("hidden ticks pause without resetting", func(t *testing.T) {
		vis := &scriptedVisibility{states: []bool{true, false, false, true, true}}
		w, ticks := manualWatcher(vis.visible)

		done := make(chan struct{})
		var measured int
		var err error
		go func() {
			measured, err = w.Start(context.Background(), 3)
			close(done)
		}()

		// visible, hidden, hidden, visible -> 2s accumulated, not done.
		for i := 0; i < 4; i++ {
			ticks <- time.Now()
		}
		select {
		case <-done:
			t.Fatal("watch resolved before required duration")
		default:
		}

		// One more visible tick completes the third second.
		ticks <- time.Now()
		<-done

		require.NoError(t, err)
		require.Equal(t, 3, measured)
	})

	t.Run("reports pause transitions", func(t *testing.T) {
		vis := &scriptedVisibility{states: []bool{true, false, true, true}}
		w, ticks := manualWatcher(vis.visible)

		var mu sync.Mutex
		var transitions []bool
		w.OnPause = func(paused bool) {
			mu.Lock()
			transitions = append(transitions, paused)
			mu.Unlock()
		}

		done := make(chan struct{})
		go func() {
			_, _ = w.Start(context.Background(), 3)
			close(done)
		}()
		for i := 0; i < 4; i++ {
			ticks <- time.Now()
		}
		<-done

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []bool{true, false}, transitions)
	})

	t.Run("cancel rejects the pending watch", func(t *testing.T) {
		w, ticks := manualWatcher(func() bool { return true })

		done := make(chan error, 1)
		go func() {
			_, err := w.Start(context.Background(), 30)
			done <- err
		}()

		ticks <- time.Now()
		w.Cancel()
		require.ErrorIs(t, <-done, ErrWatchCancelled)
	})

	t.Run("cancel while idle is a no-op", func(t *testing.T) {
		w := NewWatchTimeWatcher(func() bool { return true })
		require.NotPanics(t, func() { w.Cancel() })
		require.NotPanics(t, func() { w.Cancel() })
	})

	t.Run("only one watch at a time", func(t *testing.T) {
		w, ticks := manualWatcher(func() bool { return true })

		done := make(chan error, 1)
		go func() {
			_, err := w.Start(context.Background(), 30)
			done <- err
		}()
		ticks <- time.Now() // ensure the first watch is running

		_, err := w.Start(context.Background(), 30)
		require.ErrorIs(t, err, ErrWatchActive)

		w.Cancel()
		require.ErrorIs(t, <-done, ErrWatchCancelled)
	})

	t.Run("context cancellation stops the watch", func(t *testing.T) {
		w, _ := manualWatcher(func() bool { return true })

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := w.Start(ctx, 30)
			done <- err
		}()
		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("progress tracks elapsed and paused", func(t *testing.T) {
		vis := &scriptedVisibility{states: []bool{true, false}}
		w, ticks := manualWatcher(vis.visible)

		done := make(chan struct{})
		go func() {
			_, _ = w.Start(context.Background(), 30)
			close(done)
		}()

		ticks <- time.Now()
		ticks <- time.Now()
		// Both ticks have been consumed; the second send only returns once
		// the first was fully applied.
		w.Cancel()
		<-done

		elapsed, paused := w.Progress()
		require.GreaterOrEqual(t, elapsed, time.Second)
		require.True(t, paused)
	})
}
