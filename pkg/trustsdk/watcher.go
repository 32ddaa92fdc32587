package trustsdk

import (
	"context"
	"sync"
	"time"
)

// DefaultWatchInterval is the accumulation tick.
const DefaultWatchInterval = 250 * time.Millisecond

// WatchTimeWatcher accumulates foreground watch time for the client-measured
// provider. On every tick it consults the host's visibility predicate: hidden
// ticks pause accumulation without resetting it, visible ticks advance it by
// exactly one interval. The watch resolves once the accumulated time reaches
// the required duration.
//
// Only one watch may be active per watcher instance; the coordinator cancels
// any prior watch before starting a new one.
type WatchTimeWatcher struct {
	// Foreground reports whether the watched surface is currently visible
	// and foregrounded. Required: every host environment (browser shell,
	// embedded webview, native wrapper) must supply it.
	Foreground func() bool

	// OnPause, when set, is told whenever the paused flag toggles.
	OnPause func(paused bool)

	// Interval is the tick period. Defaults to DefaultWatchInterval.
	Interval time.Duration

	// newTicker is injectable for tests. Defaults to time.NewTicker.
	newTicker func(d time.Duration) (<-chan time.Time, func())

	mu     sync.Mutex
	cancel chan struct{} // non-nil while a watch is active

	elapsed time.Duration
	paused  bool
}

// NewWatchTimeWatcher builds a watcher over the given visibility predicate.
func NewWatchTimeWatcher(foreground func() bool) *WatchTimeWatcher {
	return &WatchTimeWatcher{
		Foreground: foreground,
		Interval:   DefaultWatchInterval,
	}
}

// Start blocks until requiredSeconds of foreground time have accumulated and
// returns the measured (whole-second) duration. It returns ErrWatchActive if
// a watch is already running, ErrWatchCancelled on Cancel, and the context
// error on ctx cancellation.
func (w *WatchTimeWatcher) Start(ctx context.Context, requiredSeconds int) (int, error) {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return 0, ErrWatchActive
	}
	cancel := make(chan struct{})
	w.cancel = cancel
	w.elapsed = 0
	w.paused = false
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	mkTicker := w.newTicker
	w.mu.Unlock()

	if mkTicker == nil {
		mkTicker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	ticks, stop := mkTicker(interval)
	defer stop()
	defer w.finish(cancel)

	required := time.Duration(requiredSeconds) * time.Second

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-cancel:
			return 0, ErrWatchCancelled
		case <-ticks:
			// One advancement per tick, never more: the tick channel is the
			// only place elapsed moves, so accumulation is idempotent per
			// tick and monotonic.
			visible := w.Foreground == nil || w.Foreground()
			done, elapsed := w.applyTick(visible, interval, required)
			if done {
				return int((elapsed + time.Second/2) / time.Second), nil
			}
		}
	}
}

func (w *WatchTimeWatcher) applyTick(visible bool, interval, required time.Duration) (bool, time.Duration) {
	w.mu.Lock()
	if visible {
		w.elapsed += interval
	}
	pauseChanged := w.paused != !visible
	w.paused = !visible
	elapsed := w.elapsed
	onPause := w.OnPause
	w.mu.Unlock()

	if pauseChanged && onPause != nil {
		onPause(!visible)
	}
	return elapsed >= required, elapsed
}

// Cancel stops the active watch, rejecting its pending Start with
// ErrWatchCancelled. Cancelling an idle watcher is a no-op.
func (w *WatchTimeWatcher) Cancel() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		close(cancel)
	}
}

// Progress reports the accumulated foreground time and the paused flag of
// the current (or most recent) watch.
func (w *WatchTimeWatcher) Progress() (elapsed time.Duration, paused bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.elapsed, w.paused
}

// finish clears the active-run marker if it still belongs to this run.
func (w *WatchTimeWatcher) finish(cancel chan struct{}) {
	w.mu.Lock()
	if w.cancel == cancel {
		w.cancel = nil
	}
	w.mu.Unlock()
}
