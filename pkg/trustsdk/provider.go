package trustsdk

import (
	"context"
	"fmt"
	"sync"
)

// Well-known provider names.
const (
	ProviderMonetag = "monetag" // client-measured
	ProviderGMA     = "gma"     // server-measured
)

// RunOutcome is what a provider strategy reports back to the coordinator.
type RunOutcome struct {
	// MeasuredSeconds is the locally measured foreground watch time.
	// Zero when the server measures completion.
	MeasuredSeconds int

	// ServerMeasured tells the coordinator to skip the complete call and
	// instead poll the wallet for the credited reward.
	ServerMeasured bool
}

// ProviderStrategy renders an ad session and blocks until the view finishes.
// Implementations are selected by the server-confirmed provider field of the
// prepare response, never by client preference alone. The report callback
// surfaces intermediate state transitions (loading, playing) and is never nil
// when invoked by the coordinator.
type ProviderStrategy interface {
	Name() string
	Run(ctx context.Context, session *AdSession, policy *Policy, report func(Status)) (RunOutcome, error)
}

// ScriptLoader loads a provider rendering script into the host surface.
// Loading is expected to be expensive; the SDK guarantees a given URL is
// loaded at most once per loader even under concurrent requests.
type ScriptLoader interface {
	LoadScript(ctx context.Context, url string) error
}

// AdRenderer renders a prepared ad into the designated surface and returns
// once playback has started.
type AdRenderer interface {
	Render(ctx context.Context, session *AdSession) error
}

// sharedScriptLoader memoizes script loads by URL. Concurrent requests for
// the same URL share a single load; a failed load is retried on the next
// request.
type sharedScriptLoader struct {
	inner ScriptLoader

	mu    sync.Mutex
	loads map[string]*scriptLoad
}

type scriptLoad struct {
	done chan struct{}
	err  error
}

func newSharedScriptLoader(inner ScriptLoader) *sharedScriptLoader {
	return &sharedScriptLoader{inner: inner, loads: make(map[string]*scriptLoad)}
}

func (l *sharedScriptLoader) LoadScript(ctx context.Context, url string) error {
	l.mu.Lock()
	if load, ok := l.loads[url]; ok {
		l.mu.Unlock()
		select {
		case <-load.done:
			return load.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	load := &scriptLoad{done: make(chan struct{})}
	l.loads[url] = load
	l.mu.Unlock()

	load.err = l.inner.LoadScript(ctx, url)
	close(load.done)

	if load.err != nil {
		// Do not memoize failures; let a later attempt retry the load.
		l.mu.Lock()
		delete(l.loads, url)
		l.mu.Unlock()
	}
	return load.err
}

// ClientMeasuredProvider renders through a host script and measures watch
// time locally via WatchTimeWatcher (the monetag-style flow).
type ClientMeasuredProvider struct {
	ProviderName string
	Renderer     AdRenderer
	Watcher      *WatchTimeWatcher

	loader *sharedScriptLoader
}

// NewClientMeasuredProvider wires a client-measured strategy. The loader is
// wrapped so concurrent sessions share script loads.
func NewClientMeasuredProvider(name string, loader ScriptLoader, renderer AdRenderer, watcher *WatchTimeWatcher) *ClientMeasuredProvider {
	return &ClientMeasuredProvider{
		ProviderName: name,
		Renderer:     renderer,
		Watcher:      watcher,
		loader:       newSharedScriptLoader(loader),
	}
}

func (p *ClientMeasuredProvider) Name() string { return p.ProviderName }

func (p *ClientMeasuredProvider) Run(ctx context.Context, session *AdSession, policy *Policy, report func(Status)) (RunOutcome, error) {
	// A client-measured session without its ticket can never be redeemed;
	// fail before rendering anything.
	if session.Ticket == "" {
		return RunOutcome{}, ErrMissingTicket
	}

	if session.ScriptURL != "" {
		report(StatusLoading)
		if err := p.loader.LoadScript(ctx, session.ScriptURL); err != nil {
			return RunOutcome{}, fmt.Errorf("trustsdk: load provider script: %w", err)
		}
	}

	report(StatusPlaying)
	if err := p.Renderer.Render(ctx, session); err != nil {
		return RunOutcome{}, fmt.Errorf("trustsdk: render ad: %w", err)
	}

	measured, err := p.Watcher.Start(ctx, policy.RequiredDuration)
	if err != nil {
		return RunOutcome{}, err
	}
	return RunOutcome{MeasuredSeconds: measured}, nil
}

// AdEventKind classifies SDK playback events for the server-measured flow.
type AdEventKind int

const (
	AdEventStarted AdEventKind = iota
	AdEventCompleted
	AdEventFailed
)

// AdEvent is a playback notification from a server-measured ad SDK.
type AdEvent struct {
	Kind AdEventKind
	Err  error
}

// AdPlayer abstracts a server-measured ad SDK (the GMA-style flow): it plays
// the ad bound to the session's ad-tag URL and emits explicit start,
// complete and error events.
type AdPlayer interface {
	Play(ctx context.Context, adTagURL string) (<-chan AdEvent, error)
}

// ServerMeasuredProvider delegates completion detection entirely to the ad
// SDK and the backend; the client only observes events.
type ServerMeasuredProvider struct {
	ProviderName string
	Player       AdPlayer
}

func NewServerMeasuredProvider(name string, player AdPlayer) *ServerMeasuredProvider {
	return &ServerMeasuredProvider{ProviderName: name, Player: player}
}

func (p *ServerMeasuredProvider) Name() string { return p.ProviderName }

func (p *ServerMeasuredProvider) Run(ctx context.Context, session *AdSession, policy *Policy, report func(Status)) (RunOutcome, error) {
	if session.AdTagURL == "" {
		return RunOutcome{}, fmt.Errorf("trustsdk: session missing ad tag url")
	}

	report(StatusLoading)
	events, err := p.Player.Play(ctx, session.AdTagURL)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("trustsdk: start ad playback: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return RunOutcome{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return RunOutcome{}, fmt.Errorf("trustsdk: ad playback ended without completion")
			}
			switch ev.Kind {
			case AdEventStarted:
				report(StatusPlaying)
			case AdEventCompleted:
				return RunOutcome{ServerMeasured: true}, nil
			case AdEventFailed:
				if ev.Err != nil {
					return RunOutcome{}, fmt.Errorf("trustsdk: ad playback failed: %w", ev.Err)
				}
				return RunOutcome{}, fmt.Errorf("trustsdk: ad playback failed")
			}
		}
	}
}
