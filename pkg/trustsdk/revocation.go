package trustsdk

import (
	"log/slog"
	"sync"
)

// RevocationBus broadcasts loss of privileged access to the rest of the
// application. The bus latches: once NotifyRevoked has fired, any listener
// subscribing afterwards is invoked immediately so late subscribers cannot
// miss the event. Reset clears the latch after a successful
// re-authentication.
type RevocationBus struct {
	mu        sync.Mutex
	revoked   bool
	nextID    int
	listeners map[int]func()
}

func NewRevocationBus() *RevocationBus {
	return &RevocationBus{listeners: make(map[int]func())}
}

// Subscribe registers a listener and returns its unsubscribe function. If the
// bus is already latched the listener fires immediately.
func (b *RevocationBus) Subscribe(listener func()) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	replay := b.revoked
	b.mu.Unlock()

	if replay {
		safeNotify(listener)
	}

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// NotifyRevoked latches the revoked state and fans out to all listeners.
// Repeated calls while latched are no-ops.
func (b *RevocationBus) NotifyRevoked() {
	b.mu.Lock()
	if b.revoked {
		b.mu.Unlock()
		return
	}
	b.revoked = true
	current := make([]func(), 0, len(b.listeners))
	for _, l := range b.listeners {
		current = append(current, l)
	}
	b.mu.Unlock()

	for _, l := range current {
		safeNotify(l)
	}
}

// IsRevoked reports whether the latch has fired.
func (b *RevocationBus) IsRevoked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoked
}

// Reset clears the latch, e.g. after a successful re-authentication.
// Listeners stay subscribed.
func (b *RevocationBus) Reset() {
	b.mu.Lock()
	b.revoked = false
	b.mu.Unlock()
}

// safeNotify keeps one panicking listener from silencing the rest.
func safeNotify(listener func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("revocation listener panicked", "panic", r)
		}
	}()
	listener()
}
