package trustsdk

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FetchTokenFunc retrieves a fresh anti-forgery token for a canonical path.
type FetchTokenFunc func(ctx context.Context, canonicalPath string) (string, error)

// TokenStore caches anti-forgery tokens keyed by canonical path. At most one
// live token is held per path; an evicted token is never reused. Concurrent
// fetches for the same path are collapsed into one request; fetches for
// different paths proceed independently.
type TokenStore struct {
	mu    sync.Mutex
	cache map[string]string
	group singleflight.Group
	fetch FetchTokenFunc

	// onAuthFailure fires when a token fetch itself is rejected with 401/403,
	// after the path has been evicted and before the error reaches the caller.
	onAuthFailure func()
}

func NewTokenStore(fetch FetchTokenFunc) *TokenStore {
	return &TokenStore{
		cache: make(map[string]string),
		fetch: fetch,
	}
}

// Get returns the cached token for path, fetching and caching one on miss.
func (s *TokenStore) Get(ctx context.Context, path string) (string, error) {
	canonical := CanonicalPath(path)

	s.mu.Lock()
	if token, ok := s.cache[canonical]; ok {
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(canonical, func() (any, error) {
		token, err := s.fetch(ctx, canonical)
		if err != nil {
			if apiErr, ok := asAPIError(err); ok && apiErr.IsAuthError() {
				s.Evict(canonical)
				if s.onAuthFailure != nil {
					s.onAuthFailure()
				}
			}
			// Any other failure leaves the cache untouched.
			return "", err
		}

		s.mu.Lock()
		s.cache[canonical] = token
		s.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Evict drops the cached token for path. Evicting an absent entry is a no-op.
func (s *TokenStore) Evict(path string) {
	canonical := CanonicalPath(path)
	s.mu.Lock()
	delete(s.cache, canonical)
	s.mu.Unlock()
}

// ClearAll drops every cached token.
func (s *TokenStore) ClearAll() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// cached reports whether a token is currently held for path, for tests.
func (s *TokenStore) cached(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cache[CanonicalPath(path)]
	return ok
}
