package service

import (
	"sync"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	"github.com/nightcapdev/hostdeck/internal/earn/metrics"
)

// outcomeWindow is how many recent verification outcomes feed the adaptive
// daily cap.
const outcomeWindow = 200

// PolicyService owns the reward policy handed to clients. The base policy
// comes from configuration; the effective daily cap adapts downwards while
// the recent verification failure ratio is elevated (a cheap brake on fraud
// waves without touching configuration).
type PolicyService struct {
	Base    domain.Policy
	Metrics *metrics.Metrics

	mu       sync.Mutex
	ring     [outcomeWindow]bool // true = failure
	ringLen  int
	ringIdx  int
	failures int
}

// RecordOutcome feeds one verification outcome into the rolling window.
func (s *PolicyService) RecordOutcome(success bool) {
	s.mu.Lock()
	if s.ringLen == outcomeWindow {
		if s.ring[s.ringIdx] {
			s.failures--
		}
	} else {
		s.ringLen++
	}
	s.ring[s.ringIdx] = !success
	if !success {
		s.failures++
	}
	s.ringIdx = (s.ringIdx + 1) % outcomeWindow
	ratio := s.failureRatioLocked()
	s.mu.Unlock()

	if s.Metrics != nil {
		s.Metrics.FailureRatio.Set(ratio)
	}
}

// FailureRatio reports the rolling verification failure ratio, zero until
// any outcomes have been recorded.
func (s *PolicyService) FailureRatio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureRatioLocked()
}

func (s *PolicyService) failureRatioLocked() float64 {
	if s.ringLen == 0 {
		return 0
	}
	return float64(s.failures) / float64(s.ringLen)
}

// Snapshot returns the policy with the adaptive cap applied.
func (s *PolicyService) Snapshot() domain.Policy {
	p := s.Base
	p.EffectivePerDay = s.effectivePerDay()

	if s.Metrics != nil {
		s.Metrics.EffectiveDailyCap.Set(float64(p.EffectivePerDay))
	}
	return p
}

// effectivePerDay halves the configured cap when the failure ratio crosses a
// quarter, and quarters it past one half. Never below one view.
func (s *PolicyService) effectivePerDay() int {
	ratio := s.FailureRatio()
	limit := s.Base.PerDay
	switch {
	case ratio >= 0.5:
		limit = s.Base.PerDay / 4
	case ratio >= 0.25:
		limit = s.Base.PerDay / 2
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}
