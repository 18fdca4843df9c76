// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package wikidata

import (
	"sync"
	"time"

	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/medkg-dev/medkg/pkg/health"
)

// DefaultHealthCooldown is how long an upstream stays unavailable after a
// failure before it is reported available again.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker records the availability of one upstream endpoint.
// An endpoint is available until RecordFailure is called, and becomes
// available again after the cooldown or on the next success.
type HealthTracker struct {
	mu           sync.RWMutex
	endpoint     string
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	successCount int64
	failureCount int64
	nowFunc      func() time.Time
}

// NewHealthTracker creates a tracker that starts healthy.
func NewHealthTracker(endpoint string, cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, medkgerr.Errorf(medkgerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		endpoint: endpoint,
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// The caller MUST hold at least h.mu.RLock.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

// IsHealthy reports whether the endpoint is healthy or the cooldown elapsed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.successCount++
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Metrics returns a snapshot of the tracker state.
func (h *HealthTracker) Metrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{
		Endpoint:     h.endpoint,
		SuccessCount: h.successCount,
		FailureCount: h.failureCount,
		Available:    h.isHealthyLocked(),
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if !h.healthy {
		end := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &end
	}
	return m
}
