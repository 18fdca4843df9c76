// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package health

import "time"

// Metrics is a point-in-time view of an upstream service's health during a
// run. It is embedded in the output document and safe to serialize.
type Metrics struct {
	Endpoint      string     `json:"endpoint,omitempty"`
	SuccessCount  int64      `json:"success_count"`
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// FailureRatio returns failures over total recorded calls, or 0 when none.
func (m Metrics) FailureRatio() float64 {
	total := m.SuccessCount + m.FailureCount
	if total == 0 {
		return 0
	}
	return float64(m.FailureCount) / float64(total)
}
