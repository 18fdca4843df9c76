// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package wikidata

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// linearBackOff waits step×n before retry n and stops after maxTries
// attempts in total.
type linearBackOff struct {
	step     time.Duration
	maxTries int
	retries  int
}

var _ backoff.BackOff = (*linearBackOff)(nil)

func newLinearBackOff(step time.Duration, maxTries int) *linearBackOff {
	return &linearBackOff{step: step, maxTries: maxTries}
}

// NextBackOff returns the delay before the next attempt, or backoff.Stop
// once maxTries attempts have been made.
func (b *linearBackOff) NextBackOff() time.Duration {
	if b.retries+1 >= b.maxTries {
		return backoff.Stop
	}
	b.retries++
	return b.step * time.Duration(b.retries)
}

func (b *linearBackOff) Reset() {
	b.retries = 0
}
