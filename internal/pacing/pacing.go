// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package pacing bounds the request rate towards upstream services.
// Every node fetch is preceded by a call to Pacer.Wait; a single Pacer is
// shared by all fetch workers so the limit is global to the run.
package pacing

import (
	"context"
	"time"

	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"golang.org/x/time/rate"
)

// Pacer blocks until the caller may issue the next request.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Strategy names a pacing implementation.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyNone        Strategy = "none"
)

// Config selects and parameterises a Pacer.
type Config struct {
	Strategy Strategy
	// Delay is the minimum gap between successive requests (fixed strategy).
	Delay time.Duration
	// Rate is the sustained requests per second (token_bucket strategy).
	Rate float64
	// Burst is the bucket size (token_bucket strategy).
	Burst int
}

// Validate checks the config for the selected strategy.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyFixed, "":
		if c.Delay < 0 {
			return medkgerr.Errorf(medkgerr.CodePacingConfigInvalid, "pacing delay must not be negative (got %s)", c.Delay)
		}
	case StrategyTokenBucket:
		if c.Rate <= 0 {
			return medkgerr.Errorf(medkgerr.CodePacingConfigInvalid, "pacing rate must be positive (got %g)", c.Rate)
		}
		if c.Burst <= 0 {
			return medkgerr.Errorf(medkgerr.CodePacingConfigInvalid, "pacing burst must be positive (got %d)", c.Burst)
		}
	case StrategyNone:
	default:
		return medkgerr.Errorf(medkgerr.CodePacingConfigInvalid, "unknown pacing strategy %q", c.Strategy)
	}
	return nil
}

// New builds the Pacer described by cfg.
func New(cfg Config) (Pacer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case StrategyTokenBucket:
		return NewTokenBucket(cfg.Rate, cfg.Burst), nil
	case StrategyNone:
		return Unlimited{}, nil
	default:
		return NewFixedDelay(cfg.Delay), nil
	}
}

// SleepFunc sleeps for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the context-aware sleep used when none is injected.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FixedDelay enforces a minimum gap between successive requests using a
// single-token rate.Limiter refilled every delay.
//
// The first call never blocks: the bucket starts full. Callers that need a
// pause before the very first request must sleep themselves.
type FixedDelay struct {
	limiter *rate.Limiter
	now     func() time.Time
	sleep   SleepFunc
}

// FixedDelayOption configures a FixedDelay.
type FixedDelayOption func(*FixedDelay)

// WithClock injects the clock and sleep used by FixedDelay.
func WithClock(now func() time.Time, sleep SleepFunc) FixedDelayOption {
	return func(f *FixedDelay) {
		if now != nil {
			f.now = now
		}
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// NewFixedDelay returns a pacer that spaces requests by at least delay.
// A zero delay never blocks.
func NewFixedDelay(delay time.Duration, opts ...FixedDelayOption) *FixedDelay {
	f := &FixedDelay{
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		now:     time.Now,
		sleep:   Sleep,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Wait reserves the next slot and sleeps until it is due. The first call
// returns immediately. Concurrent workers each get their own slot, so they
// observe the same spacing as a single caller.
func (f *FixedDelay) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := f.now()
	r := f.limiter.ReserveN(now, 1)
	d := r.DelayFrom(now)
	if d <= 0 {
		return nil
	}
	if err := f.sleep(ctx, d); err != nil {
		r.CancelAt(f.now())
		return err
	}
	return nil
}

// TokenBucket paces requests with a golang.org/x/time/rate limiter.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows perSecond sustained requests with the given burst.
func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available.
func (t *TokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Unlimited never blocks. It still honours cancellation.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
