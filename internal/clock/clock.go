/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clock abstracts wall-clock time so action executors can block until
// a scheduled instant and tests can run those waits instantly.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock provides the current time and blocking waits.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until t or until ctx is done. It returns immediately
	// when t is not in the future.
	SleepUntil(ctx context.Context, t time.Time) error
}

// Real is the process wall clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// SleepUntil blocks on a timer until t.
func (Real) SleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sleep blocks for d using c.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	return c.SleepUntil(ctx, c.Now().Add(d))
}

// WindowStart floors t to the minute. Calendar entries are no more precise
// than minutes, so the monitoring window starts on a minute boundary.
func WindowStart(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// Fake is a manually driven clock. SleepUntil advances the fake time instead
// of blocking, and records every requested wake-up.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	wakeUp []time.Time
}

// NewFake creates a fake clock at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// SleepUntil records t and jumps the fake time to it.
func (f *Fake) SleepUntil(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wakeUp = append(f.wakeUp, t)
	if t.After(f.now) {
		f.now = t
	}
	return nil
}

// WakeUps returns the instants passed to SleepUntil, in call order.
func (f *Fake) WakeUps() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.wakeUp...)
}
