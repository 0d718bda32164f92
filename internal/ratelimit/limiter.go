package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a calls-per-minute ceiling for outbound provider calls.
// Acquire suspends the caller until a slot is free, so a saturated window
// delays calls instead of dropping them. One Limiter is constructed per
// process and shared by every ingestion cycle.
type Limiter struct {
	lim       *rate.Limiter
	perWindow int
	window    time.Duration
}

// NewLimiter returns a limiter allowing perMinute calls per rolling
// 60-second window.
func NewLimiter(perMinute int) *Limiter {
	return newLimiter(perMinute, time.Minute)
}

func newLimiter(perWindow int, window time.Duration) *Limiter {
	if perWindow <= 0 {
		perWindow = 10
	}
	return &Limiter{
		lim:       rate.NewLimiter(rate.Every(window/time.Duration(perWindow)), perWindow),
		perWindow: perWindow,
		window:    window,
	}
}

// Acquire blocks until a call slot is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// PerWindow returns the configured ceiling.
func (l *Limiter) PerWindow() int {
	return l.perWindow
}

// Window returns the rolling window size.
func (l *Limiter) Window() time.Duration {
	return l.window
}
