// Package ratelimit throttles the public capture endpoints and the admin
// login by client IP using an in-process sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Class groups endpoints that share a budget.
type Class string

const (
	// ClassCapture covers wizard answers and exit-intent submissions.
	ClassCapture Class = "capture"
	// ClassLogin covers the admin password gate.
	ClassLogin Class = "login"
)

// Limit is the request budget for one class within a window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result reports the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// Limiter keeps one sliding window of timestamps per key. State is per
// process; restarting clears every budget.
type Limiter struct {
	mu      sync.Mutex
	limits  map[Class]Limit
	windows map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

type Option func(*Limiter)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New builds a limiter. Classes missing from limits are never throttled.
func New(limits map[Class]Limit, opts ...Option) *Limiter {
	l := &Limiter{
		limits:  limits,
		windows: make(map[string]*slidingWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one request for ip under class.
func (l *Limiter) Allow(ctx context.Context, class Class, ip string) (*Result, error) {
	return l.AllowN(ctx, class, ip, 1)
}

// AllowN records cost requests when they fit in the remaining budget. A
// denied call records nothing.
func (l *Limiter) AllowN(_ context.Context, class Class, ip string, cost int) (*Result, error) {
	limit, ok := l.limits[class]
	if !ok || limit.Requests <= 0 || limit.Window <= 0 {
		return &Result{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := string(class) + ":" + ip
	sw := l.windows[key]
	if sw == nil {
		sw = &slidingWindow{window: limit.Window}
		l.windows[key] = sw
	}
	sw.cleanup(now)

	if len(sw.timestamps)+cost > limit.Requests {
		resetAt := now.Add(limit.Window)
		if len(sw.timestamps) > 0 {
			resetAt = sw.timestamps[0].Add(limit.Window)
		}
		return &Result{
			Allowed:    false,
			Limit:      limit.Requests,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt.Sub(now)),
		}, nil
	}

	for range cost {
		sw.timestamps = append(sw.timestamps, now)
	}
	return &Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(limit.Window),
	}, nil
}

// Reset clears the budget of ip under class.
func (l *Limiter) Reset(class Class, ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, string(class)+":"+ip)
}

// Sweep drops windows with no live timestamps and returns how many remain.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, sw := range l.windows {
		sw.cleanup(now)
		if len(sw.timestamps) == 0 {
			delete(l.windows, key)
		}
	}
	return len(l.windows)
}

// Run sweeps idle windows every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
