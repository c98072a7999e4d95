// Package ratelimit implements a fixed-window request counter keyed by
// (action, identifier). Windows tolerate bursts at their boundaries;
// that is an accepted trade-off of fixed-window counting over sliding
// windows. The table lives in process memory, so a multi-instance
// deployment must substitute a shared Store implementation.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store is the counter abstraction consumed by call sites. The
// in-memory Limiter is the default implementation; an external shared
// counter can replace it without touching callers.
type Store interface {
	Check(action string, identifier string) Result
	Reset(action string, identifier string)
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Rule is the per-action window configuration.
type Rule struct {
	Limit  int
	Window time.Duration
}

type entry struct {
	count   int
	resetAt time.Time
}

type Limiter struct {
	mu      sync.Mutex
	rules   map[string]Rule
	entries map[string]*entry
	now     func() time.Time
}

var defaultRule = Rule{Limit: 60, Window: time.Minute}

func New(rules map[string]Rule) *Limiter {
	if rules == nil {
		rules = map[string]Rule{}
	}

	return &Limiter{
		rules:   rules,
		entries: map[string]*entry{},
		now:     time.Now,
	}
}

// Check increments the counter for (action, identifier) and reports
// whether the request fits the action's window. Increment and compare
// happen under one lock so two concurrent requests can never both
// observe the last free slot.
func (l *Limiter) Check(action string, identifier string) Result {
	rule, ok := l.rules[action]
	if !ok {
		rule = defaultRule
	}

	key := action + ":" + identifier
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[key]
	if !exists || now.After(e.resetAt) {
		e = &entry{resetAt: now.Add(rule.Window)}
		l.entries[key] = e
	}

	e.count++

	remaining := rule.Limit - e.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   e.count <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   e.resetAt,
	}
}

// Reset drops the current window for (action, identifier).
func (l *Limiter) Reset(action string, identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, action+":"+identifier)
}

// Sweep evicts elapsed windows until ctx is cancelled. The caller owns
// the cancellation handle; run it as a goroutine from process wiring.
func (l *Limiter) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := l.evictElapsed()
			if evicted > 0 {
				slog.Debug("rate limit sweep", "evicted", evicted)
			}
		}
	}
}

func (l *Limiter) evictElapsed() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
			evicted++
		}
	}
	return evicted
}
