// Package ratelimit implements a sliding-window request limiter keyed by
// (client address, bucket name). Checking and consuming are a single atomic
// operation under a per-key lock, so concurrent requests can never both take
// the last slot.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket names with built-in policies.
const (
	BucketLogin   = "login"
	BucketAPI     = "api"
	BucketGeneral = "general"
)

// Policy is a bucket's capacity over a sliding window.
type Policy struct {
	Capacity int
	Window   time.Duration
}

// DefaultPolicies returns the built-in bucket table.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		BucketLogin:   {Capacity: 5, Window: 5 * time.Minute},
		BucketAPI:     {Capacity: 100, Window: time.Minute},
		BucketGeneral: {Capacity: 1000, Window: time.Hour},
	}
}

// Result reports the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type key struct {
	client string
	bucket string
}

type entry struct {
	mu      sync.Mutex
	hits    []time.Time
	touched time.Time
}

// Limiter holds per-key sliding windows. State is process-local and resets
// on restart; cross-process limiting is out of scope.
type Limiter struct {
	mu        sync.RWMutex
	entries   map[key]*entry
	policies  map[string]Policy
	whitelist map[string]struct{}
	now       func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithPolicy overrides or adds a named bucket policy.
func WithPolicy(bucket string, p Policy) Option {
	return func(l *Limiter) {
		if bucket != "" && p.Capacity > 0 && p.Window > 0 {
			l.policies[bucket] = p
		}
	}
}

// WithWhitelist replaces the default loopback whitelist.
func WithWhitelist(clients ...string) Option {
	return func(l *Limiter) {
		l.whitelist = make(map[string]struct{}, len(clients))
		for _, c := range clients {
			l.whitelist[c] = struct{}{}
		}
	}
}

// WithNow overrides the time source (useful for tests).
func WithNow(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a Limiter with the default policies and loopback whitelist
// and starts a janitor that drops idle keys. Call Close to stop it.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries:  make(map[key]*entry),
		policies: DefaultPolicies(),
		whitelist: map[string]struct{}{
			"127.0.0.1": {},
			"::1":       {},
			"localhost": {},
		},
		now:  time.Now,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.janitor()
	return l
}

// Close stops the janitor goroutine.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Check consumes one slot from the named bucket if capacity remains. Unknown
// bucket names fall back to the general policy.
func (l *Limiter) Check(client, bucket string) Result {
	p, ok := l.policies[bucket]
	if !ok {
		p = l.policies[BucketGeneral]
	}
	return l.CheckWith(client, bucket, p)
}

// CheckWith is the dynamic variant: callers supply the policy directly.
// A denied check does not consume budget.
func (l *Limiter) CheckWith(client, bucket string, p Policy) Result {
	now := l.now()
	if _, ok := l.whitelist[client]; ok {
		return Result{Allowed: true, Limit: p.Capacity, Remaining: p.Capacity, ResetAt: now}
	}

	e := l.entry(key{client: client, bucket: bucket})
	e.mu.Lock()
	defer e.mu.Unlock()

	e.touched = now
	cutoff := now.Add(-p.Window)
	e.hits = pruneBefore(e.hits, cutoff)

	if len(e.hits) >= p.Capacity {
		return Result{
			Allowed:    false,
			Limit:      p.Capacity,
			Remaining:  0,
			ResetAt:    e.hits[0].Add(p.Window),
			RetryAfter: p.Window,
		}
	}

	e.hits = append(e.hits, now)
	return Result{
		Allowed:   true,
		Limit:     p.Capacity,
		Remaining: p.Capacity - len(e.hits),
		ResetAt:   e.hits[0].Add(p.Window),
	}
}

func (l *Limiter) entry(k key) *entry {
	l.mu.RLock()
	e, ok := l.entries[k]
	l.mu.RUnlock()
	if ok {
		return e
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.entries[k]; ok {
		return e
	}
	e = &entry{}
	l.entries[k] = e
	return e
}

// pruneBefore drops hits at or before the cutoff instant.
func pruneBefore(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}

const (
	janitorInterval = time.Minute
	entryIdleTTL    = 2 * time.Hour
)

func (l *Limiter) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		e.mu.Lock()
		idle := now.Sub(e.touched) > entryIdleTTL
		e.mu.Unlock()
		if idle {
			delete(l.entries, k)
		}
	}
}
