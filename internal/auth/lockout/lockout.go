// Package lockout throttles operator login attempts per username and client
// address.
package lockout

import (
	"context"
	"sync"
	"time"

	"rollguard/pkg/requestcontext"
)

const (
	DefaultMaxFailures  = 5
	DefaultWindow       = 15 * time.Minute
	DefaultLockDuration = 15 * time.Minute
)

type Config struct {
	MaxFailures  int
	Window       time.Duration
	LockDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxFailures:  DefaultMaxFailures,
		Window:       DefaultWindow,
		LockDuration: DefaultLockDuration,
	}
}

// Record is the failure state for one key.
type Record struct {
	Failures       int
	FirstFailureAt time.Time
	LockedUntil    time.Time
}

func (r *Record) lockedAt(now time.Time) bool {
	return !r.LockedUntil.IsZero() && now.Before(r.LockedUntil)
}

// Tracker keeps failure records in memory. Times come from the request
// context so tests can pin them.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record
	cfg     Config
}

func New(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = def.LockDuration
	}
	return &Tracker{records: make(map[string]*Record), cfg: cfg}
}

// Key composes the lockout key. Locking per address keeps one noisy client
// from locking the operator out everywhere.
func Key(username, clientIP string) string {
	return username + "|" + clientIP
}

// LockedUntil reports whether key is locked and until when.
func (t *Tracker) LockedUntil(ctx context.Context, key string) (time.Time, bool) {
	now := requestcontext.Now(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[key]
	if !ok || !r.lockedAt(now) {
		return time.Time{}, false
	}
	return r.LockedUntil, true
}

// RecordFailure counts a failed attempt and reports whether it triggered a
// lock.
func (t *Tracker) RecordFailure(ctx context.Context, key string) (time.Time, bool) {
	now := requestcontext.Now(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[key]
	if !ok || now.Sub(r.FirstFailureAt) > t.cfg.Window || (!r.LockedUntil.IsZero() && !r.lockedAt(now)) {
		r = &Record{FirstFailureAt: now}
		t.records[key] = r
	}
	r.Failures++
	if r.Failures >= t.cfg.MaxFailures && r.LockedUntil.IsZero() {
		r.LockedUntil = now.Add(t.cfg.LockDuration)
		return r.LockedUntil, true
	}
	return time.Time{}, false
}

func (t *Tracker) Clear(_ context.Context, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, key)
}

// Sweep drops records whose window and lock have both passed.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, r := range t.records {
		if r.lockedAt(now) || now.Sub(r.FirstFailureAt) <= t.cfg.Window {
			continue
		}
		delete(t.records, key)
		removed++
	}
	return removed
}
