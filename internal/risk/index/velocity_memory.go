package index

import (
	"context"
	"sync"
	"time"
)

// DefaultVelocityWindow is the sliding window over which submissions per origin are counted.
const DefaultVelocityWindow = 10 * time.Minute

// InMemoryVelocity tracks submission timestamps per network origin in a sliding window.
// Record-and-count is a single locked operation.
type InMemoryVelocity struct {
	mu      sync.Mutex
	window  time.Duration
	origins map[string][]time.Time
}

// NewInMemoryVelocity creates a velocity index with the given window.
func NewInMemoryVelocity(window time.Duration) *InMemoryVelocity {
	if window <= 0 {
		window = DefaultVelocityWindow
	}
	return &InMemoryVelocity{
		window:  window,
		origins: make(map[string][]time.Time),
	}
}

// RecordAndCount drops timestamps that are at least one window old, appends
// now, and returns the number of submissions left in the window. An empty
// origin is never recorded.
func (v *InMemoryVelocity) RecordAndCount(_ context.Context, origin string, now time.Time) (int, error) {
	if origin == "" {
		return 0, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	kept := prune(v.origins[origin], now.Add(-v.window))
	kept = append(kept, now)
	v.origins[origin] = kept
	return len(kept), nil
}

// Sweep removes origins whose windows have fully expired.
func (v *InMemoryVelocity) Sweep(now time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	removed := 0
	cutoff := now.Add(-v.window)
	for origin, stamps := range v.origins {
		kept := prune(stamps, cutoff)
		if len(kept) == 0 {
			delete(v.origins, origin)
			removed++
			continue
		}
		v.origins[origin] = kept
	}
	return removed
}

// prune keeps timestamps strictly after cutoff. Timestamps are appended in
// call order, so the slice is scanned from the front.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
