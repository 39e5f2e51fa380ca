// Package ports defines the interfaces the risk module consumes.
package ports

import (
	"context"
	"time"
)

// VelocityIndex counts submissions per network origin in a sliding window.
// RecordAndCount appends now and returns the count including it, atomically.
type VelocityIndex interface {
	RecordAndCount(ctx context.Context, origin string, now time.Time) (int, error)
}
