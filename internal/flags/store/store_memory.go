// Package store persists risk flags. Both backends keep resolution one-way:
// the first resolver wins and later attempts observe the stored resolution.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	"rollguard/pkg/platform/sentinel"
)

// InMemoryFlagStore keeps flags in a map guarded by one lock.
type InMemoryFlagStore struct {
	mu    sync.RWMutex
	flags map[id.FlagID]*models.Flag
}

func NewInMemoryFlagStore() *InMemoryFlagStore {
	return &InMemoryFlagStore{flags: make(map[id.FlagID]*models.Flag)}
}

func (s *InMemoryFlagStore) Add(_ context.Context, flags ...*models.Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range flags {
		if _, exists := s.flags[f.ID]; exists {
			return sentinel.ErrConflict
		}
	}
	for _, f := range flags {
		s.flags[f.ID] = f.Clone()
	}
	return nil
}

func (s *InMemoryFlagStore) Get(_ context.Context, flagID id.FlagID) (*models.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flags[flagID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return f.Clone(), nil
}

// List returns flags matching filter (BoothID is not applied here), newest first.
func (s *InMemoryFlagStore) List(_ context.Context, filter models.FlagFilter) ([]*models.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Flag, 0, len(s.flags))
	for _, f := range s.flags {
		if filter.Matches(f) {
			out = append(out, f.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Resolve marks the flag resolved. An already resolved flag is returned
// unchanged together with sentinel.ErrAlreadyUsed.
func (s *InMemoryFlagStore) Resolve(_ context.Context, flagID id.FlagID, by string, at time.Time) (*models.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flags[flagID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !f.CanResolve() {
		return f.Clone(), sentinel.ErrAlreadyUsed
	}
	f.ApplyResolve(by, at)
	return f.Clone(), nil
}

func sortNewestFirst(flags []*models.Flag) {
	sort.SliceStable(flags, func(i, j int) bool {
		if flags[i].CreatedAt.Equal(flags[j].CreatedAt) {
			return flags[i].ID.String() < flags[j].ID.String()
		}
		return flags[i].CreatedAt.After(flags[j].CreatedAt)
	})
}
