package store

import (
	"context"
	"sort"
	"sync"

	"rollguard/internal/pollaudit/models"
	id "rollguard/pkg/domain"
	"rollguard/pkg/platform/sentinel"
)

// InMemoryStore keeps Form 17A records per booth in upload order and at most
// one Form 17C summary per booth.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   map[string][]*models.Form17ARecord
	summaries map[string]*models.Form17CSummary
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:   make(map[string][]*models.Form17ARecord),
		summaries: make(map[string]*models.Form17CSummary),
	}
}

// AppendRecords stores one batch. Records are write-once.
func (s *InMemoryStore) AppendRecords(_ context.Context, records ...*models.Form17ARecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		c := *r
		s.records[r.BoothID] = append(s.records[r.BoothID], &c)
	}
	return nil
}

// RemoveBatch drops one batch's records from a booth. It undoes an
// AppendRecords whose batch could not be completed.
func (s *InMemoryStore) RemoveBatch(_ context.Context, boothID string, batchID id.BatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[boothID][:0]
	for _, r := range s.records[boothID] {
		if r.BatchID != batchID {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(s.records, boothID)
		return nil
	}
	s.records[boothID] = kept
	return nil
}

func (s *InMemoryStore) RecordsByBooth(_ context.Context, boothID string) ([]*models.Form17ARecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.records[boothID]
	out := make([]*models.Form17ARecord, 0, len(stored))
	for _, r := range stored {
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (s *InMemoryStore) CountByBooth(_ context.Context, boothID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[boothID]), nil
}

// CountsByBooth returns the Form 17A record count for every booth with records.
func (s *InMemoryStore) CountsByBooth(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.records))
	for booth, recs := range s.records {
		out[booth] = len(recs)
	}
	return out, nil
}

// PutSummary stores a booth summary, replacing any earlier one.
func (s *InMemoryStore) PutSummary(_ context.Context, summary *models.Form17CSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *summary
	s.summaries[summary.BoothID] = &c
	return nil
}

func (s *InMemoryStore) DeleteSummary(_ context.Context, boothID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.summaries, boothID)
	return nil
}

func (s *InMemoryStore) GetSummary(_ context.Context, boothID string) (*models.Form17CSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[boothID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *summary
	return &c, nil
}

// ListSummaries returns summaries in scope ordered by booth id.
func (s *InMemoryStore) ListSummaries(_ context.Context, constituency string) ([]*models.Form17CSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Form17CSummary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		if summary.InScope(constituency) {
			c := *summary
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoothID < out[j].BoothID })
	return out, nil
}
