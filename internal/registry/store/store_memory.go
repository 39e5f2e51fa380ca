package store

import (
	"context"
	"slices"
	"sync"

	"rollguard/internal/registry/models"
	id "rollguard/pkg/domain"
	"rollguard/pkg/platform/sentinel"
)

// InMemoryStore keeps voter records and requests in process memory. Reads
// return clones; writes go through Update callbacks under the store lock.
type InMemoryStore struct {
	mu       sync.RWMutex
	records  map[id.VoterRecordID]*models.VoterRecord
	byDoc    map[string]id.VoterRecordID
	requests map[id.VoterRequestID]*models.VoterRequest
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:  make(map[id.VoterRecordID]*models.VoterRecord),
		byDoc:    make(map[string]id.VoterRecordID),
		requests: make(map[id.VoterRequestID]*models.VoterRequest),
	}
}

func (s *InMemoryStore) SaveRequest(_ context.Context, req *models.VoterRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

// DeleteRequest removes a request that could not be fully recorded.
func (s *InMemoryStore) DeleteRequest(_ context.Context, requestID id.VoterRequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[requestID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.requests, requestID)
	return nil
}

func (s *InMemoryStore) GetRequest(_ context.Context, requestID id.VoterRequestID) (*models.VoterRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return req.Clone(), nil
}

// UpdateRequest applies fn to the stored request atomically. fn's error aborts
// the update and is returned unchanged.
func (s *InMemoryStore) UpdateRequest(_ context.Context, requestID id.VoterRequestID, fn func(*models.VoterRequest) error) (*models.VoterRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := req.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.requests[requestID] = working
	return working.Clone(), nil
}

// ListRequests returns matching requests, newest submission first.
func (s *InMemoryStore) ListRequests(_ context.Context, filter models.RequestFilter) ([]*models.VoterRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.VoterRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if filter.Matches(req) {
			out = append(out, req.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// FindRequest returns the newest request matching the document number or mobile.
func (s *InMemoryStore) FindRequest(ctx context.Context, document, mobile string) (*models.VoterRequest, error) {
	all, err := s.ListRequests(ctx, models.RequestFilter{})
	if err != nil {
		return nil, err
	}
	for _, req := range all {
		if document != "" && req.DocumentNumber == document {
			return req, nil
		}
		if mobile != "" && req.Fields.Get(models.FieldMobile) == mobile {
			return req, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) SaveRecord(_ context.Context, rec *models.VoterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[rec.ID] = rec.Clone()
	if rec.DocumentNumber != "" {
		s.byDoc[rec.DocumentNumber] = rec.ID
	}
	return nil
}

func (s *InMemoryStore) GetRecord(_ context.Context, recordID id.VoterRecordID) (*models.VoterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) FindRecordByDocument(_ context.Context, document string) (*models.VoterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recID, ok := s.byDoc[document]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.records[recID].Clone(), nil
}

// UpdateRecord applies fn to the stored record atomically.
func (s *InMemoryStore) UpdateRecord(_ context.Context, recordID id.VoterRecordID, fn func(*models.VoterRecord) error) (*models.VoterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := rec.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if working.DocumentNumber != rec.DocumentNumber {
		delete(s.byDoc, rec.DocumentNumber)
		if working.DocumentNumber != "" {
			s.byDoc[working.DocumentNumber] = working.ID
		}
	}
	s.records[recordID] = working
	return working.Clone(), nil
}

// CountActive returns the size of the active roll.
func (s *InMemoryStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if rec.IsActive() {
			n++
		}
	}
	return n, nil
}

func sortNewestFirst(reqs []*models.VoterRequest) {
	slices.SortFunc(reqs, func(a, b *models.VoterRequest) int {
		if c := b.SubmittedAt.Compare(a.SubmittedAt); c != 0 {
			return c
		}
		// Stable tie-break for requests submitted in the same instant.
		if a.ID.String() < b.ID.String() {
			return -1
		}
		if a.ID.String() > b.ID.String() {
			return 1
		}
		return 0
	})
}
