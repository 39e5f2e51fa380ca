package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rollguard/internal/registry/models"
	id "rollguard/pkg/domain"
	"rollguard/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) request(status models.RequestStatus, at time.Time, fields models.Fields) *models.VoterRequest {
	return &models.VoterRequest{
		ID:          id.VoterRequestID(uuid.New()),
		Type:        models.RequestRegistration,
		Fields:      fields,
		Status:      status,
		SubmittedAt: at,
	}
}

func (s *InMemoryStoreSuite) TestRequests() {
	older := s.request(models.StatusPending, s.now, models.Fields{"mobile": "9000000001"})
	newer := s.request(models.StatusApproved, s.now.Add(time.Minute), models.Fields{"mobile": "9000000001"})
	s.Require().NoError(s.store.SaveRequest(s.ctx, older))
	s.Require().NoError(s.store.SaveRequest(s.ctx, newer))

	s.Run("duplicate save conflicts", func() {
		s.ErrorIs(s.store.SaveRequest(s.ctx, older), sentinel.ErrConflict)
	})

	s.Run("list is newest first and filtered", func() {
		all, err := s.store.ListRequests(s.ctx, models.RequestFilter{})
		s.Require().NoError(err)
		s.Require().Len(all, 2)
		s.Equal(newer.ID, all[0].ID)

		pending, err := s.store.ListRequests(s.ctx, models.RequestFilter{Status: models.StatusPending})
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(older.ID, pending[0].ID)
	})

	s.Run("find by mobile returns the newest", func() {
		got, err := s.store.FindRequest(s.ctx, "", "9000000001")
		s.Require().NoError(err)
		s.Equal(newer.ID, got.ID)

		_, err = s.store.FindRequest(s.ctx, "", "9999999999")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("update aborts on callback error", func() {
		boom := errors.New("boom")
		_, err := s.store.UpdateRequest(s.ctx, older.ID, func(r *models.VoterRequest) error {
			r.Status = models.StatusRejected
			return boom
		})
		s.ErrorIs(err, boom)
		got, err := s.store.GetRequest(s.ctx, older.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, got.Status)
	})

	s.Run("returned values are clones", func() {
		got, err := s.store.GetRequest(s.ctx, older.ID)
		s.Require().NoError(err)
		got.Fields["mobile"] = "changed"
		again, err := s.store.GetRequest(s.ctx, older.ID)
		s.Require().NoError(err)
		s.Equal("9000000001", again.Fields["mobile"])
	})
}

func (s *InMemoryStoreSuite) TestRecords() {
	rec := &models.VoterRecord{
		ID:             id.VoterRecordID(uuid.New()),
		DocumentNumber: "DL0000000001",
		Name:           "Asha",
		Status:         models.RecordActive,
	}
	s.Require().NoError(s.store.SaveRecord(s.ctx, rec))

	got, err := s.store.FindRecordByDocument(s.ctx, "DL0000000001")
	s.Require().NoError(err)
	s.Equal(rec.ID, got.ID)

	n, err := s.store.CountActive(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.store.UpdateRecord(s.ctx, rec.ID, func(r *models.VoterRecord) error {
		r.Status = models.RecordDeleted
		return nil
	})
	s.Require().NoError(err)

	n, err = s.store.CountActive(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, n)

	_, err = s.store.GetRecord(s.ctx, id.VoterRecordID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
