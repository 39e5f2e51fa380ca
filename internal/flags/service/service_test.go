package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollguard/internal/flags/service/mocks"
	"rollguard/internal/flags/store"
	"rollguard/internal/risk/index"
	"rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/audit"
	"rollguard/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks AuditPublisher

type FlagServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	store     *store.InMemoryFlagStore
	booths    *index.BoothIndex
	publisher *mocks.MockAuditPublisher
	service   *Service
}

func TestFlagServiceSuite(t *testing.T) {
	suite.Run(t, new(FlagServiceSuite))
}

func (s *FlagServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = store.NewInMemoryFlagStore()
	s.booths = index.NewBoothIndex()
	s.publisher = mocks.NewMockAuditPublisher(ctrl)

	svc, err := New(s.store, s.booths,
		WithAuditPublisher(s.publisher),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *FlagServiceSuite) newFlag(entity models.EntityType, entityID string, tier models.Tier, rule models.RuleID, at time.Time) *models.Flag {
	f, err := models.NewFlag(entity, entityID, tier, 80, rule, "reason", "explanation", at)
	s.Require().NoError(err)
	return f
}

func (s *FlagServiceSuite) TestNew() {
	s.Run("requires store", func() {
		_, err := New(nil, s.booths)
		s.Error(err)
	})
	s.Run("requires booth membership", func() {
		_, err := New(s.store, nil)
		s.Error(err)
	})
}

func (s *FlagServiceSuite) TestRecord() {
	s.Run("stores flags and emits flag_raised for each", func() {
		a := s.newFlag(models.EntityVoterRequest, uuid.NewString(), models.TierHighRisk, models.RuleDuplicateDocument, s.now)
		b := s.newFlag(models.EntityBooth, "B-01", models.TierCritical, models.RuleCountMismatchCritical, s.now)

		var actions []string
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, ev audit.Event) error {
				actions = append(actions, ev.Action)
				s.Equal(audit.CategoryIntegrity, ev.Category)
				return nil
			}).Times(2)

		require.NoError(s.T(), s.service.Record(s.ctx, a, b))
		s.Equal([]string{"flag_raised", "flag_raised"}, actions)

		got, err := s.service.Get(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(a.ID, got.ID)
	})

	s.Run("no flags is a no-op", func() {
		s.NoError(s.service.Record(s.ctx))
	})

	s.Run("duplicate id is a conflict", func() {
		f := s.newFlag(models.EntityBooth, "B-02", models.TierNeedsReview, models.RuleCountMismatchModerate, s.now)
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		s.Require().NoError(s.service.Record(s.ctx, f))

		err := s.service.Record(s.ctx, f)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *FlagServiceSuite) TestGet_NotFound() {
	_, err := s.service.Get(s.ctx, id.FlagID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *FlagServiceSuite) TestList_BoothFilter() {
	s.booths.Add("B-01", "ABC1234567")
	s.booths.Add("B-02", "XYZ7654321")

	boothFlag := s.newFlag(models.EntityBooth, "B-01", models.TierCritical, models.RuleCountMismatchCritical, s.now)
	docFlag := s.newFlag(models.EntityForm17A, "ABC1234567", models.TierHighRisk, models.RuleCrossBoothDuplicate, s.now.Add(time.Second))
	otherDoc := s.newFlag(models.EntityForm17A, "XYZ7654321", models.TierHighRisk, models.RuleDuplicateDocumentBatch, s.now.Add(2*time.Second))
	otherBooth := s.newFlag(models.EntityBooth, "B-02", models.TierNeedsReview, models.RuleCountMismatchModerate, s.now.Add(3*time.Second))
	request := s.newFlag(models.EntityVoterRequest, uuid.NewString(), models.TierHighRisk, models.RuleDuplicateDocument, s.now.Add(4*time.Second))
	s.Require().NoError(s.store.Add(s.ctx, boothFlag, docFlag, otherDoc, otherBooth, request))

	got, err := s.service.List(s.ctx, models.FlagFilter{BoothID: "B-01"})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(docFlag.ID, got[0].ID)
	s.Equal(boothFlag.ID, got[1].ID)

	all, err := s.service.List(s.ctx, models.FlagFilter{})
	s.Require().NoError(err)
	s.Len(all, 5)

	critical, err := s.service.List(s.ctx, models.FlagFilter{Tiers: []models.Tier{models.TierCritical}, BoothID: "B-01"})
	s.Require().NoError(err)
	s.Require().Len(critical, 1)
	s.Equal(boothFlag.ID, critical[0].ID)
}

func (s *FlagServiceSuite) TestResolve() {
	s.Run("first resolve records resolver and emits flag_resolved", func() {
		f := s.newFlag(models.EntityBooth, "B-01", models.TierCritical, models.RuleCountMismatchCritical, s.now)
		s.Require().NoError(s.store.Add(s.ctx, f))

		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, ev audit.Event) error {
				s.Equal("flag_resolved", ev.Action)
				s.Equal("officer-1", ev.ActorID)
				s.Equal(f.ID.String(), ev.EntityID)
				return nil
			})

		resolveAt := s.now.Add(time.Hour)
		got, err := s.service.Resolve(requestcontext.WithTime(s.ctx, resolveAt), f.ID, "officer-1")
		s.Require().NoError(err)
		s.True(got.Resolved)
		s.Equal("officer-1", got.ResolvedBy)
		s.Require().NotNil(got.ResolvedAt)
		s.Equal(resolveAt, *got.ResolvedAt)

		s.Run("second resolve keeps the original resolution without an event", func() {
			again, err := s.service.Resolve(s.ctx, f.ID, "officer-2")
			s.Require().NoError(err)
			s.Equal("officer-1", again.ResolvedBy)
			s.Equal(resolveAt, *again.ResolvedAt)
		})
	})

	s.Run("resolver defaults to the authenticated operator", func() {
		f := s.newFlag(models.EntityBooth, "B-03", models.TierHighRisk, models.RuleCountMismatchCritical, s.now)
		s.Require().NoError(s.store.Add(s.ctx, f))
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		got, err := s.service.Resolve(requestcontext.WithOperator(s.ctx, "authority@eci.gov"), f.ID, "  ")
		s.Require().NoError(err)
		s.Equal("authority@eci.gov", got.ResolvedBy)
	})

	s.Run("missing resolver is a validation error", func() {
		f := s.newFlag(models.EntityBooth, "B-04", models.TierHighRisk, models.RuleCountMismatchCritical, s.now)
		s.Require().NoError(s.store.Add(s.ctx, f))

		_, err := s.service.Resolve(s.ctx, f.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		stored, err := s.service.Get(s.ctx, f.ID)
		s.Require().NoError(err)
		s.False(stored.Resolved)
	})

	s.Run("unknown flag is not found", func() {
		_, err := s.service.Resolve(s.ctx, id.FlagID(uuid.New()), "officer-1")
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *FlagServiceSuite) TestOpenHighSeverity() {
	open := s.newFlag(models.EntityBooth, "B-01", models.TierCritical, models.RuleCountMismatchCritical, s.now)
	review := s.newFlag(models.EntityBooth, "B-02", models.TierNeedsReview, models.RuleCountMismatchModerate, s.now)
	closed := s.newFlag(models.EntityBooth, "B-03", models.TierHighRisk, models.RuleCountMismatchCritical, s.now)
	s.Require().NoError(s.store.Add(s.ctx, open, review, closed))
	_, err := s.store.Resolve(s.ctx, closed.ID, "officer-1", s.now)
	s.Require().NoError(err)

	got, err := s.service.OpenHighSeverity(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(open.ID, got[0].ID)
}
