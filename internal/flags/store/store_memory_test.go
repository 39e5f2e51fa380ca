package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	"rollguard/pkg/platform/sentinel"
)

type InMemoryFlagStoreSuite struct {
	suite.Suite
	store *InMemoryFlagStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryFlagStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryFlagStoreSuite))
}

func (s *InMemoryFlagStoreSuite) SetupTest() {
	s.store = NewInMemoryFlagStore()
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)
}

func (s *InMemoryFlagStoreSuite) flag(entity models.EntityType, entityID string, tier models.Tier, offset time.Duration) *models.Flag {
	f, err := models.NewFlag(entity, entityID, tier, 100, models.RuleCrossBoothDuplicate, "reason", "explanation", s.now.Add(offset))
	s.Require().NoError(err)
	return f
}

func (s *InMemoryFlagStoreSuite) TestAddAndGet() {
	f := s.flag(models.EntityBooth, "B-1", models.TierHighRisk, 0)
	s.Require().NoError(s.store.Add(s.ctx, f))

	got, err := s.store.Get(s.ctx, f.ID)
	s.Require().NoError(err)
	s.Equal(f.EntityID, got.EntityID)

	s.Run("duplicate id conflicts", func() {
		s.ErrorIs(s.store.Add(s.ctx, f), sentinel.ErrConflict)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.Get(s.ctx, id.FlagID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned flags are copies", func() {
		got.Resolved = true
		again, err := s.store.Get(s.ctx, f.ID)
		s.Require().NoError(err)
		s.False(again.Resolved)
	})
}

func (s *InMemoryFlagStoreSuite) TestListNewestFirstWithFilters() {
	old := s.flag(models.EntityBooth, "B-1", models.TierNeedsReview, 0)
	mid := s.flag(models.EntityForm17A, "DL1", models.TierHighRisk, time.Minute)
	newest := s.flag(models.EntityVoterRequest, "req-1", models.TierCritical, 2*time.Minute)
	s.Require().NoError(s.store.Add(s.ctx, old, mid, newest))

	all, err := s.store.List(s.ctx, models.FlagFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(newest.ID, all[0].ID)
	s.Equal(old.ID, all[2].ID)

	high, err := s.store.List(s.ctx, models.FlagFilter{Tiers: []models.Tier{models.TierHighRisk, models.TierCritical}})
	s.Require().NoError(err)
	s.Len(high, 2)

	_, err = s.store.Resolve(s.ctx, mid.ID, "officer", s.now)
	s.Require().NoError(err)
	open, err := s.store.List(s.ctx, models.FlagFilter{Resolved: models.Unresolved(), EntityType: models.EntityForm17A})
	s.Require().NoError(err)
	s.Empty(open)
}

func (s *InMemoryFlagStoreSuite) TestResolveIsOneWay() {
	f := s.flag(models.EntityBooth, "B-2", models.TierHighRisk, 0)
	s.Require().NoError(s.store.Add(s.ctx, f))

	first, err := s.store.Resolve(s.ctx, f.ID, "officer-a", s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal("officer-a", first.ResolvedBy)

	second, err := s.store.Resolve(s.ctx, f.ID, "officer-b", s.now.Add(2*time.Hour))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	s.Equal("officer-a", second.ResolvedBy)
	s.Equal(s.now.Add(time.Hour), *second.ResolvedAt)

	_, err = s.store.Resolve(s.ctx, id.FlagID(uuid.New()), "officer-a", s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryFlagStoreSuite) TestConcurrentResolveHasOneWinner() {
	f := s.flag(models.EntityBooth, "B-3", models.TierCritical, 0)
	s.Require().NoError(s.store.Add(s.ctx, f))

	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Resolve(s.ctx, f.ID, "officer", s.now.Add(time.Duration(i)*time.Second))
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, winners)
}
