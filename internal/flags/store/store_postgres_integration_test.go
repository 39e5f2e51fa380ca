//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollguard/internal/flags/store"
	"rollguard/internal/risk/models"
	"rollguard/pkg/platform/sentinel"
	"rollguard/pkg/testutil/containers"
)

type PostgresFlagStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresFlagStore
	now      time.Time
}

func TestPostgresFlagStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresFlagStoreSuite))
}

func (s *PostgresFlagStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.now = time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)
}

func (s *PostgresFlagStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "risk_flags"))
}

func (s *PostgresFlagStoreSuite) newFlag(tier models.Tier, offset time.Duration) *models.Flag {
	f, err := models.NewFlag(models.EntityBooth, "B-1", tier, 100, models.RuleCountMismatchCritical, "Form 17A vs 17C mismatch", "diff", s.now.Add(offset))
	s.Require().NoError(err)
	return f
}

func (s *PostgresFlagStoreSuite) TestAddListFilters() {
	ctx := context.Background()
	a := s.newFlag(models.TierNeedsReview, 0)
	b := s.newFlag(models.TierCritical, time.Minute)
	s.Require().NoError(s.store.Add(ctx, a, b))
	s.ErrorIs(s.store.Add(ctx, a), sentinel.ErrConflict)

	all, err := s.store.List(ctx, models.FlagFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(b.ID, all[0].ID)

	high, err := s.store.List(ctx, models.FlagFilter{
		Tiers:    []models.Tier{models.TierHighRisk, models.TierCritical},
		Resolved: models.Unresolved(),
	})
	s.Require().NoError(err)
	s.Require().Len(high, 1)
	s.Equal(models.TierCritical, high[0].Tier)
}

func (s *PostgresFlagStoreSuite) TestAddIsAllOrNothing() {
	ctx := context.Background()
	existing := s.newFlag(models.TierHighRisk, 0)
	s.Require().NoError(s.store.Add(ctx, existing))

	fresh := s.newFlag(models.TierCritical, time.Minute)
	s.ErrorIs(s.store.Add(ctx, fresh, existing), sentinel.ErrConflict)

	_, err := s.store.Get(ctx, fresh.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentResolve verifies exactly one caller wins the compare-and-set.
func (s *PostgresFlagStoreSuite) TestConcurrentResolve() {
	ctx := context.Background()
	f := s.newFlag(models.TierHighRisk, 0)
	s.Require().NoError(s.store.Add(ctx, f))

	var wg sync.WaitGroup
	var winners, losers atomic.Int32
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Resolve(ctx, f.ID, "officer", time.Now())
			switch {
			case err == nil:
				winners.Add(1)
			case err == sentinel.ErrAlreadyUsed:
				losers.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), winners.Load())
	s.Equal(int32(24), losers.Load())

	got, err := s.store.Get(ctx, f.ID)
	s.Require().NoError(err)
	s.True(got.Resolved)
	s.Equal("officer", got.ResolvedBy)
}
