//go:build integration

package index_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollguard/internal/risk/index"
	"rollguard/pkg/testutil/containers"
)

type RedisVelocitySuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *index.RedisVelocity
}

func TestRedisVelocitySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisVelocitySuite))
}

func (s *RedisVelocitySuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = index.NewRedisVelocity(s.redis.Client, index.DefaultVelocityWindow)
}

func (s *RedisVelocitySuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisVelocitySuite) TestSlidingWindow() {
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := range 4 {
		_, err := s.store.RecordAndCount(ctx, "10.0.0.1", start.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(err)
	}
	count, err := s.store.RecordAndCount(ctx, "10.0.0.1", start.Add(4*time.Minute))
	s.Require().NoError(err)
	s.Equal(5, count)

	// The first two submissions are now at least one window old.
	count, err = s.store.RecordAndCount(ctx, "10.0.0.1", start.Add(11*time.Minute))
	s.Require().NoError(err)
	s.Equal(4, count)
}

func (s *RedisVelocitySuite) TestEmptyOriginIgnored() {
	count, err := s.store.RecordAndCount(context.Background(), "", time.Now())
	s.Require().NoError(err)
	s.Zero(count)
}
