package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"rollguard/internal/pollaudit/models"
	id "rollguard/pkg/domain"
	"rollguard/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) TestRecordsAreKeptPerBooth() {
	require.NoError(s.T(), s.store.AppendRecords(s.ctx,
		&models.Form17ARecord{BoothID: "B1", DocumentNumber: "A1", SerialNumber: "1"},
		&models.Form17ARecord{BoothID: "B1", DocumentNumber: "A2", SerialNumber: "2"},
		&models.Form17ARecord{BoothID: "B2", DocumentNumber: "A3", SerialNumber: "1"},
	))

	recs, err := s.store.RecordsByBooth(s.ctx, "B1")
	require.NoError(s.T(), err)
	require.Len(s.T(), recs, 2)
	assert.Equal(s.T(), "A1", recs[0].DocumentNumber)

	n, err := s.store.CountByBooth(s.ctx, "B2")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, n)

	counts, err := s.store.CountsByBooth(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), map[string]int{"B1": 2, "B2": 1}, counts)

	recs[0].DocumentNumber = "MUTATED"
	again, err := s.store.RecordsByBooth(s.ctx, "B1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "A1", again[0].DocumentNumber)
}

func (s *InMemoryStoreSuite) TestSummaryReplacedOnReupload() {
	require.NoError(s.T(), s.store.PutSummary(s.ctx, &models.Form17CSummary{BoothID: "B1", Constituency: "X", TotalVotesPolled: 10}))
	require.NoError(s.T(), s.store.PutSummary(s.ctx, &models.Form17CSummary{BoothID: "B1", Constituency: "X", TotalVotesPolled: 20}))

	got, err := s.store.GetSummary(s.ctx, "B1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 20, got.TotalVotesPolled)

	all, err := s.store.ListSummaries(s.ctx, models.AllConstituencies)
	require.NoError(s.T(), err)
	assert.Len(s.T(), all, 1)
}

func (s *InMemoryStoreSuite) TestGetSummaryNotFound() {
	_, err := s.store.GetSummary(s.ctx, "missing")
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListSummariesByConstituency() {
	require.NoError(s.T(), s.store.PutSummary(s.ctx, &models.Form17CSummary{BoothID: "B2", Constituency: "Varanasi"}))
	require.NoError(s.T(), s.store.PutSummary(s.ctx, &models.Form17CSummary{BoothID: "B1", Constituency: "New Delhi"}))
	require.NoError(s.T(), s.store.PutSummary(s.ctx, &models.Form17CSummary{BoothID: "B3", Constituency: "New Delhi"}))

	got, err := s.store.ListSummaries(s.ctx, "New Delhi")
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 2)
	assert.Equal(s.T(), "B1", got[0].BoothID)
	assert.Equal(s.T(), "B3", got[1].BoothID)
}

func (s *InMemoryStoreSuite) TestRemoveBatchKeepsOtherBatches() {
	first := id.BatchID(uuid.New())
	second := id.BatchID(uuid.New())
	require.NoError(s.T(), s.store.AppendRecords(s.ctx,
		&models.Form17ARecord{BoothID: "B1", DocumentNumber: "A1", BatchID: first},
		&models.Form17ARecord{BoothID: "B1", DocumentNumber: "A2", BatchID: second},
	))

	require.NoError(s.T(), s.store.RemoveBatch(s.ctx, "B1", second))
	recs, err := s.store.RecordsByBooth(s.ctx, "B1")
	require.NoError(s.T(), err)
	require.Len(s.T(), recs, 1)
	assert.Equal(s.T(), "A1", recs[0].DocumentNumber)

	require.NoError(s.T(), s.store.RemoveBatch(s.ctx, "B1", first))
	counts, err := s.store.CountsByBooth(s.ctx)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), counts)
}

func (s *InMemoryStoreSuite) TestDeleteSummary() {
	require.NoError(s.T(), s.store.PutSummary(s.ctx, &models.Form17CSummary{BoothID: "B1"}))
	require.NoError(s.T(), s.store.DeleteSummary(s.ctx, "B1"))
	_, err := s.store.GetSummary(s.ctx, "B1")
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}
