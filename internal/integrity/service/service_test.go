package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"rollguard/internal/integrity/metrics"
	"rollguard/internal/integrity/models"
	pollmodels "rollguard/internal/pollaudit/models"
	riskmodels "rollguard/internal/risk/models"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/audit"
	"rollguard/pkg/platform/audit/publisher"
	auditmemory "rollguard/pkg/platform/audit/store/memory"
	"rollguard/pkg/requestcontext"
)

type stubFlags struct {
	flags []*riskmodels.Flag
	err   error
}

func (s *stubFlags) List(_ context.Context, filter riskmodels.FlagFilter) ([]*riskmodels.Flag, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*riskmodels.Flag
	for _, f := range s.flags {
		if filter.Matches(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

type stubRoll struct{ size int }

func (s stubRoll) RollSize(context.Context) (int, error) { return s.size, nil }

type stubBooths struct {
	summaries []*pollmodels.Form17CSummary
	counts    map[string]int
}

func (s *stubBooths) Summaries(_ context.Context, constituency string) ([]*pollmodels.Form17CSummary, error) {
	var out []*pollmodels.Form17CSummary
	for _, sm := range s.summaries {
		if sm.InScope(constituency) {
			out = append(out, sm)
		}
	}
	return out, nil
}

func (s *stubBooths) Form17ACounts(context.Context) (map[string]int, error) {
	return s.counts, nil
}

type IntegrityServiceSuite struct {
	suite.Suite
	ctx    context.Context
	flags  *stubFlags
	booths *stubBooths
	events *auditmemory.InMemoryStore
}

func TestIntegrityServiceSuite(t *testing.T) {
	suite.Run(t, new(IntegrityServiceSuite))
}

func (s *IntegrityServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 6, 4, 12, 0, 0, 0, time.UTC))
	s.flags = &stubFlags{}
	s.booths = &stubBooths{counts: map[string]int{}}
	s.events = auditmemory.NewInMemoryStore()
}

func (s *IntegrityServiceSuite) service(rollSize int, opts ...Option) *Service {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher.NewPublisher(s.events)),
	}, opts...)
	svc, err := New(s.flags, stubRoll{size: rollSize}, s.booths, opts...)
	s.Require().NoError(err)
	return svc
}

func (s *IntegrityServiceSuite) flag(tier riskmodels.Tier, rule riskmodels.RuleID, resolved bool) *riskmodels.Flag {
	return &riskmodels.Flag{Tier: tier, RuleID: rule, Resolved: resolved}
}

func (s *IntegrityServiceSuite) TestNew() {
	_, err := New(nil, stubRoll{}, s.booths)
	s.Error(err)
}

func (s *IntegrityServiceSuite) TestGenerate_EmptyStateIsVerified() {
	cert, err := s.service(0).Generate(s.ctx, "ALL")
	s.Require().NoError(err)

	s.Equal(100, cert.FinalConfidenceIndex)
	s.Equal(models.StatusVerified, cert.Status)
	s.Equal(models.PollingMatch, cert.PollingConsistency.Status)
	s.False(cert.TurnoutAnalytics.HasData)

	events, err := s.events.ListByAction(s.ctx, audit.EventCertificateGenerated)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("ALL", events[0].Subject)
	s.Equal(100, events[0].Score)
}

func (s *IntegrityServiceSuite) TestGenerate_RollRiskCountsOpenHighSeverityOnly() {
	for range 6 {
		s.flags.flags = append(s.flags.flags, s.flag(riskmodels.TierHighRisk, riskmodels.RuleDuplicateDocument, false))
	}
	s.flags.flags = append(s.flags.flags,
		s.flag(riskmodels.TierCritical, riskmodels.RuleAddressDensityCritical, false),
		s.flag(riskmodels.TierCritical, riskmodels.RuleUnderageApplicant, true),
		s.flag(riskmodels.TierNeedsReview, riskmodels.RuleVelocitySuspicious, false),
	)

	cert, err := s.service(300).Generate(s.ctx, "ALL")
	s.Require().NoError(err)

	s.Equal(7, cert.RollRisk.HighRiskDetected)
	s.Equal(86, cert.RollRisk.FinalScore)
	s.Equal(models.RollRiskMedium, cert.RollRisk.Level)
	s.Equal(2, cert.RollRisk.DuplicateProbability)
	s.Equal(1, cert.RollRisk.ClusterSizeAlerts)
	s.Equal(300, cert.RollRisk.TotalVoters)
	// 0.4*86 + 30 + 30 = 94.4
	s.Equal(94, cert.FinalConfidenceIndex)
	s.Equal(models.StatusVerified, cert.Status)
}

func (s *IntegrityServiceSuite) TestGenerate_ScopesBoothsByConstituency() {
	s.booths.summaries = []*pollmodels.Form17CSummary{
		{BoothID: "B1", Constituency: "New Delhi", TotalElectors: 1000, TotalVotesPolled: 650},
		{BoothID: "B2", Constituency: "Varanasi", TotalElectors: 1000, TotalVotesPolled: 900},
	}
	s.booths.counts = map[string]int{"B1": 650, "B2": 100}

	cert, err := s.service(10).Generate(s.ctx, "New Delhi")
	s.Require().NoError(err)
	s.Equal(1, cert.PollingConsistency.TotalBooths)
	s.Equal(models.PollingMatch, cert.PollingConsistency.Status)
	s.Equal(65.0, cert.TurnoutAnalytics.CurrentTurnout)
	s.False(cert.TurnoutAnalytics.SpikeDetected)
	s.Equal(100, cert.FinalConfidenceIndex)

	all, err := s.service(10).Generate(s.ctx, "ALL")
	s.Require().NoError(err)
	s.Equal(2, all.PollingConsistency.TotalBooths)
	s.Equal(models.PollingCriticalMismatch, all.PollingConsistency.Status)
	s.True(all.TurnoutAnalytics.SpikeDetected)
	// 40 + 0 + 15
	s.Equal(55, all.FinalConfidenceIndex)
	s.Equal(models.StatusFlagged, all.Status)
}

func (s *IntegrityServiceSuite) TestGenerate_UsesTurnoutPolicy() {
	s.booths.summaries = []*pollmodels.Form17CSummary{
		{BoothID: "B1", Constituency: "Lucknow", TotalElectors: 1000, TotalVotesPolled: 500},
	}
	s.booths.counts = map[string]int{"B1": 500}

	svc := s.service(10, WithTurnoutPolicy(func(c string) float64 {
		if c == "Lucknow" {
			return 52
		}
		return 65
	}, 5))
	cert, err := svc.Generate(s.ctx, "Lucknow")
	s.Require().NoError(err)
	s.Equal(52.0, cert.TurnoutAnalytics.HistoricalAverage)
	s.False(cert.TurnoutAnalytics.SpikeDetected)
}

func (s *IntegrityServiceSuite) TestGenerate_MetricSeriesIndependentOfConstituency() {
	m := metrics.New()
	svc := s.service(10, WithMetrics(m))
	for i := range 25 {
		_, err := svc.Generate(s.ctx, fmt.Sprintf("made-up-%d", i))
		s.Require().NoError(err)
	}
	s.Equal(1, promtestutil.CollectAndCount(m.ConfidenceIndex))
	s.Equal(1, promtestutil.CollectAndCount(m.CertificatesGenerated))
	s.Equal(25.0, promtestutil.ToFloat64(m.CertificatesGenerated.WithLabelValues(string(models.StatusVerified))))
}

func (s *IntegrityServiceSuite) TestGenerate_Errors() {
	_, err := s.service(0).Generate(s.ctx, " ")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.flags.err = errors.New("boom")
	_, err = s.service(0).Generate(s.ctx, "ALL")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
