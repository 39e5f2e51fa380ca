// Package service derives integrity certificates from current flag and
// booth-summary state. It never mutates anything it reads.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"rollguard/internal/integrity/metrics"
	"rollguard/internal/integrity/models"
	pollmodels "rollguard/internal/pollaudit/models"
	riskmodels "rollguard/internal/risk/models"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/audit"
	"rollguard/pkg/requestcontext"
)

var tracer = otel.Tracer("rollguard/integrity")

// FlagLister reads flags system-wide.
type FlagLister interface {
	List(ctx context.Context, filter riskmodels.FlagFilter) ([]*riskmodels.Flag, error)
}

// Roll reports the active roll size.
type Roll interface {
	RollSize(ctx context.Context) (int, error)
}

// Booths exposes Form 17C summaries and Form 17A counts.
type Booths interface {
	Summaries(ctx context.Context, constituency string) ([]*pollmodels.Form17CSummary, error)
	Form17ACounts(ctx context.Context) (map[string]int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// BaselineFunc returns the historical turnout for a constituency.
type BaselineFunc func(constituency string) float64

type Service struct {
	flags          FlagLister
	roll           Roll
	booths         Booths
	publisher      AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	baseline       BaselineFunc
	spikeThreshold float64
	thresholds     models.Thresholds
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithTurnoutPolicy sets the baseline source and the spike threshold in
// percentage points.
func WithTurnoutPolicy(baseline BaselineFunc, spikeThreshold float64) Option {
	return func(s *Service) {
		if baseline != nil {
			s.baseline = baseline
		}
		if spikeThreshold > 0 {
			s.spikeThreshold = spikeThreshold
		}
	}
}

func WithThresholds(t models.Thresholds) Option {
	return func(s *Service) { s.thresholds = t }
}

func New(flags FlagLister, roll Roll, booths Booths, opts ...Option) (*Service, error) {
	switch {
	case flags == nil:
		return nil, errors.New("flag lister is required")
	case roll == nil:
		return nil, errors.New("roll is required")
	case booths == nil:
		return nil, errors.New("booth source is required")
	}
	s := &Service{
		flags:          flags,
		roll:           roll,
		booths:         booths,
		baseline:       func(string) float64 { return 65 },
		spikeThreshold: 10,
		thresholds:     models.DefaultThresholds(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Generate computes a certificate for constituencyID, or for every booth
// when it is ALL. Roll risk is always system-wide.
func (s *Service) Generate(ctx context.Context, constituencyID string) (_ *models.Certificate, err error) {
	ctx, span := tracer.Start(ctx, "integrity.Generate")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	constituencyID = strings.TrimSpace(constituencyID)
	if constituencyID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "constituency id is required")
	}
	span.SetAttributes(attribute.String("constituency.id", constituencyID))
	started := time.Now()

	var (
		openFlags []*riskmodels.Flag
		rollSize  int
		summaries []*pollmodels.Form17CSummary
		counts    map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		openFlags, err = s.flags.List(gctx, riskmodels.FlagFilter{Resolved: riskmodels.Unresolved()})
		return err
	})
	g.Go(func() error {
		var err error
		rollSize, err = s.roll.RollSize(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		summaries, err = s.booths.Summaries(gctx, constituencyID)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.booths.Form17ACounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to gather certificate inputs")
	}

	rollIn := models.RollInputs{TotalVoters: rollSize}
	for _, f := range openFlags {
		if f.Tier.IsHighSeverity() {
			rollIn.HighSeverityFlags++
		}
		switch f.RuleID {
		case riskmodels.RuleDuplicateDocument:
			rollIn.DuplicateFlags++
		case riskmodels.RuleAddressDensityCritical:
			rollIn.AddressClusterFlags++
		}
	}

	tallies := make([]models.BoothTally, 0, len(summaries))
	for _, sm := range summaries {
		tallies = append(tallies, models.BoothTally{
			BoothID:       sm.BoothID,
			Form17ACount:  counts[sm.BoothID],
			VotesPolled:   sm.TotalVotesPolled,
			TotalElectors: sm.TotalElectors,
		})
	}

	roll := models.ComputeRollRisk(rollIn)
	polling := models.ComputePollingConsistency(tallies)
	turnout := models.ComputeTurnout(tallies, s.baseline(constituencyID), s.spikeThreshold)
	index, breakdown := models.FinalIndex(roll.FinalScore, polling.Score, turnout.Score)

	cert := &models.Certificate{
		ConstituencyID:       constituencyID,
		GeneratedAt:          requestcontext.Now(ctx),
		RollRisk:             roll,
		PollingConsistency:   polling,
		TurnoutAnalytics:     turnout,
		FinalConfidenceIndex: index,
		ScoreBreakdown:       breakdown,
		Status:               s.thresholds.StatusFor(index),
	}
	span.SetAttributes(
		attribute.Int("certificate.index", index),
		attribute.String("certificate.status", string(cert.Status)),
	)
	s.metrics.ObserveCertificate(string(cert.Status), index, time.Since(started))

	audit.LogAudit(ctx, s.logger, s.emitter(), audit.EventCertificateGenerated, cert,
		"entity_type", "certificate",
		"entity_id", constituencyID,
		"subject", constituencyID,
		"score", index,
		"reason", string(cert.Status),
	)
	return cert, nil
}

func (s *Service) emitter() audit.Emitter {
	if s.publisher == nil {
		return nil
	}
	return s.publisher
}
