// Package service ingests post-election Form 17A poll-book batches and Form
// 17C booth summaries, running the audit scorer over each.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rollguard/internal/pollaudit/models"
	"rollguard/internal/risk/index"
	riskmodels "rollguard/internal/risk/models"
	"rollguard/internal/risk/scorer"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/audit"
	"rollguard/pkg/platform/sentinel"
	"rollguard/pkg/requestcontext"
)

var tracer = otel.Tracer("rollguard/pollaudit")

// Store persists poll-book records and booth summaries.
type Store interface {
	AppendRecords(ctx context.Context, records ...*models.Form17ARecord) error
	RemoveBatch(ctx context.Context, boothID string, batchID id.BatchID) error
	RecordsByBooth(ctx context.Context, boothID string) ([]*models.Form17ARecord, error)
	CountByBooth(ctx context.Context, boothID string) (int, error)
	CountsByBooth(ctx context.Context) (map[string]int, error)
	PutSummary(ctx context.Context, summary *models.Form17CSummary) error
	DeleteSummary(ctx context.Context, boothID string) error
	GetSummary(ctx context.Context, boothID string) (*models.Form17CSummary, error)
	ListSummaries(ctx context.Context, constituency string) ([]*models.Form17CSummary, error)
}

// AuditScorer runs the duplicate and count-mismatch checks. A scored batch
// reaches the booth index only through CommitBatch.
type AuditScorer interface {
	ScoreBatch(ctx context.Context, boothID string, entries []scorer.AuditEntry) (*scorer.BatchScore, error)
	CommitBatch(ctx context.Context, score *scorer.BatchScore)
	CheckCountMismatch(ctx context.Context, boothID string, form17aCount, votesPolled int) (*riskmodels.Flag, error)
}

// FlagService records raised flags and answers booth-scoped listings.
type FlagService interface {
	Record(ctx context.Context, flags ...*riskmodels.Flag) error
	List(ctx context.Context, filter riskmodels.FlagFilter) ([]*riskmodels.Flag, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store     Store
	scorer    AuditScorer
	flags     FlagService
	publisher AuditPublisher
	logger    *slog.Logger

	// ingestMu keeps a booth's record count and its mismatch check in step.
	ingestMu sync.Mutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func New(store Store, auditScorer AuditScorer, flags FlagService, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("audit store is required")
	case auditScorer == nil:
		return nil, errors.New("audit scorer is required")
	case flags == nil:
		return nil, errors.New("flag service is required")
	}
	s := &Service{store: store, scorer: auditScorer, flags: flags}
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

// IngestBatch scores and stores one Form 17A upload. A malformed entry
// rejects the whole batch before anything is stored or indexed, and a batch
// whose records or flags cannot be stored is rejected and leaves no trace.
func (s *Service) IngestBatch(ctx context.Context, req *models.UploadBatchRequest) (_ *models.BatchReceipt, err error) {
	ctx, span := tracer.Start(ctx, "pollaudit.IngestBatch")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("booth.id", req.BoothID),
		attribute.Int("batch.entries", len(req.Records)),
	)

	entries := make([]scorer.AuditEntry, len(req.Records))
	for i, r := range req.Records {
		entries[i] = scorer.AuditEntry{DocumentNumber: r.DocumentNumber, SerialNumber: r.SerialNumber}
	}
	if err := scorer.ValidateBatch(req.BoothID, entries); err != nil {
		return nil, err
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	score, err := s.scorer.ScoreBatch(ctx, req.BoothID, entries)
	if err != nil {
		return nil, err
	}
	flags := score.Flags

	now := requestcontext.Now(ctx)
	batchID := id.BatchID(uuid.New())
	records := make([]*models.Form17ARecord, len(req.Records))
	for i, r := range req.Records {
		records[i] = &models.Form17ARecord{
			ID:                  id.AuditRecordID(uuid.New()),
			BoothID:             req.BoothID,
			DocumentNumber:      index.NormalizeDocument(r.DocumentNumber),
			SerialNumber:        strings.TrimSpace(r.SerialNumber),
			VoterName:           strings.TrimSpace(r.VoterName),
			ThumbImpressionHash: r.ThumbImpressionHash,
			SignatureHash:       r.SignatureHash,
			BatchID:             batchID,
			UploadedAt:          now,
		}
	}
	if err := s.store.AppendRecords(ctx, records...); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store form17a records")
	}
	if err := s.flags.Record(ctx, flags...); err != nil {
		if rmErr := s.store.RemoveBatch(ctx, req.BoothID, batchID); rmErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove rejected form17a batch",
				"booth_id", req.BoothID,
				"batch_id", batchID.String(),
				"error", rmErr,
			)
		}
		return nil, flagError(err, "failed to record form17a flags")
	}
	s.scorer.CommitBatch(ctx, score)

	receipt := &models.BatchReceipt{
		BatchID:     batchID,
		BoothID:     req.BoothID,
		RecordCount: len(records),
		Digest:      BatchDigest(req.BoothID, records),
		Flags:       flags,
	}
	if receipt.Flags == nil {
		receipt.Flags = []*riskmodels.Flag{}
	}
	span.SetAttributes(attribute.Int("batch.flags", len(flags)))

	s.logAudit(ctx, audit.EventForm17AUploaded, receipt,
		"entity_type", string(riskmodels.EntityForm17A),
		"entity_id", batchID.String(),
		"subject", req.BoothID,
		"record_count", len(records),
		"digest", receipt.Digest,
	)
	s.emitBoothRisk(ctx, req.BoothID)
	return receipt, nil
}

// IngestSummary stores a booth's Form 17C tally, replacing any earlier one,
// and checks it against the booth's poll-book entries. If the mismatch flag
// cannot be stored the earlier summary is put back and the upload rejected.
func (s *Service) IngestSummary(ctx context.Context, req *models.UploadSummaryRequest) (_ *models.SummaryReceipt, err error) {
	ctx, span := tracer.Start(ctx, "pollaudit.IngestSummary")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("booth.id", req.BoothID))

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	summary := &models.Form17CSummary{
		ID:               id.SummaryID(uuid.New()),
		BoothID:          req.BoothID,
		Constituency:     req.Constituency,
		TotalElectors:    req.TotalElectors,
		TotalVotesPolled: req.TotalVotesPolled,
		ValidVotes:       req.ValidVotes,
		RejectedVotes:    req.RejectedVotes,
		UploadedAt:       requestcontext.Now(ctx),
	}
	count, err := s.store.CountByBooth(ctx, req.BoothID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count form17a records")
	}
	flag, err := s.scorer.CheckCountMismatch(ctx, req.BoothID, count, req.TotalVotesPolled)
	if err != nil {
		return nil, err
	}

	previous, err := s.store.GetSummary(ctx, req.BoothID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load form17c summary")
	}
	if err := s.store.PutSummary(ctx, summary); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store form17c summary")
	}
	if flag != nil {
		if err := s.flags.Record(ctx, flag); err != nil {
			s.restoreSummary(ctx, req.BoothID, previous)
			return nil, flagError(err, "failed to record count mismatch flag")
		}
	}
	receipt := &models.SummaryReceipt{Summary: summary, Form17ACount: count}

	s.logAudit(ctx, audit.EventForm17CUploaded, summary,
		"entity_type", string(riskmodels.EntityForm17C),
		"entity_id", summary.ID.String(),
		"subject", req.BoothID,
		"constituency", req.Constituency,
	)
	if flag != nil {
		receipt.MismatchFlag = flag
		receipt.CountMismatch = true
		span.SetAttributes(attribute.String("mismatch.tier", string(flag.Tier)))
		s.logAudit(ctx, audit.EventCountMismatchAlert, map[string]any{
			"booth_id":      req.BoothID,
			"form17a_count": count,
			"form17c_count": req.TotalVotesPolled,
		},
			"entity_type", string(riskmodels.EntityBooth),
			"entity_id", req.BoothID,
			"subject", req.BoothID,
			"tier", string(flag.Tier),
			"score", flag.Score,
			"reason", flag.Explanation,
		)
	}
	s.emitBoothRisk(ctx, req.BoothID)
	return receipt, nil
}

func (s *Service) restoreSummary(ctx context.Context, boothID string, previous *models.Form17CSummary) {
	var err error
	if previous == nil {
		err = s.store.DeleteSummary(ctx, boothID)
	} else {
		err = s.store.PutSummary(ctx, previous)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to restore form17c summary", "booth_id", boothID, "error", err)
	}
}

func flagError(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) RecordsByBooth(ctx context.Context, boothID string) ([]*models.Form17ARecord, error) {
	records, err := s.store.RecordsByBooth(ctx, strings.TrimSpace(boothID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load form17a records")
	}
	return records, nil
}

func (s *Service) Summary(ctx context.Context, boothID string) (*models.Form17CSummary, error) {
	summary, err := s.store.GetSummary(ctx, strings.TrimSpace(boothID))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "form17c summary not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load form17c summary")
	}
	return summary, nil
}

// Summaries lists booth summaries for a constituency, or every booth for ALL.
func (s *Service) Summaries(ctx context.Context, constituency string) ([]*models.Form17CSummary, error) {
	summaries, err := s.store.ListSummaries(ctx, constituency)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list form17c summaries")
	}
	return summaries, nil
}

// Form17ACounts returns the ingested poll-book entry count per booth.
func (s *Service) Form17ACounts(ctx context.Context) (map[string]int, error) {
	counts, err := s.store.CountsByBooth(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count form17a records")
	}
	return counts, nil
}

// BoothRisk summarizes the open flags for one booth.
func (s *Service) BoothRisk(ctx context.Context, boothID string) (*models.BoothRisk, error) {
	boothID = strings.TrimSpace(boothID)
	if boothID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "booth_id is required")
	}
	open, err := s.flags.List(ctx, riskmodels.FlagFilter{
		BoothID:  boothID,
		Resolved: riskmodels.Unresolved(),
	})
	if err != nil {
		return nil, err
	}
	return models.NewBoothRisk(boothID, open), nil
}

func (s *Service) emitBoothRisk(ctx context.Context, boothID string) {
	risk, err := s.BoothRisk(ctx, boothID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to compute booth risk", "booth_id", boothID, "error", err)
		return
	}
	s.logAudit(ctx, audit.EventBoothRiskChanged, risk,
		"entity_type", string(riskmodels.EntityBooth),
		"entity_id", boothID,
		"subject", boothID,
		"tier", string(risk.Tier),
		"flag_count", risk.FlagCount,
	)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, payload any, attrs ...any) {
	var pub audit.Emitter
	if s.publisher != nil {
		pub = s.publisher
	}
	audit.LogAudit(ctx, s.logger, pub, event, payload, attrs...)
}
