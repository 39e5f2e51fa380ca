// Package service orchestrates voter-record change requests: scoring on
// submission, authority review, and roll updates on approval.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rollguard/internal/registry/models"
	riskmodels "rollguard/internal/risk/models"
	"rollguard/internal/risk/scorer"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/audit"
	"rollguard/pkg/platform/sentinel"
	"rollguard/pkg/requestcontext"
)

var tracer = otel.Tracer("rollguard/registry")

// Store persists voter records and requests.
type Store interface {
	SaveRequest(ctx context.Context, req *models.VoterRequest) error
	DeleteRequest(ctx context.Context, requestID id.VoterRequestID) error
	GetRequest(ctx context.Context, requestID id.VoterRequestID) (*models.VoterRequest, error)
	UpdateRequest(ctx context.Context, requestID id.VoterRequestID, fn func(*models.VoterRequest) error) (*models.VoterRequest, error)
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.VoterRequest, error)
	FindRequest(ctx context.Context, document, mobile string) (*models.VoterRequest, error)
	SaveRecord(ctx context.Context, rec *models.VoterRecord) error
	GetRecord(ctx context.Context, recordID id.VoterRecordID) (*models.VoterRecord, error)
	FindRecordByDocument(ctx context.Context, document string) (*models.VoterRecord, error)
	UpdateRecord(ctx context.Context, recordID id.VoterRecordID, fn func(*models.VoterRecord) error) (*models.VoterRecord, error)
	CountActive(ctx context.Context) (int, error)
}

// RequestScorer assesses one submission.
type RequestScorer interface {
	Score(ctx context.Context, subj scorer.RequestSubject) (*scorer.Assessment, error)
}

// RecordIndex is the write side of the identity and address indexes.
type RecordIndex interface {
	Add(key string, record id.VoterRecordID)
	Remove(key string, record id.VoterRecordID)
}

// FlagRecorder stores flags raised during scoring.
type FlagRecorder interface {
	Record(ctx context.Context, flags ...*riskmodels.Flag) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	defaultStateCode = "DL"
	maxDocumentTries = 5
)

type Service struct {
	store     Store
	scorer    RequestScorer
	identity  RecordIndex
	address   RecordIndex
	flags     FlagRecorder
	publisher AuditPublisher
	logger    *slog.Logger

	stateCode   string
	generateDoc func(stateCode string) string

	// reviewMu serializes status changes so an approval's roll effects and
	// the status write are observed together.
	reviewMu sync.Mutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithStateCode sets the two-letter prefix of generated document numbers.
func WithStateCode(code string) Option {
	return func(s *Service) {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			s.stateCode = code
		}
	}
}

// WithDocumentGenerator overrides document number generation.
func WithDocumentGenerator(fn func(stateCode string) string) Option {
	return func(s *Service) {
		if fn != nil {
			s.generateDoc = fn
		}
	}
}

func New(store Store, requestScorer RequestScorer, identity, address RecordIndex, flags FlagRecorder, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("registry store is required")
	case requestScorer == nil:
		return nil, errors.New("request scorer is required")
	case identity == nil || address == nil:
		return nil, errors.New("identity and address indexes are required")
	case flags == nil:
		return nil, errors.New("flag recorder is required")
	}
	s := &Service{
		store:       store,
		scorer:      requestScorer,
		identity:    identity,
		address:     address,
		flags:       flags,
		stateCode:   defaultStateCode,
		generateDoc: randomDocumentNumber,
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

// Submit scores and stores a citizen request. Validation failures reject the
// request before any index is touched.
func (s *Service) Submit(ctx context.Context, req *models.SubmitRequest) (_ *models.VoterRequest, err error) {
	ctx, span := tracer.Start(ctx, "registry.Submit")
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
	span.SetAttributes(attribute.String("request.type", string(req.Type)))
	now := requestcontext.Now(ctx)

	requestID := id.VoterRequestID(uuid.New())
	recordID := id.VoterRecordID(uuid.New())
	var target id.VoterRecordID
	if req.Type != models.RequestRegistration && req.DocumentNumber != "" {
		existing, err := s.store.FindRecordByDocument(ctx, req.DocumentNumber)
		switch {
		case err == nil:
			recordID = existing.ID
			target = existing.ID
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up voter record")
		}
	}

	assessment, err := s.scorer.Score(ctx, scorer.RequestSubject{
		RequestID:      requestID.String(),
		TargetRecord:   target,
		DocumentNumber: req.DocumentNumber,
		Address:        req.Fields.Get(models.FieldAddress),
		Age:            req.Fields.Get(models.FieldAge),
		Origin:         requestcontext.ClientIP(ctx),
	})
	if err != nil {
		return nil, err
	}

	vr := &models.VoterRequest{
		ID:             requestID,
		VoterRecordID:  recordID,
		Type:           req.Type,
		DocumentNumber: req.DocumentNumber,
		Fields:         req.Fields,
		Status:         models.StatusPending,
		Tier:           assessment.Tier,
		Score:          assessment.Score,
		Explanation:    assessment.Explanation,
		Flags:          assessment.Flags,
		OriginAddress:  requestcontext.ClientIP(ctx),
		UserAgent:      requestcontext.DeviceLabel(ctx),
		SubmittedAt:    now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveRequest(ctx, vr); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save voter request")
	}
	if err := s.recordFlags(ctx, assessment.Flags); err != nil {
		if delErr := s.store.DeleteRequest(ctx, requestID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove unrecorded voter request",
				"request_id", requestID.String(),
				"error", delErr,
			)
		}
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record request flags")
	}
	span.SetAttributes(
		attribute.Int("risk.score", vr.Score),
		attribute.String("risk.tier", string(vr.Tier)),
	)

	s.logAudit(ctx, audit.EventRequestScored, vr,
		"entity_type", string(riskmodels.EntityVoterRequest),
		"entity_id", requestID.String(),
		"request_type", string(vr.Type),
		"tier", string(vr.Tier),
		"score", vr.Score,
		"reason", vr.Explanation,
	)
	s.emitQueue(ctx)
	return vr.Clone(), nil
}

func (s *Service) recordFlags(ctx context.Context, flags []*riskmodels.Flag) error {
	if len(flags) == 0 {
		return nil
	}
	return s.flags.Record(ctx, flags...)
}

// Approve is UpdateStatus to approved.
func (s *Service) Approve(ctx context.Context, requestID id.VoterRequestID, by string) (*models.VoterRequest, error) {
	return s.UpdateStatus(ctx, requestID, models.StatusApproved, by)
}

// UpdateStatus moves a request through the review workflow. Approval applies
// the request to the roll first; if that fails the status is unchanged.
func (s *Service) UpdateStatus(ctx context.Context, requestID id.VoterRequestID, status models.RequestStatus, by string) (_ *models.VoterRequest, err error) {
	ctx, span := tracer.Start(ctx, "registry.UpdateStatus")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid status")
	}
	if by = strings.TrimSpace(by); by == "" {
		by = requestcontext.Operator(ctx)
	}

	s.reviewMu.Lock()
	defer s.reviewMu.Unlock()

	current, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, translate(err, "voter request not found", "failed to load voter request")
	}
	if !current.Status.CanTransitionTo(status) {
		return nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("request is already %s", current.Status))
	}

	document := current.DocumentNumber
	if status == models.StatusApproved {
		if document, err = s.applyApproval(ctx, current); err != nil {
			return nil, err
		}
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.UpdateRequest(ctx, requestID, func(r *models.VoterRequest) error {
		if !r.Status.CanTransitionTo(status) {
			return sentinel.ErrInvalidState
		}
		r.Status = status
		r.DocumentNumber = document
		r.UpdatedAt = now
		r.UpdatedBy = by
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeConflict, "request status changed concurrently")
		}
		return nil, translate(err, "voter request not found", "failed to update voter request")
	}

	s.logAudit(ctx, audit.EventRequestStatusUpdated, updated,
		"entity_type", string(riskmodels.EntityVoterRequest),
		"entity_id", requestID.String(),
		"status", string(status),
		"previous_status", string(current.Status),
		"actor_id", by,
	)
	s.emitQueue(ctx)
	return updated, nil
}

// applyApproval writes the request to the roll and keeps the indexes in step.
// It returns the document number the request ends up referencing.
func (s *Service) applyApproval(ctx context.Context, req *models.VoterRequest) (string, error) {
	now := requestcontext.Now(ctx)

	if req.Type == models.RequestRegistration {
		return s.register(ctx, req, now)
	}

	rec, err := s.store.GetRecord(ctx, req.VoterRecordID)
	if err != nil {
		return "", translate(err, "voter record not found for "+req.DocumentNumber, "failed to load voter record")
	}
	if !rec.IsActive() {
		return "", dErrors.New(dErrors.CodeConflict, "voter record is deleted")
	}

	oldAddress := rec.Address
	updated, err := s.store.UpdateRecord(ctx, rec.ID, func(r *models.VoterRecord) error {
		switch req.Type {
		case models.RequestCorrection:
			applyCorrection(r, req.Fields)
		case models.RequestTransfer:
			applyTransfer(r, req.Fields)
		case models.RequestDeletion:
			r.Status = models.RecordDeleted
		case models.RequestLostCard:
			r.CardReissuedAt = &now
		}
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return "", translate(err, "voter record not found", "failed to update voter record")
	}

	switch {
	case updated.Status == models.RecordDeleted:
		s.identity.Remove(updated.DocumentNumber, updated.ID)
		s.address.Remove(oldAddress, updated.ID)
	case updated.Address != oldAddress:
		s.address.Remove(oldAddress, updated.ID)
		s.address.Add(updated.Address, updated.ID)
	}
	return updated.DocumentNumber, nil
}

func (s *Service) register(ctx context.Context, req *models.VoterRequest, now time.Time) (string, error) {
	document := req.DocumentNumber
	if document == "" {
		var err error
		if document, err = s.newDocumentNumber(ctx); err != nil {
			return "", err
		}
	}
	age, _ := strconv.Atoi(req.Fields.Get(models.FieldAge))
	rec := &models.VoterRecord{
		ID:             req.VoterRecordID,
		DocumentNumber: document,
		Age:            age,
		Status:         models.RecordActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	applyCorrection(rec, req.Fields)
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		return "", translate(err, "", "failed to save voter record")
	}
	s.identity.Add(rec.DocumentNumber, rec.ID)
	s.address.Add(rec.Address, rec.ID)
	return document, nil
}

func (s *Service) newDocumentNumber(ctx context.Context) (string, error) {
	for range maxDocumentTries {
		doc := s.generateDoc(s.stateCode)
		_, err := s.store.FindRecordByDocument(ctx, doc)
		if errors.Is(err, sentinel.ErrNotFound) {
			return doc, nil
		}
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check document number")
		}
	}
	return "", dErrors.New(dErrors.CodeInternal, "could not allocate a unique document number")
}

// ImportRecord places an existing roll entry and indexes it. Used for seeding.
func (s *Service) ImportRecord(ctx context.Context, rec *models.VoterRecord) error {
	if rec == nil || rec.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "voter record id is required")
	}
	rec.DocumentNumber = strings.ToUpper(strings.TrimSpace(rec.DocumentNumber))
	if rec.Status == "" {
		rec.Status = models.RecordActive
	}
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		return translate(err, "", "failed to import voter record")
	}
	if rec.IsActive() {
		s.identity.Add(rec.DocumentNumber, rec.ID)
		s.address.Add(rec.Address, rec.ID)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, requestID id.VoterRequestID) (*models.VoterRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, translate(err, "voter request not found", "failed to load voter request")
	}
	return req, nil
}

// Track finds a request by id, or else the newest one for a document or mobile.
func (s *Service) Track(ctx context.Context, q *models.TrackRequest) (*models.VoterRequest, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.RequestID != "" {
		requestID, err := id.ParseVoterRequestID(q.RequestID)
		if err != nil {
			return nil, err
		}
		return s.Get(ctx, requestID)
	}
	req, err := s.store.FindRequest(ctx, q.DocumentNumber, q.Mobile)
	if err != nil {
		return nil, translate(err, "no request found", "failed to find voter request")
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, filter models.RequestFilter) ([]*models.VoterRequest, error) {
	reqs, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list voter requests")
	}
	return reqs, nil
}

// QueueStats counts pending requests and the high-severity share of them.
func (s *Service) QueueStats(ctx context.Context) (models.QueueStats, error) {
	pending, err := s.store.ListRequests(ctx, models.RequestFilter{Status: models.StatusPending})
	if err != nil {
		return models.QueueStats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count pending requests")
	}
	stats := models.QueueStats{Pending: len(pending)}
	for _, r := range pending {
		if r.IsHighRisk() {
			stats.HighRiskPending++
		}
	}
	return stats, nil
}

func (s *Service) FindVoterByDocument(ctx context.Context, document string) (*models.VoterRecord, error) {
	document = strings.ToUpper(strings.TrimSpace(document))
	if document == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "epic_id is required")
	}
	rec, err := s.store.FindRecordByDocument(ctx, document)
	if err != nil {
		return nil, translate(err, "voter record not found", "failed to load voter record")
	}
	return rec, nil
}

// RollSize is the number of active voter records.
func (s *Service) RollSize(ctx context.Context) (int, error) {
	n, err := s.store.CountActive(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count voter records")
	}
	return n, nil
}

func (s *Service) emitQueue(ctx context.Context) {
	stats, err := s.QueueStats(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to compute queue stats", "error", err)
		return
	}
	s.logAudit(ctx, audit.EventRequestQueueUpdated, stats,
		"pending_count", stats.Pending,
		"high_risk_count", stats.HighRiskPending,
	)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, payload any, attrs ...any) {
	var pub audit.Emitter
	if s.publisher != nil {
		pub = s.publisher
	}
	audit.LogAudit(ctx, s.logger, pub, event, payload, attrs...)
}

func translate(err error, notFound, internal string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound) && notFound != "":
		return dErrors.New(dErrors.CodeNotFound, notFound)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "record already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internal)
}

func randomDocumentNumber(stateCode string) string {
	return fmt.Sprintf("%s%010d", stateCode, rand.Int64N(10_000_000_000))
}
