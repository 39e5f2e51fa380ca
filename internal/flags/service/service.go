// Package service records, lists and resolves risk flags.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"rollguard/internal/flags/metrics"
	"rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/audit"
	"rollguard/pkg/platform/sentinel"
	"rollguard/pkg/requestcontext"
)

// Store persists flags.
type Store interface {
	Add(ctx context.Context, flags ...*models.Flag) error
	Get(ctx context.Context, flagID id.FlagID) (*models.Flag, error)
	List(ctx context.Context, filter models.FlagFilter) ([]*models.Flag, error)
	Resolve(ctx context.Context, flagID id.FlagID, by string, at time.Time) (*models.Flag, error)
}

// BoothMembership answers whether a poll-book document was seen in a booth.
type BoothMembership interface {
	Contains(booth, document string) bool
}

// AuditPublisher emits flag events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store     Store
	booths    BoothMembership
	publisher AuditPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

func New(store Store, booths BoothMembership, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("flag store is required")
	}
	if booths == nil {
		return nil, errors.New("booth membership is required")
	}
	s := &Service{store: store, booths: booths}
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

// Record stores flags and emits one flag_raised event per flag.
func (s *Service) Record(ctx context.Context, flags ...*models.Flag) error {
	if len(flags) == 0 {
		return nil
	}
	if err := s.store.Add(ctx, flags...); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "flag already recorded")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record flags")
	}
	for _, f := range flags {
		s.metrics.IncrementRecorded(string(f.Tier))
		s.logAudit(ctx, audit.EventFlagRaised, f,
			"flag_id", f.ID.String(),
			"entity_type", string(f.EntityType),
			"entity_id", f.EntityID,
			"tier", string(f.Tier),
			"score", f.Score,
			"reason", f.Reason,
			"rule_id", string(f.RuleID),
		)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, flagID id.FlagID) (*models.Flag, error) {
	f, err := s.store.Get(ctx, flagID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "flag not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flag")
	}
	return f, nil
}

// List returns flags matching filter, newest first. A booth filter keeps booth
// flags for that booth and form17a flags whose document was seen there.
func (s *Service) List(ctx context.Context, filter models.FlagFilter) ([]*models.Flag, error) {
	flags, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list flags")
	}
	booth := strings.TrimSpace(filter.BoothID)
	if booth == "" {
		return flags, nil
	}
	out := flags[:0]
	for _, f := range flags {
		if s.inBooth(f, booth) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Service) inBooth(f *models.Flag, booth string) bool {
	switch f.EntityType {
	case models.EntityBooth, models.EntityForm17C:
		return f.EntityID == booth
	case models.EntityForm17A:
		return s.booths.Contains(booth, f.EntityID)
	}
	return false
}

// Resolve marks a flag resolved by the given authority. Resolving an already
// resolved flag is a no-op that returns the original resolution.
func (s *Service) Resolve(ctx context.Context, flagID id.FlagID, by string) (*models.Flag, error) {
	by = strings.TrimSpace(by)
	if by == "" {
		by = requestcontext.Operator(ctx)
	}
	if by == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "resolved_by is required")
	}

	f, err := s.store.Resolve(ctx, flagID, by, requestcontext.Now(ctx))
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		s.metrics.IncrementResolveNoop()
		s.logger.InfoContext(ctx, "flag already resolved",
			"flag_id", flagID.String(),
			"resolved_by", f.ResolvedBy,
			"attempted_by", by,
		)
		return f, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "flag not found")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve flag")
	}

	s.metrics.IncrementResolved(string(f.Tier))
	s.logAudit(ctx, audit.EventFlagResolved, f,
		"flag_id", f.ID.String(),
		"entity_type", string(f.EntityType),
		"entity_id", f.EntityID,
		"tier", string(f.Tier),
		"actor_id", by,
	)
	return f, nil
}

// OpenHighSeverity returns unresolved High Risk and Critical flags.
func (s *Service) OpenHighSeverity(ctx context.Context) ([]*models.Flag, error) {
	return s.List(ctx, models.FlagFilter{
		Tiers:    []models.Tier{models.TierHighRisk, models.TierCritical},
		Resolved: models.Unresolved(),
	})
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, payload any, attrs ...any) {
	var pub audit.Emitter
	if s.publisher != nil {
		pub = s.publisher
	}
	audit.LogAudit(ctx, s.logger, pub, event, payload, attrs...)
}
