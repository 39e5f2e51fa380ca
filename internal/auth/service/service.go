// Package service checks the demo operator credential and issues tokens.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rollguard/internal/auth/lockout"
	"rollguard/internal/auth/models"
	jwttoken "rollguard/internal/jwt_token"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/platform/audit"
	"rollguard/pkg/requestcontext"
)

// TokenIssuer signs operator access tokens.
type TokenIssuer interface {
	GenerateAccessToken(subject string, now time.Time, expiresIn time.Duration) (string, time.Time, error)
}

// Lockout throttles repeated failures for one username and client address.
type Lockout interface {
	LockedUntil(ctx context.Context, key string) (time.Time, bool)
	RecordFailure(ctx context.Context, key string) (time.Time, bool)
	Clear(ctx context.Context, key string)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Credential is the single configured operator account.
type Credential struct {
	Username     string
	PasswordHash string
}

const defaultTokenTTL = 8 * time.Hour

type Service struct {
	credential Credential
	tokens     TokenIssuer
	tokenTTL   time.Duration
	publisher  AuditPublisher
	lockout    Lockout
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLockout(l Lockout) Option {
	return func(s *Service) { s.lockout = l }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

func New(credential Credential, tokens TokenIssuer, opts ...Option) (*Service, error) {
	credential.Username = strings.ToLower(strings.TrimSpace(credential.Username))
	switch {
	case credential.Username == "" || credential.PasswordHash == "":
		return nil, errors.New("operator credential is required")
	case tokens == nil:
		return nil, errors.New("token issuer is required")
	}
	s := &Service{credential: credential, tokens: tokens, tokenTTL: defaultTokenTTL}
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

// Login checks the credential and issues a bearer token. Unknown users and
// wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := lockout.Key(req.Username, requestcontext.ClientIP(ctx))
	if s.lockout != nil {
		if until, locked := s.lockout.LockedUntil(ctx, key); locked {
			s.logAudit(ctx, audit.EventOperatorLoginFailed,
				"entity_type", "operator",
				"entity_id", req.Username,
				"actor_id", req.Username,
				"subject", requestcontext.ClientIP(ctx),
				"reason", "locked",
			)
			retry := max(1, int(until.Sub(requestcontext.Now(ctx)).Seconds()))
			return nil, dErrors.New(dErrors.CodeRateLimited, fmt.Sprintf("too many failed attempts, retry in %ds", retry))
		}
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.credential.Username)) == 1
	err := verifyPassword(req.Password, s.credential.PasswordHash)
	if !userOK || err != nil {
		if err != nil && !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify credentials")
		}
		s.logAudit(ctx, audit.EventOperatorLoginFailed,
			"entity_type", "operator",
			"entity_id", req.Username,
			"actor_id", req.Username,
			"subject", requestcontext.ClientIP(ctx),
			"reason", "invalid credentials",
		)
		if s.lockout != nil {
			if until, locked := s.lockout.RecordFailure(ctx, key); locked {
				s.logAudit(ctx, audit.EventOperatorLockedOut,
					"entity_type", "operator",
					"entity_id", req.Username,
					"actor_id", req.Username,
					"subject", requestcontext.ClientIP(ctx),
					"reason", "locked until "+until.UTC().Format(time.RFC3339),
				)
			}
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	if s.lockout != nil {
		s.lockout.Clear(ctx, key)
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(s.credential.Username, requestcontext.Now(ctx), s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	s.logAudit(ctx, audit.EventOperatorLogin,
		"entity_type", "operator",
		"entity_id", s.credential.Username,
		"actor_id", s.credential.Username,
		"subject", requestcontext.ClientIP(ctx),
	)
	return &models.LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Operator:    models.Operator{Username: s.credential.Username, Role: jwttoken.RoleAuthority},
	}, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attrs ...any) {
	var pub audit.Emitter
	if s.publisher != nil {
		pub = s.publisher
	}
	audit.LogAudit(ctx, s.logger, pub, event, nil, attrs...)
}
