// Package scorer turns index state into risk flags and scores for voter
// requests and for booth audit records.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"rollguard/internal/risk/index"
	"rollguard/internal/risk/metrics"
	"rollguard/internal/risk/models"
	"rollguard/internal/risk/ports"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/requestcontext"
)

// Signal weights. They sum to 10 tenths.
const (
	identityWeight = 4
	addressWeight  = 3
	velocityWeight = 3
)

// Thresholds for the request rules.
const (
	MinimumVoterAge         = 18
	AddressDensityCritical  = 10
	AddressDensityHigh      = 7
	AddressDensityReview    = 4
	VelocityBotThreshold    = 15
	VelocityReviewThreshold = 5
)

const noAnomalies = "No anomalies detected"

// RequestSubject is what the scorer needs to know about one voter request.
type RequestSubject struct {
	// RequestID becomes the entity id on any flag raised.
	RequestID string
	// TargetRecord is the existing record the request acts on; zero for new registrations.
	TargetRecord   id.VoterRecordID
	DocumentNumber string
	Address        string
	// Age is the raw submitted age; blank or unparsable values are skipped.
	Age    string
	Origin string
}

// Contributions are the per-signal scores before weighting.
type Contributions struct {
	Identity int `json:"identity"`
	Address  int `json:"address"`
	Velocity int `json:"velocity"`
}

// Assessment is the scorer's verdict on one request.
type Assessment struct {
	Score         int
	Tier          models.Tier
	Explanation   string
	Flags         []*models.Flag
	Contributions Contributions
	AddressCount  int
	VelocityCount int
}

// RequestScorer scores voter requests against the identity, address and
// velocity indexes. One Score call is linearizable with respect to the others.
type RequestScorer struct {
	mu       sync.Mutex
	identity *index.IdentityIndex
	address  *index.AddressIndex
	velocity ports.VelocityIndex
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a scorer.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// NewRequestScorer wires a scorer to the indexes it reads.
func NewRequestScorer(identity *index.IdentityIndex, address *index.AddressIndex, velocity ports.VelocityIndex, opts ...Option) (*RequestScorer, error) {
	if identity == nil {
		return nil, errors.New("identity index is required")
	}
	if address == nil {
		return nil, errors.New("address index is required")
	}
	if velocity == nil {
		return nil, errors.New("velocity index is required")
	}
	o := buildOptions(opts)
	return &RequestScorer{
		identity: identity,
		address:  address,
		velocity: velocity,
		logger:   o.logger,
		metrics:  o.metrics,
	}, nil
}

// Score evaluates one request. The only side effect is recording the
// submission in the velocity window; identity and address indexes are read only.
func (s *RequestScorer) Score(ctx context.Context, subj RequestSubject) (*Assessment, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	a := &Assessment{}
	var reasons []string
	raise := func(tier models.Tier, score int, rule models.RuleID, reason, explanation string) error {
		f, err := models.NewFlag(models.EntityVoterRequest, subj.RequestID, tier, score, rule, reason, explanation, now)
		if err != nil {
			return err
		}
		a.Flags = append(a.Flags, f)
		reasons = append(reasons, reason)
		return nil
	}

	if doc := index.NormalizeDocument(subj.DocumentNumber); doc != "" {
		if others := s.identity.CountOthers(doc, subj.TargetRecord); others > 0 {
			a.Contributions.Identity = 100
			if err := raise(models.TierHighRisk, 100, models.RuleDuplicateDocument, "Existing EPIC detected",
				fmt.Sprintf("EPIC %s is already held by %d other voter record(s)", doc, others)); err != nil {
				return nil, err
			}
		}
	}

	if age, ok := parseAge(subj.Age); ok && age < MinimumVoterAge {
		a.Contributions.Identity = 100
		if err := raise(models.TierCritical, 100, models.RuleUnderageApplicant, "Underage applicant",
			fmt.Sprintf("Applicant age %d is below the minimum voting age of %d", age, MinimumVoterAge)); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(subj.Address) != "" {
		a.AddressCount = s.address.Density(subj.Address, subj.TargetRecord)
		tier, score, rule := addressRule(a.AddressCount)
		if rule != "" {
			a.Contributions.Address = score
			if err := raise(tier, score, rule, addressReason(rule),
				fmt.Sprintf("%d voters registered at the same address", a.AddressCount)); err != nil {
				return nil, err
			}
		}
	}

	count, err := s.velocity.RecordAndCount(ctx, subj.Origin, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record submission velocity")
	}
	a.VelocityCount = count
	if tier, score, rule := velocityRule(count); rule != "" {
		a.Contributions.Velocity = score
		if err := raise(tier, score, rule, velocityReason(rule),
			fmt.Sprintf("%d requests from the same origin within %s", count, index.DefaultVelocityWindow)); err != nil {
			return nil, err
		}
	}

	a.Score = Aggregate(a.Contributions, a.Flags)
	a.Tier = models.TierForScore(a.Score)
	a.Explanation = explain(reasons)

	for _, f := range a.Flags {
		s.metrics.IncrementFlagRaised(string(f.RuleID))
	}
	s.metrics.ObserveRequestScored(string(a.Tier), a.Score, float64(time.Since(start).Microseconds())/1000.0)
	s.logger.DebugContext(ctx, "request scored",
		"request_id", subj.RequestID,
		"score", a.Score,
		"tier", a.Tier,
		"flags", len(a.Flags),
	)
	return a, nil
}

// Aggregate forces 100 when any flag is Critical, otherwise returns the
// weighted sum of contributions rounded half up. A reused identity document
// never scores below the High Risk threshold.
func Aggregate(c Contributions, flags []*models.Flag) int {
	floor := 0
	for _, f := range flags {
		if f.Tier == models.TierCritical {
			return 100
		}
		if f.RuleID == models.RuleDuplicateDocument {
			floor = models.HighRiskScoreThreshold
		}
	}
	tenths := identityWeight*c.Identity + addressWeight*c.Address + velocityWeight*c.Velocity
	return max((tenths+5)/10, floor)
}

func addressRule(count int) (models.Tier, int, models.RuleID) {
	switch {
	case count >= AddressDensityCritical:
		return models.TierCritical, 100, models.RuleAddressDensityCritical
	case count >= AddressDensityHigh:
		return models.TierHighRisk, 75, models.RuleAddressDensityHigh
	case count >= AddressDensityReview:
		return models.TierNeedsReview, 50, models.RuleAddressDensityMedium
	}
	return models.TierNormal, 0, ""
}

func velocityRule(count int) (models.Tier, int, models.RuleID) {
	switch {
	case count >= VelocityBotThreshold:
		return models.TierHighRisk, 100, models.RuleVelocityBot
	case count >= VelocityReviewThreshold:
		return models.TierNeedsReview, 50, models.RuleVelocitySuspicious
	}
	return models.TierNormal, 0, ""
}

func addressReason(rule models.RuleID) string {
	switch rule {
	case models.RuleAddressDensityCritical:
		return "Mass voter registration at one address"
	case models.RuleAddressDensityHigh:
		return "High density address"
	}
	return "Medium density address"
}

func velocityReason(rule models.RuleID) string {
	if rule == models.RuleVelocityBot {
		return "Bot-like submission velocity"
	}
	return "Suspicious submission velocity"
}

// parseAge reads the leading integer of raw, so "17.5" and "17 years" are 17.
func parseAge(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	end := 0
	if end < len(raw) && (raw[end] == '-' || raw[end] == '+') {
		end++
	}
	digits := end
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	age, err := strconv.Atoi(raw[:end])
	if err != nil {
		return 0, false
	}
	return age, true
}

func explain(reasons []string) string {
	if len(reasons) == 0 {
		return noAnomalies
	}
	return strings.Join(reasons, "; ")
}
