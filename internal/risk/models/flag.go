package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
)

// EntityType names what a flag is attached to.
type EntityType string

const (
	EntityVoterRequest EntityType = "voter_request"
	EntityForm17A      EntityType = "form17a"
	EntityForm17C      EntityType = "form17c"
	EntityBooth        EntityType = "booth"
)

// IsValid checks if the entity type is one of the supported values.
func (e EntityType) IsValid() bool {
	switch e {
	case EntityVoterRequest, EntityForm17A, EntityForm17C, EntityBooth:
		return true
	}
	return false
}

// ParseEntityType validates an entity type from an external filter.
func ParseEntityType(s string) (EntityType, error) {
	e := EntityType(s)
	if !e.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid entity type: must be one of voter_request, form17a, form17c, booth")
	}
	return e, nil
}

// RuleID is the stable machine-readable code of the rule that raised a flag.
type RuleID string

const (
	RuleDuplicateDocument      RuleID = "duplicate_document"
	RuleUnderageApplicant      RuleID = "underage_applicant"
	RuleAddressDensityMedium   RuleID = "address_density_medium"
	RuleAddressDensityHigh     RuleID = "address_density_high"
	RuleAddressDensityCritical RuleID = "address_density_critical"
	RuleVelocitySuspicious     RuleID = "velocity_suspicious"
	RuleVelocityBot            RuleID = "velocity_bot"
	RuleDuplicateDocumentBatch RuleID = "duplicate_document_in_batch"
	RuleDuplicateSerialBatch   RuleID = "duplicate_serial_in_batch"
	RuleCrossBoothDuplicate    RuleID = "cross_booth_duplicate"
	RuleCountMismatchModerate  RuleID = "count_mismatch_moderate"
	RuleCountMismatchCritical  RuleID = "count_mismatch_critical"
)

// Flag is one detected anomaly. Everything except the resolution tuple is
// immutable after creation, and resolution is one-way.
type Flag struct {
	ID          id.FlagID  `json:"flag_id"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	Tier        Tier       `json:"risk_level"`
	Score       int        `json:"risk_score"`
	RuleID      RuleID     `json:"rule_id"`
	Reason      string     `json:"reason"`
	Explanation string     `json:"explanation"`
	CreatedAt   time.Time  `json:"created_at"`
	Resolved    bool       `json:"resolved"`
	ResolvedBy  string     `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// NewFlag builds an unresolved flag, enforcing that it names a valid entity and tier.
func NewFlag(entityType EntityType, entityID string, tier Tier, score int, rule RuleID, reason, explanation string, now time.Time) (*Flag, error) {
	if !entityType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "flag entity type is invalid")
	}
	if strings.TrimSpace(entityID) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "flag entity id cannot be empty")
	}
	if !tier.IsValid() || tier == TierNormal {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "flag tier must be an anomaly tier")
	}
	if score < 0 || score > 100 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "flag score must be between 0 and 100")
	}
	if rule == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "flag rule id cannot be empty")
	}
	return &Flag{
		ID:          id.FlagID(uuid.New()),
		EntityType:  entityType,
		EntityID:    entityID,
		Tier:        tier,
		Score:       score,
		RuleID:      rule,
		Reason:      reason,
		Explanation: explanation,
		CreatedAt:   now,
	}, nil
}

// CanResolve reports whether the flag is still open.
func (f *Flag) CanResolve() bool {
	return !f.Resolved
}

// ApplyResolve marks the flag resolved. Callers check CanResolve first.
func (f *Flag) ApplyResolve(by string, at time.Time) {
	f.Resolved = true
	f.ResolvedBy = by
	f.ResolvedAt = &at
}

// Clone returns a deep copy safe to hand out of a store.
func (f *Flag) Clone() *Flag {
	c := *f
	if f.ResolvedAt != nil {
		t := *f.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// FlagFilter narrows a flag listing. Zero-valued fields do not filter.
type FlagFilter struct {
	// Tiers matches any of the listed tiers.
	Tiers      []Tier
	EntityType EntityType
	Resolved   *bool
	RuleID     RuleID
	// BoothID keeps booth flags for that booth and form17a flags whose
	// document was seen in that booth.
	BoothID string
}

// Matches applies every filter field except BoothID, which needs the booth index.
func (f FlagFilter) Matches(flag *Flag) bool {
	if len(f.Tiers) > 0 && !slices.Contains(f.Tiers, flag.Tier) {
		return false
	}
	if f.EntityType != "" && flag.EntityType != f.EntityType {
		return false
	}
	if f.Resolved != nil && flag.Resolved != *f.Resolved {
		return false
	}
	if f.RuleID != "" && flag.RuleID != f.RuleID {
		return false
	}
	return true
}

// Unresolved is a convenience for filters on open flags.
func Unresolved() *bool {
	b := false
	return &b
}
