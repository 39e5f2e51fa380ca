// Package models holds the post-election poll-book records and booth
// summaries the audit orchestrator ingests.
package models

import (
	"strings"
	"time"

	riskmodels "rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
)

// AllConstituencies selects every booth summary.
const AllConstituencies = "ALL"

// Form17ARecord is one digitized poll-book line. Write-once.
type Form17ARecord struct {
	ID                  id.AuditRecordID `json:"record_id"`
	BoothID             string           `json:"booth_id"`
	DocumentNumber      string           `json:"epic_id"`
	SerialNumber        string           `json:"serial_number"`
	VoterName           string           `json:"voter_name"`
	ThumbImpressionHash string           `json:"thumb_impression_hash,omitempty"`
	SignatureHash       string           `json:"signature_hash,omitempty"`
	BatchID             id.BatchID       `json:"form17a_upload_id"`
	UploadedAt          time.Time        `json:"uploaded_at"`
}

// Form17CSummary is a booth's official tally. One per booth; re-uploads replace.
type Form17CSummary struct {
	ID               id.SummaryID `json:"summary_id"`
	BoothID          string       `json:"booth_id"`
	Constituency     string       `json:"constituency"`
	TotalElectors    int          `json:"total_electors"`
	TotalVotesPolled int          `json:"total_votes_polled"`
	ValidVotes       int          `json:"valid_votes"`
	RejectedVotes    int          `json:"rejected_votes"`
	UploadedAt       time.Time    `json:"uploaded_at"`
}

// InScope reports whether the summary belongs to constituency, where
// AllConstituencies matches everything.
func (s *Form17CSummary) InScope(constituency string) bool {
	constituency = strings.TrimSpace(constituency)
	if constituency == "" || strings.EqualFold(constituency, AllConstituencies) {
		return true
	}
	return strings.EqualFold(s.Constituency, constituency)
}

// Form17AEntry is one poll-book line in an upload body.
type Form17AEntry struct {
	DocumentNumber      string `json:"epic_id"`
	SerialNumber        string `json:"serial_number"`
	VoterName           string `json:"voter_name"`
	ThumbImpressionHash string `json:"thumb_impression_hash,omitempty"`
	SignatureHash       string `json:"signature_hash,omitempty"`
}

// UploadBatchRequest is the Form 17A upload body. Entry-level checks belong
// to the audit scorer, which rejects the batch before touching any index.
type UploadBatchRequest struct {
	BoothID string         `json:"booth_id"`
	Records []Form17AEntry `json:"records"`
}

func (r *UploadBatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.BoothID = strings.TrimSpace(r.BoothID)
	if r.BoothID == "" {
		return dErrors.New(dErrors.CodeValidation, "booth_id is required")
	}
	if len(r.Records) == 0 {
		return dErrors.New(dErrors.CodeValidation, "records must be a non-empty array")
	}
	return nil
}

// UploadSummaryRequest is the Form 17C upload body.
type UploadSummaryRequest struct {
	BoothID          string `json:"booth_id"`
	Constituency     string `json:"constituency"`
	TotalElectors    int    `json:"total_electors"`
	TotalVotesPolled int    `json:"total_votes_polled"`
	ValidVotes       int    `json:"valid_votes"`
	RejectedVotes    int    `json:"rejected_votes"`
}

func (r *UploadSummaryRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.BoothID = strings.TrimSpace(r.BoothID)
	r.Constituency = strings.TrimSpace(r.Constituency)
	if r.BoothID == "" || r.Constituency == "" {
		return dErrors.New(dErrors.CodeValidation, "booth_id and constituency are required")
	}
	if r.TotalElectors < 0 || r.TotalVotesPolled < 0 || r.ValidVotes < 0 || r.RejectedVotes < 0 {
		return dErrors.New(dErrors.CodeValidation, "vote counts cannot be negative")
	}
	return nil
}

// BatchReceipt is returned for an ingested Form 17A upload. Digest is the
// hex BLAKE3 digest of the canonical entry list.
type BatchReceipt struct {
	BatchID     id.BatchID         `json:"upload_id"`
	BoothID     string             `json:"booth_id"`
	RecordCount int                `json:"record_count"`
	Digest      string             `json:"digest"`
	Flags       []*riskmodels.Flag `json:"flags"`
}

// SummaryReceipt is returned for an ingested Form 17C summary.
type SummaryReceipt struct {
	Summary       *Form17CSummary  `json:"summary"`
	Form17ACount  int              `json:"form17a_count"`
	MismatchFlag  *riskmodels.Flag `json:"mismatch_flag,omitempty"`
	CountMismatch bool             `json:"count_mismatch"`
}

// BoothRisk summarizes the open flags touching one booth.
type BoothRisk struct {
	BoothID       string          `json:"booth_id"`
	Tier          riskmodels.Tier `json:"risk_level"`
	FlagCount     int             `json:"flag_count"`
	HighRiskFlags int             `json:"high_risk_flags"`
}

// NewBoothRisk derives a booth's tier from its open flags: any high-severity
// flag makes it High Risk, any other open flag Needs Review.
func NewBoothRisk(boothID string, open []*riskmodels.Flag) *BoothRisk {
	risk := &BoothRisk{BoothID: boothID, Tier: riskmodels.TierNormal}
	for _, f := range open {
		if f.Resolved {
			continue
		}
		risk.FlagCount++
		if f.Tier.IsHighSeverity() {
			risk.HighRiskFlags++
		}
	}
	switch {
	case risk.HighRiskFlags > 0:
		risk.Tier = riskmodels.TierHighRisk
	case risk.FlagCount > 0:
		risk.Tier = riskmodels.TierNeedsReview
	}
	return risk
}
