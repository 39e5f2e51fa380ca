package models

import (
	"maps"
	"time"

	riskmodels "rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	dErrors "rollguard/pkg/domain-errors"
)

// RequestType is the kind of change a citizen asks for.
type RequestType string

const (
	RequestRegistration RequestType = "registration"
	RequestCorrection   RequestType = "correction"
	RequestTransfer     RequestType = "transfer"
	RequestDeletion     RequestType = "deletion"
	RequestLostCard     RequestType = "lost_card"
)

func (t RequestType) IsValid() bool {
	switch t {
	case RequestRegistration, RequestCorrection, RequestTransfer, RequestDeletion, RequestLostCard:
		return true
	}
	return false
}

func ParseRequestType(s string) (RequestType, error) {
	t := RequestType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid request type: must be one of registration, correction, transfer, deletion, lost_card")
	}
	return t, nil
}

// RequestStatus is the workflow state of a request.
type RequestStatus string

const (
	StatusPending     RequestStatus = "pending"
	StatusUnderReview RequestStatus = "under_review"
	StatusApproved    RequestStatus = "approved"
	StatusRejected    RequestStatus = "rejected"
	StatusOnHold      RequestStatus = "on_hold"
)

func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusRejected, StatusOnHold:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo allows any move out of a non-terminal state, including
// re-asserting the current one.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return next.IsValid() && !s.IsTerminal()
}

func ParseRequestStatus(s string) (RequestStatus, error) {
	st := RequestStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status: must be one of pending, under_review, approved, rejected, on_hold")
	}
	return st, nil
}

type RecordStatus string

const (
	RecordActive  RecordStatus = "active"
	RecordDeleted RecordStatus = "deleted"
)

// VoterRecord is an entry on the electoral roll.
type VoterRecord struct {
	ID                   id.VoterRecordID `json:"voter_record_id"`
	DocumentNumber       string           `json:"epic_id"`
	Name                 string           `json:"name"`
	GuardianName         string           `json:"guardian_name,omitempty"`
	Relation             string           `json:"relation,omitempty"`
	Gender               string           `json:"gender,omitempty"`
	Age                  int              `json:"age"`
	DateOfBirth          string           `json:"dob,omitempty"`
	Address              string           `json:"address"`
	Constituency         string           `json:"constituency,omitempty"`
	AssemblyConstituency string           `json:"assembly_constituency,omitempty"`
	PollingStation       string           `json:"polling_station,omitempty"`
	PartNo               string           `json:"part_no,omitempty"`
	SerialNo             string           `json:"serial_no,omitempty"`
	State                string           `json:"state,omitempty"`
	Mobile               string           `json:"mobile,omitempty"`
	Email                string           `json:"email,omitempty"`
	Status               RecordStatus     `json:"status"`
	CardReissuedAt       *time.Time       `json:"card_reissued_at,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

func (r *VoterRecord) IsActive() bool {
	return r.Status == RecordActive
}

func (r *VoterRecord) Clone() *VoterRecord {
	c := *r
	if r.CardReissuedAt != nil {
		t := *r.CardReissuedAt
		c.CardReissuedAt = &t
	}
	return &c
}

// VoterRequest is a citizen-submitted change with its risk assessment. Risk
// fields are fixed at submission.
type VoterRequest struct {
	ID             id.VoterRequestID  `json:"request_id"`
	VoterRecordID  id.VoterRecordID   `json:"voter_record_id"`
	Type           RequestType        `json:"request_type"`
	DocumentNumber string             `json:"epic_id,omitempty"`
	Fields         Fields             `json:"submitted_data"`
	Status         RequestStatus      `json:"status"`
	Tier           riskmodels.Tier    `json:"risk_level"`
	Score          int                `json:"risk_score"`
	Explanation    string             `json:"risk_explanation"`
	Flags          []*riskmodels.Flag `json:"flags"`
	OriginAddress  string             `json:"ip_address,omitempty"`
	UserAgent      string             `json:"user_agent,omitempty"`
	SubmittedAt    time.Time          `json:"submitted_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	UpdatedBy      string             `json:"updated_by,omitempty"`
}

func (r *VoterRequest) Clone() *VoterRequest {
	c := *r
	c.Fields = maps.Clone(r.Fields)
	if r.Flags != nil {
		c.Flags = make([]*riskmodels.Flag, len(r.Flags))
		for i, f := range r.Flags {
			c.Flags[i] = f.Clone()
		}
	}
	return &c
}

// IsHighRisk reports whether the assessment landed in a high-severity tier.
func (r *VoterRequest) IsHighRisk() bool {
	return r.Tier.IsHighSeverity()
}

// RequestFilter narrows a request listing. Zero values do not filter.
type RequestFilter struct {
	Status RequestStatus
	Tier   riskmodels.Tier
	Type   RequestType
}

func (f RequestFilter) Matches(r *VoterRequest) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Tier != "" && r.Tier != f.Tier {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	return true
}

// QueueStats summarises the pending review queue.
type QueueStats struct {
	Pending         int `json:"pending_count"`
	HighRiskPending int `json:"high_risk_count"`
}
