package models

import (
	"strings"

	dErrors "rollguard/pkg/domain-errors"
)

// SubmitRequest is the citizen submission body.
type SubmitRequest struct {
	Type           RequestType `json:"request_type"`
	DocumentNumber string      `json:"epic_id,omitempty"`
	Fields         Fields      `json:"submitted_data"`
}

// Validate normalizes the submission and checks the fields its type needs.
func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if !r.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "request_type must be one of registration, correction, transfer, deletion, lost_card")
	}
	if r.Fields == nil {
		r.Fields = Fields{}
	}
	r.DocumentNumber = strings.ToUpper(strings.TrimSpace(r.DocumentNumber))
	if r.DocumentNumber == "" {
		r.DocumentNumber = strings.ToUpper(r.Fields.Get(FieldDocument))
	}

	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	switch r.Type {
	case RequestRegistration:
		require(FieldName, r.Fields.Get(FieldName))
		require(FieldAge, r.Fields.Get(FieldAge))
		require(FieldAddress, r.Fields.Get(FieldAddress))
	case RequestTransfer:
		require(FieldDocument, r.DocumentNumber)
		require(FieldAddress, r.Fields.Get(FieldAddress))
	case RequestCorrection, RequestDeletion, RequestLostCard:
		require(FieldDocument, r.DocumentNumber)
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

// TrackRequest looks a request up by id, document number or mobile.
type TrackRequest struct {
	RequestID      string `json:"request_id,omitempty"`
	DocumentNumber string `json:"epic_id,omitempty"`
	Mobile         string `json:"mobile,omitempty"`
}

func (r *TrackRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.RequestID = strings.TrimSpace(r.RequestID)
	r.DocumentNumber = strings.ToUpper(strings.TrimSpace(r.DocumentNumber))
	r.Mobile = strings.TrimSpace(r.Mobile)
	if r.RequestID == "" && r.DocumentNumber == "" && r.Mobile == "" {
		return dErrors.New(dErrors.CodeValidation, "one of request_id, epic_id or mobile is required")
	}
	return nil
}

// StatusUpdateRequest is the authority's status change body.
type StatusUpdateRequest struct {
	Status    RequestStatus `json:"status"`
	UpdatedBy string        `json:"updated_by,omitempty"`
}

func (r *StatusUpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.Status = RequestStatus(strings.TrimSpace(string(r.Status)))
	if !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "status must be one of pending, under_review, approved, rejected, on_hold")
	}
	r.UpdatedBy = strings.TrimSpace(r.UpdatedBy)
	return nil
}
