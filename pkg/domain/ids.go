// Package domain holds typed identifiers shared across modules.
//
// Each ID is a distinct named type over uuid.UUID so a flag ID can never be
// passed where a voter request ID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "rollguard/pkg/domain-errors"
)

type (
	VoterRequestID uuid.UUID
	VoterRecordID  uuid.UUID
	FlagID         uuid.UUID
	BatchID        uuid.UUID
	AuditRecordID  uuid.UUID
	SummaryID      uuid.UUID
)

func (id VoterRequestID) String() string { return uuid.UUID(id).String() }
func (id VoterRecordID) String() string  { return uuid.UUID(id).String() }
func (id FlagID) String() string         { return uuid.UUID(id).String() }
func (id BatchID) String() string        { return uuid.UUID(id).String() }
func (id AuditRecordID) String() string  { return uuid.UUID(id).String() }
func (id SummaryID) String() string      { return uuid.UUID(id).String() }

func (id VoterRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id VoterRecordID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id FlagID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id BatchID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

func ParseVoterRequestID(s string) (VoterRequestID, error) {
	u, err := parseUUID(s, "voter request ID")
	return VoterRequestID(u), err
}

func ParseVoterRecordID(s string) (VoterRecordID, error) {
	u, err := parseUUID(s, "voter record ID")
	return VoterRecordID(u), err
}

func ParseFlagID(s string) (FlagID, error) {
	u, err := parseUUID(s, "flag ID")
	return FlagID(u), err
}

func ParseBatchID(s string) (BatchID, error) {
	u, err := parseUUID(s, "batch ID")
	return BatchID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs with CodeInvalidInput.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
