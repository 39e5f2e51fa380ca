package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rollguard/internal/registry/models"
	id "rollguard/pkg/domain"
)

// Demo roll entries for local dashboards. Two share an address so the
// density rule has something to count against.
var demoVoters = []models.VoterRecord{
	{DocumentNumber: "DL0100000001", Name: "Asha Verma", Age: 34, Gender: "F", Address: "14 Lodhi Road, New Delhi", Constituency: "New Delhi", PollingStation: "B-01", State: "DL"},
	{DocumentNumber: "DL0100000002", Name: "Rohan Verma", Age: 37, Gender: "M", Address: "14 Lodhi Road, New Delhi", Constituency: "New Delhi", PollingStation: "B-01", State: "DL"},
	{DocumentNumber: "DL0100000003", Name: "Meera Iyer", Age: 52, Gender: "F", Address: "7 Janpath, New Delhi", Constituency: "New Delhi", PollingStation: "B-02", State: "DL"},
	{DocumentNumber: "DL0100000004", Name: "Imran Khan", Age: 29, Gender: "M", Address: "22 Chandni Chowk, Delhi", Constituency: "Chandni Chowk", PollingStation: "B-07", State: "DL"},
}

type recordImporter interface {
	ImportRecord(ctx context.Context, rec *models.VoterRecord) error
}

func seedVoterRoll(ctx context.Context, registry recordImporter) error {
	now := time.Now().UTC()
	for i := range demoVoters {
		rec := demoVoters[i]
		rec.ID = id.VoterRecordID(uuid.New())
		rec.CreatedAt = now
		if err := registry.ImportRecord(ctx, &rec); err != nil {
			return fmt.Errorf("seed %s: %w", rec.DocumentNumber, err)
		}
	}
	return nil
}
