package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"rollguard/internal/risk/index"
	"rollguard/internal/risk/metrics"
	"rollguard/internal/risk/models"
	dErrors "rollguard/pkg/domain-errors"
	"rollguard/pkg/requestcontext"
)

// Count-mismatch ladder between Form 17A entries and Form 17C votes polled.
// Differences up to MismatchTolerance are clerical variance; anything above
// MismatchCritical is top severity.
const (
	MismatchTolerance = 5
	MismatchCritical  = 10
)

// AuditEntry is one poll-book line as submitted for scoring.
type AuditEntry struct {
	DocumentNumber string
	SerialNumber   string
}

// AuditScorer checks Form 17A batches for duplication and booth summaries for
// count mismatches. It owns the cross-booth reporting watermark so re-uploads
// do not repeat a cross-booth flag unless the set of booths grows.
type AuditScorer struct {
	mu       sync.Mutex
	booths   *index.BoothIndex
	reported map[string]int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewAuditScorer wires an audit scorer to the booth index it accumulates into.
func NewAuditScorer(booths *index.BoothIndex, opts ...Option) (*AuditScorer, error) {
	if booths == nil {
		return nil, errors.New("booth index is required")
	}
	o := buildOptions(opts)
	return &AuditScorer{
		booths:   booths,
		reported: make(map[string]int),
		logger:   o.logger,
		metrics:  o.metrics,
	}, nil
}

// ValidateBatch rejects a batch with a missing booth id or an entry missing its
// document or serial number.
func ValidateBatch(boothID string, entries []AuditEntry) error {
	if strings.TrimSpace(boothID) == "" {
		return dErrors.New(dErrors.CodeValidation, "booth_id is required")
	}
	if len(entries) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one record is required")
	}
	for i, e := range entries {
		if strings.TrimSpace(e.DocumentNumber) == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("records[%d]: epic_id is required", i))
		}
		if strings.TrimSpace(e.SerialNumber) == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("records[%d]: serial_number is required", i))
		}
	}
	return nil
}

// BatchScore is a scored batch that has not yet been committed to the booth
// index.
type BatchScore struct {
	BoothID string
	Flags   []*models.Flag

	documents []string
	entries   int
	booths    map[string]int
}

// ScoreBatch validates the batch and raises within-batch and cross-booth
// flags as if the batch were already indexed. Nothing is indexed until
// CommitBatch, so a batch the caller fails to store leaves no trace. Callers
// serialize ScoreBatch and CommitBatch.
func (s *AuditScorer) ScoreBatch(ctx context.Context, boothID string, entries []AuditEntry) (*BatchScore, error) {
	if err := ValidateBatch(boothID, entries); err != nil {
		return nil, err
	}
	boothID = strings.TrimSpace(boothID)
	now := requestcontext.Now(ctx)

	docCounts := make(map[string]int)
	serialCounts := make(map[string]int)
	serialDoc := make(map[string]string)
	var docOrder, serialOrder []string
	for _, e := range entries {
		doc := index.NormalizeDocument(e.DocumentNumber)
		serial := strings.TrimSpace(e.SerialNumber)
		if docCounts[doc] == 0 {
			docOrder = append(docOrder, doc)
		}
		docCounts[doc]++
		if serialCounts[serial] == 0 {
			serialOrder = append(serialOrder, serial)
			serialDoc[serial] = doc
		}
		serialCounts[serial]++
	}

	score := &BatchScore{BoothID: boothID, documents: docOrder, entries: len(entries), booths: make(map[string]int)}
	for _, doc := range docOrder {
		if n := docCounts[doc]; n > 1 {
			f, err := models.NewFlag(models.EntityForm17A, doc, models.TierHighRisk, 100, models.RuleDuplicateDocumentBatch,
				"Duplicate EPIC in Form 17A", fmt.Sprintf("EPIC %s appears %d times in Form 17A records for booth %s", doc, n, boothID), now)
			if err != nil {
				return nil, err
			}
			score.Flags = append(score.Flags, f)
		}
	}
	for _, serial := range serialOrder {
		if n := serialCounts[serial]; n > 1 {
			// Anchored on the first holder's document so booth-scoped listings find it.
			f, err := models.NewFlag(models.EntityForm17A, serialDoc[serial], models.TierHighRisk, 100, models.RuleDuplicateSerialBatch,
				"Duplicate serial number", fmt.Sprintf("Serial number %s appears %d times in booth %s", serial, n, boothID), now)
			if err != nil {
				return nil, err
			}
			score.Flags = append(score.Flags, f)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docOrder {
		booths := s.booths.BoothsFor(doc)
		if !slices.Contains(booths, boothID) {
			booths = append(booths, boothID)
			slices.Sort(booths)
		}
		if len(booths) < 2 || len(booths) <= s.reported[doc] {
			continue
		}
		f, err := models.NewFlag(models.EntityForm17A, doc, models.TierHighRisk, 100, models.RuleCrossBoothDuplicate,
			"Cross-booth EPIC duplication", fmt.Sprintf("EPIC %s appears in %d different booths: %s", doc, len(booths), strings.Join(booths, ", ")), now)
		if err != nil {
			return nil, err
		}
		score.booths[doc] = len(booths)
		score.Flags = append(score.Flags, f)
	}

	s.logger.DebugContext(ctx, "form17a batch scored",
		"booth_id", boothID,
		"entries", len(entries),
		"flags", len(score.Flags),
	)
	return score, nil
}

// CommitBatch adds a stored batch to the booth index and advances the
// cross-booth watermark for the documents it flagged.
func (s *AuditScorer) CommitBatch(ctx context.Context, score *BatchScore) {
	if score == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.booths.Add(score.BoothID, score.documents...)
	for doc, n := range score.booths {
		if n > s.reported[doc] {
			s.reported[doc] = n
		}
	}
	for _, f := range score.Flags {
		s.metrics.IncrementFlagRaised(string(f.RuleID))
	}
	s.metrics.AddAuditEntries(score.entries)
}

// CheckCountMismatch compares the number of poll-book entries for a booth with
// its reported votes polled. It returns nil within tolerance.
func (s *AuditScorer) CheckCountMismatch(ctx context.Context, boothID string, form17aCount, votesPolled int) (*models.Flag, error) {
	diff := form17aCount - votesPolled
	if diff < 0 {
		diff = -diff
	}
	tier, score, rule := mismatchRule(diff)
	if rule == "" {
		return nil, nil
	}
	f, err := models.NewFlag(models.EntityBooth, boothID, tier, score, rule, "Form 17A vs 17C mismatch",
		fmt.Sprintf("Votes polled (%d) differ from voters processed (%d) by %d", votesPolled, form17aCount, diff),
		requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementFlagRaised(string(rule))
	return f, nil
}

func mismatchRule(diff int) (models.Tier, int, models.RuleID) {
	switch {
	case diff > MismatchCritical:
		return models.TierCritical, 100, models.RuleCountMismatchCritical
	case diff > MismatchTolerance:
		return models.TierNeedsReview, 50, models.RuleCountMismatchModerate
	}
	return models.TierNormal, 0, ""
}
