// Package models computes the advisory integrity certificate from flag and
// booth-summary snapshots. Every function here is pure.
package models

import (
	"math"
	"time"
)

// Fixed sub-score weights. They sum to 1.
const (
	RollRiskWeight           = 0.4
	PollingConsistencyWeight = 0.3
	TurnoutAnalyticsWeight   = 0.3
)

const (
	// BoothMatchTolerance is the per-booth |17A - 17C| allowed for a match.
	BoothMatchTolerance = 5

	rollPenaltyPerFlag = 2
	rollMediumAbove    = 5
	rollHighAbove      = 10
	turnoutSpikeScore  = 50
)

type Status string

const (
	StatusProvisional Status = "PROVISIONAL"
	StatusVerified    Status = "VERIFIED"
	StatusFlagged     Status = "FLAGGED"
)

type RollRiskLevel string

const (
	RollRiskLow    RollRiskLevel = "Low"
	RollRiskMedium RollRiskLevel = "Medium"
	RollRiskHigh   RollRiskLevel = "High"
)

type PollingStatus string

const (
	PollingMatch            PollingStatus = "MATCH"
	PollingCriticalMismatch PollingStatus = "CRITICAL_MISMATCH"
)

type RollRisk struct {
	TotalVoters          int           `json:"total_voters"`
	HighRiskDetected     int           `json:"high_risk_detected"`
	DuplicateProbability int           `json:"duplicate_probability"`
	ClusterSizeAlerts    int           `json:"cluster_size_alerts"`
	FinalScore           int           `json:"final_score"`
	Level                RollRiskLevel `json:"risk_level"`
}

type PollingConsistency struct {
	TotalBooths         int           `json:"total_booths"`
	MatchedBooths       int           `json:"matched_booths"`
	MismatchedBooths    int           `json:"mismatched_booths"`
	TotalVotesForm17A   int           `json:"total_votes_form17a"`
	TotalVotesForm17C   int           `json:"total_votes_form17c"`
	DeviationPercentage float64       `json:"deviation_percentage"`
	Status              PollingStatus `json:"status"`
	Score               int           `json:"score"`
}

type TurnoutAnalytics struct {
	CurrentTurnout        float64 `json:"current_turnout"`
	HistoricalAverage     float64 `json:"historical_average"`
	DeviationFromBaseline float64 `json:"deviation_from_baseline"`
	SpikeDetected         bool    `json:"spike_detected"`
	HasData               bool    `json:"has_data"`
	Score                 int     `json:"score"`
}

type ScoreBreakdown struct {
	RollRiskWeight           float64 `json:"roll_risk_weight"`
	PollingConsistencyWeight float64 `json:"polling_consistency_weight"`
	TurnoutAnalyticsWeight   float64 `json:"turnout_analytics_weight"`
	RollScoreContribution    float64 `json:"roll_score_contribution"`
	PollingScoreContribution float64 `json:"polling_score_contribution"`
	TurnoutScoreContribution float64 `json:"turnout_score_contribution"`
}

// Certificate is derived on every request and never stored. It is advisory.
type Certificate struct {
	ConstituencyID       string             `json:"constituency_id"`
	GeneratedAt          time.Time          `json:"generated_at"`
	RollRisk             RollRisk           `json:"roll_risk"`
	PollingConsistency   PollingConsistency `json:"polling_consistency"`
	TurnoutAnalytics     TurnoutAnalytics   `json:"turnout_analytics"`
	FinalConfidenceIndex int                `json:"final_confidence_index"`
	ScoreBreakdown       ScoreBreakdown     `json:"score_breakdown"`
	Status               Status             `json:"status"`
}

// Thresholds decide the certificate status from the final index.
type Thresholds struct {
	VerifiedAbove int
	FlaggedBelow  int
}

func DefaultThresholds() Thresholds {
	return Thresholds{VerifiedAbove: 90, FlaggedBelow: 60}
}

// StatusFor maps a final index onto a status.
func (t Thresholds) StatusFor(index int) Status {
	switch {
	case index > t.VerifiedAbove:
		return StatusVerified
	case index < t.FlaggedBelow:
		return StatusFlagged
	}
	return StatusProvisional
}

// RollInputs is a snapshot of open flags and roll size.
type RollInputs struct {
	TotalVoters         int
	HighSeverityFlags   int
	DuplicateFlags      int
	AddressClusterFlags int
}

// ComputeRollRisk scores registry hygiene: two points off per open
// high-severity flag, floored at zero.
func ComputeRollRisk(in RollInputs) RollRisk {
	r := RollRisk{
		TotalVoters:       in.TotalVoters,
		HighRiskDetected:  in.HighSeverityFlags,
		ClusterSizeAlerts: in.AddressClusterFlags,
		FinalScore:        max(0, 100-rollPenaltyPerFlag*in.HighSeverityFlags),
		Level:             RollRiskLow,
	}
	switch {
	case in.HighSeverityFlags > rollHighAbove:
		r.Level = RollRiskHigh
	case in.HighSeverityFlags > rollMediumAbove:
		r.Level = RollRiskMedium
	}
	if in.TotalVoters > 0 {
		p := int(math.Round(100 * float64(in.DuplicateFlags) / float64(in.TotalVoters)))
		r.DuplicateProbability = min(100, p)
	}
	return r
}

// BoothTally pairs one booth's Form 17C votes polled with its Form 17A count.
type BoothTally struct {
	BoothID       string
	Form17ACount  int
	VotesPolled   int
	TotalElectors int
}

// ComputePollingConsistency is binary: one booth outside tolerance fails all.
func ComputePollingConsistency(booths []BoothTally) PollingConsistency {
	p := PollingConsistency{TotalBooths: len(booths)}
	for _, b := range booths {
		p.TotalVotesForm17A += b.Form17ACount
		p.TotalVotesForm17C += b.VotesPolled
		if abs(b.Form17ACount-b.VotesPolled) <= BoothMatchTolerance {
			p.MatchedBooths++
		} else {
			p.MismatchedBooths++
		}
	}
	if p.TotalVotesForm17C > 0 {
		p.DeviationPercentage = round2(100 * float64(abs(p.TotalVotesForm17A-p.TotalVotesForm17C)) / float64(p.TotalVotesForm17C))
	}
	p.Status = PollingMatch
	p.Score = 100
	if p.MismatchedBooths > 0 {
		p.Status = PollingCriticalMismatch
		p.Score = 0
	}
	return p
}

// ComputeTurnout compares turnout in scope with the historical baseline.
// Without electors there is nothing to compare and no spike.
func ComputeTurnout(booths []BoothTally, baseline, spikeThreshold float64) TurnoutAnalytics {
	t := TurnoutAnalytics{HistoricalAverage: baseline, Score: 100}
	var electors, polled int
	for _, b := range booths {
		electors += b.TotalElectors
		polled += b.VotesPolled
	}
	if electors == 0 {
		return t
	}
	current := 100 * float64(polled) / float64(electors)
	t.HasData = true
	t.CurrentTurnout = round2(current)
	t.DeviationFromBaseline = round2(current - baseline)
	if math.Abs(current-baseline) > spikeThreshold {
		t.SpikeDetected = true
		t.Score = turnoutSpikeScore
	}
	return t
}

// FinalIndex applies the fixed weights and clamps to [0,100].
func FinalIndex(roll, polling, turnout int) (int, ScoreBreakdown) {
	b := ScoreBreakdown{
		RollRiskWeight:           RollRiskWeight,
		PollingConsistencyWeight: PollingConsistencyWeight,
		TurnoutAnalyticsWeight:   TurnoutAnalyticsWeight,
		RollScoreContribution:    round2(RollRiskWeight * float64(roll)),
		PollingScoreContribution: round2(PollingConsistencyWeight * float64(polling)),
		TurnoutScoreContribution: round2(TurnoutAnalyticsWeight * float64(turnout)),
	}
	raw := RollRiskWeight*float64(roll) + PollingConsistencyWeight*float64(polling) + TurnoutAnalyticsWeight*float64(turnout)
	index := int(math.Round(raw))
	return min(100, max(0, index)), b
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
