package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTurnoutBaseline       = 65.0
	DefaultTurnoutSpikeThreshold = 10.0
	DefaultVerifiedAbove         = 90
	DefaultFlaggedBelow          = 60
)

// Policy holds certificate inputs that vary by deployment.
type Policy struct {
	// TurnoutBaselines maps constituency id to historical turnout percentage.
	TurnoutBaselines       map[string]float64 `yaml:"turnout_baselines"`
	DefaultTurnoutBaseline float64            `yaml:"default_turnout_baseline"`
	TurnoutSpikeThreshold  float64            `yaml:"turnout_spike_threshold"`
	// A certificate is VERIFIED above VerifiedAbove and FLAGGED below FlaggedBelow.
	VerifiedAbove int `yaml:"verified_above"`
	FlaggedBelow  int `yaml:"flagged_below"`
}

// DefaultPolicy is used when no policy file is given.
func DefaultPolicy() Policy {
	return Policy{
		TurnoutBaselines:       map[string]float64{},
		DefaultTurnoutBaseline: DefaultTurnoutBaseline,
		TurnoutSpikeThreshold:  DefaultTurnoutSpikeThreshold,
		VerifiedAbove:          DefaultVerifiedAbove,
		FlaggedBelow:           DefaultFlaggedBelow,
	}
}

// LoadPolicy reads a YAML policy file. Omitted fields keep their defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	if p.TurnoutBaselines == nil {
		p.TurnoutBaselines = map[string]float64{}
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	if p.DefaultTurnoutBaseline < 0 || p.DefaultTurnoutBaseline > 100 {
		return fmt.Errorf("default_turnout_baseline must be within [0,100]")
	}
	if p.TurnoutSpikeThreshold <= 0 {
		return fmt.Errorf("turnout_spike_threshold must be positive")
	}
	if p.FlaggedBelow < 0 || p.VerifiedAbove > 100 || p.FlaggedBelow > p.VerifiedAbove {
		return fmt.Errorf("flagged_below must not exceed verified_above, both within [0,100]")
	}
	for id, b := range p.TurnoutBaselines {
		if b < 0 || b > 100 {
			return fmt.Errorf("turnout baseline for %s must be within [0,100]", id)
		}
	}
	return nil
}

// BaselineFor returns the historical turnout for a constituency.
func (p Policy) BaselineFor(constituency string) float64 {
	if b, ok := p.TurnoutBaselines[constituency]; ok {
		return b
	}
	return p.DefaultTurnoutBaseline
}
