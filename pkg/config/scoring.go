package config

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ScoringConfig holds the fusion weights
// ⭐ SSOT: 4D 가중치는 여기서만 정의
type ScoringConfig struct {
	Fusion FusionWeights `yaml:"fusion" json:"fusion"`
}

// FusionWeights are the fixed dimension weights of the final score
type FusionWeights struct {
	Macro       float64 `yaml:"macro" json:"macro"`
	Fundamental float64 `yaml:"fundamental" json:"fundamental"`
	Quant       float64 `yaml:"quant" json:"quant"`
	Timing      float64 `yaml:"timing" json:"timing"`
}

// Sum returns the total weight
func (w FusionWeights) Sum() float64 {
	return w.Macro + w.Fundamental + w.Quant + w.Timing
}

// DefaultScoringConfig returns Macro 0.25 + Fund 0.35 + Quant 0.25 + Timing 0.15
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		Fusion: FusionWeights{
			Macro:       0.25,
			Fundamental: 0.35,
			Quant:       0.25,
			Timing:      0.15,
		},
	}
}

// LoadScoring reads a YAML scoring file. An empty path yields the defaults.
// KnownFields(true): 오타/미사용 필드 즉시 실패
func LoadScoring(path string) (*ScoringConfig, error) {
	if path == "" {
		return DefaultScoringConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring config: %w", err)
	}

	return ParseScoring(data)
}

// ParseScoring decodes YAML bytes into a validated ScoringConfig
func ParseScoring(data []byte) (*ScoringConfig, error) {
	cfg := DefaultScoringConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode scoring config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every weight is non-negative and the total is 1
func (c *ScoringConfig) Validate() error {
	w := c.Fusion
	for name, v := range map[string]float64{
		"macro":       w.Macro,
		"fundamental": w.Fundamental,
		"quant":       w.Quant,
		"timing":      w.Timing,
	} {
		if v < 0 {
			return fmt.Errorf("fusion weight %s must be non-negative, got %v", name, v)
		}
	}

	if math.Abs(w.Sum()-1.0) > 1e-6 {
		return fmt.Errorf("fusion weights must sum to 1, got %v", w.Sum())
	}
	return nil
}
