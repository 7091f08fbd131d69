// Package scorer implements heuristic quality scoring for rewritten chapters.
package scorer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-cli/internal/config"
)

// Dimension names understood by the scorer.
const (
	Grammar      = "grammar"
	Clarity      = "clarity"
	Structure    = "structure"
	Faithfulness = "faithfulness"
	Fluency      = "fluency"
)

// DefaultScoringConfig returns the scoring defaults: the original dimension
// weights and a pass threshold scaled to the 20-point total.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Weights:       config.DefaultWeights(),
		PassThreshold: 12,
	}
}

// WeightSum returns the sum of all dimension weights.
func WeightSum(weights map[string]float64) float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	return sum
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	if len(c.Weights) == 0 {
		errs = append(errs, "at least one dimension weight is required")
	}
	for _, name := range sortedKeys(c.Weights) {
		w := c.Weights[name]
		if _, ok := heuristics[name]; !ok {
			errs = append(errs, fmt.Sprintf("unknown dimension %q", name))
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			errs = append(errs, fmt.Sprintf("%s weight must be a finite number >= 0", name))
		}
	}
	if len(c.Weights) > 0 && WeightSum(c.Weights) <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}
	if c.PassThreshold < 0 {
		errs = append(errs, "pass_threshold must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
