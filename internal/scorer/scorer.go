package scorer

import (
	"math"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-cli/internal/config"
	"github.com/sells-group/chapter-cli/internal/model"
)

const (
	// MaxDimensionScore is the upper bound of every per-dimension score.
	MaxDimensionScore = 10.0
	// AggregateMultiplier scales the weighted sum into the total score.
	AggregateMultiplier = 2.0
)

const heuristicNotes = "Evaluated using heuristic rules"

var beVerbRe = regexp.MustCompile(`\b(?:am|is|are|was|were|be|being|been)\b`)

// heuristic scores one dimension of candidate against original. Inputs are
// guaranteed non-empty originals; outputs are clamped by the caller.
type heuristic func(original, candidate string) float64

var heuristics = map[string]heuristic{
	Grammar: func(_, candidate string) float64 {
		return MaxDimensionScore - float64(len(beVerbRe.FindAllStringIndex(candidate, -1)))/50
	},
	Clarity: func(original, candidate string) float64 {
		return float64(len(candidate)) / float64(max(1, len(original))) * 2
	},
	Structure: func(_, candidate string) float64 {
		return float64(strings.Count(candidate, "\n\n")) / 5
	},
	Faithfulness: func(original, candidate string) float64 {
		have := make(map[string]struct{})
		for _, w := range strings.Fields(candidate) {
			have[w] = struct{}{}
		}
		missing := make(map[string]struct{})
		for _, w := range strings.Fields(original) {
			if _, ok := have[w]; !ok {
				missing[w] = struct{}{}
			}
		}
		return MaxDimensionScore - float64(len(missing))/100
	},
	Fluency: func(original, candidate string) float64 {
		return float64(len(strings.Fields(candidate))) / float64(max(1, len(strings.Fields(original)))) * 5
	},
}

// Scorer evaluates candidate text against the original with a fixed set of
// weighted heuristics. It is safe for concurrent use.
type Scorer struct {
	weights map[string]float64
	dims    []string
}

// New creates a Scorer for the given config.
func New(cfg config.ScoringConfig) (*Scorer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	weights := make(map[string]float64, len(cfg.Weights))
	for k, v := range cfg.Weights {
		weights[k] = v
	}
	return &Scorer{weights: weights, dims: sortedKeys(weights)}, nil
}

// Dimensions returns the scored dimension names in sorted order.
func (s *Scorer) Dimensions() []string {
	return append([]string(nil), s.dims...)
}

// MaxTotal returns the highest achievable total score.
func (s *Scorer) MaxTotal() float64 {
	return MaxDimensionScore * AggregateMultiplier * WeightSum(s.weights)
}

// Evaluate scores candidate against original. It fails with an
// invalid-input error when original has no content.
func (s *Scorer) Evaluate(original, candidate string) (*model.QualityReport, error) {
	if strings.TrimSpace(original) == "" {
		return nil, model.NewInvalidInputError(eris.New("scorer: original text is empty"))
	}

	scores := make(map[string]float64, len(s.dims))
	for _, d := range s.dims {
		scores[d] = clamp(heuristics[d](original, candidate))
	}

	report := &model.QualityReport{
		Scores:   scores,
		MaxTotal: round2(s.MaxTotal()),
		Notes:    heuristicNotes,
	}
	if err := s.ValidateReport(report); err != nil {
		return nil, err
	}
	report.TotalScore = s.total(scores)
	return report, nil
}

// ValidateReport checks that report carries exactly the configured
// dimensions, each within range.
func (s *Scorer) ValidateReport(report *model.QualityReport) error {
	if report == nil {
		return model.NewInvalidInputError(eris.New("scorer: report is nil"))
	}
	var problems []string
	for _, d := range s.dims {
		v, ok := report.Scores[d]
		if !ok {
			problems = append(problems, "missing dimension "+d)
			continue
		}
		if math.IsNaN(v) || v < 0 || v > MaxDimensionScore {
			problems = append(problems, "dimension "+d+" out of range")
		}
	}
	for d := range report.Scores {
		if _, ok := s.weights[d]; !ok {
			problems = append(problems, "unexpected dimension "+d)
		}
	}
	if len(problems) > 0 {
		return model.NewInvalidInputError(eris.Errorf("scorer: invalid report: %s", strings.Join(problems, "; ")))
	}
	return nil
}

// Passes reports whether total meets threshold.
func Passes(report *model.QualityReport, threshold float64) bool {
	return report != nil && !report.Degraded && report.TotalScore >= threshold
}

// Sentinel builds the degraded report used when evaluation could not run.
func (s *Scorer) Sentinel(reason string) *model.QualityReport {
	return SentinelReport(s.weights, reason)
}

// SentinelReport builds a degraded report with no scores and a zero total.
func SentinelReport(weights map[string]float64, reason string) *model.QualityReport {
	return &model.QualityReport{
		Scores:   map[string]float64{},
		MaxTotal: round2(MaxDimensionScore * AggregateMultiplier * WeightSum(weights)),
		Notes:    "Evaluation unavailable: " + reason,
		Degraded: true,
	}
}

func (s *Scorer) total(scores map[string]float64) float64 {
	var total float64
	for _, d := range s.dims {
		total += scores[d] * s.weights[d] * AggregateMultiplier
	}
	return round2(total)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > MaxDimensionScore {
		return MaxDimensionScore
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
