package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/chapter-cli/internal/model"
)

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "héll...", Excerpt("héllo", 4))
	assert.Len(t, []rune(Excerpt(strings.Repeat("a", 2000), ExcerptChars)), ExcerptChars+3)
}

func TestDimensionTitle(t *testing.T) {
	assert.Equal(t, "Grammar", DimensionTitle("grammar"))
	assert.Equal(t, "Word Choice", DimensionTitle("word_choice"))
}

func TestScoreStyle(t *testing.T) {
	assert.Equal(t, okStyle.GetForeground(), ScoreStyle(7).GetForeground())
	assert.Equal(t, warnStyle.GetForeground(), ScoreStyle(5).GetForeground())
	assert.Equal(t, errStyle.GetForeground(), ScoreStyle(4.99).GetForeground())
}

func TestEvaluationSummary(t *testing.T) {
	out := EvaluationSummary(&model.QualityReport{
		Scores:     map[string]float64{"grammar": 9.5, "clarity": 4},
		TotalScore: 13.5,
		MaxTotal:   20,
		Notes:      "heuristic",
	})
	assert.Contains(t, out, "Grammar:")
	assert.Contains(t, out, "Clarity:")
	assert.Contains(t, out, "9.50/10")
	assert.Contains(t, out, "13.50/20")
	assert.Less(t, strings.Index(out, "Clarity"), strings.Index(out, "Grammar"))
}

func TestEvaluationSummary_Degraded(t *testing.T) {
	out := EvaluationSummary(&model.QualityReport{Notes: "Evaluation unavailable: timeout", Degraded: true})
	assert.Contains(t, out, "Evaluation unavailable")
	assert.NotContains(t, out, "Total:")

	assert.Contains(t, EvaluationSummary(nil), "No evaluation")
}

func TestQualityBanner(t *testing.T) {
	var buf bytes.Buffer
	QualityBanner(&buf, &model.QualityReport{TotalScore: 15, MaxTotal: 20}, 12)
	assert.Contains(t, buf.String(), "meets quality standards")

	buf.Reset()
	QualityBanner(&buf, &model.QualityReport{TotalScore: 8, MaxTotal: 20}, 12)
	assert.Contains(t, buf.String(), "may need improvement")

	buf.Reset()
	QualityBanner(&buf, &model.QualityReport{Degraded: true}, 12)
	assert.Contains(t, buf.String(), "could not be evaluated")
}

func TestSideBySide(t *testing.T) {
	out := SideBySide("old words", "new words")
	assert.Contains(t, out, "Original")
	assert.Contains(t, out, "Candidate")
	assert.Contains(t, out, "old words")
	assert.Contains(t, out, "new words")
}

func TestLines(t *testing.T) {
	var buf bytes.Buffer
	Step(&buf, 2, "Rewriting")
	Success(&buf, "done %d", 1)
	Warn(&buf, "careful")
	Error(&buf, "failed")
	Info(&buf, "note")
	out := buf.String()
	for _, want := range []string{"[2] Rewriting", "done 1", "careful", "failed", "note"} {
		assert.Contains(t, out, want)
	}
}
