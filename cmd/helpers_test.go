package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/version"
)

// writeRecord writes one version record for locator into dir.
func writeRecord(t *testing.T, dir, locator string, status model.Status) *version.RecordHandle {
	t.Helper()
	a := model.NewAttempt("attempt-"+string(status), locator, time.Now())
	a.OriginalText = "Original chapter text."
	a.RewrittenText = "Rewritten chapter text."
	a.ReviewedText = "Reviewed chapter text."
	a.Verdict = model.Verdict{Status: status}
	if status.Publishable() {
		a.Verdict.FinalText = a.ReviewedText
		a.FinalText = a.ReviewedText
	}
	a.Evaluation = &model.QualityReport{
		Scores:     map[string]float64{"grammar": 8, "clarity": 7},
		TotalScore: 15,
		MaxTotal:   20,
		Notes:      "heuristic",
	}

	h, err := version.NewRecorder(dir).Record(context.Background(), a)
	require.NoError(t, err)
	return h
}
