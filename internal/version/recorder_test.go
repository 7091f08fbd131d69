package version

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chapter-cli/internal/model"
)

const testLocator = "https://example.com/book/chapter-1"

var fixedTime = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func sampleAttempt() *model.Attempt {
	a := model.NewAttempt("run-1", testLocator, fixedTime)
	a.OriginalText = "Thou art the chapter. Café & <tags>."
	a.RewrittenText = "You are the chapter."
	a.ReviewedText = "You are the chapter!"
	a.FinalText = "You are the chapter!"
	a.ArtifactPath = "data/screenshots/shot.png"
	a.Evaluation = &model.QualityReport{
		Scores:     map[string]float64{"grammar": 9.96, "clarity": 7.5},
		TotalScore: 12.34,
		MaxTotal:   20,
		Notes:      "Evaluated using heuristic rules",
	}
	a.Verdict = model.Verdict{Status: model.StatusAccepted, FinalText: a.FinalText}
	a.Stages = []model.StageResult{
		{Stage: model.StageAcquire, Status: model.StageStatusComplete, Duration: 12},
	}
	return a
}

func TestRecord_WritesDocument(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, WithClock(fixedClock))

	h, err := rec.Record(context.Background(), sampleAttempt())
	require.NoError(t, err)

	wantName := "chapter_" + model.LocatorHash(testLocator) + "_20260304_050607_0.json"
	assert.Equal(t, wantName, h.Name)
	assert.Equal(t, filepath.Join(dir, wantName), h.Path)
	assert.Equal(t, 0, h.Sequence)
	assert.Len(t, h.Digest, 64)

	raw, err := os.ReadFile(h.Path)
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, "\n  \"metadata\": {")
	assert.Contains(t, s, "Café & <tags>.")

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, key := range []string{"metadata", "content", "evaluation", "human_feedback", "stages"} {
		assert.Contains(t, generic, key)
	}
	section := func(name string) map[string]any {
		m, ok := generic[name].(map[string]any)
		require.True(t, ok, name)
		return m
	}
	meta := section("metadata")
	assert.Equal(t, testLocator, meta["url"])
	assert.Equal(t, "20260304_050607", meta["timestamp"])
	assert.Equal(t, "20260304_050607", meta["version"])
	assert.Equal(t, "accepted", meta["status"])
	assert.Equal(t, model.ChapterID(testLocator), meta["chapter_id"])
	assert.Equal(t, h.Digest, meta["record_digest"])
	assert.Equal(t, model.LocatorHash(testLocator), meta["attempt_id"])
	assert.Equal(t, "run-1", meta["run_id"])
	assert.Equal(t, "data/screenshots/shot.png", section("content")["screenshot_path"])
	assert.Equal(t, "accepted", section("human_feedback")["status"])

	leftovers, err := filepath.Glob(filepath.Join(dir, ".record-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRecord_SameSecondGetsNextSequence(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, WithClock(fixedClock))

	first, err := rec.Record(context.Background(), sampleAttempt())
	require.NoError(t, err)
	before, err := os.ReadFile(first.Path)
	require.NoError(t, err)

	second, err := rec.Record(context.Background(), sampleAttempt())
	require.NoError(t, err)

	assert.Equal(t, 1, second.Sequence)
	assert.NotEqual(t, first.Path, second.Path)
	assert.True(t, strings.HasSuffix(second.Name, "_1.json"))

	after, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRecord_ConcurrentWritersNeverCollide(t *testing.T) {
	dir := t.TempDir()
	const n = 8

	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := NewRecorder(dir, WithClock(fixedClock)).Record(context.Background(), sampleAttempt())
			errs[i] = err
			if h != nil {
				paths[i] = h.Path
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[paths[i]], "duplicate path %s", paths[i])
		seen[paths[i]] = true
	}
	list, err := List(dir, Filter{})
	require.NoError(t, err)
	assert.Len(t, list, n)
}

func TestRecord_RejectedAndDegraded(t *testing.T) {
	a := sampleAttempt()
	a.ReviewedText = ""
	a.FinalText = ""
	a.Evaluation = nil
	a.Verdict = model.Verdict{Status: model.StatusRejected, Interrupted: true}

	h, err := NewRecorder(t.TempDir(), WithClock(fixedClock)).Record(context.Background(), a)
	require.NoError(t, err)

	doc, err := Verify(h.Path)
	require.NoError(t, err)
	assert.Equal(t, "rejected", doc.Metadata.Status)
	assert.True(t, doc.HumanFeedback.Interrupted)
	assert.Empty(t, doc.Evaluation.Scores)
	assert.Empty(t, doc.Content.FinalText)
}

func TestRecord_MissingVerdictFailsSchema(t *testing.T) {
	dir := t.TempDir()
	a := sampleAttempt()
	a.Verdict = model.Verdict{}

	_, err := NewRecorder(dir, WithClock(fixedClock)).Record(context.Background(), a)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindPersistence))
	assert.Contains(t, err.Error(), "schema validation failed")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecord_UnwritableDir(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := NewRecorder(filepath.Join(blocker, "versions")).Record(context.Background(), sampleAttempt())
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindPersistence))
}

func TestRecord_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRecorder(t.TempDir()).Record(ctx, sampleAttempt())
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindPersistence))
}

func TestVerify_DetectsTampering(t *testing.T) {
	h, err := NewRecorder(t.TempDir(), WithClock(fixedClock)).Record(context.Background(), sampleAttempt())
	require.NoError(t, err)

	_, err = Verify(h.Path)
	require.NoError(t, err)

	raw, err := os.ReadFile(h.Path)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "You are the chapter!", "You were the chapter!", 1)
	require.NoError(t, os.WriteFile(h.Path, []byte(tampered), 0o644))

	_, err = Verify(h.Path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestDigest_IgnoresFormatting(t *testing.T) {
	h, err := NewRecorder(t.TempDir(), WithClock(fixedClock)).Record(context.Background(), sampleAttempt())
	require.NoError(t, err)
	raw, err := os.ReadFile(h.Path)
	require.NoError(t, err)

	var v any
	require.NoError(t, json.Unmarshal(raw, &v))
	compact, err := json.Marshal(v)
	require.NoError(t, err)

	digest, err := Digest(compact)
	require.NoError(t, err)
	assert.Equal(t, h.Digest, digest)
}

func TestList_FiltersAndOrders(t *testing.T) {
	dir := t.TempDir()
	times := []time.Time{fixedTime.Add(2 * time.Second), fixedTime}
	for _, ts := range times {
		ts := ts
		_, err := NewRecorder(dir, WithClock(func() time.Time { return ts })).Record(context.Background(), sampleAttempt())
		require.NoError(t, err)
	}
	other := sampleAttempt()
	other.Locator = "https://example.com/book/chapter-2"
	other.Verdict = model.Verdict{Status: model.StatusRejected}
	_, err := NewRecorder(dir, WithClock(fixedClock)).Record(context.Background(), other)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chapter_broken.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	all, err := List(dir, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "20260304_050607", all[0].Timestamp)
	assert.Equal(t, "20260304_050609", all[2].Timestamp)

	mine, err := List(dir, Filter{ChapterID: model.ChapterID(testLocator)})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	rejected, err := List(dir, Filter{Status: "rejected"})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, other.Locator, rejected[0].URL)
}

func TestList_MissingDir(t *testing.T) {
	list, err := List(filepath.Join(t.TempDir(), "nope"), Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
