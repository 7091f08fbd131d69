package narrate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/chapter-cli/internal/config"
	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/resilience"
)

var fixedTime = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func testNarrator(t *testing.T, srv *httptest.Server) (*Narrator, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "audio")
	n := New(config.NarrationConfig{BaseURL: srv.URL, Lang: "en", RatePerSecond: 1000}, dir,
		WithClock(func() time.Time { return fixedTime }),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
	)
	return n, dir
}

func TestSynthesize_ConcatenatesChunks(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "en", q.Get("tl"))
		assert.Equal(t, "tw-ob", q.Get("client"))
		assert.LessOrEqual(t, len([]rune(q.Get("q"))), MaxChunkChars)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("[" + q.Get("idx") + "]"))
	}))
	defer srv.Close()

	n, dir := testNarrator(t, srv)
	text := strings.Repeat("The tide came in slowly. ", 10)
	path, err := n.Synthesize(context.Background(), text)
	require.NoError(t, err)

	trimmed, _ := PrepareText(text)
	assert.Equal(t, filepath.Join(dir, FileName(trimmed, fixedTime)), path)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "narration_"))
	assert.True(t, strings.HasSuffix(path, "_20260304_050607.mp3"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	chunks := Chunks(trimmed, MaxChunkChars)
	assert.Equal(t, int32(len(chunks)), calls.Load())
	assert.True(t, strings.HasPrefix(string(data), "[0][1]"))
}

func TestSynthesize_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	n, _ := testNarrator(t, srv)
	_, err := n.Synthesize(context.Background(), "Hello there.")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Less(t, float64(n.limiter.Limit()), 1000.0)
}

func TestSynthesize_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n, dir := testNarrator(t, srv)
	_, err := n.Synthesize(context.Background(), "Hello there.")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindNarration))
	assert.Contains(t, err.Error(), "status 403")

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSynthesize_EmptyText(t *testing.T) {
	n := New(config.NarrationConfig{}, t.TempDir())
	_, err := n.Synthesize(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindNarration))
}

func TestPrepareText(t *testing.T) {
	out, cut := PrepareText("  short  ")
	assert.False(t, cut)
	assert.Equal(t, "short", out)

	long := strings.Repeat("é", MaxInputChars+10)
	out, cut = PrepareText(long)
	assert.True(t, cut)
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
	assert.Equal(t, MaxInputChars+len([]rune(TruncationMarker)), len([]rune(out)))
}

func TestChunks(t *testing.T) {
	text := strings.Repeat("word ", 60)
	chunks := Chunks(text, MaxChunkChars)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), MaxChunkChars)
		assert.Equal(t, strings.TrimSpace(c), c)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")))
}

func TestChunks_LongWordAndSentences(t *testing.T) {
	long := strings.Repeat("x", 250)
	chunks := Chunks(long, 100)
	assert.Equal(t, []string{strings.Repeat("x", 100), strings.Repeat("x", 100), strings.Repeat("x", 50)}, chunks)

	chunks = Chunks("One two three four five six. Seven eight.", 40)
	assert.Equal(t, []string{"One two three four five six.", "Seven eight."}, chunks)

	assert.Empty(t, Chunks("  \n ", 100))
}

func TestAdaptiveLimiter(t *testing.T) {
	l := NewAdaptiveLimiter(rate.Limit(8), 1)
	l.OnRateLimit()
	assert.InDelta(t, 4, float64(l.Limit()), 0.001)
	l.OnRateLimit()
	l.OnRateLimit()
	assert.InDelta(t, 2, float64(l.Limit()), 0.001)
	l.OnSuccess()
	assert.InDelta(t, 2.4, float64(l.Limit()), 0.001)
	for i := 0; i < 20; i++ {
		l.OnSuccess()
	}
	assert.InDelta(t, 8, float64(l.Limit()), 0.001)
	require.NoError(t, l.Wait(context.Background()))
}
