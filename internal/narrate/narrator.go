// Package narrate turns final chapter text into an MP3 narration.
package narrate

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/chapter-cli/internal/config"
	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/resilience"
)

// MaxInputChars caps the narrated text.
const MaxInputChars = 5000

// TruncationMarker is appended to text cut at MaxInputChars.
const TruncationMarker = " [truncated]"

const maxChunkBytes = 4 << 20

// Narrator synthesizes speech through an HTTP text-to-speech endpoint.
type Narrator struct {
	client  *http.Client
	baseURL string
	lang    string
	dir     string
	limiter *AdaptiveLimiter
	retry   resilience.RetryConfig
	now     func() time.Time
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Narrator) { n.client = c }
}

// WithClock overrides the file name timestamp source.
func WithClock(now func() time.Time) Option {
	return func(n *Narrator) { n.now = now }
}

// WithRetry overrides the per-chunk retry policy.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(n *Narrator) { n.retry = rc }
}

// New creates a Narrator writing audio files into dir.
func New(cfg config.NarrationConfig, dir string, opts ...Option) *Narrator {
	perSec := cfg.RatePerSecond
	if perSec <= 0 {
		perSec = 2
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	lang := cfg.Lang
	if lang == "" {
		lang = "en"
	}

	rc := resilience.DefaultRetryConfig()
	rc.OnRetry = resilience.RetryLogger("tts", "synthesize")

	n := &Narrator{
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		lang:    lang,
		dir:     dir,
		limiter: NewAdaptiveLimiter(rate.Limit(perSec), 1),
		retry:   rc,
		now:     time.Now,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// PrepareText trims text and applies the input cap.
func PrepareText(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= MaxInputChars {
		return text, false
	}
	return string([]rune(text)[:MaxInputChars]) + TruncationMarker, true
}

// FileName returns the audio file name for text at t.
func FileName(text string, t time.Time) string {
	sum := md5.Sum([]byte(text))
	return fmt.Sprintf("narration_%s_%s.mp3", hex.EncodeToString(sum[:]), t.Format("20060102_150405"))
}

// Synthesize narrates text and returns the audio file path. Failures are
// narration errors.
func (n *Narrator) Synthesize(ctx context.Context, text string) (string, error) {
	text, truncated := PrepareText(text)
	if text == "" {
		return "", model.NewNarrationError(eris.New("narrate: no text to narrate"))
	}
	if truncated {
		zap.L().Warn("narrate: text truncated", zap.Int("max_chars", MaxInputChars))
	}

	chunks := Chunks(text, MaxChunkChars)
	var audio bytes.Buffer
	for i, chunk := range chunks {
		data, err := resilience.DoVal(ctx, n.retry, func(ctx context.Context) ([]byte, error) {
			return n.fetch(ctx, chunk, i, len(chunks))
		})
		if err != nil {
			return "", model.NewNarrationError(eris.Wrapf(err, "narrate: chunk %d/%d", i+1, len(chunks)))
		}
		audio.Write(data)
	}

	path, err := n.write(FileName(text, n.now()), audio.Bytes())
	if err != nil {
		return "", model.NewNarrationError(err)
	}
	zap.L().Info("narrate: audio written",
		zap.String("path", path),
		zap.Int("chunks", len(chunks)),
		zap.Int("bytes", audio.Len()),
	)
	return path, nil
}

func (n *Narrator) fetch(ctx context.Context, chunk string, idx, total int) ([]byte, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", n.lang)
	q.Set("client", "tw-ob")
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "narrate: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "narrate: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		n.limiter.OnRateLimit()
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("narrate: tts returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxChunkBytes))
	if err != nil {
		return nil, eris.Wrap(err, "narrate: read audio")
	}
	if len(data) == 0 {
		return nil, eris.New("narrate: empty audio chunk")
	}
	n.limiter.OnSuccess()
	return data, nil
}

// write stores data under name with a temp-file rename.
func (n *Narrator) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return "", eris.Wrap(err, "narrate: create audio dir")
	}
	tmp, err := os.CreateTemp(n.dir, ".narration-*.tmp")
	if err != nil {
		return "", eris.Wrap(err, "narrate: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return "", eris.Wrap(err, "narrate: write audio")
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "narrate: close audio")
	}
	path := filepath.Join(n.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", eris.Wrap(err, "narrate: move audio into place")
	}
	return path, nil
}
