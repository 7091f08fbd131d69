package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/internal/artifact"
	"github.com/sells-group/chapter-cli/internal/model"
)

// DefaultMinContentChars is the shortest chapter text accepted.
const DefaultMinContentChars = 100

// Source acquires chapter text for a locator: validation, scraping, cleaning
// and a best-effort screenshot.
type Source struct {
	chain     *Chain
	shots     Screenshotter
	artifacts artifact.Store
	cache     *lru.Cache[string, Result]
	minChars  int
	now       func() time.Time
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithScreenshots enables screenshot capture into store.
func WithScreenshots(shots Screenshotter, store artifact.Store) SourceOption {
	return func(s *Source) {
		s.shots = shots
		s.artifacts = store
	}
}

// WithMinContentChars overrides DefaultMinContentChars.
func WithMinContentChars(n int) SourceOption {
	return func(s *Source) {
		if n > 0 {
			s.minChars = n
		}
	}
}

// WithClock overrides the clock used for artifact names.
func WithClock(now func() time.Time) SourceOption {
	return func(s *Source) {
		s.now = now
	}
}

// NewSource creates a Source. A positive cacheSize keeps that many scraped
// pages in memory so repeated locators skip the network.
func NewSource(chain *Chain, cacheSize int, opts ...SourceOption) (*Source, error) {
	s := &Source{
		chain:    chain,
		minChars: DefaultMinContentChars,
		now:      time.Now,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, Result](cacheSize)
		if err != nil {
			return nil, eris.Wrap(err, "scrape: create cache")
		}
		s.cache = cache
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ValidateLocator checks that locator is an absolute http(s) URL with a host.
func ValidateLocator(locator string) error {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return eris.Wrap(err, "scrape: invalid URL structure")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return eris.Errorf("scrape: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return eris.New("scrape: invalid URL structure: missing host")
	}
	return nil
}

// Acquire fetches and cleans the chapter at locator. Failures are
// acquisition errors and never carry partial text.
func (s *Source) Acquire(ctx context.Context, locator string) (*model.Acquisition, error) {
	locator = strings.TrimSpace(locator)
	if err := ValidateLocator(locator); err != nil {
		return nil, model.NewAcquisitionError(err)
	}

	res, err := s.fetch(ctx, locator)
	if err != nil {
		return nil, model.NewAcquisitionError(err)
	}

	text := CleanText(res.Page.Text)
	if n := utf8.RuneCountInString(text); n < s.minChars {
		return nil, model.NewAcquisitionError(
			eris.Errorf("scrape: insufficient content extracted (%d chars, need %d)", n, s.minChars))
	}
	if s.cache != nil {
		s.cache.Add(locator, *res)
	}

	zap.L().Info("scrape: chapter acquired",
		zap.String("locator", locator),
		zap.String("source", res.Source),
		zap.Int("chars", utf8.RuneCountInString(text)),
	)

	return &model.Acquisition{
		OriginalText: text,
		ArtifactPath: s.capture(ctx, locator),
		Title:        res.Page.Title,
		Source:       res.Source,
	}, nil
}

func (s *Source) fetch(ctx context.Context, locator string) (*Result, error) {
	if s.cache != nil {
		if res, ok := s.cache.Get(locator); ok {
			zap.L().Debug("scrape: cache hit", zap.String("locator", locator))
			return &res, nil
		}
	}
	return s.chain.Scrape(ctx, locator)
}

// capture stores a screenshot and returns its location, or "" on any failure.
func (s *Source) capture(ctx context.Context, locator string) string {
	if s.shots == nil || s.artifacts == nil {
		return ""
	}
	img, err := s.shots.Screenshot(ctx, locator)
	if err != nil {
		zap.L().Warn("scrape: screenshot capture failed",
			zap.String("locator", locator),
			zap.Error(err),
		)
		return ""
	}
	name := ScreenshotName(locator, s.now())
	loc, err := s.artifacts.Put(ctx, name, img, "image/png")
	if err != nil {
		zap.L().Warn("scrape: screenshot store failed",
			zap.String("locator", locator),
			zap.Error(err),
		)
		return ""
	}
	return loc
}

// ScreenshotName is the artifact name for a screenshot taken at ts.
func ScreenshotName(locator string, ts time.Time) string {
	return fmt.Sprintf("screenshot_%s_%s.png", model.LocatorHash(locator), ts.Format("20060102_150405"))
}
