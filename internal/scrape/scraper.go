package scrape

import (
	"context"

	"github.com/sells-group/chapter-cli/internal/model"
)

// Result holds a fetched page with the scraper that produced it.
type Result struct {
	Page   model.Page
	Source string // e.g. "local_http", "jina", "firecrawl"
}

// Scraper fetches a single URL and returns its readable text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}

// Screenshotter captures a full-page image of a URL.
type Screenshotter interface {
	Screenshot(ctx context.Context, url string) ([]byte, error)
}
