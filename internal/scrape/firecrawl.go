package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as a Scraper and a Screenshotter.
type FirecrawlAdapter struct {
	client firecrawl.Client
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports returns true: Firecrawl can attempt any URL as a fallback.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via Firecrawl's scrape API.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             targetURL,
		Formats:         []string{firecrawl.FormatMarkdown},
		OnlyMainContent: true,
		ExcludeTags:     []string{"script", "style", "footer", "nav", "aside"},
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.Errorf("firecrawl: scrape not successful: %s", resp.Error)
	}
	pageURL := resp.Data.Metadata.SourceURL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &Result{
		Page: model.Page{
			URL:        pageURL,
			Title:      resp.Data.Metadata.Title,
			Text:       resp.Data.Markdown,
			StatusCode: resp.Data.Metadata.StatusCode,
		},
		Source: f.Name(),
	}, nil
}

// Screenshot renders the page and downloads a full-page PNG.
func (f *FirecrawlAdapter) Screenshot(ctx context.Context, targetURL string) ([]byte, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     targetURL,
		Formats: []string{firecrawl.FormatFullScreenshot},
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data.Screenshot == "" {
		return nil, eris.New("firecrawl: no screenshot returned")
	}
	return f.client.Download(ctx, resp.Data.Screenshot)
}
