package scrape

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/chapter-cli/internal/model"
)

const maxPageBytes = 4 << 20

// LocalScraper fetches HTML via net/http and extracts its text. Free, no API
// calls. Blocked or failing pages fall through to the next scraper.
type LocalScraper struct {
	client    *http.Client
	userAgent string
}

// NewLocalScraper creates a LocalScraper that sends userAgent and gives up
// after timeout.
func NewLocalScraper(userAgent string, timeout time.Duration) *LocalScraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LocalScraper{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches a URL, detects anti-bot blocks and extracts the page text.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, kind := detectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", kind)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	decoded, err := decodeBody(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: decode body")
	}

	title, text, err := ExtractText(bytes.NewReader(decoded))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse html")
	}

	return &Result{
		Page: model.Page{
			URL:        targetURL,
			Title:      title,
			Text:       text,
			StatusCode: resp.StatusCode,
		},
		Source: l.Name(),
	}, nil
}

// decodeBody converts body to UTF-8 using the declared charset, falling back
// to sniffing the document.
func decodeBody(body []byte, contentType string) ([]byte, error) {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" {
			if enc, err := htmlindex.Get(cs); err == nil {
				return enc.NewDecoder().Bytes(body)
			}
		}
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body, nil
	}
	return enc.NewDecoder().Bytes(body)
}

// detectBlock checks a response for signs of anti-bot protection.
func detectBlock(resp *http.Response, body []byte) (bool, string) {
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true, "cloudflare"
		}
	}

	lower := bytes.ToLower(body)
	switch {
	case bytes.Contains(lower, []byte("checking your browser")),
		bytes.Contains(lower, []byte("cf-browser-verification")):
		return true, "cloudflare"
	case bytes.Contains(lower, []byte("g-recaptcha")),
		bytes.Contains(lower, []byte("h-captcha")):
		return true, "captcha"
	case len(body) < 2000 && bytes.Contains(lower, []byte(`http-equiv="refresh"`)):
		return true, "js_shell"
	}
	return false, ""
}
