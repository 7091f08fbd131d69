package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/resilience"
	"github.com/sells-group/chapter-cli/pkg/jina"
)

// JinaAdapter wraps a Jina Reader client as a Scraper behind a circuit breaker.
type JinaAdapter struct {
	client   jina.Client
	breaker  *resilience.CircuitBreaker
	minChars int
}

// NewJinaAdapter creates a JinaAdapter. Three consecutive failures open the
// circuit for a minute, sending requests straight to the next scraper.
func NewJinaAdapter(client jina.Client, minChars int) *JinaAdapter {
	return &JinaAdapter{
		client:   client,
		minChars: minChars,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     60 * time.Second,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("scrape: jina circuit breaker state change",
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}),
	}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns true unless the circuit breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Scrape fetches a URL via Jina Reader and validates the response.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	return resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*Result, error) {
		resp, err := j.client.Read(ctx, targetURL,
			jina.WithFormat("text"),
			jina.WithRemoveSelector("script", "style", "footer", "nav", "aside"),
		)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp, j.minChars) {
			return nil, eris.New("jina: response needs fallback")
		}
		return &Result{
			Page: model.Page{
				URL:        resp.Data.URL,
				Title:      resp.Data.Title,
				Text:       resp.Data.Content,
				StatusCode: resp.Code,
			},
			Source: j.Name(),
		}, nil
	})
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
}

// needsFallback reports whether a Jina response is unusable: an error code,
// too little content, or a short anti-bot challenge page.
func needsFallback(resp *jina.ReadResponse, minChars int) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < minChars {
		return true
	}

	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}
	return false
}
