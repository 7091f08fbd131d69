// Package archive stores approved chapters for later full-text retrieval.
package archive

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/internal/config"
	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/resilience"
)

// DefaultSearchLimit is used when a search asks for no limit.
const DefaultSearchLimit = 10

// Hit is one search result.
type Hit struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata"`
	Relevance float64           `json:"relevance"`
}

// Backend is a full-text store keyed by stable chapter id.
type Backend interface {
	Upsert(ctx context.Context, id, text string, metadata map[string]string) error
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	Close() error
}

// Archive wraps a Backend with timeouts, retries and error classification.
type Archive struct {
	backend Backend
	retry   resilience.RetryConfig
	timeout time.Duration
}

// New wraps backend using the retry and timeout settings in cfg.
func New(backend Backend, cfg config.ArchiveConfig) *Archive {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Archive{backend: backend, retry: resilience.FromArchiveConfig(cfg), timeout: timeout}
}

// Open creates the backend selected by cfg.Driver and migrates it.
func Open(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Driver {
	case "", "sqlite":
		backend, err = NewSQLite(ctx, cfg.DatabaseURL)
	case "postgres":
		backend, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("archive: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, model.NewArchiveUnavailableError(err)
	}
	return New(backend, cfg), nil
}

// Upsert stores text under id, replacing any previous entry.
func (a *Archive) Upsert(ctx context.Context, id, text string, metadata map[string]string) error {
	if strings.TrimSpace(id) == "" {
		return eris.New("archive: id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
		return a.backend.Upsert(ctx, id, text, metadata)
	})
	if err != nil {
		return model.NewArchiveUnavailableError(eris.Wrapf(err, "archive: upsert %s", id))
	}
	zap.L().Info("archive: chapter stored", zap.String("id", id), zap.Int("chars", len(text)))
	return nil
}

// Search returns entries matching query, most relevant first.
func (a *Archive) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, eris.New("archive: query is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	hits, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) ([]Hit, error) {
		return a.backend.Search(ctx, query, limit)
	})
	if err != nil {
		return nil, model.NewArchiveUnavailableError(eris.Wrap(err, "archive: search"))
	}
	return hits, nil
}

// Close releases the backend.
func (a *Archive) Close() error {
	return a.backend.Close()
}
