package main

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/internal/archive"
	"github.com/sells-group/chapter-cli/internal/artifact"
	"github.com/sells-group/chapter-cli/internal/engine"
	"github.com/sells-group/chapter-cli/internal/gate"
	"github.com/sells-group/chapter-cli/internal/narrate"
	"github.com/sells-group/chapter-cli/internal/pipeline"
	"github.com/sells-group/chapter-cli/internal/publish"
	"github.com/sells-group/chapter-cli/internal/scorer"
	"github.com/sells-group/chapter-cli/internal/scrape"
	"github.com/sells-group/chapter-cli/internal/store"
	"github.com/sells-group/chapter-cli/internal/version"
	"github.com/sells-group/chapter-cli/pkg/firecrawl"
	"github.com/sells-group/chapter-cli/pkg/jina"
	"github.com/sells-group/chapter-cli/pkg/notion"
)

// chapterEnv holds the store, archive and pipeline used by the run
// command. Callers should defer env.Close().
type chapterEnv struct {
	Store    store.Store
	Archive  *archive.Archive
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *chapterEnv) Close() {
	if e.Archive != nil {
		_ = e.Archive.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initPipeline wires every pipeline collaborator from cfg. in and out are
// the terminal streams of the approval gate.
func initPipeline(ctx context.Context, in io.Reader, out io.Writer, voice bool) (*chapterEnv, error) {
	env := &chapterEnv{}
	var archiveErr error

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		zap.L().Warn("attempt store unavailable, runs will not be tracked", zap.Error(err))
	} else {
		env.Store = st
	}

	if cfg.Archive.Enabled {
		a, err := archive.Open(ctx, cfg.Archive)
		if err != nil {
			zap.L().Warn("archive unavailable, accepted chapters will not be archived", zap.Error(err))
			archiveErr = err
		} else {
			env.Archive = a
		}
	}

	source, err := initSource()
	if err != nil {
		env.Close()
		return nil, err
	}

	sc, err := scorer.New(cfg.Scoring)
	if err != nil {
		env.Close()
		return nil, err
	}
	zap.L().Debug("scorer ready", zap.Strings("dimensions", sc.Dimensions()), zap.Float64("max_total", sc.MaxTotal()))

	models := engine.NewModelCache(&engine.ClientFactory{
		AnthropicKey: cfg.Anthropic.Key,
		GeminiKey:    cfg.Gemini.Key,
	})

	deps := pipeline.Deps{
		Source:     source,
		Rewriter:   engine.NewRewriter(models, cfg.Engine),
		Reviewer:   engine.NewReviewer(models, cfg.Engine),
		Evaluator:  sc,
		Approver:   gate.New(in, out, cfg.Scoring.PassThreshold),
		Recorder:   version.NewRecorder(cfg.Data.VersionsDir),
		Narrator:   narrate.New(cfg.Narration, cfg.Data.AudioDir),
		ArchiveErr: archiveErr,
	}
	if env.Store != nil {
		deps.Store = env.Store
	}
	if env.Archive != nil {
		deps.Archive = env.Archive
	}
	if cfg.Notion.Token != "" && cfg.Notion.ChapterDB != "" {
		deps.Publisher = publish.NewNotionPublisher(notion.NewClient(cfg.Notion.Token, notion.WithRate(cfg.Notion.RatePerSecond)), cfg.Notion.ChapterDB)
	}

	p, err := pipeline.New(deps, pipeline.WithOutput(out), pipeline.WithNarration(voice))
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Pipeline = p
	return env, nil
}

// initSource builds the scraper chain: direct HTTP first, then Jina Reader,
// then Firecrawl when a key is configured.
func initSource() (*scrape.Source, error) {
	timeout := time.Duration(cfg.Scrape.TimeoutSecs) * time.Second
	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(cfg.Scrape.UserAgent, timeout),
		scrape.NewJinaAdapter(jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL)), cfg.Scrape.MinContentChars),
	}

	opts := []scrape.SourceOption{scrape.WithMinContentChars(cfg.Scrape.MinContentChars)}
	if cfg.Firecrawl.Key != "" {
		fc := scrape.NewFirecrawlAdapter(firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL)))
		scrapers = append(scrapers, fc)
		if cfg.Scrape.Screenshots {
			artifacts, err := artifact.New(cfg.Artifacts, cfg.Data.ScreenshotsDir)
			if err != nil {
				return nil, eris.Wrap(err, "init artifacts")
			}
			opts = append(opts, scrape.WithScreenshots(fc, artifacts))
		}
	}

	return scrape.NewSource(scrape.NewChain(scrapers...), cfg.Scrape.CacheSize, opts...)
}

// openStore opens and migrates the attempt store for inspection commands.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open attempt store")
	}
	return st, nil
}
