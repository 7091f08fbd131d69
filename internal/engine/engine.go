package engine

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/internal/config"
	"github.com/sells-group/chapter-cli/internal/model"
)

// ErrEmptyOutput is returned when a model produces no usable text.
var ErrEmptyOutput = eris.New("engine: model returned empty output")

// DefaultMaxOutputTokens caps generation length when none is configured.
const DefaultMaxOutputTokens = 4096

// Rewriter produces a modernized draft of a chapter.
type Rewriter struct {
	cache     *ModelCache
	role      config.RoleConfig
	maxChars  int
	maxTokens int64
}

// NewRewriter creates a Rewriter using the writer role of cfg.
func NewRewriter(cache *ModelCache, cfg config.EngineConfig) *Rewriter {
	return &Rewriter{
		cache:     cache,
		role:      cfg.Writer,
		maxChars:  cfg.MaxPromptChars,
		maxTokens: outputTokens(cfg.MaxOutputTokens),
	}
}

// Rewrite generates a modern-English rewrite of original. Failures are
// returned as generation errors for the REWRITE stage.
func (r *Rewriter) Rewrite(ctx context.Context, original string) (model.Generation, error) {
	input, truncated := truncate(original, r.maxChars)
	gen := model.Generation{
		Truncated:  truncated,
		InputChars: utf8.RuneCountInString(original),
		UsedChars:  min(utf8.RuneCountInString(original), budget(r.maxChars, original)),
	}
	if truncated {
		zap.L().Warn("engine: rewrite input truncated",
			zap.Int("input_chars", gen.InputChars),
			zap.Int("used_chars", gen.UsedChars),
		)
	}

	text, name, err := generate(ctx, r.cache, r.role, Prompt{
		System:      editorSystem,
		User:        rewritePrompt(input),
		Temperature: r.role.Temperature,
		MaxTokens:   r.maxTokens,
	}, rewriteMarker)
	gen.Model = name
	if err != nil {
		return gen, model.NewGenerationError(model.StageRewrite, err)
	}
	gen.Text = text
	return gen, nil
}

// Reviewer proofreads a rewritten chapter against its original.
type Reviewer struct {
	cache     *ModelCache
	role      config.RoleConfig
	maxChars  int
	maxTokens int64
}

// NewReviewer creates a Reviewer using the reviewer role of cfg.
func NewReviewer(cache *ModelCache, cfg config.EngineConfig) *Reviewer {
	return &Reviewer{
		cache:     cache,
		role:      cfg.Reviewer,
		maxChars:  cfg.MaxPromptChars,
		maxTokens: outputTokens(cfg.MaxOutputTokens),
	}
}

// Review generates a refined version of rewritten. The prompt budget is shared
// between original and rewritten text.
func (r *Reviewer) Review(ctx context.Context, original, rewritten string) (model.Generation, error) {
	la, lb := splitBudget(original, rewritten, r.maxChars)
	origIn, cutA := truncate(original, la)
	rewIn, cutB := truncate(rewritten, lb)

	gen := model.Generation{
		Truncated:  cutA || cutB,
		InputChars: utf8.RuneCountInString(original) + utf8.RuneCountInString(rewritten),
		UsedChars:  la + lb,
	}
	if gen.Truncated {
		zap.L().Warn("engine: review input truncated",
			zap.Int("input_chars", gen.InputChars),
			zap.Int("used_chars", gen.UsedChars),
		)
	}

	text, name, err := generate(ctx, r.cache, r.role, Prompt{
		System:      proofreaderSystem,
		User:        reviewPrompt(origIn, rewIn),
		Temperature: r.role.Temperature,
		MaxTokens:   r.maxTokens,
	}, reviewMarker)
	gen.Model = name
	if err != nil {
		return gen, model.NewGenerationError(model.StageReview, err)
	}
	gen.Text = text
	return gen, nil
}

func generate(ctx context.Context, cache *ModelCache, role config.RoleConfig, p Prompt, marker string) (string, string, error) {
	name := role.Provider + ":" + role.Model
	backend, err := cache.Get(ctx, role.Provider, role.Model)
	if err != nil {
		return "", name, err
	}
	out, err := backend.Generate(ctx, p)
	if err != nil {
		return "", name, eris.Wrapf(err, "engine: generate with %s", name)
	}
	text := extractAfter(out.Text, marker)
	if strings.TrimSpace(text) == "" {
		return "", name, ErrEmptyOutput
	}
	return text, name, nil
}

func budget(limit int, s string) int {
	if limit <= 0 {
		return utf8.RuneCountInString(s)
	}
	return limit
}

func outputTokens(n int64) int64 {
	if n <= 0 {
		return DefaultMaxOutputTokens
	}
	return n
}
