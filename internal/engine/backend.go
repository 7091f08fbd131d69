// Package engine rewrites and reviews chapters with a hosted language model.
package engine

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-cli/pkg/anthropic"
	"github.com/sells-group/chapter-cli/pkg/gemini"
)

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Prompt is one single-turn generation request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

// Completion is the text a backend produced.
type Completion struct {
	Text  string
	Model string
}

// Backend generates text with one provider and model.
type Backend interface {
	Generate(ctx context.Context, p Prompt) (*Completion, error)
	Name() string
}

type anthropicBackend struct {
	client anthropic.Client
	model  string
}

// NewAnthropicBackend binds an Anthropic client to a model.
func NewAnthropicBackend(client anthropic.Client, model string) Backend {
	return &anthropicBackend{client: client, model: model}
}

func (b *anthropicBackend) Name() string { return ProviderAnthropic + ":" + b.model }

func (b *anthropicBackend) Generate(ctx context.Context, p Prompt) (*Completion, error) {
	temp := p.Temperature
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       b.model,
		MaxTokens:   p.MaxTokens,
		System:      p.System,
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(b.model, "engine")
	return &Completion{Text: resp.Text(), Model: resp.Model}, nil
}

type geminiBackend struct {
	client gemini.Client
	model  string
}

// NewGeminiBackend binds a Gemini client to a model.
func NewGeminiBackend(client gemini.Client, model string) Backend {
	return &geminiBackend{client: client, model: model}
}

func (b *geminiBackend) Name() string { return ProviderGemini + ":" + b.model }

func (b *geminiBackend) Generate(ctx context.Context, p Prompt) (*Completion, error) {
	temp := p.Temperature
	resp, err := b.client.GenerateText(ctx, gemini.TextRequest{
		Model:           b.model,
		System:          p.System,
		Prompt:          p.User,
		Temperature:     &temp,
		MaxOutputTokens: int32(min(p.MaxTokens, 1<<30)),
	})
	if err != nil {
		return nil, err
	}
	return &Completion{Text: resp.Text, Model: resp.Model}, nil
}

// ClientFactory builds backends from provider API keys. Provider clients are
// created on first use.
type ClientFactory struct {
	AnthropicKey string
	GeminiKey    string

	anthropic anthropic.Client
	gemini    gemini.Client
}

// Backend implements Factory.
func (f *ClientFactory) Backend(ctx context.Context, provider, model string) (Backend, error) {
	switch provider {
	case ProviderAnthropic:
		if f.AnthropicKey == "" {
			return nil, eris.New("engine: anthropic key is not configured")
		}
		if f.anthropic == nil {
			f.anthropic = anthropic.NewClient(f.AnthropicKey)
		}
		return NewAnthropicBackend(f.anthropic, model), nil
	case ProviderGemini:
		if f.GeminiKey == "" {
			return nil, eris.New("engine: gemini key is not configured")
		}
		if f.gemini == nil {
			c, err := gemini.NewClient(ctx, f.GeminiKey)
			if err != nil {
				return nil, err
			}
			f.gemini = c
		}
		return NewGeminiBackend(f.gemini, model), nil
	default:
		return nil, eris.Errorf("engine: unsupported provider %q", provider)
	}
}
