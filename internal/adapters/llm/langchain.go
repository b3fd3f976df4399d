package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

// LangchainAdapter wraps a langchaingo model for text generation.
type LangchainAdapter struct {
	llm       llms.Model
	modelName string
}

// NewLangchainAdapter wraps an existing langchaingo model.
func NewLangchainAdapter(model llms.Model, modelName string) *LangchainAdapter {
	return &LangchainAdapter{llm: model, modelName: modelName}
}

// NewOpenAIAdapter creates a generator backed by an OpenAI-compatible API.
func NewOpenAIAdapter(apiKey, model, baseURL string) (*LangchainAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewLangchainAdapter(m, model), nil
}

// NewAnthropicAdapter creates a generator backed by the Anthropic API.
func NewAnthropicAdapter(apiKey, model string) (*LangchainAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key required")
	}
	m, err := anthropic.New(
		anthropic.WithToken(apiKey),
		anthropic.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create anthropic model: %w", err)
	}
	return NewLangchainAdapter(m, model), nil
}

// Generate produces a completion for a fully composed prompt.
func (a *LangchainAdapter) Generate(ctx context.Context, prompt string, opts entities.GenerationOptions) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, callOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return response, nil
}

// Model returns the LLM model name.
func (a *LangchainAdapter) Model() string {
	return a.modelName
}

func callOptions(opts entities.GenerationOptions) []llms.CallOption {
	out := []llms.CallOption{
		llms.WithTemperature(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		out = append(out, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.RepetitionPenalty > 0 {
		out = append(out, llms.WithRepetitionPenalty(opts.RepetitionPenalty))
	}
	if !opts.Sample {
		out = append(out, llms.WithTemperature(0), llms.WithTopK(1))
	}
	if opts.Seed != 0 {
		out = append(out, llms.WithSeed(opts.Seed))
	}
	return out
}
