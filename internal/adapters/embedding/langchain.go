package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainAdapter wraps a langchaingo embedder.
type LangchainAdapter struct {
	embedder  embeddings.Embedder
	modelName string
}

// NewLangchainAdapter wraps an existing langchaingo embedder.
func NewLangchainAdapter(embedder embeddings.Embedder, modelName string) *LangchainAdapter {
	return &LangchainAdapter{embedder: embedder, modelName: modelName}
}

// NewOpenAIAdapter creates an embedder backed by an OpenAI-compatible API.
// baseURL may be empty for the public endpoint.
func NewOpenAIAdapter(apiKey, model, baseURL string) (*LangchainAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}
	return NewLangchainAdapter(embedder, model), nil
}

// Embed generates an embedding vector for text.
func (a *LangchainAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := a.embedder.EmbedQuery(ctx, text)
	if err != nil {
		slog.Warn("embedding failed", "model", a.modelName, "text_len", len(text), "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrMalformedEmbedding)
	}
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (a *LangchainAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := a.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if err := checkVectors(vectors, len(texts)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Model returns the embedding model name.
func (a *LangchainAdapter) Model() string { return a.modelName }
