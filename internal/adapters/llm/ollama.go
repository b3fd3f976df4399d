// Package llm provides sequence generator adapters.
// Each adapter implements ports.LLMService.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

// OllamaLLMAdapter implements ports.LLMService over Ollama's /api/generate.
// The composed prompt is sent raw so no chat template is wrapped around it.
type OllamaLLMAdapter struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(baseURL, model string) *OllamaLLMAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaLLMAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 300 * time.Second},
	}
}

type generateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Raw     bool          `json:"raw"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

// ollamaOptions carries the decoding knobs Ollama understands.
// Beam search and n-gram blocking have no Ollama equivalent.
type ollamaOptions struct {
	NumPredict    int     `json:"num_predict,omitempty"`
	Temperature   float64 `json:"temperature"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	Seed          int     `json:"seed,omitempty"`
	TopK          int     `json:"top_k,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func toOllamaOptions(opts entities.GenerationOptions) ollamaOptions {
	o := ollamaOptions{
		NumPredict:    opts.MaxTokens,
		Temperature:   opts.Temperature,
		RepeatPenalty: opts.RepetitionPenalty,
		Seed:          opts.Seed,
	}
	if !opts.Sample {
		o.Temperature = 0
		o.TopK = 1
	}
	return o
}

// Generate produces a completion for a fully composed prompt.
func (a *OllamaLLMAdapter) Generate(ctx context.Context, prompt string, opts entities.GenerationOptions) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   a.model,
		Prompt:  prompt,
		Raw:     true,
		Options: toOllamaOptions(opts),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var out generateResponse
	decodeErr := json.Unmarshal(data, &out)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Error != "" {
			return "", fmt.Errorf("ollama %s: status %d: %s", a.model, resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("ollama %s: status %d", a.model, resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decoding response: %w", decodeErr)
	}
	return out.Response, nil
}

// Model returns the generator model name.
func (a *OllamaLLMAdapter) Model() string { return a.model }
