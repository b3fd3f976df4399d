// Package modelserver talks to the Python model sidecar that hosts the
// intent classifier, sentence embedder and seq2seq generator.
//
// The sidecar is any HTTP service that speaks this JSON protocol:
//
//	GET  /health    200 when the models are loaded
//	POST /classify  {"text"} -> {"label", "score"}
//	POST /embed     {"model", "texts"} -> {"embeddings": [[float]]}, one per text in order
//	POST /generate  {"prompt", "max_new_tokens", "num_beams", "early_stopping",
//	                 "repetition_penalty", "no_repeat_ngram_size", "temperature",
//	                 "do_sample", "seed"} -> {"text"}
//
// Any response may instead carry {"error": "..."}; a non-200 status is a
// failure. Set model_server.script to have medchat start the sidecar, or
// switch the providers to ollama to run without one.
package modelserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

// ErrNotReady is returned when a started sidecar never reports healthy.
var ErrNotReady = errors.New("model server not ready")

// Client implements ports.Classifier, ports.EmbeddingService and
// ports.LLMService against one sidecar.
type Client struct {
	baseURL    string
	embedModel string
	client     *http.Client
	logger     *slog.Logger
	cmd        *exec.Cmd
}

// NewClient creates a sidecar client. embedModel names the sentence
// embedder the sidecar serves and becomes part of the index cache key.
func NewClient(baseURL, embedModel string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	if embedModel == "" {
		embedModel = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		embedModel: embedModel,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With("component", "modelserver"),
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

type generateRequest struct {
	Prompt            string  `json:"prompt"`
	MaxNewTokens      int     `json:"max_new_tokens"`
	NumBeams          int     `json:"num_beams"`
	EarlyStopping     bool    `json:"early_stopping"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	NoRepeatNgramSize int     `json:"no_repeat_ngram_size"`
	Temperature       float64 `json:"temperature"`
	DoSample          bool    `json:"do_sample"`
	Seed              int     `json:"seed,omitempty"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Classify returns the top label for text.
func (c *Client) Classify(ctx context.Context, text string) (entities.Classification, error) {
	var resp classifyResponse
	if err := c.post(ctx, "/classify", classifyRequest{Text: text}, &resp); err != nil {
		return entities.Classification{}, err
	}
	if resp.Error != "" {
		return entities.Classification{}, fmt.Errorf("classify error: %s", resp.Error)
	}
	return entities.Classification{Label: resp.Label, Score: resp.Score}, nil
}

// Embed generates an embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var resp embedResponse
	if err := c.post(ctx, "/embed", embedRequest{Model: c.embedModel, Texts: texts}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("embed error: %s", resp.Error)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// Model returns the embedding model name.
func (c *Client) Model() string { return c.embedModel }

// Generate runs the sequence generator with the full decoding options.
func (c *Client) Generate(ctx context.Context, prompt string, opts entities.GenerationOptions) (string, error) {
	req := generateRequest{
		Prompt:            prompt,
		MaxNewTokens:      opts.MaxTokens,
		NumBeams:          opts.NumBeams,
		EarlyStopping:     opts.EarlyStopping,
		RepetitionPenalty: opts.RepetitionPenalty,
		NoRepeatNgramSize: opts.NoRepeatNgramSize,
		Temperature:       opts.Temperature,
		DoSample:          opts.Sample,
		Seed:              opts.Seed,
	}
	var resp generateResponse
	if err := c.post(ctx, "/generate", req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("generate error: %s", resp.Error)
	}
	return resp.Text, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling model server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	c.logger.Debug("model server call", "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("model server returned status %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("model server returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// StartService launches the sidecar script and waits until /health answers.
// The returned function stops the process.
func (c *Client) StartService(ctx context.Context, python, scriptPath string, wait time.Duration) (func(), error) {
	if python == "" {
		python = "python3"
	}
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s not found", filepath.Base(scriptPath))
	}

	c.cmd = exec.Command(python, scriptPath)
	c.cmd.Stdout = os.Stdout
	c.cmd.Stderr = os.Stderr

	if err := c.cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting model server: %w", err)
	}
	c.logger.Info("model server started", "pid", c.cmd.Process.Pid, "script", scriptPath)

	cleanup := func() {
		if c.cmd != nil && c.cmd.Process != nil {
			c.cmd.Process.Kill()
			c.cmd.Wait()
		}
	}

	if err := c.WaitHealthy(ctx, wait); err != nil {
		cleanup()
		return nil, err
	}
	return cleanup, nil
}

// WaitHealthy polls /health until it succeeds or wait elapses.
func (c *Client) WaitHealthy(ctx context.Context, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.IsServiceHealthy(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %s", ErrNotReady, wait)
		case <-ticker.C:
		}
	}
}

// IsServiceHealthy checks if the sidecar is running.
func (c *Client) IsServiceHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
