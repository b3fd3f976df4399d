package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

// ollamaStub records the last request and replies with status and body.
func ollamaStub(t *testing.T, status int, body any, got *generateRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got != nil {
			json.NewDecoder(r.Body).Decode(got)
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaLLM_GenerateSendsRawPrompt(t *testing.T) {
	var got generateRequest
	srv := ollamaStub(t, http.StatusOK, map[string]any{"response": "Rest and fluids.", "done": true}, &got)

	adapter := NewOllamaLLMAdapter(srv.URL+"/", "medllama")
	resp, err := adapter.Generate(context.Background(), "Current Question: flu?\n\nResponse:", entities.GenerationOptions{})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if resp != "Rest and fluids." {
		t.Errorf("unexpected response: %q", resp)
	}
	if !got.Raw || got.Stream {
		t.Errorf("want raw non-streaming request, got raw=%v stream=%v", got.Raw, got.Stream)
	}
	if got.Model != "medllama" || !strings.HasSuffix(got.Prompt, "Response:") {
		t.Errorf("request not forwarded verbatim: %+v", got)
	}
}

func TestOllamaLLM_SamplingOptions(t *testing.T) {
	var got generateRequest
	srv := ollamaStub(t, http.StatusOK, map[string]any{"response": "ok"}, &got)

	adapter := NewOllamaLLMAdapter(srv.URL, "medllama")
	adapter.Generate(context.Background(), "Hi", entities.GenerationOptions{
		MaxTokens: 200, RepetitionPenalty: 1.3, Temperature: 0.8, Sample: true,
	})

	o := got.Options
	if o.NumPredict != 200 || o.RepeatPenalty != 1.3 || o.Temperature != 0.8 || o.TopK != 0 {
		t.Errorf("sampling options not forwarded: %+v", o)
	}
}

func TestToOllamaOptions_Greedy(t *testing.T) {
	o := toOllamaOptions(entities.GenerationOptions{MaxTokens: 200, Temperature: 0.8, Sample: false, Seed: 42})
	if o.Temperature != 0 || o.TopK != 1 || o.Seed != 42 || o.NumPredict != 200 {
		t.Errorf("greedy options wrong: %+v", o)
	}
}

func TestOllamaLLM_ReportsServerError(t *testing.T) {
	srv := ollamaStub(t, http.StatusNotFound, map[string]string{"error": `model "medllama" not found`}, nil)

	adapter := NewOllamaLLMAdapter(srv.URL, "medllama")
	_, err := adapter.Generate(context.Background(), "Hi", entities.GenerationOptions{})
	if err == nil {
		t.Fatal("should error on 404")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error should carry the server message: %v", err)
	}
}

func TestOllamaLLM_UndecodableErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewOllamaLLMAdapter(srv.URL, "medllama")
	_, err := adapter.Generate(context.Background(), "Hi", entities.GenerationOptions{})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("want status error, got %v", err)
	}
}

func TestOllamaLLM_Defaults(t *testing.T) {
	adapter := NewOllamaLLMAdapter("", "")
	if adapter.baseURL != "http://localhost:11434" {
		t.Errorf("baseURL = %q", adapter.baseURL)
	}
	if adapter.Model() != "llama3.2" {
		t.Errorf("model = %q", adapter.Model())
	}
}
