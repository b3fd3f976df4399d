package usecases

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

// regexp2 runs one shared clock goroutine for match timeouts; it sleeps
// between ticks and never exits.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("github.com/dlclark/regexp2.runClock"))
}

var errBackend = errors.New("backend down")

func testRules() entities.RuleSet {
	return entities.RuleSet{
		Version:           1,
		EmergencyPhrases:  []string{"chest pain", "heart attack", "can't breathe", "suicidal", "stroke"},
		ShortSymptomTerms: []string{"fever", "cough", "headache", "rash", "flu"},
		BoilerplatePhrases: []string{
			"Thanks for your question on Chat Doctor",
			"Chat Doctor",
			"Wish you good health",
		},
		RepetitionPatterns: []string{
			`(\b(?:You should|Avoid|Take|Don't)\s+[^.]{5,50}\.)\s*\1+`,
			`(\b[A-Z][^.]{10,}\.)(\s*\1){2,}`,
		},
	}
}

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	model      string
	err        error
	batchCalls atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (m *mockEmbedder) Model() string {
	if m.model == "" {
		return "mock-embed"
	}
	return m.model
}

// mockIndex implements ports.EmbeddingIndex with canned hits
type mockIndex struct {
	size     int
	hits     []entities.Hit
	err      error
	lastTopN int
}

func (m *mockIndex) Search(ctx context.Context, embedding []float32, topN int) ([]entities.Hit, error) {
	m.lastTopN = topN
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > topN {
		return m.hits[:topN], nil
	}
	return m.hits, nil
}

func (m *mockIndex) Len() int { return m.size }

// mockLLM implements ports.LLMService and records the last prompt
type mockLLM struct {
	mu         sync.Mutex
	response   string
	err        error
	lastPrompt string
	lastOpts   entities.GenerationOptions
	calls      int
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts entities.GenerationOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPrompt = prompt
	m.lastOpts = opts
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// mockClassifier implements ports.Classifier
type mockClassifier struct {
	label    string
	score    float64
	err      error
	panicMsg string
	calls    atomic.Int32
	lastText atomic.Value
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (entities.Classification, error) {
	m.calls.Add(1)
	m.lastText.Store(text)
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return entities.Classification{}, m.err
	}
	return entities.Classification{Label: m.label, Score: m.score}, nil
}

// mockMemory implements ports.ConversationMemory with a six-entry window
type mockMemory struct {
	mu    sync.Mutex
	turns map[string][]string
}

func newMockMemory() *mockMemory {
	return &mockMemory{turns: make(map[string][]string)}
}

func (m *mockMemory) Append(sessionID string, turns ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := append(m.turns[sessionID], turns...)
	if len(h) > 6 {
		h = h[len(h)-6:]
	}
	m.turns[sessionID] = h
}

func (m *mockMemory) Recent(sessionID string, n int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.turns[sessionID]
	if len(h) > n {
		h = h[len(h)-n:]
	}
	return append([]string(nil), h...)
}

func (m *mockMemory) all(sessionID string) []string {
	return m.Recent(sessionID, 1<<30)
}

// mockCache implements ports.IndexCache in memory
type mockCache struct {
	mu      sync.Mutex
	entries map[string][][]float32
	loadErr error
	saves   int
}

func (m *mockCache) Load(ctx context.Context, key string) ([][]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mockCache) Save(ctx context.Context, key string, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string][][]float32)
	}
	m.entries[key] = vectors
	m.saves++
	return nil
}
