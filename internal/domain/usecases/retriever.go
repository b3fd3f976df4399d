package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
	"github.com/0xcro3dile/medchat-go/internal/domain/ports"
)

// ContextSeparator joins retrieved answers.
const ContextSeparator = "\n\n---\n\n"

// RetrieverConfig holds the retrieval thresholds.
type RetrieverConfig struct {
	TopK             int     // answers kept per call
	Overfetch        int     // candidates fetched = TopK * Overfetch
	MinScore         float64 // similarity noise floor
	MinAnswerChars   int     // answers must be strictly longer than this
	FingerprintChars int     // prefix length used for near-duplicate detection
}

// DefaultRetrieverConfig returns the production thresholds.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		TopK:             3,
		Overfetch:        2,
		MinScore:         0.3,
		MinAnswerChars:   50,
		FingerprintChars: 100,
	}
}

// Passage is one knowledge answer that survived filtering.
type Passage struct {
	Position int
	Score    float64
	Answer   string
}

// RetrievedContext is the per-call retrieval outcome.
// Text is always usable as prompt context; Err records a degraded call.
type RetrievedContext struct {
	Text     string
	Passages []Passage
	Err      error
}

// Retriever converts a query into ranked, filtered, deduplicated context.
type Retriever struct {
	embedder ports.EmbeddingService
	index    ports.EmbeddingIndex
	store    *entities.KnowledgeStore
	cfg      RetrieverConfig
	logger   *slog.Logger
}

// NewRetriever checks that the index lines up with the store.
func NewRetriever(embedder ports.EmbeddingService, index ports.EmbeddingIndex, store *entities.KnowledgeStore, cfg RetrieverConfig, logger *slog.Logger) (*Retriever, error) {
	if store == nil {
		return nil, entities.ErrEmptyKnowledge
	}
	if index.Len() != store.Len() {
		return nil, fmt.Errorf("%w: %d vectors for %d entries", entities.ErrIndexMismatch, index.Len(), store.Len())
	}
	def := DefaultRetrieverConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Overfetch <= 0 {
		cfg.Overfetch = def.Overfetch
	}
	if cfg.FingerprintChars <= 0 {
		cfg.FingerprintChars = def.FingerprintChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, index: index, store: store, cfg: cfg, logger: logger}, nil
}

// Retrieve returns at most k passages joined with ContextSeparator.
// k <= 0 uses the configured TopK. It never returns an error: failures
// yield RetrievalFailSentinel with Err set.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) RetrievedContext {
	if k <= 0 {
		k = r.cfg.TopK
	}
	passages, err := r.search(ctx, query, k)
	if err != nil {
		r.logger.Warn("retrieval degraded", "error", err)
		return RetrievedContext{Text: entities.RetrievalFailSentinel, Err: err}
	}
	if len(passages) == 0 {
		return RetrievedContext{Text: entities.NoContextSentinel}
	}
	answers := make([]string, len(passages))
	for i, p := range passages {
		answers[i] = p.Answer
	}
	return RetrievedContext{Text: strings.Join(answers, ContextSeparator), Passages: passages}
}

func (r *Retriever) search(ctx context.Context, query string, k int) ([]Passage, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", entities.ErrRetrieval, err)
	}
	hits, err := r.index.Search(ctx, vec, k*r.cfg.Overfetch)
	if err != nil {
		return nil, fmt.Errorf("%w: searching index: %v", entities.ErrRetrieval, err)
	}

	kept := make([]Passage, 0, k)
	seen := make(map[string]struct{}, k)
	for _, h := range hits {
		if math.IsNaN(h.Score) || h.Score < r.cfg.MinScore {
			continue
		}
		entry, err := r.store.Entry(h.Position)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entities.ErrRetrieval, err)
		}
		answer := entry.ReferenceAnswer
		if runeLen(answer) <= r.cfg.MinAnswerChars {
			continue
		}
		key := fingerprint(answer, r.cfg.FingerprintChars)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, Passage{Position: h.Position, Score: h.Score, Answer: answer})
		if len(kept) >= k {
			break
		}
	}
	return kept, nil
}

// fingerprint is the lowercase of the first n characters.
func fingerprint(s string, n int) string {
	return strings.ToLower(truncateRunes(s, n))
}

func truncateRunes(s string, n int) string {
	if n < 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
