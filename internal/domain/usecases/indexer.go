package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
	"github.com/0xcro3dile/medchat-go/internal/domain/ports"
)

// IndexUseCase embeds every knowledge answer, reusing a cached index when
// the corpus and model are unchanged.
type IndexUseCase struct {
	embedder  ports.EmbeddingService
	cache     ports.IndexCache
	batchSize int
	workers   int
	logger    *slog.Logger
}

// NewIndexUseCase creates an IndexUseCase. cache may be nil.
func NewIndexUseCase(
	embedder ports.EmbeddingService,
	cache ports.IndexCache,
	batchSize, workers int,
	logger *slog.Logger,
) *IndexUseCase {
	if batchSize <= 0 {
		batchSize = 32
	}
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexUseCase{
		embedder:  embedder,
		cache:     cache,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger,
	}
}

// CacheKey identifies an index by embedding model and corpus content.
func CacheKey(model string, store *entities.KnowledgeStore) string {
	sum := sha256.Sum256([]byte(model + "\x00" + store.Digest()))
	return hex.EncodeToString(sum[:])
}

// Build returns one vector per store entry, in store order.
func (uc *IndexUseCase) Build(ctx context.Context, store *entities.KnowledgeStore) ([][]float32, error) {
	if store == nil || store.Len() == 0 {
		return nil, entities.ErrEmptyKnowledge
	}
	key := CacheKey(uc.embedder.Model(), store)

	if uc.cache != nil {
		vectors, ok, err := uc.cache.Load(ctx, key)
		switch {
		case err != nil:
			uc.logger.Warn("index cache unreadable, rebuilding", "error", err)
		case ok && len(vectors) == store.Len():
			uc.logger.Info("loaded cached index", "entries", len(vectors))
			return vectors, nil
		case ok:
			uc.logger.Warn("cached index size mismatch, rebuilding", "cached", len(vectors), "entries", store.Len())
		}
	}

	vectors, err := uc.embedAll(ctx, store.Answers())
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Save(ctx, key, vectors); err != nil {
			uc.logger.Warn("index cache write failed", "error", err)
		}
	}
	uc.logger.Info("built index", "entries", len(vectors), "model", uc.embedder.Model())
	return vectors, nil
}

func (uc *IndexUseCase) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.workers)
	for start := 0; start < len(texts); start += uc.batchSize {
		start := start
		end := min(start+uc.batchSize, len(texts))
		g.Go(func() error {
			batch, err := uc.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding entries %d-%d: %w", start, end-1, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("%w: embedder returned %d vectors for %d entries", entities.ErrIndexMismatch, len(batch), end-start)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: entry %d has dimension %d, want %d", entities.ErrIndexMismatch, i, len(v), dim)
		}
	}
	return vectors, nil
}
