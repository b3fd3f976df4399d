// Package vectordb provides embedding index adapters.
// MemoryIndex answers similarity queries; SQLiteCache persists computed indexes.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

// ErrDimensionMismatch is returned when a query vector does not match the index.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// MemoryIndex is a brute-force cosine index over a fixed set of vectors.
// It is read-only after construction and safe for concurrent use.
type MemoryIndex struct {
	vectors [][]float32
	dim     int
}

// NewMemoryIndex copies vectors into a read-only index.
// Every vector must be non-empty and share one dimension.
func NewMemoryIndex(vectors [][]float32) (*MemoryIndex, error) {
	if len(vectors) == 0 {
		return nil, entities.ErrEmptyKnowledge
	}
	dim := len(vectors[0])
	cp := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		cp[i] = append([]float32(nil), v...)
	}
	return &MemoryIndex{vectors: cp, dim: dim}, nil
}

// Len returns the number of indexed vectors.
func (m *MemoryIndex) Len() int { return len(m.vectors) }

// Dim returns the vector dimension.
func (m *MemoryIndex) Dim() int { return m.dim }

// Search returns up to topN hits by descending cosine similarity.
// Ties keep index order.
func (m *MemoryIndex) Search(ctx context.Context, embedding []float32, topN int) ([]entities.Hit, error) {
	if len(embedding) != m.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(embedding), m.dim)
	}
	if topN <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]entities.Hit, len(m.vectors))
	for i, v := range m.vectors {
		hits[i] = entities.Hit{Position: i, Score: cosineSimilarity(embedding, v)}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
