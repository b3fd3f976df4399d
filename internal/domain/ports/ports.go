// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

// EmbeddingService turns text into dense vectors.
// Implementations must be deterministic for a given model.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model names the embedding model. It is part of the index cache key.
	Model() string
}

// LLMService runs a sequence generator over a fully composed prompt.
type LLMService interface {
	Generate(ctx context.Context, prompt string, opts entities.GenerationOptions) (string, error)
}

// Classifier is a sequence-classification capability (text -> label).
type Classifier interface {
	Classify(ctx context.Context, text string) (entities.Classification, error)
}

// EmbeddingIndex answers nearest-neighbour queries over the knowledge answers.
// It is read-only after construction and safe for concurrent use.
type EmbeddingIndex interface {
	// Search returns up to topN hits ordered by descending score.
	Search(ctx context.Context, embedding []float32, topN int) ([]entities.Hit, error)

	// Len is the number of indexed vectors.
	Len() int
}

// IndexCache persists a computed embedding index between runs.
type IndexCache interface {
	// Load returns the vectors stored under key. ok is false on a miss.
	Load(ctx context.Context, key string) (vectors [][]float32, ok bool, err error)

	// Save replaces whatever is cached with vectors under key.
	Save(ctx context.Context, key string, vectors [][]float32) error
}

// ConversationMemory keeps the bounded per-session turn history.
type ConversationMemory interface {
	// Append pushes turns for one session atomically, evicting the oldest on overflow.
	Append(sessionID string, turns ...string)

	// Recent returns at most the last n turns, oldest first.
	Recent(sessionID string, n int) []string
}

// KnowledgeLoader reads reference question/answer pairs from a source.
type KnowledgeLoader interface {
	// Load reads all entries from the given path.
	Load(ctx context.Context, path string) ([]entities.KnowledgeEntry, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
