// Package entities contains core business entities.
// These are pure domain objects with no external dependencies.
package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Intent is the coarse conversational category assigned to one user turn.
type Intent string

const (
	IntentEmergencyKeyword Intent = "emergency_keyword"
	IntentEmergency        Intent = "emergency"
	IntentGreeting         Intent = "greeting"
	IntentMedicalQuestion  Intent = "medical_question"
	IntentUnknown          Intent = "unknown"
	IntentError            Intent = "error"
)

// IntentFromLabel maps a classifier label onto the routed intents.
// Labels the pipeline has no branch for become IntentUnknown.
func IntentFromLabel(label string) Intent {
	switch Intent(label) {
	case IntentEmergency, IntentGreeting, IntentMedicalQuestion:
		return Intent(label)
	default:
		return IntentUnknown
	}
}

// KnowledgeEntry is one reference question/answer pair.
// Identity is its position in the KnowledgeStore.
type KnowledgeEntry struct {
	ReferenceQuestion string `json:"question"`
	ReferenceAnswer   string `json:"answer"`
}

// KnowledgeStore is the immutable corpus the retriever searches.
type KnowledgeStore struct {
	entries []KnowledgeEntry
}

// NewKnowledgeStore copies entries into a read-only store.
// An empty corpus is rejected.
func NewKnowledgeStore(entries []KnowledgeEntry) (*KnowledgeStore, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyKnowledge
	}
	cp := make([]KnowledgeEntry, len(entries))
	copy(cp, entries)
	return &KnowledgeStore{entries: cp}, nil
}

// Len returns the number of entries.
func (s *KnowledgeStore) Len() int { return len(s.entries) }

// Entry returns the entry at position i.
func (s *KnowledgeStore) Entry(i int) (KnowledgeEntry, error) {
	if i < 0 || i >= len(s.entries) {
		return KnowledgeEntry{}, fmt.Errorf("%w: position %d of %d", ErrIndexMismatch, i, len(s.entries))
	}
	return s.entries[i], nil
}

// Answers returns the reference answers in store order.
func (s *KnowledgeStore) Answers() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.ReferenceAnswer
	}
	return out
}

// Digest is a SHA-256 over every answer, in order.
// Two stores with the same digest embed to the same index.
func (s *KnowledgeStore) Digest() string {
	h := sha256.New()
	for _, e := range s.entries {
		h.Write([]byte(e.ReferenceAnswer))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Hit is one similarity match against the embedding index.
type Hit struct {
	Position int     // index into the KnowledgeStore
	Score    float64 // cosine similarity
}

// Classification is the raw output of a sequence classifier.
type Classification struct {
	Label string
	Score float64 // probability of Label, 0 when the backend does not report one
}

// GenerationOptions configures one call to a sequence generator.
type GenerationOptions struct {
	MaxTokens         int
	NumBeams          int
	EarlyStopping     bool
	RepetitionPenalty float64
	NoRepeatNgramSize int
	Temperature       float64
	Sample            bool
	Seed              int
}

// ResponseResult is the single-call contract returned for every turn.
type ResponseResult struct {
	ResponseText string  `json:"responseText"`
	Intent       Intent  `json:"intent"`
	Confidence   float64 `json:"confidence"`
}

// RuleSet holds the curated rule tables that drive gating, routing and cleanup.
type RuleSet struct {
	Version            int      `yaml:"version"`
	EmergencyPhrases   []string `yaml:"emergency_phrases"`
	ShortSymptomTerms  []string `yaml:"short_symptom_terms"`
	BoilerplatePhrases []string `yaml:"boilerplate_phrases"`
	RepetitionPatterns []string `yaml:"repetition_patterns"`
}
