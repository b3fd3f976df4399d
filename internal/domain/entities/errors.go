package entities

import "errors"

// Sentinel errors shared across the pipeline.
// Use errors.Is() to check for these in calling code.
var (
	// ErrEmptyKnowledge indicates the knowledge source produced no usable entries.
	ErrEmptyKnowledge = errors.New("knowledge store is empty")

	// ErrIndexMismatch indicates the embedding index and knowledge store disagree.
	ErrIndexMismatch = errors.New("embedding index does not match knowledge store")

	// ErrClassification wraps any failure of the classification capability.
	ErrClassification = errors.New("classification failed")

	// ErrRetrieval wraps any failure while building retrieved context.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration wraps any failure of the generation capability.
	ErrGeneration = errors.New("generation failed")

	// ErrInvalidRules indicates a rule table failed validation.
	ErrInvalidRules = errors.New("invalid rule set")
)
