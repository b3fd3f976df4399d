package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
	"github.com/0xcro3dile/medchat-go/internal/domain/ports"
)

const (
	// shortPromptMaxTokens is the largest prompt the symptom lexicon may decide alone.
	shortPromptMaxTokens = 3

	// classifierMaxTokens bounds the text handed to the classifier.
	classifierMaxTokens = 128
)

// DecisionSource records which tier of the router decided the intent.
type DecisionSource string

const (
	SourceLexicon    DecisionSource = "lexicon"
	SourceClassifier DecisionSource = "classifier"
	SourceFallback   DecisionSource = "fallback"
)

// IntentDecision is the router's outcome for one turn.
// Err is set when the classifier failed and the fallback was used.
type IntentDecision struct {
	Intent     entities.Intent
	Confidence float64
	Source     DecisionSource
	Err        error
}

// IntentRouter decides the conversational branch for a prompt.
type IntentRouter struct {
	classifier       ports.Classifier
	lexicon          []string
	reportConfidence bool
}

// NewIntentRouter builds a router over a classifier and a short-symptom lexicon.
// When reportConfidence is false every decision carries confidence 1.0.
func NewIntentRouter(classifier ports.Classifier, lexicon []string, reportConfidence bool) *IntentRouter {
	return &IntentRouter{
		classifier:       classifier,
		lexicon:          normalizeTerms(lexicon),
		reportConfidence: reportConfidence,
	}
}

// Classify never fails: classifier errors fall back to medical_question.
func (r *IntentRouter) Classify(ctx context.Context, text string) IntentDecision {
	lower := strings.ToLower(strings.TrimSpace(text))
	if len(strings.Fields(text)) <= shortPromptMaxTokens && containsAny(lower, r.lexicon) {
		return IntentDecision{Intent: entities.IntentMedicalQuestion, Confidence: 1.0, Source: SourceLexicon}
	}

	c, err := r.classify(ctx, text)
	if err != nil {
		return IntentDecision{
			Intent:     entities.IntentMedicalQuestion,
			Confidence: 1.0,
			Source:     SourceFallback,
			Err:        err,
		}
	}

	confidence := 1.0
	if r.reportConfidence && c.Score > 0 && c.Score <= 1 {
		confidence = c.Score
	}
	return IntentDecision{
		Intent:     entities.IntentFromLabel(c.Label),
		Confidence: confidence,
		Source:     SourceClassifier,
	}
}

func (r *IntentRouter) classify(ctx context.Context, text string) (entities.Classification, error) {
	if r.classifier == nil {
		return entities.Classification{}, fmt.Errorf("%w: no classifier configured", entities.ErrClassification)
	}
	c, err := r.classifier.Classify(ctx, truncateTokens(text, classifierMaxTokens))
	if err != nil {
		return entities.Classification{}, fmt.Errorf("%w: %v", entities.ErrClassification, err)
	}
	if c.Label == "" {
		return entities.Classification{}, fmt.Errorf("%w: empty label", entities.ErrClassification)
	}
	return c, nil
}

// truncateTokens keeps the first n whitespace-separated tokens.
func truncateTokens(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return text
	}
	return strings.Join(fields[:n], " ")
}
