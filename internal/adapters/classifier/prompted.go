// Package classifier provides intent classification adapters.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
	"github.com/0xcro3dile/medchat-go/internal/domain/ports"
)

// DefaultLabels are the intents the prompted classifier chooses between.
var DefaultLabels = []string{
	string(entities.IntentEmergency),
	string(entities.IntentGreeting),
	string(entities.IntentMedicalQuestion),
}

// PromptedClassifier implements ports.Classifier by asking a generator to
// pick one label. It reports no score.
type PromptedClassifier struct {
	llm    ports.LLMService
	labels []string
}

// NewPromptedClassifier creates a zero-shot classifier over llm.
func NewPromptedClassifier(llm ports.LLMService, labels []string) *PromptedClassifier {
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	return &PromptedClassifier{llm: llm, labels: labels}
}

// Classify returns the label the model's reply opens with, or the raw reply
// when it does not open with a known label.
func (c *PromptedClassifier) Classify(ctx context.Context, text string) (entities.Classification, error) {
	opts := entities.GenerationOptions{MaxTokens: 8, Temperature: 0, Sample: false, NumBeams: 1}
	reply, err := c.llm.Generate(ctx, c.prompt(text), opts)
	if err != nil {
		return entities.Classification{}, fmt.Errorf("classify: %w", err)
	}

	words := replyWords(reply)
	if len(words) == 0 {
		return entities.Classification{}, fmt.Errorf("classify: empty reply")
	}
	return entities.Classification{Label: c.match(words)}, nil
}

// match checks the two-word form first so "medical question" is not read
// as a shorter label.
func (c *PromptedClassifier) match(words []string) string {
	candidates := []string{words[0]}
	if len(words) > 1 {
		candidates = []string{words[0] + "_" + words[1], words[0]}
	}
	for _, cand := range candidates {
		for _, l := range c.labels {
			if cand == l {
				return l
			}
		}
	}
	return strings.Join(words, "_")
}

func (c *PromptedClassifier) prompt(text string) string {
	var sb strings.Builder
	sb.WriteString("Classify the user's message into exactly one of these labels: ")
	sb.WriteString(strings.Join(c.labels, ", "))
	sb.WriteString(".\n")
	sb.WriteString("emergency: a situation that needs urgent medical help.\n")
	sb.WriteString("greeting: a hello, thanks or other small talk.\n")
	sb.WriteString("medical_question: a question about health, symptoms or treatment.\n\n")
	sb.WriteString("Message: ")
	sb.WriteString(text)
	sb.WriteString("\nLabel:")
	return sb.String()
}

func replyWords(reply string) []string {
	s := strings.ToLower(strings.TrimSpace(reply))
	s = strings.TrimPrefix(s, "label:")
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(".,:;!\"'`*", r)
	})
}
