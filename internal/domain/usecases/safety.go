// Package usecases contains application business rules.
// Usecases orchestrate entities and depend on port interfaces only.
package usecases

import "strings"

// SafetyGate flags emergency phrasing by case-insensitive substring match.
// It is pure and total: no input makes it fail.
type SafetyGate struct {
	phrases []string
}

// NewSafetyGate lowercases the phrase list and drops blank entries.
func NewSafetyGate(phrases []string) *SafetyGate {
	return &SafetyGate{phrases: normalizeTerms(phrases)}
}

// IsEmergency reports whether text contains any emergency phrase.
func (g *SafetyGate) IsEmergency(text string) bool {
	return containsAny(strings.ToLower(text), g.phrases)
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
