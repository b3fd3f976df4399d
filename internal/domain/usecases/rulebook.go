package usecases

import (
	"fmt"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

// Rulebook is a compiled RuleSet. It is immutable once built.
type Rulebook struct {
	Version   int
	Gate      *SafetyGate
	Lexicon   []string
	Sanitizer *Sanitizer
}

// CompileRules validates rs and compiles its matchers.
func CompileRules(rs entities.RuleSet) (*Rulebook, error) {
	gate := NewSafetyGate(rs.EmergencyPhrases)
	if len(gate.phrases) == 0 {
		return nil, fmt.Errorf("%w: emergency phrase list is empty", entities.ErrInvalidRules)
	}
	lexicon := normalizeTerms(rs.ShortSymptomTerms)
	if len(lexicon) == 0 {
		return nil, fmt.Errorf("%w: short symptom lexicon is empty", entities.ErrInvalidRules)
	}
	sanitizer, err := NewSanitizer(rs.BoilerplatePhrases, rs.RepetitionPatterns)
	if err != nil {
		return nil, err
	}
	return &Rulebook{
		Version:   rs.Version,
		Gate:      gate,
		Lexicon:   lexicon,
		Sanitizer: sanitizer,
	}, nil
}
