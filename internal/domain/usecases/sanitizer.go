package usecases

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

const (
	minSentenceChars     = 10
	sentenceFingerprint  = 80
	repeatPatternTimeout = 100 * time.Millisecond
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Sanitizer strips generation artifacts and repetition from raw model text.
type Sanitizer struct {
	boilerplate []*regexp.Regexp
	repeats     []*regexp2.Regexp
}

// NewSanitizer compiles boilerplate phrases (matched literally, case-insensitive,
// with optional trailing period and whitespace) and repeat-collapse patterns.
// Repeat patterns may use backreferences; $1 is kept for each match.
func NewSanitizer(boilerplate, repeatPatterns []string) (*Sanitizer, error) {
	s := &Sanitizer{}
	for _, phrase := range boilerplate {
		if strings.TrimSpace(phrase) == "" {
			continue
		}
		s.boilerplate = append(s.boilerplate, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(phrase)+`\.?\s*`))
	}
	for _, p := range repeatPatterns {
		re, err := regexp2.Compile(p, regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("%w: repetition pattern %q: %v", entities.ErrInvalidRules, p, err)
		}
		re.MatchTimeout = repeatPatternTimeout
		s.repeats = append(s.repeats, re)
	}
	return s, nil
}

// Clean returns non-empty text ending in a period, with boilerplate removed
// and no two sentences sharing an 80-character lowercase prefix.
func (s *Sanitizer) Clean(raw string) (string, error) {
	cleaned := raw
	for _, re := range s.boilerplate {
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	var kept []string
	seen := make(map[string]struct{})
	for _, sentence := range sentenceSplit.Split(cleaned, -1) {
		sentence = strings.TrimSpace(sentence)
		if runeLen(sentence) <= minSentenceChars {
			continue
		}
		key := fingerprint(sentence, sentenceFingerprint)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, sentence)
	}

	out := entities.CleanupFallbackMessage
	if len(kept) > 0 {
		out = strings.Join(kept, ". ")
		if !strings.HasSuffix(out, ".") {
			out += "."
		}
	}

	for _, re := range s.repeats {
		collapsed, err := re.Replace(out, "$1", -1, -1)
		if err != nil {
			return "", fmt.Errorf("collapse repetition: %w", err)
		}
		out = collapsed
	}
	return out, nil
}
