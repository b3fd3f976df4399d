package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
	"github.com/0xcro3dile/medchat-go/internal/domain/ports"
)

// greedySeed is the fixed seed used by deterministic decoding.
const greedySeed = 42

// SamplingOptions is the production decoding configuration.
// Output is not reproducible across calls.
func SamplingOptions() entities.GenerationOptions {
	return entities.GenerationOptions{
		MaxTokens:         200,
		NumBeams:          4,
		EarlyStopping:     true,
		RepetitionPenalty: 1.3,
		NoRepeatNgramSize: 3,
		Temperature:       0.8,
		Sample:            true,
	}
}

// GreedyOptions keeps the length and repetition limits of SamplingOptions
// but disables sampling and pins the seed.
func GreedyOptions() entities.GenerationOptions {
	opts := SamplingOptions()
	opts.Sample = false
	opts.Temperature = 0
	opts.Seed = greedySeed
	return opts
}

// Generator turns a composed prompt into raw candidate text.
type Generator struct {
	llm     ports.LLMService
	opts    entities.GenerationOptions
	timeout time.Duration
}

// NewGenerator wraps llm with fixed decoding options.
// A zero timeout means the caller's context is the only bound.
func NewGenerator(llm ports.LLMService, opts entities.GenerationOptions, timeout time.Duration) *Generator {
	return &Generator{llm: llm, opts: opts, timeout: timeout}
}

// Options returns the decoding options in use.
func (g *Generator) Options() entities.GenerationOptions { return g.opts }

// Generate runs one generation call within the time budget.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	out, err := g.llm.Generate(ctx, prompt, g.opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrGeneration, err)
	}
	return out, nil
}
