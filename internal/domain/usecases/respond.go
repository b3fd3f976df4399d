package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
	"github.com/0xcro3dile/medchat-go/internal/domain/ports"
)

// OrchestratorConfig tunes the per-turn pipeline.
type OrchestratorConfig struct {
	HistoryWindow    int  // turns of memory fed into the prompt
	BotTurnChars     int  // characters of a reply kept in memory
	TopK             int  // passages retrieved per question
	ReportConfidence bool // surface classifier scores instead of 1.0
}

// DefaultOrchestratorConfig returns the production settings.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{HistoryWindow: 4, BotTurnChars: 100, TopK: 3}
}

type turnRules struct {
	book   *Rulebook
	router *IntentRouter
}

// Orchestrator answers one user turn end to end.
// It is safe for concurrent use across sessions.
type Orchestrator struct {
	rules      atomic.Pointer[turnRules]
	classifier ports.Classifier
	retriever  *Retriever
	generator  *Generator
	memory     ports.ConversationMemory
	cfg        OrchestratorConfig
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator with injected dependencies.
func NewOrchestrator(
	rs entities.RuleSet,
	classifier ports.Classifier,
	retriever *Retriever,
	generator *Generator,
	memory ports.ConversationMemory,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) (*Orchestrator, error) {
	def := DefaultOrchestratorConfig()
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	if cfg.BotTurnChars <= 0 {
		cfg.BotTurnChars = def.BotTurnChars
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		memory:     memory,
		cfg:        cfg,
		logger:     logger,
	}
	if err := o.UpdateRules(rs); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateRules swaps in a new rule set. On error the current rules stay active.
func (o *Orchestrator) UpdateRules(rs entities.RuleSet) error {
	book, err := CompileRules(rs)
	if err != nil {
		return err
	}
	o.rules.Store(&turnRules{
		book:   book,
		router: NewIntentRouter(o.classifier, book.Lexicon, o.cfg.ReportConfidence),
	})
	return nil
}

// RulesVersion reports the version of the active rule set.
func (o *Orchestrator) RulesVersion() int {
	return o.rules.Load().book.Version
}

// Respond produces the reply for one turn. It never returns an error:
// any failure, including a panic, yields the fixed error result.
func (o *Orchestrator) Respond(ctx context.Context, prompt, sessionID string) (result entities.ResponseResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("respond panicked", "session", sessionID, "panic", r)
			result = errorResult()
		}
	}()

	rules := o.rules.Load()
	if rules.book.Gate.IsEmergency(prompt) {
		o.logger.Warn("emergency phrase matched", "session", sessionID)
		return entities.ResponseResult{
			ResponseText: entities.EmergencyKeywordMessage + entities.Disclaimer,
			Intent:       entities.IntentEmergencyKeyword,
			Confidence:   1.0,
		}
	}

	res, err := o.respond(ctx, rules, prompt, sessionID)
	if err != nil {
		o.logger.Error("respond failed", "session", sessionID, "error", err)
		return errorResult()
	}
	return res
}

func (o *Orchestrator) respond(ctx context.Context, rules *turnRules, prompt, sessionID string) (entities.ResponseResult, error) {
	decision := rules.router.Classify(ctx, prompt)
	if decision.Err != nil {
		o.logger.Warn("classifier unavailable, assuming medical question", "session", sessionID, "error", decision.Err)
	}
	o.logger.Debug("intent routed",
		"session", sessionID,
		"intent", decision.Intent,
		"source", decision.Source,
		"confidence", decision.Confidence,
	)

	var text string
	switch decision.Intent {
	case entities.IntentEmergency:
		text = entities.EmergencyIntentMessage
	case entities.IntentGreeting:
		text = entities.GreetingMessage
	case entities.IntentMedicalQuestion:
		answer, err := o.answer(ctx, rules.book, prompt, sessionID)
		if err != nil {
			return entities.ResponseResult{}, err
		}
		text = answer
	default:
		text = entities.UnknownMessage
	}

	o.memory.Append(sessionID, UserTurn(prompt), BotTurn(text, o.cfg.BotTurnChars))

	return entities.ResponseResult{
		ResponseText: text + entities.Disclaimer,
		Intent:       decision.Intent,
		Confidence:   decision.Confidence,
	}, nil
}

func (o *Orchestrator) answer(ctx context.Context, book *Rulebook, prompt, sessionID string) (string, error) {
	if o.retriever == nil || o.generator == nil {
		return "", fmt.Errorf("%w: answering pipeline not configured", entities.ErrGeneration)
	}
	retrieved := o.retriever.Retrieve(ctx, prompt, o.cfg.TopK)
	history := strings.Join(o.memory.Recent(sessionID, o.cfg.HistoryWindow), "\n")

	raw, err := o.generator.Generate(ctx, ComposePrompt(prompt, retrieved.Text, history))
	if err != nil {
		return "", err
	}
	cleaned, err := book.Sanitizer.Clean(raw)
	if err != nil {
		return "", fmt.Errorf("sanitize: %w", err)
	}
	return cleaned, nil
}

// UserTurn formats a prompt as a memory entry.
func UserTurn(prompt string) string {
	return "User: " + prompt
}

// BotTurn formats a reply as a truncated memory entry.
func BotTurn(reply string, chars int) string {
	return "Bot: " + truncateRunes(reply, chars) + "..."
}

func errorResult() entities.ResponseResult {
	return entities.ResponseResult{
		ResponseText: entities.ErrorMessage,
		Intent:       entities.IntentError,
		Confidence:   0.0,
	}
}
