package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
)

type orchestratorFixture struct {
	orch       *Orchestrator
	classifier *mockClassifier
	llm        *mockLLM
	memory     *mockMemory
}

func newOrchestratorFixture(t *testing.T, label string) *orchestratorFixture {
	t.Helper()
	store := newTestStore(t,
		longAnswer("Influenza is a viral infection"),
		longAnswer("Sore throats are usually viral"),
	)
	idx := &mockIndex{size: 2, hits: []entities.Hit{{Position: 0, Score: 0.8}, {Position: 1, Score: 0.6}}}
	retriever, err := NewRetriever(&mockEmbedder{}, idx, store, DefaultRetrieverConfig(), nil)
	require.NoError(t, err)

	f := &orchestratorFixture{
		classifier: &mockClassifier{label: label},
		llm:        &mockLLM{response: "Rest and drink fluids while the infection runs its course."},
		memory:     newMockMemory(),
	}
	f.orch, err = NewOrchestrator(
		testRules(),
		f.classifier,
		retriever,
		NewGenerator(f.llm, SamplingOptions(), 0),
		f.memory,
		DefaultOrchestratorConfig(),
		nil,
	)
	require.NoError(t, err)
	return f
}

func TestRespond_EmergencyKeywordBypassesEverything(t *testing.T) {
	f := newOrchestratorFixture(t, "greeting")

	res := f.orch.Respond(context.Background(), "I have severe chest pain", "s1")

	assert.Equal(t, entities.IntentEmergencyKeyword, res.Intent)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, entities.EmergencyKeywordMessage+entities.Disclaimer, res.ResponseText)
	assert.Zero(t, f.classifier.calls.Load())
	assert.Zero(t, f.llm.calls)
	assert.Empty(t, f.memory.all("s1"))
}

func TestRespond_Greeting(t *testing.T) {
	f := newOrchestratorFixture(t, "greeting")

	res := f.orch.Respond(context.Background(), "hello there", "s1")

	assert.Equal(t, entities.IntentGreeting, res.Intent)
	assert.Equal(t, entities.GreetingMessage+entities.Disclaimer, res.ResponseText)
	assert.Zero(t, f.llm.calls)
	assert.Equal(t, []string{
		"User: hello there",
		"Bot: " + truncateRunes(entities.GreetingMessage, 100) + "...",
	}, f.memory.all("s1"))
}

func TestRespond_EmergencyIntentAndUnknown(t *testing.T) {
	f := newOrchestratorFixture(t, "emergency")
	res := f.orch.Respond(context.Background(), "my grandfather collapsed and is not waking", "s1")
	assert.Equal(t, entities.IntentEmergency, res.Intent)
	assert.Equal(t, entities.EmergencyIntentMessage+entities.Disclaimer, res.ResponseText)

	f = newOrchestratorFixture(t, "weather")
	res = f.orch.Respond(context.Background(), "is it going to rain today", "s1")
	assert.Equal(t, entities.IntentUnknown, res.Intent)
	assert.Equal(t, entities.UnknownMessage+entities.Disclaimer, res.ResponseText)
}

func TestRespond_MedicalQuestionComposesFullPrompt(t *testing.T) {
	f := newOrchestratorFixture(t, "greeting")
	ctx := context.Background()
	f.orch.Respond(ctx, "hello there", "s1")

	f.classifier.label = "medical_question"
	res := f.orch.Respond(ctx, "What are the symptoms of flu in adults?", "s1")

	assert.Equal(t, entities.IntentMedicalQuestion, res.Intent)
	assert.Equal(t, "Rest and drink fluids while the infection runs its course."+entities.Disclaimer, res.ResponseText)

	p := f.llm.lastPrompt
	assert.Contains(t, p, "Previous Conversation:\nUser: hello there\nBot: ")
	assert.Contains(t, p, "Medical Information:\nInfluenza is a viral infection")
	assert.Contains(t, p, ContextSeparator)
	assert.Contains(t, p, "Current Question: What are the symptoms of flu in adults?")
	assert.True(t, strings.HasSuffix(p, "Response:"))
	assert.Equal(t, SamplingOptions(), f.llm.lastOpts)
	assert.Len(t, f.memory.all("s1"), 4)
}

func TestRespond_ShortSymptomRoutesToAnswer(t *testing.T) {
	f := newOrchestratorFixture(t, "greeting")

	res := f.orch.Respond(context.Background(), "fever", "s1")

	assert.Equal(t, entities.IntentMedicalQuestion, res.Intent)
	assert.Zero(t, f.classifier.calls.Load())
	assert.Equal(t, 1, f.llm.calls)
}

func TestRespond_HistoryWindowIsFourTurns(t *testing.T) {
	f := newOrchestratorFixture(t, "medical_question")
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		f.orch.Respond(ctx, fmt.Sprintf("question number %d about my health", i), "s1")
	}

	history := f.llm.lastPrompt[strings.Index(f.llm.lastPrompt, "Previous Conversation:\n"):strings.Index(f.llm.lastPrompt, "\n\nMedical Information:")]
	assert.Equal(t, 2, strings.Count(history, "User: "))
	assert.Contains(t, history, "question number 2")
	assert.Contains(t, history, "question number 1")
	assert.NotContains(t, history, "question number 0")
	assert.Len(t, f.memory.all("s1"), 6)
}

func TestRespond_GenerationFailureYieldsErrorResult(t *testing.T) {
	f := newOrchestratorFixture(t, "medical_question")
	f.llm.err = errBackend

	res := f.orch.Respond(context.Background(), "what is the treatment for asthma attacks", "s1")

	assert.Equal(t, entities.ResponseResult{
		ResponseText: entities.ErrorMessage,
		Intent:       entities.IntentError,
		Confidence:   0.0,
	}, res)
	assert.NotContains(t, res.ResponseText, "Disclaimer")
	assert.Empty(t, f.memory.all("s1"))
}

func TestRespond_PanicYieldsErrorResult(t *testing.T) {
	f := newOrchestratorFixture(t, "medical_question")
	f.classifier.panicMsg = "model exploded"

	res := f.orch.Respond(context.Background(), "why does my knee hurt after running", "s1")

	assert.Equal(t, entities.IntentError, res.Intent)
	assert.Equal(t, entities.ErrorMessage, res.ResponseText)
	assert.Empty(t, f.memory.all("s1"))
}

func TestRespond_ClassifierFailureAnswersAnyway(t *testing.T) {
	f := newOrchestratorFixture(t, "")
	f.classifier.err = errBackend

	res := f.orch.Respond(context.Background(), "what should I know about cholesterol levels", "s1")

	assert.Equal(t, entities.IntentMedicalQuestion, res.Intent)
	assert.Equal(t, 1, f.llm.calls)
}

func TestRespond_SessionsAreIsolated(t *testing.T) {
	f := newOrchestratorFixture(t, "greeting")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.orch.Respond(ctx, "hello there", fmt.Sprintf("s%d", i))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		assert.Len(t, f.memory.all(fmt.Sprintf("s%d", i)), 2)
	}
}

func TestUpdateRules(t *testing.T) {
	f := newOrchestratorFixture(t, "greeting")
	ctx := context.Background()

	bad := testRules()
	bad.Version = 2
	bad.EmergencyPhrases = nil
	require.ErrorIs(t, f.orch.UpdateRules(bad), entities.ErrInvalidRules)
	assert.Equal(t, 1, f.orch.RulesVersion())

	next := testRules()
	next.Version = 3
	next.EmergencyPhrases = []string{"anaphylaxis"}
	require.NoError(t, f.orch.UpdateRules(next))
	assert.Equal(t, 3, f.orch.RulesVersion())

	res := f.orch.Respond(ctx, "I think this is anaphylaxis", "s1")
	assert.Equal(t, entities.IntentEmergencyKeyword, res.Intent)
	res = f.orch.Respond(ctx, "I think this is a stroke", "s2")
	assert.NotEqual(t, entities.IntentEmergencyKeyword, res.Intent)
}

func TestBotTurn(t *testing.T) {
	long := strings.Repeat("a", 150)
	assert.Equal(t, "Bot: "+strings.Repeat("a", 100)+"...", BotTurn(long, 100))
	assert.Equal(t, "Bot: short...", BotTurn("short", 100))
	assert.Equal(t, "User: hi", UserTurn("hi"))
}
