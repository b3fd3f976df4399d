package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0xcro3dile/medchat-go/internal/adapters/classifier"
	"github.com/0xcro3dile/medchat-go/internal/adapters/embedding"
	"github.com/0xcro3dile/medchat-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/medchat-go/internal/adapters/llm"
	"github.com/0xcro3dile/medchat-go/internal/adapters/loader"
	"github.com/0xcro3dile/medchat-go/internal/adapters/memory"
	"github.com/0xcro3dile/medchat-go/internal/adapters/modelserver"
	"github.com/0xcro3dile/medchat-go/internal/adapters/rules"
	"github.com/0xcro3dile/medchat-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/medchat-go/internal/config"
	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
	"github.com/0xcro3dile/medchat-go/internal/domain/ports"
	"github.com/0xcro3dile/medchat-go/internal/domain/usecases"
)

// app is the fully wired response pipeline.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *entities.KnowledgeStore
	orchestrator *usecases.Orchestrator
	sessions     *memory.SessionStore
	closers      []func()
}

// Close releases everything the app started, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// status feeds /health.
func (a *app) status() map[string]any {
	return map[string]any{
		"rules_version": a.orchestrator.RulesVersion(),
		"sessions":      a.sessions.Sessions(),
		"knowledge":     a.store.Len(),
	}
}

// backends holds the model capabilities selected by config.
type backends struct {
	embedder   ports.EmbeddingService
	generator  ports.LLMService
	classifier ports.Classifier
}

// newApp loads rules and knowledge, builds the index and assembles the orchestrator.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	rs, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return nil, err
	}

	b, err := newBackends(ctx, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, index, err := buildIndex(ctx, cfg, b.embedder, false, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	retrieverCfg := usecases.DefaultRetrieverConfig()
	retrieverCfg.TopK = cfg.Retrieval.TopK
	retrieverCfg.MinScore = cfg.Retrieval.MinScore
	retriever, err := usecases.NewRetriever(b.embedder, index, store, retrieverCfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := usecases.SamplingOptions()
	if cfg.Generator.Greedy {
		opts = usecases.GreedyOptions()
	}
	generator := usecases.NewGenerator(b.generator, opts, cfg.Generator.Timeout)

	a.sessions = memory.NewSessionStore(cfg.Memory.Capacity, cfg.Memory.MaxSessions, cfg.Memory.IdleTTL)

	a.orchestrator, err = usecases.NewOrchestrator(rs, b.classifier, retriever, generator, a.sessions, usecases.OrchestratorConfig{
		HistoryWindow:    cfg.Memory.HistoryWindow,
		TopK:             cfg.Retrieval.TopK,
		ReportConfidence: cfg.Classifier.ReportConfidence,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("medchat ready",
		"knowledge", store.Len(),
		"rules_version", rs.Version,
		"embedding", b.embedder.Model(),
		"generator", cfg.Generator.Provider,
		"classifier", cfg.Classifier.Provider,
		"greedy", cfg.Generator.Greedy,
	)
	return a, nil
}

// newBackends picks adapters per provider. The model server is contacted
// (and optionally started) only when some capability uses it.
func newBackends(ctx context.Context, a *app) (*backends, error) {
	cfg := a.cfg
	var ms *modelserver.Client
	modelServer := func() (*modelserver.Client, error) {
		if ms != nil {
			return ms, nil
		}
		client, err := startModelServer(ctx, cfg, a.logger)
		if err != nil {
			return nil, err
		}
		ms = client.client
		if client.stop != nil {
			a.closers = append(a.closers, client.stop)
		}
		return ms, nil
	}

	var b backends
	var err error

	switch cfg.Embedding.Provider {
	case config.ProviderModelServer:
		if b.embedder, err = modelServer(); err != nil {
			return nil, err
		}
	case config.ProviderOllama:
		b.embedder = embedding.NewOllamaAdapter(cfg.Embedding.URL, cfg.Embedding.Model, a.logger)
	case config.ProviderOpenAI:
		if b.embedder, err = embedding.NewOpenAIAdapter(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.URL); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("embedding provider %q is not supported", cfg.Embedding.Provider)
	}

	gen := cfg.Generator.BackendConfig
	switch gen.Provider {
	case config.ProviderModelServer:
		if b.generator, err = modelServer(); err != nil {
			return nil, err
		}
	case config.ProviderOllama:
		b.generator = llm.NewOllamaLLMAdapter(gen.URL, gen.Model)
	case config.ProviderOpenAI:
		if b.generator, err = llm.NewOpenAIAdapter(gen.APIKey, gen.Model, gen.URL); err != nil {
			return nil, err
		}
	case config.ProviderAnthropic:
		if b.generator, err = llm.NewAnthropicAdapter(gen.APIKey, gen.Model); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("generator provider %q is not supported", gen.Provider)
	}

	switch cfg.Classifier.Provider {
	case config.ProviderModelServer:
		if b.classifier, err = modelServer(); err != nil {
			return nil, err
		}
	case config.ProviderPrompted:
		b.classifier = classifier.NewPromptedClassifier(b.generator, nil)
	default:
		return nil, fmt.Errorf("classifier provider %q is not supported", cfg.Classifier.Provider)
	}

	return &b, nil
}

type startedModelServer struct {
	client *modelserver.Client
	stop   func()
}

func startModelServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (startedModelServer, error) {
	ms := cfg.ModelServer
	client := modelserver.NewClient(ms.URL, cfg.Embedding.Model, ms.Timeout, logger)
	if ms.Script != "" && !client.IsServiceHealthy(ctx) {
		stop, err := client.StartService(ctx, ms.Python, ms.Script, ms.StartWait)
		if err != nil {
			return startedModelServer{}, fmt.Errorf("start model server: %w", err)
		}
		return startedModelServer{client: client, stop: stop}, nil
	}
	if err := client.WaitHealthy(ctx, ms.StartWait); err != nil {
		return startedModelServer{}, fmt.Errorf("model server at %s: %w (set model_server.script or use the ollama providers)", ms.URL, err)
	}
	return startedModelServer{client: client}, nil
}

// loadKnowledge reads the configured corpus into a store.
func loadKnowledge(ctx context.Context, cfg *config.Config) (*entities.KnowledgeStore, error) {
	l := loader.NewMultiLoader(loader.NewCSVLoader(), loader.NewJSONLLoader())
	entries, err := l.Load(ctx, cfg.Knowledge.Path)
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}
	store, err := entities.NewKnowledgeStore(entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Knowledge.Path, err)
	}
	return store, nil
}

// buildIndex loads the corpus and embeds it through the SQLite cache.
// rebuild drops the cache first.
func buildIndex(ctx context.Context, cfg *config.Config, embedder ports.EmbeddingService, rebuild bool, logger *slog.Logger) (*entities.KnowledgeStore, *vectordb.MemoryIndex, error) {
	store, err := loadKnowledge(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	cache, err := vectordb.NewSQLiteCache(cfg.Knowledge.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	defer cache.Close()

	if rebuild {
		if err := cache.Clear(ctx); err != nil {
			return nil, nil, fmt.Errorf("clear index cache: %w", err)
		}
	}

	uc := usecases.NewIndexUseCase(embedder, cache, cfg.Knowledge.BatchSize, cfg.Knowledge.Workers, logger)
	vectors, err := uc.Build(ctx, store)
	if err != nil {
		return nil, nil, err
	}
	index, err := vectordb.NewMemoryIndex(vectors)
	if err != nil {
		return nil, nil, err
	}
	return store, index, nil
}

// watchRules hot-reloads cfg.Rules.Path into the orchestrator until ctx is done.
// It is a no-op with built-in rules or when watching is disabled.
func watchRules(ctx context.Context, a *app) error {
	if a.cfg.Rules.Path == "" || !a.cfg.Rules.Watch {
		return nil
	}
	watcher, err := filewatcher.NewFSNotifyWatcher(nil, a.logger)
	if err != nil {
		return err
	}
	reloader := rules.NewReloader(a.cfg.Rules.Path, watcher, a.orchestrator, a.logger)
	go func() {
		defer watcher.Stop()
		if err := reloader.Run(ctx); err != nil {
			a.logger.Error("rules watcher stopped", "error", err)
		}
	}()
	return nil
}
