// Package config loads medchat settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend providers.
const (
	ProviderModelServer = "modelserver"
	ProviderOllama      = "ollama"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderPrompted    = "prompted"
)

// ServerConfig configures the HTTP chat endpoint.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KnowledgeConfig points at the corpus and the index cache.
type KnowledgeConfig struct {
	Path      string `yaml:"path"`
	CacheDir  string `yaml:"cache_dir"`
	BatchSize int    `yaml:"batch_size"`
	Workers   int    `yaml:"workers"`
}

// ModelServerConfig configures the Python model sidecar.
type ModelServerConfig struct {
	URL       string        `yaml:"url"`
	Script    string        `yaml:"script"` // started by medchat when set
	Python    string        `yaml:"python"`
	StartWait time.Duration `yaml:"start_wait"`
	Timeout   time.Duration `yaml:"timeout"`
}

// BackendConfig selects one model backend.
type BackendConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
}

// GeneratorConfig configures answer generation.
type GeneratorConfig struct {
	BackendConfig `yaml:",inline"`
	Greedy        bool          `yaml:"greedy"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ClassifierConfig configures intent classification.
type ClassifierConfig struct {
	BackendConfig    `yaml:",inline"`
	ReportConfidence bool `yaml:"report_confidence"`
}

// RetrievalConfig tunes the retriever.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// MemoryConfig bounds conversation memory.
type MemoryConfig struct {
	Capacity      int           `yaml:"capacity"`
	HistoryWindow int           `yaml:"history_window"`
	MaxSessions   int           `yaml:"max_sessions"`
	IdleTTL       time.Duration `yaml:"idle_ttl"`
}

// RulesConfig locates the rule tables. An empty path uses the built-in rules.
type RulesConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Knowledge   KnowledgeConfig   `yaml:"knowledge"`
	ModelServer ModelServerConfig `yaml:"model_server"`
	Embedding   BackendConfig     `yaml:"embedding"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Memory      MemoryConfig      `yaml:"memory"`
	Rules       RulesConfig       `yaml:"rules"`
	Log         LogConfig         `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			CORSOrigins:  []string{"*"},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			Path:      "data/medical_qa.csv",
			CacheDir:  "data",
			BatchSize: 64,
			Workers:   4,
		},
		ModelServer: ModelServerConfig{
			URL:       "http://localhost:8081",
			Python:    "python3",
			StartWait: 2 * time.Minute,
			Timeout:   120 * time.Second,
		},
		Embedding: BackendConfig{
			Provider: ProviderModelServer,
			Model:    "sentence-transformers/all-MiniLM-L6-v2",
		},
		Generator: GeneratorConfig{
			BackendConfig: BackendConfig{Provider: ProviderModelServer, Model: "google/flan-t5-base"},
			Timeout:       60 * time.Second,
		},
		Classifier: ClassifierConfig{
			BackendConfig: BackendConfig{Provider: ProviderModelServer},
		},
		Retrieval: RetrievalConfig{TopK: 3, MinScore: 0.3},
		Memory: MemoryConfig{
			Capacity:      6,
			HistoryWindow: 4,
			MaxSessions:   10000,
			IdleTTL:       30 * time.Minute,
		},
		Rules: RulesConfig{Watch: true},
		Log:   LogConfig{Level: "INFO"},
	}
}

// Load reads a config file over the defaults, then applies environment
// overrides. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getEnv("MEDCHAT_ADDR", cfg.Server.Addr)
	cfg.Knowledge.Path = getEnv("MEDCHAT_KNOWLEDGE_PATH", cfg.Knowledge.Path)
	cfg.Knowledge.CacheDir = getEnv("MEDCHAT_CACHE_DIR", cfg.Knowledge.CacheDir)
	cfg.ModelServer.URL = getEnv("MEDCHAT_MODEL_SERVER_URL", cfg.ModelServer.URL)
	cfg.ModelServer.Script = getEnv("MEDCHAT_MODEL_SERVER_SCRIPT", cfg.ModelServer.Script)

	cfg.Embedding.Provider = getEnv("MEDCHAT_EMBED_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.Model = getEnv("MEDCHAT_EMBED_MODEL", cfg.Embedding.Model)
	cfg.Generator.Provider = getEnv("MEDCHAT_LLM_PROVIDER", cfg.Generator.Provider)
	cfg.Generator.Model = getEnv("MEDCHAT_LLM_MODEL", cfg.Generator.Model)
	cfg.Classifier.Provider = getEnv("MEDCHAT_CLASSIFIER_PROVIDER", cfg.Classifier.Provider)

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		for _, b := range []*BackendConfig{&cfg.Embedding, &cfg.Generator.BackendConfig} {
			if b.Provider == ProviderOllama && b.URL == "" {
				b.URL = host
			}
		}
	}
	for _, b := range []*BackendConfig{&cfg.Embedding, &cfg.Generator.BackendConfig} {
		if b.APIKey != "" {
			continue
		}
		switch b.Provider {
		case ProviderOpenAI:
			b.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			b.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	cfg.Rules.Path = getEnv("MEDCHAT_RULES_PATH", cfg.Rules.Path)
	cfg.Log.Level = getEnv("MEDCHAT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("MEDCHAT_LOG_FILE", cfg.Log.File)
	cfg.Generator.Greedy = getEnvBool("MEDCHAT_GREEDY", cfg.Generator.Greedy)
	cfg.Classifier.ReportConfidence = getEnvBool("MEDCHAT_REPORT_CONFIDENCE", cfg.Classifier.ReportConfidence)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Knowledge.Path != "", "knowledge.path is required")
	check(c.Knowledge.BatchSize > 0, "knowledge.batch_size must be positive")
	check(c.Knowledge.Workers > 0, "knowledge.workers must be positive")
	check(oneOf(c.Embedding.Provider, ProviderModelServer, ProviderOllama, ProviderOpenAI),
		"embedding.provider %q is not supported", c.Embedding.Provider)
	check(oneOf(c.Generator.Provider, ProviderModelServer, ProviderOllama, ProviderOpenAI, ProviderAnthropic),
		"generator.provider %q is not supported", c.Generator.Provider)
	check(oneOf(c.Classifier.Provider, ProviderModelServer, ProviderPrompted),
		"classifier.provider %q is not supported", c.Classifier.Provider)
	check(c.Generator.Timeout >= 0, "generator.timeout must not be negative")
	check(c.Retrieval.TopK > 0, "retrieval.top_k must be positive")
	check(c.Retrieval.MinScore >= -1 && c.Retrieval.MinScore <= 1, "retrieval.min_score must be within [-1, 1]")
	check(c.Memory.Capacity > 0, "memory.capacity must be positive")
	check(c.Memory.HistoryWindow > 0 && c.Memory.HistoryWindow <= c.Memory.Capacity,
		"memory.history_window must be between 1 and memory.capacity")
	for name, b := range map[string]BackendConfig{"embedding": c.Embedding, "generator": c.Generator.BackendConfig} {
		if oneOf(b.Provider, ProviderOpenAI, ProviderAnthropic) {
			check(b.APIKey != "", "%s.api_key is required for provider %q", name, b.Provider)
		}
	}

	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() slog.Level {
	return parseLogLevel(c.Log.Level)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
