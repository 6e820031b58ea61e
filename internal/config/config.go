package config

import (
	"consensuscore/internal/embedding"
	"consensuscore/internal/logging"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all consensus-core configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// ModelGateway configures the provider-agnostic HTTP model gateway
	// that every consensus stage routes completions through.
	ModelGateway ModelGatewayConfig `yaml:"model_gateway"`

	// Consensus configures the four-stage pipeline: which profile is active
	// and the retry/backoff policy shared by every stage.
	Consensus ConsensusConfig `yaml:"consensus"`

	// FactCheck configures the fact-checking tolerance (C6).
	FactCheck FactCheckConfig `yaml:"fact_check"`

	// ContextInjector configures per-stage fact caps and the relevance
	// floor used when ranking retrieved facts (C7).
	ContextInjector ContextInjectorConfig `yaml:"context_injector"`

	// Learner configures the continuous learner's recent-knowledge cache (C10).
	Learner LearnerConfig `yaml:"learner"`

	// Precedent configures the operation precedent analyzer (C11).
	Precedent PrecedentConfig `yaml:"precedent"`

	// QualityGate holds the disabled-gate list and default failure action
	// (C13); the quality gate evaluator does not read either setting.
	QualityGate QualityGateConfig `yaml:"quality_gate"`

	// PreProcessor configures the autonomous pre-processor's routing threshold (C12).
	PreProcessor PreProcessorConfig `yaml:"preprocessor"`

	// Store configures the DB actor's backing SQLite handle (C1).
	Store StoreConfig `yaml:"store"`

	// RepoFacts configures the repository fact extractor's enterprise
	// thresholds and walk skip-list (C5).
	RepoFacts RepoFactsConfig `yaml:"repo_facts"`

	// Embedding configures the embedding/model service (C4).
	Embedding embedding.Config `yaml:"embedding"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "consensuscore",
		Version: "0.1.0",

		ModelGateway: ModelGatewayConfig{
			Provider: "zai",
			BaseURL:  "https://api.z.ai/api/coding/paas/v4",
			Timeout:  "120s",
		},

		Consensus: ConsensusConfig{
			ActiveProfile: "default",
			Profiles: map[string]ConsensusProfile{
				"default": {
					ID:             "default",
					Name:           "default",
					GeneratorModel: "glm-4.7",
					RefinerModel:   "glm-4.7",
					ValidatorModel: "glm-4.7",
					CuratorModel:   "glm-4.7",
					IsActive:       true,
				},
			},
			RetryPolicy: RetryPolicy{
				InitialDelayMs:  500,
				MaxDelayMs:      10000,
				ExponentialBase: 2.0,
				MaxRetries:      3,
				PerCallTimeout:  10 * time.Minute,
				RateLimitDelay:  600 * time.Millisecond,
			},
		},

		FactCheck: FactCheckConfig{
			Tolerance: 0.2,
		},

		ContextInjector: ContextInjectorConfig{
			MaxFactsPerStage:   10,
			RelevanceThreshold: 0.7,
			TemporalWindowDays: 30,
		},

		Learner: LearnerConfig{
			RecentCacheSize: 100,
		},

		Precedent: PrecedentConfig{
			MaxPrecedents:       10,
			SimilarityThreshold: 0.3,
			TrendMinDataPoints:  10,
		},

		QualityGate: QualityGateConfig{
			DefaultFailureAction: "Warn",
		},

		PreProcessor: PreProcessorConfig{
			ComplexityRouteThreshold: 0.7,
		},

		Store: StoreConfig{
			DatabasePath:  "data/consensus.db",
			BusyTimeoutMs: 5000,
			QueueCapacity: 256,
		},

		RepoFacts: RepoFactsConfig{
			EnterpriseModuleThreshold: 25,
			EnterpriseLOCThreshold:    50000,
			SkipDirs:                  []string{".git", ".nerd", "node_modules", "vendor", "dist", "build", "target"},
		},

		Embedding: embedding.DefaultConfig(),

		Logging: LoggingConfig{
			Level: "info",
			File:  "consensuscore.log",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("Loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("Config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		logging.BootError("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logging.BootError("Failed to parse config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("Config loaded: provider=%s profile=%s", cfg.ModelGateway.Provider, cfg.Consensus.ActiveProfile)

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ZAI_API_KEY"); key != "" {
		c.ModelGateway.APIKey = key
		if c.ModelGateway.Provider == "" {
			c.ModelGateway.Provider = "zai"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.ModelGateway.APIKey = key
		c.ModelGateway.Provider = "anthropic"
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.ModelGateway.APIKey = key
		c.ModelGateway.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.ModelGateway.APIKey = key
		c.ModelGateway.Provider = "gemini"
	}
	if key := os.Getenv("XAI_API_KEY"); key != "" {
		c.ModelGateway.APIKey = key
		c.ModelGateway.Provider = "xai"
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.ModelGateway.APIKey = key
		c.ModelGateway.Provider = "openrouter"
	}

	if path := os.Getenv("CONSENSUSCORE_DB"); path != "" {
		c.Store.DatabasePath = path
	}

	if key := os.Getenv("GENAI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" || c.Embedding.Provider == "ollama" {
			c.Embedding.Provider = "genai"
		}
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}
	if model := os.Getenv("OLLAMA_EMBEDDING_MODEL"); model != "" {
		c.Embedding.OllamaModel = model
	}
}

// GetModelGatewayTimeout returns the model gateway's HTTP timeout as a duration.
func (c *Config) GetModelGatewayTimeout() time.Duration {
	d, err := time.ParseDuration(c.ModelGateway.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetActiveProfile returns the currently active consensus profile, falling
// back to the first profile found if the configured active id is missing.
func (c *Config) GetActiveProfile() (ConsensusProfile, error) {
	if p, ok := c.Consensus.Profiles[c.Consensus.ActiveProfile]; ok {
		return p, nil
	}
	for _, p := range c.Consensus.Profiles {
		return p, nil
	}
	return ConsensusProfile{}, fmt.Errorf("no consensus profile configured")
}

// ValidProviders lists all supported model gateway providers.
var ValidProviders = []string{"zai", "anthropic", "openai", "gemini", "xai", "openrouter"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ModelGateway.APIKey == "" {
		return fmt.Errorf("model gateway API key not configured (set ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY, XAI_API_KEY, or ZAI_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.ModelGateway.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid model gateway provider: %s (valid: %v)", c.ModelGateway.Provider, ValidProviders)
	}

	if c.FactCheck.Tolerance < 0 || c.FactCheck.Tolerance > 1 {
		return fmt.Errorf("fact_check.tolerance must be in [0,1], got %f", c.FactCheck.Tolerance)
	}
	if c.ContextInjector.MaxFactsPerStage < 1 {
		return fmt.Errorf("context_injector.max_facts_per_stage must be >= 1")
	}
	if c.ContextInjector.RelevanceThreshold < 0 || c.ContextInjector.RelevanceThreshold > 1 {
		return fmt.Errorf("context_injector.relevance_threshold must be in [0,1]")
	}

	return nil
}
