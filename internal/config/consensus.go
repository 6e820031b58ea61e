package config

import "time"

// ConsensusConfig configures the four-stage pipeline (C9): which profile
// routes stages to model ids, and the retry/backoff policy shared by every
// stage's fact-check retry loop.
type ConsensusConfig struct {
	ActiveProfile string                      `yaml:"active_profile"`
	Profiles      map[string]ConsensusProfile `yaml:"profiles"`
	RetryPolicy   RetryPolicy                 `yaml:"retry_policy"`
}

// ConsensusProfile maps each stage to a model id. Exactly one profile is
// active per process.
type ConsensusProfile struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	GeneratorModel string `yaml:"generator_model"`
	RefinerModel   string `yaml:"refiner_model"`
	ValidatorModel string `yaml:"validator_model"`
	CuratorModel   string `yaml:"curator_model"`
	IsActive       bool   `yaml:"is_active"`
}

// RetryPolicy is the exponential-backoff shape used when a stage retries
// after a fact-check RejectAndRetry/RetryWithEnhancedContext decision, or
// after a Timeout/RateLimited/UpstreamUnavailable error.
type RetryPolicy struct {
	InitialDelayMs  int     `yaml:"initial_delay_ms"`
	MaxDelayMs      int     `yaml:"max_delay_ms"`
	ExponentialBase float64 `yaml:"exponential_base"`
	MaxRetries      int     `yaml:"max_retries"`

	// PerCallTimeout bounds one streaming attempt against the model
	// gateway; fact-checking and the rest of a stage's post-processing run
	// outside it. Large-context models can legitimately take minutes, so
	// this needs to be set well above typical p99 latency rather than left
	// at an HTTP-client default.
	PerCallTimeout time.Duration `yaml:"per_call_timeout"`

	// RateLimitDelay is the minimum spacing enforced between the starts of
	// consecutive model calls made by one Pipeline, whichever model they
	// target, independent of the backoff applied
	// after an actual RateLimited error.
	RateLimitDelay time.Duration `yaml:"rate_limit_delay"`
}

// DefaultRetryPolicy returns a retry policy tuned for large-context model
// calls: generous per-call timeout, short initial backoff, capped retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelayMs:  1000,
		MaxDelayMs:      30000,
		ExponentialBase: 2.0,
		MaxRetries:      3,
		PerCallTimeout:  10 * time.Minute,
		RateLimitDelay:  600 * time.Millisecond,
	}
}

// FactCheckConfig parameterizes the fact checker (C6).
type FactCheckConfig struct {
	Tolerance float64 `yaml:"tolerance"`
}

// ContextInjectorConfig parameterizes the context injector (C7).
type ContextInjectorConfig struct {
	MaxFactsPerStage   int     `yaml:"max_facts_per_stage"`
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
	TemporalWindowDays int     `yaml:"temporal_window_days"`
}

// LearnerConfig parameterizes the continuous learner (C10).
type LearnerConfig struct {
	RecentCacheSize int `yaml:"recent_cache_size"`
}

// PrecedentConfig parameterizes the operation precedent analyzer (C11).
type PrecedentConfig struct {
	MaxPrecedents       int     `yaml:"max_precedents"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TrendMinDataPoints  int     `yaml:"trend_min_data_points"`
}

// QualityGateConfig holds quality gate settings (C13). The evaluator in
// internal/quality does not read DisabledGates or DefaultFailureAction:
// every registered gate runs with its own action. The gate registry itself
// is data, not config — see internal/quality/gates.go.
type QualityGateConfig struct {
	DisabledGates        []string `yaml:"disabled_gates"`
	DefaultFailureAction string   `yaml:"default_failure_action"`
}

// PreProcessorConfig parameterizes the autonomous pre-processor (C12).
type PreProcessorConfig struct {
	ComplexityRouteThreshold float64 `yaml:"complexity_route_threshold"`
}

// StoreConfig configures the DB actor's backing SQLite handle (C1).
// BusyTimeoutMs is not applied: the store always sets a 5000 ms busy
// timeout when it opens the database.
type StoreConfig struct {
	DatabasePath  string `yaml:"database_path"`
	BusyTimeoutMs int    `yaml:"busy_timeout_ms"`
	QueueCapacity int    `yaml:"queue_capacity"`
}

// RepoFactsConfig parameterizes the repository fact extractor (C5): the
// thresholds that derive RepositoryFacts.IsEnterprise, plus the directory
// names skipped while walking the repo root.
type RepoFactsConfig struct {
	EnterpriseModuleThreshold int      `yaml:"enterprise_module_threshold"`
	EnterpriseLOCThreshold    int      `yaml:"enterprise_loc_threshold"`
	SkipDirs                  []string `yaml:"skip_dirs"`
}
