package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for queryforge-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL, engine metadata store)
	Database DatabaseConfig `yaml:"database"`

	// LLM endpoints and models
	LLM LLMConfig `yaml:"llm"`

	// Schema retrieval tuning
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Execute/validate/repair loop tuning
	Optimizer OptimizerConfig `yaml:"optimizer"`

	// Conversation context tuning
	Context ContextConfig `yaml:"context"`

	// KeywordsPath optionally points to a YAML file overriding the built-in
	// intent/entity keyword tables (for localization).
	KeywordsPath string `yaml:"keywords_path" env:"KEYWORDS_PATH" env-default:""`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"queryforge"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"queryforge_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	// Provider selects the client implementation: "openai" (any
	// OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL  string `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	// Embeddings are always served by an OpenAI-compatible endpoint.
	EmbeddingBaseURL string `yaml:"embedding_base_url" env:"EMBEDDING_BASE_URL" env-default:""`
	EmbeddingModel   string `yaml:"embedding_model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
}

// EffectiveEmbeddingBaseURL falls back to the LLM base URL when no dedicated
// embedding endpoint is configured.
func (c *LLMConfig) EffectiveEmbeddingBaseURL() string {
	if c.EmbeddingBaseURL != "" {
		return c.EmbeddingBaseURL
	}
	return c.BaseURL
}

// RetrievalConfig holds schema linking defaults. The zero-value defaults
// reproduce the documented retrieval behavior; override with care.
type RetrievalConfig struct {
	// RelevanceThreshold is the starting minimum similarity score.
	RelevanceThreshold float64 `yaml:"relevance_threshold" env:"RETRIEVAL_RELEVANCE_THRESHOLD" env-default:"0.7"`
	// ThresholdFloor is the lowest threshold the descent may query at.
	ThresholdFloor float64 `yaml:"threshold_floor" env:"RETRIEVAL_THRESHOLD_FLOOR" env-default:"0.4"`
	// ThresholdStep is subtracted from the threshold on each descent.
	ThresholdStep float64 `yaml:"threshold_step" env:"RETRIEVAL_THRESHOLD_STEP" env-default:"0.1"`
	// MaxTables is the vector search result limit per probe.
	MaxTables int `yaml:"max_tables" env:"RETRIEVAL_MAX_TABLES" env-default:"5"`
	// MinTablesRequired is the minimum resolved set size before descending.
	MinTablesRequired int `yaml:"min_tables_required" env:"RETRIEVAL_MIN_TABLES_REQUIRED" env-default:"1"`
	// MaxRelatedTables caps total additions from relationship expansion.
	MaxRelatedTables int `yaml:"max_related_tables" env:"RETRIEVAL_MAX_RELATED_TABLES" env-default:"10"`
}

// OptimizerConfig holds feedback loop defaults.
type OptimizerConfig struct {
	// MaxIterations bounds the execute/validate/repair loop.
	MaxIterations int `yaml:"max_iterations" env:"OPTIMIZER_MAX_ITERATIONS" env-default:"3"`
	// IterationTimeoutSeconds bounds each pass (execution plus repair call).
	IterationTimeoutSeconds int `yaml:"iteration_timeout_seconds" env:"OPTIMIZER_ITERATION_TIMEOUT_SECONDS" env-default:"60"`
}

// ContextConfig holds conversation context defaults.
type ContextConfig struct {
	// MaxTurns bounds per-connection history; oldest turns are evicted first.
	MaxTurns int `yaml:"max_turns" env:"CONTEXT_MAX_TURNS" env-default:"10"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv reads configuration from environment variables only.
// Used by tests and deployments without a config file.
func LoadFromEnv(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate rejects retrieval and loop settings that would break the
// termination guarantees of the threshold descent and the repair loop.
func (c *Config) validate() error {
	if c.Retrieval.ThresholdStep <= 0 {
		return fmt.Errorf("retrieval threshold_step must be positive, got %v", c.Retrieval.ThresholdStep)
	}
	if c.Retrieval.ThresholdFloor > c.Retrieval.RelevanceThreshold {
		return fmt.Errorf("retrieval threshold_floor %v exceeds relevance_threshold %v",
			c.Retrieval.ThresholdFloor, c.Retrieval.RelevanceThreshold)
	}
	if c.Retrieval.MaxTables < 1 {
		return fmt.Errorf("retrieval max_tables must be at least 1, got %d", c.Retrieval.MaxTables)
	}
	if c.Optimizer.MaxIterations < 1 {
		return fmt.Errorf("optimizer max_iterations must be at least 1, got %d", c.Optimizer.MaxIterations)
	}
	if c.Context.MaxTurns < 1 {
		return fmt.Errorf("context max_turns must be at least 1, got %d", c.Context.MaxTurns)
	}
	if c.LLM.Provider != "openai" && c.LLM.Provider != "anthropic" {
		return fmt.Errorf("llm provider must be openai or anthropic, got %q", c.LLM.Provider)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
