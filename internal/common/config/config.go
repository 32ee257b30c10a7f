// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig              `mapstructure:"app"`
	Server        ServerConfig           `mapstructure:"server"`
	Providers     ProvidersConfig        `mapstructure:"providers"`
	Search        SearchConfig           `mapstructure:"search"`
	Scraper       ScraperConfig          `mapstructure:"scraper"`
	Enrichment    EnrichmentConfig       `mapstructure:"enrichment"`
	Database      DatabaseConfig         `mapstructure:"database"`
	Feedback      FeedbackConfig         `mapstructure:"feedback"`
	AWS           AWSConfig              `mapstructure:"aws"`
	Stages        map[string]StageConfig `mapstructure:"stages"`
	Logging       LoggingConfig          `mapstructure:"logging"`
	Observability ObservabilityConfig    `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	HealthPort      int      `mapstructure:"health_port"`
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // milliseconds, 0 disables (streams)
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	MaxBodyBytes    int64    `mapstructure:"max_body_bytes"`
}

// --- LLM providers ---

type ProvidersConfig struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`

	// ModesFile overrides the embedded mode table when set.
	ModesFile  string      `mapstructure:"modes_file"`
	Classifier ModelChoice `mapstructure:"classifier"`
	Extractor  ModelChoice `mapstructure:"extractor"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// ModelChoice names a provider and model for a non-streaming helper call.
type ModelChoice struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

// --- Enrichment pipeline ---

type SearchConfig struct {
	Backend  string `mapstructure:"backend"` // searchapi | elasticsearch
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Engine   string `mapstructure:"engine"`
	Location string `mapstructure:"location"`
}

type ScraperConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	MaxBytes int64  `mapstructure:"max_bytes"`
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds, 0 disables caching
}

type EnrichmentConfig struct {
	MaxResults         int    `mapstructure:"max_results"`
	Concurrency        int    `mapstructure:"concurrency"`
	PlaceholderFormula string `mapstructure:"placeholder_formula"`
	DropFailedHits     bool   `mapstructure:"drop_failed_hits"`
}

// --- Storage ---

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// --- Feedback ---

// FeedbackConfig selects where submit-feedback delivers messages.
type FeedbackConfig struct {
	Sink         string `mapstructure:"sink"` // formspree | ses | sns | log
	FormspreeURL string `mapstructure:"formspree_url"`
	SES          struct {
		From string `mapstructure:"from"`
		To   string `mapstructure:"to"`
	} `mapstructure:"ses"`
	SNS struct {
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// StageConfig holds the settings applicable to every pipeline stage.
type StageConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Timeout    int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"` // stdout | stderr | file path
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	ServiceName    string `mapstructure:"service_name"`
}
