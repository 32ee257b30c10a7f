// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Stage names used as keys under "stages".
const (
	StageClassifyIntent = "classify-intent"
	StageStreamResponse = "stream-response"
	StageSearchProducts = "search-products"
	StageScrapePage     = "scrape-page"
	StageExtractFormula = "extract-formula"
	StageSubmitFeedback = "submit-feedback"
	StageRecordTurn     = "record-turn"
)

var defaultStageTimeouts = map[string]int{
	StageClassifyIntent: 10000,
	StageStreamResponse: 120000,
	StageSearchProducts: 10000,
	StageScrapePage:     15000,
	StageExtractFormula: 30000,
	StageSubmitFeedback: 10000,
	StageRecordTurn:     3000,
}

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// PROVIDERS_OPENAI_API_KEY overrides providers.openai.api_key
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and nothing read
// from disk. Used by the chat CLI and by tests.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	overrideEmptyConfig(cfg)
	return cfg
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills credentials from the conventional provider
// variable names when the config file leaves them blank.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.Providers.Gemini.APIKey, "GEMINI_API_KEY")
	setIfEmpty(&cfg.Providers.Gemini.APIKey, "GOOGLE_API_KEY")
	setIfEmpty(&cfg.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setIfEmpty(&cfg.Search.APIKey, "SEARCHAPI_API_KEY")
	setIfEmpty(&cfg.Scraper.APIKey, "JINA_API_KEY")
	setIfEmpty(&cfg.Feedback.FormspreeURL, "FORMSPREE_URL")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.AWS.Region, "AWS_REGION")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "shopping-assistant"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.HealthPort == 0 {
		cfg.Server.HealthPort = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}

	if cfg.Providers.OpenAI.BaseURL == "" {
		cfg.Providers.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Providers.Classifier.Provider == "" {
		cfg.Providers.Classifier.Provider = "openai"
	}
	if cfg.Providers.Classifier.Model == "" {
		cfg.Providers.Classifier.Model = "gpt-4o-mini"
	}
	if cfg.Providers.Extractor.Provider == "" {
		cfg.Providers.Extractor.Provider = "openai"
	}
	if cfg.Providers.Extractor.Model == "" {
		cfg.Providers.Extractor.Model = "gpt-4o-mini"
	}

	if cfg.Search.Backend == "" {
		cfg.Search.Backend = "searchapi"
	}
	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = "https://www.searchapi.io/api/v1/search"
	}
	if cfg.Search.Engine == "" {
		cfg.Search.Engine = "google_shopping"
	}
	if cfg.Search.Location == "" {
		cfg.Search.Location = "California,United States"
	}

	if cfg.Scraper.BaseURL == "" {
		cfg.Scraper.BaseURL = "https://r.jina.ai/"
	}
	if cfg.Scraper.MaxBytes == 0 {
		cfg.Scraper.MaxBytes = 64 << 10
	}

	if cfg.Enrichment.MaxResults == 0 {
		cfg.Enrichment.MaxResults = 4
	}
	if cfg.Enrichment.Concurrency == 0 {
		cfg.Enrichment.Concurrency = cfg.Enrichment.MaxResults
	}
	if cfg.Enrichment.PlaceholderFormula == "" {
		cfg.Enrichment.PlaceholderFormula = "Formula unavailable"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "products"
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}

	if cfg.Feedback.Sink == "" {
		cfg.Feedback.Sink = "log"
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	if cfg.Stages == nil {
		cfg.Stages = make(map[string]StageConfig)
	}
	for name, timeout := range defaultStageTimeouts {
		if _, ok := cfg.Stages[name]; !ok {
			cfg.Stages[name] = StageConfig{Enabled: true, Timeout: timeout}
		}
	}
	for key, stage := range cfg.Stages {
		if stage.Timeout == 0 {
			stage.Timeout = 30000
		}
		cfg.Stages[key] = stage
	}
}

// validateConfig validates critical configuration fields. Provider and
// search credentials are checked where they are used, not here.
func validateConfig(cfg *Config) error {
	switch cfg.Search.Backend {
	case "searchapi", "elasticsearch":
	default:
		return fmt.Errorf("search.backend must be searchapi or elasticsearch, got %q", cfg.Search.Backend)
	}

	if cfg.Search.Backend == "elasticsearch" && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch search backend")
	}

	if cfg.Enrichment.MaxResults < 0 {
		return fmt.Errorf("enrichment.max_results must not be negative")
	}

	switch cfg.Feedback.Sink {
	case "formspree", "ses", "sns", "log":
	default:
		return fmt.Errorf("feedback.sink must be one of formspree, ses, sns, log, got %q", cfg.Feedback.Sink)
	}

	if cfg.Database.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required when postgres is enabled")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required when postgres is enabled")
		}
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetStageConfig retrieves stage-specific configuration with fallback to defaults
func GetStageConfig(cfg *Config, stage string) StageConfig {
	if s, exists := cfg.Stages[stage]; exists {
		return s
	}

	timeout, ok := defaultStageTimeouts[stage]
	if !ok {
		timeout = 30000
	}
	return StageConfig{
		Enabled: true,
		Timeout: timeout,
	}
}

// IsStageEnabled checks if a specific stage is enabled
func IsStageEnabled(cfg *Config, stage string) bool {
	if s, exists := cfg.Stages[stage]; exists {
		return s.Enabled
	}
	return true
}
