package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Dataset backends
const (
	DatasetFile          = "file"
	DatasetElasticsearch = "elasticsearch"
	DatasetPostgres      = "postgres"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// envFile is read before the environment is bound; variables already set win
const envFile = ".env"

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Dataset    DatasetConfig
	Cache      CacheConfig
	TextGen    TextGenConfig
	Scoring    ScoringConfig
	Categories map[string]CategoryConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// DatasetConfig selects and configures the location dataset
type DatasetConfig struct {
	Type          string              `mapstructure:"type"` // "file", "elasticsearch" or "postgres"
	FilePath      string              `mapstructure:"file_path"`
	FetchTimeout  time.Duration       `mapstructure:"fetch_timeout"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
}

// ElasticsearchConfig holds Elasticsearch connection settings
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// TextGenConfig holds the narrative text-generation provider configuration
type TextGenConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"` // 0 derives it from requests_per_second
	MaxRetries        int           `mapstructure:"max_retries"`
}

// ScoringConfig holds recommendation scoring configuration
type ScoringConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	DefaultTopK      int           `mapstructure:"default_top_k"`
	MaxTopK          int           `mapstructure:"max_top_k"`
	CostPerRentPoint float64       `mapstructure:"cost_per_rent_point"`
	Weights          WeightsConfig `mapstructure:"weights"`
}

// WeightsConfig holds the weights of the three score terms
type WeightsConfig struct {
	Demand        float64 `mapstructure:"demand"`
	Affordability float64 `mapstructure:"affordability"`
	Demographic   float64 `mapstructure:"demographic"`
}

// CategoryConfig overrides the demand profile of one category
type CategoryConfig struct {
	FootTraffic              float64 `mapstructure:"foot_traffic"`
	Competition              float64 `mapstructure:"competition"`
	RentAffordability        float64 `mapstructure:"rent_affordability"`
	CompetitorHalfSaturation float64 `mapstructure:"competitor_half_saturation"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", envFile, err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/sitelens/")

	// SITELENS_DATASET_FILE_PATH -> dataset.file_path
	v.SetEnvPrefix("SITELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults are enough
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
// Every key that may come from the environment needs a default so AutomaticEnv can bind it.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.request_timeout", "15s")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Dataset defaults
	v.SetDefault("dataset.type", DatasetFile)
	v.SetDefault("dataset.file_path", "data/locations.json")
	v.SetDefault("dataset.fetch_timeout", "5s")
	v.SetDefault("dataset.elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("dataset.elasticsearch.index", "sitelens-locations")
	v.SetDefault("dataset.elasticsearch.username", "")
	v.SetDefault("dataset.elasticsearch.password", "")
	v.SetDefault("dataset.postgres.dsn", "")

	// Cache defaults
	v.SetDefault("cache.type", CacheMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "5m")

	// Text generation defaults (disabled: narratives are local summaries)
	v.SetDefault("textgen.enabled", false)
	v.SetDefault("textgen.base_url", "https://api.openai.com")
	v.SetDefault("textgen.api_key", "")
	v.SetDefault("textgen.model", "gpt-4o-mini")
	v.SetDefault("textgen.timeout", "3s")
	v.SetDefault("textgen.max_tokens", 256)
	v.SetDefault("textgen.temperature", 0.3)
	v.SetDefault("textgen.requests_per_second", 2)
	v.SetDefault("textgen.burst", 0)
	v.SetDefault("textgen.max_retries", 2)

	// Scoring defaults
	v.SetDefault("scoring.concurrency", 8)
	v.SetDefault("scoring.default_top_k", 5)
	v.SetDefault("scoring.max_top_k", 50)
	v.SetDefault("scoring.cost_per_rent_point", 100_000_000)
	v.SetDefault("scoring.weights.demand", 0.5)
	v.SetDefault("scoring.weights.affordability", 0.2)
	v.SetDefault("scoring.weights.demographic", 0.3)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if f := config.Log.Format; f != "json" && f != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got: %s", f)
	}

	switch config.Dataset.Type {
	case DatasetFile:
		if config.Dataset.FilePath == "" {
			return fmt.Errorf("dataset file path is required when dataset type is 'file'")
		}
	case DatasetElasticsearch:
		if len(config.Dataset.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("elasticsearch addresses are required when dataset type is 'elasticsearch'")
		}
	case DatasetPostgres:
		if config.Dataset.Postgres.DSN == "" {
			return fmt.Errorf("postgres DSN is required when dataset type is 'postgres' (set SITELENS_DATASET_POSTGRES_DSN)")
		}
	default:
		return fmt.Errorf("dataset type must be 'file', 'elasticsearch' or 'postgres', got: %s", config.Dataset.Type)
	}

	if config.Cache.Type != CacheMemory && config.Cache.Type != CacheRedis {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == CacheRedis && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.TextGen.Burst < 0 {
		return fmt.Errorf("textgen burst must not be negative, got: %d", config.TextGen.Burst)
	}
	if config.TextGen.Enabled && config.TextGen.BaseURL == "" {
		return fmt.Errorf("textgen base URL is required when text generation is enabled")
	}

	s := config.Scoring
	if s.Concurrency < 1 {
		return fmt.Errorf("scoring concurrency must be at least 1, got: %d", s.Concurrency)
	}
	if s.DefaultTopK < 1 || s.MaxTopK < s.DefaultTopK {
		return fmt.Errorf("scoring top_k must satisfy 1 <= default_top_k <= max_top_k, got: %d and %d", s.DefaultTopK, s.MaxTopK)
	}
	w := s.Weights
	if w.Demand < 0 || w.Affordability < 0 || w.Demographic < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if sum := w.Demand + w.Affordability + w.Demographic; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1, got: %v", sum)
	}

	if config.RateLimit.PerIP < 1 {
		return fmt.Errorf("rate limit per IP must be at least 1, got: %d", config.RateLimit.PerIP)
	}

	return nil
}

// loadEnvFile exports the variables of .env in the working directory.
// A missing file is not an error. Existing environment variables are never overridden.
func loadEnvFile() error {
	if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}
