// Package config loads docquery settings from defaults, a file and APP_* environment variables.
package config

import "time"

// Config is the complete service configuration.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	HTTP          HTTPConfig          `mapstructure:"http" yaml:"http"`
	Management    ManagementConfig    `mapstructure:"management" yaml:"management"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Query         QueryConfig         `mapstructure:"query" yaml:"query"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" yaml:"rate_limit"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// HTTPConfig configures the public API server.
type HTTPConfig struct {
	Port           int           `mapstructure:"port" yaml:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	MaxRequestSize int64         `mapstructure:"max_request_size" yaml:"max_request_size"`
	// Compression negotiates gzip or brotli for JSON bodies of at least CompressionMinSize bytes.
	Compression        bool `mapstructure:"compression" yaml:"compression"`
	CompressionMinSize int  `mapstructure:"compression_min_size" yaml:"compression_min_size"`
}

// ManagementConfig configures the health and metrics server.
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// DatabaseConfig configures the MongoDB document store.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	DatabaseName   string        `mapstructure:"database_name" yaml:"database_name"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size" yaml:"max_pool_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
	// EnsureIndexes creates the declared collection indexes at startup.
	EnsureIndexes bool `mapstructure:"ensure_indexes" yaml:"ensure_indexes"`
}

// CacheConfig configures the optional Redis result cache.
type CacheConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	URL              string        `mapstructure:"url" yaml:"url"`
	MaxConns         int           `mapstructure:"max_conns" yaml:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	TTL              time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// CircuitBreakerFailures consecutive Redis errors bypass the cache for CircuitBreakerReset.
	CircuitBreakerFailures int           `mapstructure:"circuit_breaker_failures" yaml:"circuit_breaker_failures"`
	CircuitBreakerReset    time.Duration `mapstructure:"circuit_breaker_reset" yaml:"circuit_breaker_reset"`
}

// QueryConfig tunes the query engine.
type QueryConfig struct {
	Separator         string `mapstructure:"separator" yaml:"separator"`
	DefaultMatchMode  string `mapstructure:"default_match_mode" yaml:"default_match_mode"`
	DefaultCollection string `mapstructure:"default_collection" yaml:"default_collection"`
	StrictCollections bool   `mapstructure:"strict_collections" yaml:"strict_collections"`
	MaxRecordsPerSet  int    `mapstructure:"max_records_per_set" yaml:"max_records_per_set"`
}

// RateLimitConfig configures per-client throttling of the public API.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel           string   `mapstructure:"log_level" yaml:"log_level"`
	LogFormat          string   `mapstructure:"log_format" yaml:"log_format"`
	TracingEnabled     bool     `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint    string   `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingSampleRate  float64  `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
	RequestLogging     bool     `mapstructure:"request_logging" yaml:"request_logging"`
	RequestLoggingSkip []string `mapstructure:"request_logging_skip" yaml:"request_logging_skip"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "docquery",
			Environment: "production",
		},
		HTTP: HTTPConfig{
			Port:               8080,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       30 * time.Second,
			IdleTimeout:        120 * time.Second,
			MaxRequestSize:     1 << 20,
			Compression:        true,
			CompressionMinSize: 1024,
		},
		Management: ManagementConfig{
			Enabled:      true,
			Port:         9090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			URL:            "mongodb://localhost:27017",
			DatabaseName:   "docquery",
			MaxPoolSize:    25,
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   10 * time.Second,
			EnsureIndexes:  true,
		},
		Cache: CacheConfig{
			Enabled:          false,
			MaxConns:         10,
			OperationTimeout: 2 * time.Second,
			TTL:              time.Minute,

			CircuitBreakerFailures: 5,
			CircuitBreakerReset:    30 * time.Second,
		},
		Query: QueryConfig{
			Separator:         "-_-",
			DefaultMatchMode:  "Contains",
			DefaultCollection: "users",
			StrictCollections: false,
			MaxRecordsPerSet:  1000,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "json",
			TracingEnabled:     false,
			TracingSampleRate:  1,
			RequestLogging:     true,
			RequestLoggingSkip: []string{"/health", "/ready", "/metrics"},
		},
	}
}
