package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/query"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Service.Name) == "" {
		add("service.name is required")
	}
	if !validPort(c.HTTP.Port) {
		add("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.CompressionMinSize < 0 {
		add("http.compression_min_size must not be negative, got %d", c.HTTP.CompressionMinSize)
	}
	if c.Management.Enabled {
		if !validPort(c.Management.Port) {
			add("management.port must be between 1 and 65535, got %d", c.Management.Port)
		}
		if c.Management.Port == c.HTTP.Port {
			add("management.port must differ from http.port")
		}
	}

	if c.Database.URL == "" {
		add("database.url is required")
	}
	if c.Database.DatabaseName == "" {
		add("database.database_name is required")
	}
	if c.Database.ConnectTimeout <= 0 {
		add("database.connect_timeout must be positive")
	}
	if c.Database.QueryTimeout < 0 {
		add("database.query_timeout cannot be negative")
	}

	if c.Cache.Enabled {
		if c.Cache.URL == "" {
			add("cache.url is required when cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			add("cache.ttl must be positive when cache is enabled")
		}
		if c.Cache.CircuitBreakerFailures < 1 {
			add("cache.circuit_breaker_failures must be at least 1")
		}
		if c.Cache.CircuitBreakerReset <= 0 {
			add("cache.circuit_breaker_reset must be positive")
		}
	}

	if c.Query.Separator == "" {
		add("query.separator is required")
	}
	if _, ok := query.ParseMatchMode(c.Query.DefaultMatchMode); !ok {
		names := make([]string, 0, len(query.MatchModes()))
		for _, m := range query.MatchModes() {
			names = append(names, m.String())
		}
		add("query.default_match_mode %q is not one of %s", c.Query.DefaultMatchMode, strings.Join(names, ", "))
	}
	if c.Query.DefaultCollection == "" && !c.Query.StrictCollections {
		add("query.default_collection is required unless query.strict_collections is set")
	}
	if c.Query.MaxRecordsPerSet < 0 {
		add("query.max_records_per_set cannot be negative")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			add("rate_limit.requests_per_second must be positive")
		}
		if c.RateLimit.Burst < 1 {
			add("rate_limit.burst must be at least 1")
		}
	}

	if _, err := logger.ParseLogLevel(c.Observability.LogLevel); err != nil {
		add("observability.log_level: %v", err)
	}
	if _, err := logger.ParseLogFormat(c.Observability.LogFormat); err != nil {
		add("observability.log_format: %v", err)
	}
	if c.Observability.TracingEnabled && c.Observability.TracingEndpoint == "" {
		add("observability.tracing_endpoint is required when tracing is enabled")
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		add("observability.tracing_sample_rate must be between 0 and 1")
	}

	return errors.Join(errs...)
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}
