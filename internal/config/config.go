package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Base URL advertised to clients
	ServerURL string

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug bool

	// Token signing configuration
	JWT JWTConfig

	// Role cache configuration
	RoleCache RoleCacheConfig

	// Interval between outbox relay polls
	OutboxRelayInterval time.Duration

	// Enforce admin-API authorization with the live enforcer.
	// Disable only for bootstrap scenarios where no policies exist yet.
	AuthzEnabled bool

	// OpenTelemetry configuration
	Observability ObservabilityConfig
}

// JWTConfig holds the HS256 signing material for the token service.
// Access and refresh tokens use distinct secrets so a leaked access
// secret cannot mint refresh tokens.
type JWTConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// RoleCacheConfig selects and parameterizes the role cache adapter.
// An empty RedisURL selects the in-process adapter.
type RoleCacheConfig struct {
	// Key prefix for cache entries; entries are stored at {KeyPrefix}{uid}
	KeyPrefix string

	// redis:// connection URL; empty means in-memory
	RedisURL string

	// Maximum entries held by the in-memory adapter
	Size int
}

// ObservabilityConfig holds OpenTelemetry export settings.
// Telemetry is disabled (noop) when OTLPEndpoint is empty.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPProtocol   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// Load reads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", "authplane.db"),
		ServerAddr:       getEnv("SERVER_ADDR", "localhost:8080"),
		ServerURL:        getEnv("SERVER_URL", "http://localhost:8080"),
		MaxDBConnections: getEnvInt("MAX_DB_CONNECTIONS", 25),
		Debug:            getEnvBool("DEBUG", false),
		JWT: JWTConfig{
			AccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
			AccessTTL:     time.Duration(getEnvInt("JWT_ACCESS_TTL_SECONDS", 7200)) * time.Second,
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
			RefreshTTL:    time.Duration(getEnvInt("JWT_REFRESH_TTL_SECONDS", 604800)) * time.Second,
		},
		RoleCache: RoleCacheConfig{
			KeyPrefix: getEnv("ROLE_CACHE_KEY_PREFIX", "auth:token:"),
			RedisURL:  getEnv("ROLE_CACHE_URL", ""),
			Size:      getEnvInt("ROLE_CACHE_SIZE", 4096),
		},
		OutboxRelayInterval: getEnvDuration("OUTBOX_RELAY_INTERVAL", 5*time.Second),
		AuthzEnabled:        getEnvBool("ENFORCER_AUTHZ_ENABLED", true),
		Observability: ObservabilityConfig{
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPProtocol:   getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf"),
			OTLPInsecure:   getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "authplane"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("OTEL_ENVIRONMENT", "development"),
		},
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWT.AccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	if cfg.JWT.RefreshSecret == "" {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if cfg.JWT.AccessSecret == cfg.JWT.RefreshSecret {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ: refresh tokens require a distinct signing secret")
	}

	if cfg.JWT.AccessTTL <= 0 || cfg.JWT.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive (JWT_ACCESS_TTL_SECONDS=%d, JWT_REFRESH_TTL_SECONDS=%d)",
			int(cfg.JWT.AccessTTL.Seconds()), int(cfg.JWT.RefreshTTL.Seconds()))
	}

	if cfg.RoleCache.RedisURL != "" && !strings.HasPrefix(cfg.RoleCache.RedisURL, "redis://") && !strings.HasPrefix(cfg.RoleCache.RedisURL, "rediss://") {
		return nil, fmt.Errorf("ROLE_CACHE_URL must be a redis:// or rediss:// URL, got %q", cfg.RoleCache.RedisURL)
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go syntax, e.g. "30s")
// or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
