package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Backend       BackendConfig
	Cache         CacheConfig
	Retrieval     RetrievalConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// BackendConfig holds configuration for the external retrieval backend.
// The structured protocol speaks the backend's declarative SQL surface;
// the procedural protocol calls its predictor endpoints over HTTP.
type BackendConfig struct {
	Structured StructuredBackendConfig
	Procedural ProceduralBackendConfig
}

// StructuredBackendConfig configures the declarative query client
type StructuredBackendConfig struct {
	DSN             string // From BACKEND_DATABASE_URL
	Timeout         time.Duration
	Preordered      bool // whether the backend returns rows pre-ranked
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ProceduralBackendConfig configures the predictor-invocation client
type ProceduralBackendConfig struct {
	BaseURL    string
	Capability string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// CacheConfig holds retrieval response cache configuration.
// TTLs are protocol-specific: structured results tolerate more staleness
// than procedural predictions.
type CacheConfig struct {
	MaxEntries      int
	StructuredTTL   time.Duration
	ProceduralTTL   time.Duration
	CleanupInterval time.Duration
}

// RetrievalConfig holds request defaulting and grounding configuration
type RetrievalConfig struct {
	DefaultLimit      int
	DefaultThreshold  float64
	GroundingBaseline float64 // minimum grounding score for a pass when no threshold is requested
	StopWordsEnabled  bool
}

// AuthConfig holds tenant token validation configuration
type AuthConfig struct {
	TokenSecret string
	TokenIssuer string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Backend: BackendConfig{
			Structured: StructuredBackendConfig{
				DSN:             getEnv("BACKEND_DATABASE_URL", ""),
				Timeout:         getEnvAsDuration("STRUCTURED_TIMEOUT", 5*time.Second),
				Preordered:      getEnvAsBool("STRUCTURED_PREORDERED", false),
				MaxOpenConns:    getEnvAsInt("BACKEND_DB_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    getEnvAsInt("BACKEND_DB_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: getEnvAsDuration("BACKEND_DB_CONN_MAX_LIFETIME", 5*time.Minute),
			},
			Procedural: ProceduralBackendConfig{
				BaseURL:    getEnv("BACKEND_BASE_URL", "http://localhost:9090"),
				Capability: getEnv("BACKEND_CAPABILITY", "semantic-retrieval"),
				Timeout:    getEnvAsDuration("PROCEDURAL_TIMEOUT", 10*time.Second),
				MaxRetries: getEnvAsInt("PROCEDURAL_MAX_RETRIES", 2),
				RetryDelay: getEnvAsDuration("PROCEDURAL_RETRY_DELAY", 500*time.Millisecond),
			},
		},
		Cache: CacheConfig{
			MaxEntries:      getEnvAsInt("CACHE_MAX_ENTRIES", 1000),
			StructuredTTL:   getEnvAsDuration("STRUCTURED_CACHE_TTL", 5*time.Minute),
			ProceduralTTL:   getEnvAsDuration("PROCEDURAL_CACHE_TTL", 1*time.Minute),
			CleanupInterval: getEnvAsDuration("CACHE_CLEANUP_INTERVAL", 1*time.Minute),
		},
		Retrieval: RetrievalConfig{
			DefaultLimit:      getEnvAsInt("DEFAULT_LIMIT", 10),
			DefaultThreshold:  getEnvAsFloat("DEFAULT_RELEVANCE_THRESHOLD", 0),
			GroundingBaseline: getEnvAsFloat("GROUNDING_BASELINE", 0.25),
			StopWordsEnabled:  getEnvAsBool("STOP_WORDS_ENABLED", true),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("AUTH_TOKEN_SECRET", ""),
			TokenIssuer: getEnv("AUTH_TOKEN_ISSUER", "semantic-retrieval"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Backend.Procedural.BaseURL == "" {
		return fmt.Errorf("backend base URL is required: set BACKEND_BASE_URL")
	}
	if _, err := url.Parse(c.Backend.Procedural.BaseURL); err != nil {
		return fmt.Errorf("invalid backend base URL: %w", err)
	}

	if c.Retrieval.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be positive")
	}
	if c.Retrieval.DefaultThreshold < 0 || c.Retrieval.DefaultThreshold > 1 {
		return fmt.Errorf("default relevance threshold must be in [0,1]")
	}
	if c.Retrieval.GroundingBaseline < 0 || c.Retrieval.GroundingBaseline > 1 {
		return fmt.Errorf("grounding baseline must be in [0,1]")
	}

	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive")
	}

	// Auth validation (required in production)
	if c.IsProduction() && c.Auth.TokenSecret == "" {
		return fmt.Errorf("auth token secret is required in production")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogString returns a safe string for logging (no password)
func (c *StructuredBackendConfig) LogString() string {
	if c.DSN == "" {
		return "structured backend not configured"
	}
	u, err := url.Parse(c.DSN)
	if err != nil {
		return "host=<from BACKEND_DATABASE_URL>"
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	db := strings.TrimPrefix(u.Path, "/")
	return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
