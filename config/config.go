package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/loveshotsmedia/l3arn-updated/utils"
)

// Config represents the complete application configuration
type Config struct {
	Environment   string `env:"ENVIRONMENT" validate:"required"`
	Server        ServerConfig
	Supabase      SupabaseConfig
	Auth          AuthConfig
	Database      DatabaseConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST"`
	Port            int           `env:"PORT" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" validate:"gt=0"`
	CORSOrigins     []string      `env:"CORS_ORIGINS"`
}

// SupabaseConfig holds the Supabase project endpoints and the service credential used for
// membership lookups.
type SupabaseConfig struct {
	URL            string        `env:"SUPABASE_URL" validate:"required,url"`
	ServiceRoleKey string        `env:"SUPABASE_SERVICE_ROLE_KEY"`
	JWKSURL        string        `env:"SUPABASE_JWKS_URL" validate:"required,url"`
	StoreTimeout   time.Duration `env:"STORE_HTTP_TIMEOUT" validate:"gt=0"`
}

// AuthConfig holds token verification settings
type AuthConfig struct {
	Audience          string        `env:"JWT_AUDIENCE" validate:"required"`
	AllowedAlgorithms []string      `env:"JWT_ALLOWED_ALGORITHMS" validate:"min=1,dive,oneof=RS256 RS384 RS512 PS256 PS384 PS512 ES256 ES384 ES512 HS256 HS384 HS512"`
	JWKSCacheTTL      time.Duration `env:"JWKS_CACHE_TTL_SECONDS" validate:"gt=0"`
	JWKSHTTPTimeout   time.Duration `env:"JWKS_HTTP_TIMEOUT" validate:"gt=0"`
}

// DatabaseConfig holds the PostgreSQL audit database configuration. An empty
// ConnectionString disables persistence and audit events are only logged.
type DatabaseConfig struct {
	ConnectionString string        `env:"DATABASE_URL" validate:"omitempty,url"`
	MaxOpenConns     int           `env:"DB_MAX_OPEN_CONNS" validate:"gte=1"`
	MaxIdleConns     int           `env:"DB_MAX_IDLE_CONNS" validate:"gte=0"`
	ConnMaxLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME"`
}

// AuditConfig holds audit worker pool settings
type AuditConfig struct {
	BufferSize  int `env:"AUDIT_BUFFER_SIZE" validate:"gte=1"`
	WorkerCount int `env:"AUDIT_WORKER_COUNT" validate:"gte=1"`
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" validate:"oneof=json text console"`
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (apps/api/.env when run from the repo root)
	_ = godotenv.Load("apps/api/.env")
	_ = godotenv.Load(".env")

	supabaseURL := strings.TrimRight(getEnv("SUPABASE_URL", "http://localhost:54321"), "/")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigins:     getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		},
		Supabase: SupabaseConfig{
			URL:            supabaseURL,
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWKSURL:        getEnv("SUPABASE_JWKS_URL", supabaseURL+"/auth/v1/.well-known/jwks.json"),
			StoreTimeout:   getEnvAsDuration("STORE_HTTP_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			Audience:          getEnv("JWT_AUDIENCE", "authenticated"),
			AllowedAlgorithms: getEnvAsList("JWT_ALLOWED_ALGORITHMS", []string{"RS256", "HS256"}),
			JWKSCacheTTL:      time.Duration(getEnvAsInt("JWKS_CACHE_TTL_SECONDS", 3600)) * time.Second,
			JWKSHTTPTimeout:   getEnvAsDuration("JWKS_HTTP_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			ConnectionString: getEnv("DATABASE_URL", ""),
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Audit: AuditConfig{
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 10000),
			WorkerCount: getEnvAsInt("AUDIT_WORKER_COUNT", 5),
		},
		Observability: ObservabilityConfig{
			LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks field constraints and the rules that only apply in production
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}

	if c.IsProduction() {
		if c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required in production")
		}
		if !c.Database.Enabled() {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		for _, origin := range c.Server.CORSOrigins {
			if origin == "*" {
				return fmt.Errorf("wildcard CORS origin is not allowed in production")
			}
		}
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

// Enabled reports whether a database is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != ""
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return c.ConnectionString
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8000
}

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

// getEnvAsList splits a comma-separated value, dropping blank entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Service identity reported by health checks and logs
const (
	ServiceName = "l3arn-api"
	Version     = "0.1.0"
)
