package config

import (
	"errors"
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/ecommerce-accounts/pkg/config"
	"github.com/utafrali/ecommerce-accounts/pkg/database"
	"github.com/utafrali/ecommerce-accounts/pkg/tracing"
)

const (
	serviceName        = "accounts-service"
	defaultJWTSecret   = "change-this-to-a-secure-secret"
	minJWTSecretLength = 32
	environmentDevelop = "development"
	minBcryptCost      = 4
	maxBcryptCost      = 31
)

// Config holds all configuration for the accounts service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort            int           `env:"ACCOUNTS_HTTP_PORT" envDefault:"8006"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"15s"`

	// PostgreSQL
	PostgresHost        string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort        int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser        string        `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass        string        `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB          string        `env:"ACCOUNTS_DB_NAME" envDefault:"accounts_db"`
	PostgresSSL         string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns    int32         `env:"POSTGRES_MAX_CONNS" envDefault:"25"`
	PostgresMinConns    int32         `env:"POSTGRES_MIN_CONNS" envDefault:"5"`
	PostgresMaxLifetime time.Duration `env:"POSTGRES_MAX_CONN_LIFETIME" envDefault:"1h"`
	PostgresMaxIdleTime time.Duration `env:"POSTGRES_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryThreshold  time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis; an empty host keeps notification idempotency in memory.
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// SMTP; an empty host logs mail instead of sending it.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@ecommerce.local"`

	// Notification dispatch
	NotifyTimeout      time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"30s"`
	NotifyRetryBackoff time.Duration `env:"NOTIFY_RETRY_BACKOFF" envDefault:"2s"`
	NotifyDedupTTL     time.Duration `env:"NOTIFY_DEDUP_TTL" envDefault:"24h"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	ServiceVersion string  `env:"SERVICE_VERSION" envDefault:"dev"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load accounts config: %w", err)
	}
	return cfg, nil
}

// Validate is called by pkgconfig.Load after parsing.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.BcryptCost < minBcryptCost || c.BcryptCost > maxBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", minBcryptCost, maxBcryptCost, c.BcryptCost)
	}
	if c.JWTExpiry <= 0 {
		return errors.New("JWT_EXPIRY must be positive")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.OTELSampleRate)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if c.Environment != environmentDevelop {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters long, got %d", minJWTSecretLength, len(c.JWTSecret))
		}
	}
	return nil
}

// ServiceName is the name reported in logs, metrics and traces.
func (c *Config) ServiceName() string {
	return serviceName
}

// Postgres returns the pool settings for pkg/database.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.PostgresMaxConns,
		MinConns:        c.PostgresMinConns,
		MaxConnLifetime: c.PostgresMaxLifetime,
		MaxConnIdleTime: c.PostgresMaxIdleTime,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Tracing returns the OpenTelemetry exporter settings.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: c.ServiceVersion,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}
