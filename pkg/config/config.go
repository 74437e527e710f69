package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is where Load looks for the YAML file when no path is given.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for the shopper shelf service.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr        string        `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	Env             string        `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"15s"`
	Version         string        `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional catalog cache)
	Redis RedisConfig `yaml:"redis"`

	// Shelf reconciliation tuning
	Shelf ShelfConfig `yaml:"shelf"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User     string `yaml:"user" env:"PGUSER" env-default:"shelf"`
	Password string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"PGDATABASE" env-default:"shopper_shelf"`
	SSLMode  string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	// Pool tuning
	MaxConnections    int32         `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime" env:"PGMAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time" env:"PGMAX_CONN_IDLE_TIME" env-default:"30m"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period" env:"PGHEALTH_CHECK_PERIOD" env-default:"1m"`
}

// RedisConfig holds Redis configuration. An empty Host disables Redis.
type RedisConfig struct {
	Host       string        `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port       int           `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password   string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB         int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	CatalogTTL time.Duration `yaml:"catalog_ttl" env:"REDIS_CATALOG_TTL" env-default:"24h"`
}

// Enabled reports whether a Redis host is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns host:port, resolving localhost when running inside Docker.
func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(ResolveHostForDocker(c.Host), strconv.Itoa(c.Port))
}

// ShelfConfig holds shelf write settings.
type ShelfConfig struct {
	// InsertBatchSize is the number of new shelf rows buffered before they are
	// sent to the database in one batch.
	InsertBatchSize int `yaml:"insert_batch_size" env:"SHELF_INSERT_BATCH_SIZE" env-default:"50"`
}

// Load reads configuration from path with environment variable overrides.
// When path is empty DefaultConfigPath is used; a missing file at the default
// path falls back to environment variables only.
// The version parameter is injected at build time and set on the returned Config.
func Load(version, path string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, statErr)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks values that cleanenv cannot enforce through tags.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port %q is not a valid TCP port", c.Port)
	}

	if c.Database.MaxConnections <= 0 {
		return errors.New("database.max_connections must be greater than zero")
	}
	if c.Database.MaxConnLifetime < 0 || c.Database.MaxConnIdleTime < 0 || c.Database.HealthCheckPeriod < 0 {
		return errors.New("database pool durations must not be negative")
	}

	if c.Shelf.InsertBatchSize <= 0 {
		return errors.New("shelf.insert_batch_size must be greater than zero")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}

	return nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// IsLocal reports whether the service runs in the local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local"
}

// ConnectionURL returns a PostgreSQL connection URL for pgx.
func (c *DatabaseConfig) ConnectionURL() string {
	u := &url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}
