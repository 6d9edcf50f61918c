package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port             string `envconfig:"PORT" default:"8080"`
	AuthToken        string `envconfig:"AUTH_TOKEN"`
	ReadTimeoutSecs  int    `envconfig:"SERVER_READ_TIMEOUT" default:"15"`
	WriteTimeoutSecs int    `envconfig:"SERVER_WRITE_TIMEOUT" default:"15"`
	IdleTimeoutSecs  int    `envconfig:"SERVER_IDLE_TIMEOUT" default:"60"`
	LogMode          string `envconfig:"LOG_MODE" default:"dev"`

	DBURL             string `envconfig:"DB_URL"`
	DBMaxConns        int    `envconfig:"DB_MAX_CONNS" default:"20"`
	DBMinConns        int    `envconfig:"DB_MIN_CONNS" default:"2"`
	DBMaxIdleSecs     int    `envconfig:"DB_MAX_CONN_IDLE_SECS" default:"300"`
	DBMaxLifeSecs     int    `envconfig:"DB_MAX_CONN_LIFETIME_SECS" default:"3600"`
	DBConnTimeoutSecs int    `envconfig:"DB_CONN_TIMEOUT_SECS" default:"10"`
	DBStatementCache  int    `envconfig:"DB_STATEMENT_CACHE_CAPACITY" default:"256"`
	DBTxTimeoutSecs   int    `envconfig:"DB_TX_TIMEOUT_SECS" default:"5"`
	DBTxMaxAttempts   int    `envconfig:"DB_TX_MAX_ATTEMPTS" default:"3"`
	DBAutoMigrate     bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	AuthnMode        string `envconfig:"AUTHN_MODE" default:"local"`
	AuthnURL         string `envconfig:"AUTHN_URL"`
	AuthnAPIKey      string `envconfig:"AUTHN_API_KEY"`
	AuthnTimeoutSecs int    `envconfig:"AUTHN_TIMEOUT_SECS" default:"5"`
	BcryptCost       int    `envconfig:"BCRYPT_COST" default:"10"`

	EventsBackend string `envconfig:"EVENTS_BACKEND" default:"none"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisChannel  string `envconfig:"REDIS_CHANNEL" default:"store-ratings.events"`
	AMQPURL       string `envconfig:"AMQP_URL"`
	AMQPExchange  string `envconfig:"AMQP_EXCHANGE" default:"store-ratings.events"`

	OtelExporter    string  `envconfig:"OTEL_EXPORTER" default:"none"`
	OtelServiceName string  `envconfig:"OTEL_SERVICE_NAME" default:"store-ratings"`
	OtelSampleRatio float64 `envconfig:"OTEL_SAMPLE_RATIO" default:"1"`
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.AuthnMode = strings.ToLower(strings.TrimSpace(cfg.AuthnMode))
	cfg.EventsBackend = strings.ToLower(strings.TrimSpace(cfg.EventsBackend))
	cfg.OtelExporter = strings.ToLower(strings.TrimSpace(cfg.OtelExporter))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDatabase reads only what a database-only tool (migrations, repair) needs.
func LoadDatabase() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validateDatabase(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the whole configuration for the API server.
func (c Config) Validate() error {
	if c.AuthToken == "" {
		return fmt.Errorf("AUTH_TOKEN is required")
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}

	switch c.AuthnMode {
	case "local":
	case "remote":
		if c.AuthnURL == "" {
			return fmt.Errorf("AUTHN_URL is required when AUTHN_MODE=remote")
		}
		if c.AuthnTimeoutSecs <= 0 {
			return fmt.Errorf("AUTHN_TIMEOUT_SECS must be positive")
		}
	default:
		return fmt.Errorf("AUTHN_MODE must be one of local, remote")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	switch c.EventsBackend {
	case "none":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when EVENTS_BACKEND=redis")
		}
	case "amqp":
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when EVENTS_BACKEND=amqp")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be one of none, redis, amqp")
	}

	switch c.OtelExporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("OTEL_EXPORTER must be one of none, stdout, otlp")
	}
	if c.OtelSampleRatio < 0 || c.OtelSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0,1]")
	}
	return nil
}

func (c Config) validateDatabase() error {
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if c.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if c.DBTxTimeoutSecs <= 0 {
		return fmt.Errorf("DB_TX_TIMEOUT_SECS must be positive")
	}
	if c.DBTxMaxAttempts <= 0 {
		return fmt.Errorf("DB_TX_MAX_ATTEMPTS must be positive")
	}
	return nil
}
