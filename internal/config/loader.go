package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "tasktimer.yaml"

// EnvConfigFile names the environment variable that overrides DefaultConfigFile.
const EnvConfigFile = "TASKTIMER_CONFIG"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if v := os.Getenv(EnvConfigFile); v != "" {
		path = v
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "TASKTIMER_PORT")
	setString(&cfg.Server.CORSOrigin, "TASKTIMER_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "TASKTIMER_REQUEST_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "TASKTIMER_SHUTDOWN_TIMEOUT")

	setString(&cfg.Storage.Driver, "TASKTIMER_STORAGE_DRIVER")
	setString(&cfg.Storage.Path, "TASKTIMER_DB_PATH")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TASKTIMER_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TASKTIMER_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TASKTIMER_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TASKTIMER_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TASKTIMER_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.Logging.Level, "TASKTIMER_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TASKTIMER_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TASKTIMER_LOG_ASYNC")

	setDuration(&cfg.Timer.TickInterval, "TASKTIMER_TICK_INTERVAL")

	setInt64(&cfg.Cache.L1MaxSizeMB, "TASKTIMER_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "TASKTIMER_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "TASKTIMER_CACHE_L2_TTL")
	setDuration(&cfg.Idempotency.TTL, "TASKTIMER_IDEMPOTENCY_TTL")

	setInt(&cfg.Breaker.MaxFailures, "TASKTIMER_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TASKTIMER_BREAKER_TIMEOUT")

	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTel.Insecure, "TASKTIMER_OTEL_INSECURE")
	setFloat64(&cfg.OTel.SampleRatio, "TASKTIMER_OTEL_SAMPLE_RATIO")

	setBool(&cfg.MCP.Enabled, "TASKTIMER_MCP_ENABLED")
	setString(&cfg.MCP.Path, "TASKTIMER_MCP_PATH")
	setString(&cfg.MCP.APIKey, "TASKTIMER_MCP_API_KEY")

	setString(&cfg.Notify.SlackWebhookURL, "TASKTIMER_SLACK_WEBHOOK_URL")
	setString(&cfg.Notify.DiscordWebhookURL, "TASKTIMER_DISCORD_WEBHOOK_URL")
	setString(&cfg.Notify.SMTP.Host, "TASKTIMER_SMTP_HOST")
	setInt(&cfg.Notify.SMTP.Port, "TASKTIMER_SMTP_PORT")
	setString(&cfg.Notify.SMTP.From, "TASKTIMER_SMTP_FROM")
	setString(&cfg.Notify.SMTP.To, "TASKTIMER_SMTP_TO")
	setString(&cfg.Notify.SMTP.Password, "TASKTIMER_SMTP_PASSWORD")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	switch cfg.Storage.Driver {
	case DriverSQLite:
		if cfg.Storage.Path == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres driver")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported (sqlite, postgres)", cfg.Storage.Driver)
	}
	if cfg.Timer.TickInterval < 100*time.Millisecond {
		return errors.New("timer.tick_interval must be >= 100ms")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.OTel.SampleRatio < 0 || cfg.OTel.SampleRatio > 1 {
		return errors.New("otel.sample_ratio must be within [0, 1]")
	}
	if cfg.MCP.Enabled && !strings.HasPrefix(cfg.MCP.Path, "/") {
		return errors.New("mcp.path must start with '/'")
	}
	if !isWebhookURL(cfg.Notify.SlackWebhookURL) {
		return errors.New("notify.slack_webhook_url must be an http(s) URL")
	}
	if !isWebhookURL(cfg.Notify.DiscordWebhookURL) {
		return errors.New("notify.discord_webhook_url must be an http(s) URL")
	}
	if cfg.Notify.SMTP.Host != "" && (cfg.Notify.SMTP.Port < 1 || cfg.Notify.SMTP.Port > 65535) {
		return errors.New("notify.smtp.port must be within [1, 65535]")
	}
	return nil
}

// isWebhookURL accepts empty (disabled) or http(s) URLs.
func isWebhookURL(raw string) bool {
	return raw == "" || strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
