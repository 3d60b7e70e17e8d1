package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "albatross.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
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
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
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
	setString(&cfg.Server.Port, "ALBATROSS_PORT")
	setString(&cfg.Server.CORSOrigin, "ALBATROSS_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "ALBATROSS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "ALBATROSS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "ALBATROSS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "ALBATROSS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "ALBATROSS_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.EventStore.Backend, "ALBATROSS_EVENTSTORE")
	setInt(&cfg.Auth.BcryptCost, "ALBATROSS_BCRYPT_COST")
	setDuration(&cfg.Auth.SessionTTL, "ALBATROSS_SESSION_TTL")
	setDuration(&cfg.Auth.CredentialTTL, "ALBATROSS_CREDENTIAL_TTL")
	setInt64(&cfg.Auth.L1CacheBytes, "ALBATROSS_L1_CACHE_BYTES")
	setString(&cfg.Auth.CacheBucket, "ALBATROSS_CACHE_BUCKET")
	setDuration(&cfg.Realtime.HeartbeatInterval, "ALBATROSS_WS_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Realtime.IdleTimeout, "ALBATROSS_WS_IDLE_TIMEOUT")
	setInt64(&cfg.Realtime.MaxFrameBytes, "ALBATROSS_WS_MAX_FRAME_BYTES")
	setInt(&cfg.Realtime.RateMax, "ALBATROSS_WS_RATE_MAX")
	setDuration(&cfg.Realtime.RateWindow, "ALBATROSS_WS_RATE_WINDOW")
	setString(&cfg.Projection.TenantQueue, "ALBATROSS_PROJECTION_TENANT_QUEUE")
	setString(&cfg.Projection.UserQueue, "ALBATROSS_PROJECTION_USER_QUEUE")
	setString(&cfg.Projection.PirepQueue, "ALBATROSS_PROJECTION_PIREP_QUEUE")
	setString(&cfg.Logging.Level, "ALBATROSS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "ALBATROSS_LOG_SERVICE")
	setBool(&cfg.Telemetry.Enabled, "ALBATROSS_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "ALBATROSS_RATE_RPS")
	setInt(&cfg.Rate.Burst, "ALBATROSS_RATE_BURST")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" && cfg.EventStore.Backend == "postgres" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.EventStore.Backend != "postgres" && cfg.EventStore.Backend != "memory" {
		return fmt.Errorf("eventstore.backend must be postgres or memory, got %q", cfg.EventStore.Backend)
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Realtime.RateMax < 1 {
		return errors.New("realtime.rate_max must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
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
