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
const DefaultConfigFile = "protoloop.yaml"

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
	setString(&cfg.Server.Port, "PROTOLOOP_PORT")
	setString(&cfg.Server.CORSOrigin, "PROTOLOOP_CORS_ORIGIN")

	setString(&cfg.Groq.APIKey, "GROQ_API_KEY")
	setString(&cfg.Groq.BaseURL, "GROQ_BASE_URL")
	setString(&cfg.Groq.Model, "GROQ_MODEL")
	setString(&cfg.Groq.ScoreModel, "GROQ_SCORE_MODEL")
	setDuration(&cfg.Groq.Timeout, "GROQ_TIMEOUT")

	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.BaseURL, "GEMINI_BASE_URL")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL")
	setDuration(&cfg.Gemini.Timeout, "GEMINI_TIMEOUT")
	setBool(&cfg.Gemini.FHIRExport, "PROTOLOOP_FHIR_EXPORT")

	setDuration(&cfg.Pipeline.ToolCacheTTL, "PROTOLOOP_TOOL_CACHE_TTL")
	setString(&cfg.Artifacts.Dir, "PROTOLOOP_ARTIFACTS_DIR")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PROTOLOOP_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "PROTOLOOP_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "PROTOLOOP_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "PROTOLOOP_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "PROTOLOOP_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.MaxSizeMB, "PROTOLOOP_CACHE_SIZE_MB")

	setString(&cfg.Logging.Level, "PROTOLOOP_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PROTOLOOP_LOG_SERVICE")

	setInt(&cfg.Breaker.MaxFailures, "PROTOLOOP_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "PROTOLOOP_BREAKER_TIMEOUT")

	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set. Collaborator credentials are
// checked here so a missing key fails at startup, never mid-loop.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Groq.APIKey == "" {
		return errors.New("GROQ_API_KEY is required")
	}
	if cfg.Groq.Model == "" {
		return errors.New("groq.model is required")
	}
	if cfg.Gemini.FHIRExport && cfg.Gemini.APIKey == "" {
		return errors.New("GEMINI_API_KEY is required when fhir_export is enabled")
	}
	if cfg.Artifacts.Dir == "" && cfg.Postgres.DSN == "" {
		return errors.New("artifacts.dir or postgres.dsn is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.MaxSizeMB < 1 {
		return errors.New("cache.max_size_mb must be >= 1")
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
