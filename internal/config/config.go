// Package config provides hierarchical configuration loading for protoloop.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the protoloop service.
type Config struct {
	Server    Server    `yaml:"server"`
	Groq      Groq      `yaml:"groq"`
	Gemini    Gemini    `yaml:"gemini"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Artifacts Artifacts `yaml:"artifacts"`
	Postgres  Postgres  `yaml:"postgres"`
	NATS      NATS      `yaml:"nats"`
	Cache     Cache     `yaml:"cache"`
	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Groq holds configuration for the chat-completion collaborators (context
// enrichment, generation, review and scoring). The API key has no default
// and must come from the environment.
type Groq struct {
	APIKey     string        `yaml:"-"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	ScoreModel string        `yaml:"score_model"` // empty = use Model
	Timeout    time.Duration `yaml:"timeout"`
}

// Gemini holds configuration for the downstream FHIR bundle conversion.
type Gemini struct {
	APIKey     string        `yaml:"-"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	FHIRExport bool          `yaml:"fhir_export"`
}

// Pipeline holds orchestration loop behavior toggles that are safe to tune.
// The stopping rule itself (floor, cap, threshold) is fixed in the domain
// package and deliberately not configurable.
type Pipeline struct {
	ToolCacheTTL time.Duration `yaml:"tool_cache_ttl"`
}

// Artifacts holds filesystem artifact store configuration.
type Artifacts struct {
	Dir string `yaml:"dir"`
}

// Postgres holds the optional PostgreSQL artifact store configuration.
// An empty DSN selects the filesystem store.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// NATS holds the optional event publisher configuration. An empty URL
// disables event publishing.
type NATS struct {
	URL string `yaml:"url"`
}

// Cache holds in-process cache configuration.
type Cache struct {
	MaxSizeMB int64 `yaml:"max_size_mb"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Breaker holds circuit breaker configuration for external HTTP calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Telemetry holds OpenTelemetry exporter configuration. An empty endpoint
// disables the exporters.
type Telemetry struct {
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Groq: Groq{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "openai/gpt-oss-120b",
			Timeout: 120 * time.Second,
		},
		Gemini: Gemini{
			BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
			Model:      "gemini-2.5-flash",
			Timeout:    120 * time.Second,
			FHIRExport: false,
		},
		Pipeline: Pipeline{
			ToolCacheTTL: 10 * time.Minute,
		},
		Artifacts: Artifacts{
			Dir: "outputs",
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		Cache: Cache{
			MaxSizeMB: 32,
		},
		Logging: Logging{
			Level:   "info",
			Service: "protoloop",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
	}
}
