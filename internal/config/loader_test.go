package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Groq.Model != "openai/gpt-oss-120b" {
		t.Errorf("expected default groq model, got %s", cfg.Groq.Model)
	}
	if cfg.Artifacts.Dir != "outputs" {
		t.Errorf("expected artifacts dir outputs, got %s", cfg.Artifacts.Dir)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected breaker timeout 30s, got %v", cfg.Breaker.Timeout)
	}
	if cfg.Gemini.FHIRExport {
		t.Error("fhir export must default to off")
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origin: "http://example.com"
groq:
  model: "llama-3.3-70b-versatile"
artifacts:
  dir: "/var/lib/protoloop"
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Groq.Model != "llama-3.3-70b-versatile" {
		t.Errorf("expected yaml model, got %s", cfg.Groq.Model)
	}
	if cfg.Artifacts.Dir != "/var/lib/protoloop" {
		t.Errorf("expected yaml artifacts dir, got %s", cfg.Artifacts.Dir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("expected default gemini model, got %s", cfg.Gemini.Model)
	}
}

func TestLoadYAMLMissingFileIsNotError(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("missing yaml must not error, got %v", err)
	}
}

func TestLoadYAMLMalformed(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("PROTOLOOP_PORT", "7070")
	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("GROQ_MODEL", "env-model")
	t.Setenv("PROTOLOOP_BREAKER_TIMEOUT", "45s")
	t.Setenv("PROTOLOOP_FHIR_EXPORT", "true")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Groq.APIKey != "test-key" {
		t.Errorf("expected env api key, got %q", cfg.Groq.APIKey)
	}
	if cfg.Groq.Model != "env-model" {
		t.Errorf("expected env model, got %s", cfg.Groq.Model)
	}
	if cfg.Breaker.Timeout != 45*time.Second {
		t.Errorf("expected 45s breaker timeout, got %v", cfg.Breaker.Timeout)
	}
	if !cfg.Gemini.FHIRExport {
		t.Error("expected fhir export enabled from env")
	}
}

func TestValidateRequiresGroqKey(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err == nil {
		t.Fatal("expected error when GROQ_API_KEY is missing")
	}
	cfg.Groq.APIKey = "k"
	if err := validate(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequiresGeminiKeyForExport(t *testing.T) {
	cfg := Defaults()
	cfg.Groq.APIKey = "k"
	cfg.Gemini.FHIRExport = true
	if err := validate(&cfg); err == nil {
		t.Fatal("expected error when fhir export enabled without GEMINI_API_KEY")
	}
	cfg.Gemini.APIKey = "g"
	if err := validate(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequiresSomeStore(t *testing.T) {
	cfg := Defaults()
	cfg.Groq.APIKey = "k"
	cfg.Artifacts.Dir = ""
	cfg.Postgres.DSN = ""
	if err := validate(&cfg); err == nil {
		t.Fatal("expected error with no artifact store configured")
	}
	cfg.Postgres.DSN = "postgres://localhost/protoloop"
	if err := validate(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
