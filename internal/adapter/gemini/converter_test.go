package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/imagingworks/protoloop/internal/adapter/gemini"
	"github.com/imagingworks/protoloop/internal/config"
	"github.com/imagingworks/protoloop/internal/domain/fhir"
	"github.com/imagingworks/protoloop/internal/domain/pipeline"
)

func geminiServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if key := r.Header.Get("x-goog-api-key"); key != "test-key" {
			t.Fatalf("unexpected api key: %q", key)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": reply}}}},
			},
		})
	}))
}

func testClient(url string) *gemini.Client {
	return gemini.NewClient(config.Gemini{
		BaseURL: url,
		APIKey:  "test-key",
		Model:   "gemini-2.5-flash",
		Timeout: 5 * time.Second,
	})
}

const validBundle = "```json\n" + `{
  "resourceType": "Bundle",
  "type": "collection",
  "entry": [
    {"resource": {"resourceType": "PlanDefinition", "id": "pd-1", "title": "CT abdomen"}},
    {"resource": {"resourceType": "CarePlan", "id": "cp-1", "status": "active"}}
  ]
}` + "\n```"

func TestConvert(t *testing.T) {
	srv := geminiServer(t, validBundle)
	defer srv.Close()

	conv := gemini.NewConverter(testClient(srv.URL))
	bundle, err := conv.Convert(context.Background(), pipeline.Candidate{"protocol": "CT abdomen"})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if bundle.ResourceType != "Bundle" || bundle.Type != "collection" {
		t.Fatalf("bundle envelope = %q/%q", bundle.ResourceType, bundle.Type)
	}
	if len(bundle.Entry) != 2 {
		t.Fatalf("entries = %d, want 2", len(bundle.Entry))
	}
	if rt := bundle.Entry[0].Resource["resourceType"]; rt != "PlanDefinition" {
		t.Fatalf("first resource = %v", rt)
	}
}

func TestConvertRejectsNonBundle(t *testing.T) {
	srv := geminiServer(t, `{"resourceType": "Patient", "id": "p1"}`)
	defer srv.Close()

	conv := gemini.NewConverter(testClient(srv.URL))
	_, err := conv.Convert(context.Background(), pipeline.Candidate{})
	if !errors.Is(err, fhir.ErrInvalidBundle) {
		t.Fatalf("expected ErrInvalidBundle, got %v", err)
	}
}

func TestConvertRejectsProse(t *testing.T) {
	srv := geminiServer(t, "I cannot convert this input.")
	defer srv.Close()

	conv := gemini.NewConverter(testClient(srv.URL))
	// Prose with no JSON extracts to the safe default, which is not a bundle.
	if _, err := conv.Convert(context.Background(), pipeline.Candidate{}); err == nil {
		t.Fatal("expected error for prose response")
	}
}

func TestConvertUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"code": 429}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	conv := gemini.NewConverter(testClient(srv.URL))
	if _, err := conv.Convert(context.Background(), pipeline.Candidate{}); err == nil {
		t.Fatal("expected error for 429")
	}
}
