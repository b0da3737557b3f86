// Package fs implements the artifact store on the local filesystem. Each run
// gets its own directory of pretty-printed JSON files, matching the layout
// operators inspect by hand.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/imagingworks/protoloop/internal/domain"
	"github.com/imagingworks/protoloop/internal/domain/pipeline"
	"github.com/imagingworks/protoloop/internal/domain/review"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	sharedContextFile = "enhanced_context.json"
)

// Store writes run artifacts under a base directory:
//
//	<base>/enhanced_context.json
//	<base>/runs/<runID>/candidate_loop<N>.json
//	<base>/runs/<runID>/feedback_loop<N>.json
//	<base>/runs/<runID>/final.json
//	<base>/runs/<runID>/fhir_bundle.json
type Store struct {
	base string
}

func NewStore(base string) (*Store, error) {
	if err := os.MkdirAll(base, dirPerm); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{base: base}, nil
}

type sharedContext struct {
	EnhancedContext string `json:"enhanced_context"`
}

func (s *Store) SaveSharedContext(_ context.Context, content string) error {
	return s.writeJSON(filepath.Join(s.base, sharedContextFile), sharedContext{EnhancedContext: content})
}

func (s *Store) LoadSharedContext(_ context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.base, sharedContextFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read shared context: %w", err)
	}
	var sc sharedContext
	if err := json.Unmarshal(data, &sc); err != nil {
		return "", fmt.Errorf("decode shared context: %w", err)
	}
	if sc.EnhancedContext == "" {
		return "", domain.ErrNotFound
	}
	return sc.EnhancedContext, nil
}

func (s *Store) SaveCandidate(_ context.Context, runID string, loop int, candidate pipeline.Candidate) error {
	return s.writeRunJSON(runID, fmt.Sprintf("candidate_loop%d.json", loop), candidate)
}

func (s *Store) SaveFeedback(_ context.Context, runID string, loop int, result review.Result) error {
	return s.writeRunJSON(runID, fmt.Sprintf("feedback_loop%d.json", loop), result)
}

func (s *Store) SaveFinal(_ context.Context, runID string, candidate pipeline.Candidate) error {
	return s.writeRunJSON(runID, "final.json", candidate)
}

func (s *Store) SaveBundle(_ context.Context, runID string, bundle any) error {
	return s.writeRunJSON(runID, "fhir_bundle.json", bundle)
}

func (s *Store) writeRunJSON(runID, name string, v any) error {
	dir := filepath.Join(s.base, "runs", runID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%w: create run dir: %v", domain.ErrPersistence, err)
	}
	return s.writeJSON(filepath.Join(dir, name), v)
}

// writeJSON persists v as indented JSON with non-ASCII characters kept as
// UTF-8 rather than \u escapes.
func (s *Store) writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrPersistence, filepath.Base(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), filePerm); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersistence, filepath.Base(path), err)
	}
	return nil
}
