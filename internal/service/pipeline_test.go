package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/imagingworks/protoloop/internal/domain"
	"github.com/imagingworks/protoloop/internal/domain/fhir"
	"github.com/imagingworks/protoloop/internal/domain/pipeline"
	"github.com/imagingworks/protoloop/internal/domain/record"
	"github.com/imagingworks/protoloop/internal/domain/review"
	"github.com/imagingworks/protoloop/internal/port/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubEnricher struct {
	context string
	err     error
}

func (s *stubEnricher) EnrichContext(context.Context, record.PatientRecord) (string, error) {
	return s.context, s.err
}

type stubGenerator struct {
	calls     int
	feedbacks []*review.Feedback
	err       error
}

func (s *stubGenerator) Generate(_ context.Context, _ record.PatientRecord, _ string, fb *review.Feedback) (pipeline.Candidate, error) {
	s.calls++
	s.feedbacks = append(s.feedbacks, fb)
	if s.err != nil {
		return nil, s.err
	}
	return pipeline.Candidate{"protocol": fmt.Sprintf("draft %d", s.calls)}, nil
}

// scriptedReviewer returns one JSON review response per call, repeating the
// last one when the script runs out.
type scriptedReviewer struct {
	confidences []float64
	calls       int
}

func (s *scriptedReviewer) ReviewCall(context.Context, string) (string, error) {
	c := s.confidences[min(s.calls, len(s.confidences)-1)]
	s.calls++
	return fmt.Sprintf(`{"issues": [], "recommendations": [], "confidence": %v}`, c), nil
}

type nopAnalyzer struct{}

func (nopAnalyzer) Analyze(context.Context, review.PlausibilityInput) (review.Analysis, error) {
	return review.Analysis{}, nil
}

// memStore records artifacts in memory and can fail selected writes.
type memStore struct {
	shared     string
	candidates map[int]pipeline.Candidate
	feedbacks  map[int]review.Result
	final      pipeline.Candidate
	bundle     any

	failCandidate bool
	failShared    bool
}

func newMemStore() *memStore {
	return &memStore{
		candidates: map[int]pipeline.Candidate{},
		feedbacks:  map[int]review.Result{},
	}
}

func (m *memStore) SaveSharedContext(_ context.Context, content string) error {
	if m.failShared {
		return fmt.Errorf("%w: disk full", domain.ErrPersistence)
	}
	m.shared = content
	return nil
}

func (m *memStore) LoadSharedContext(context.Context) (string, error) {
	if m.shared == "" {
		return "", domain.ErrNotFound
	}
	return m.shared, nil
}

func (m *memStore) SaveCandidate(_ context.Context, _ string, loop int, c pipeline.Candidate) error {
	if m.failCandidate {
		return fmt.Errorf("%w: disk full", domain.ErrPersistence)
	}
	m.candidates[loop] = c
	return nil
}

func (m *memStore) SaveFeedback(_ context.Context, _ string, loop int, r review.Result) error {
	m.feedbacks[loop] = r
	return nil
}

func (m *memStore) SaveFinal(_ context.Context, _ string, c pipeline.Candidate) error {
	m.final = c
	return nil
}

func (m *memStore) SaveBundle(_ context.Context, _ string, b any) error {
	m.bundle = b
	return nil
}

type recordingPublisher struct {
	iterations []events.IterationEvent
	completed  []events.RunCompletedEvent
}

func (p *recordingPublisher) PublishIteration(_ context.Context, e events.IterationEvent) error {
	p.iterations = append(p.iterations, e)
	return nil
}

func (p *recordingPublisher) PublishRunCompleted(_ context.Context, e events.RunCompletedEvent) error {
	p.completed = append(p.completed, e)
	return nil
}

func newTestPipeline(gen *stubGenerator, rev *scriptedReviewer, store *memStore, pub events.Publisher) *PipelineService {
	reviews := NewReviewService(nil, nil, rev, nopAnalyzer{}, nil, discardLogger())
	reviews.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	svc := NewPipelineService(&stubEnricher{context: "ctx"}, gen, reviews, store, pub, nil, discardLogger())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestRunStopsAtFloorWhenConfident(t *testing.T) {
	gen := &stubGenerator{}
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := newTestPipeline(gen, &scriptedReviewer{confidences: []float64{0.3, 0.9}}, store, pub)

	res, err := svc.Run(context.Background(), map[string]any{"age": 61})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.LoopsRun != 2 {
		t.Fatalf("loops = %d, want 2", res.LoopsRun)
	}
	if res.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", res.Confidence)
	}
	if gen.calls != 2 {
		t.Fatalf("generator calls = %d, want 2", gen.calls)
	}
	if store.final == nil {
		t.Fatal("final artifact not persisted")
	}
	if len(store.candidates) != 2 || len(store.feedbacks) != 2 {
		t.Fatalf("artifacts = %d candidates, %d feedbacks; want 2 each",
			len(store.candidates), len(store.feedbacks))
	}
	if len(pub.completed) != 1 || pub.completed[0].LoopsRun != 2 {
		t.Fatalf("completed events = %+v", pub.completed)
	}
}

func TestRunIgnoresEarlyConfidenceAndCapsAtMax(t *testing.T) {
	// High confidence on iteration 1 must not stop the loop; with low
	// confidence ever after, the loop runs to the cap.
	gen := &stubGenerator{}
	store := newMemStore()
	svc := newTestPipeline(gen, &scriptedReviewer{confidences: []float64{0.9, 0.2}}, store, &recordingPublisher{})

	res, err := svc.Run(context.Background(), map[string]any{"age": 61})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.LoopsRun != pipeline.MaxIterations {
		t.Fatalf("loops = %d, want %d", res.LoopsRun, pipeline.MaxIterations)
	}
	if gen.calls != pipeline.MaxIterations {
		t.Fatalf("generator calls = %d, want %d", gen.calls, pipeline.MaxIterations)
	}
}

func TestRunFeedsReviewBackIntoGeneration(t *testing.T) {
	gen := &stubGenerator{}
	svc := newTestPipeline(gen, &scriptedReviewer{confidences: []float64{0.3, 0.9}}, newMemStore(), &recordingPublisher{})

	if _, err := svc.Run(context.Background(), map[string]any{"age": 61}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(gen.feedbacks) != 2 {
		t.Fatalf("feedbacks = %d, want 2", len(gen.feedbacks))
	}
	if gen.feedbacks[0] != nil {
		t.Fatal("first generation must not receive feedback")
	}
	if gen.feedbacks[1] == nil {
		t.Fatal("second generation must receive the first review feedback")
	}
}

func TestRunInitFailsWithoutAnyContext(t *testing.T) {
	gen := &stubGenerator{}
	store := newMemStore()
	svc := newTestPipeline(gen, &scriptedReviewer{confidences: []float64{0.9}}, store, &recordingPublisher{})
	svc.enricher = &stubEnricher{err: errors.New("upstream down")}

	_, err := svc.Run(context.Background(), map[string]any{"age": 61})
	if !errors.Is(err, domain.ErrInitFailed) {
		t.Fatalf("expected ErrInitFailed, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("loop must not start after failed init")
	}
}

func TestRunFallsBackToPersistedContext(t *testing.T) {
	gen := &stubGenerator{}
	store := newMemStore()
	store.shared = "persisted context"
	svc := newTestPipeline(gen, &scriptedReviewer{confidences: []float64{0.3, 0.9}}, store, &recordingPublisher{})
	svc.enricher = &stubEnricher{err: errors.New("upstream down")}

	res, err := svc.Run(context.Background(), map[string]any{"age": 61})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.LoopsRun != 2 {
		t.Fatalf("loops = %d, want 2", res.LoopsRun)
	}
}

func TestRunAbortsOnPersistenceFailure(t *testing.T) {
	gen := &stubGenerator{}
	store := newMemStore()
	store.failCandidate = true
	svc := newTestPipeline(gen, &scriptedReviewer{confidences: []float64{0.9}}, store, &recordingPublisher{})

	_, err := svc.Run(context.Background(), map[string]any{"age": 61})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestRunDegradesOnGenerationFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream down")}
	store := newMemStore()
	svc := newTestPipeline(gen, &scriptedReviewer{confidences: []float64{0.3, 0.9}}, store, &recordingPublisher{})

	res, err := svc.Run(context.Background(), map[string]any{"age": 61})
	if err != nil {
		t.Fatalf("generation failure must degrade, not abort: %v", err)
	}
	if res.LoopsRun != 2 {
		t.Fatalf("loops = %d, want 2", res.LoopsRun)
	}
	// The persisted candidates are the default shape, not nil.
	if store.candidates[1]["approved"] != false {
		t.Fatalf("candidate = %v, want default shape", store.candidates[1])
	}
}

type stubConverter struct {
	bundle *fhir.Bundle
	err    error
}

func (s *stubConverter) Convert(context.Context, pipeline.Candidate) (*fhir.Bundle, error) {
	return s.bundle, s.err
}

func TestRunExportsBundle(t *testing.T) {
	store := newMemStore()
	svc := newTestPipeline(&stubGenerator{}, &scriptedReviewer{confidences: []float64{0.3, 0.9}}, store, &recordingPublisher{})
	svc.SetConverter(&stubConverter{bundle: &fhir.Bundle{ResourceType: "Bundle", Type: "collection"}})

	if _, err := svc.Run(context.Background(), map[string]any{"age": 61}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.bundle == nil {
		t.Fatal("bundle not persisted")
	}
}

func TestRunSurvivesBundleExportFailure(t *testing.T) {
	store := newMemStore()
	svc := newTestPipeline(&stubGenerator{}, &scriptedReviewer{confidences: []float64{0.3, 0.9}}, store, &recordingPublisher{})
	svc.SetConverter(&stubConverter{err: errors.New("conversion refused")})

	res, err := svc.Run(context.Background(), map[string]any{"age": 61})
	if err != nil {
		t.Fatalf("export failure must not fail the run: %v", err)
	}
	if res.LoopsRun != 2 {
		t.Fatalf("loops = %d, want 2", res.LoopsRun)
	}
	if store.bundle != nil {
		t.Fatal("failed export must not persist a bundle")
	}
}
