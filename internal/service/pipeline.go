package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/imagingworks/protoloop/internal/adapter/otel"
	"github.com/imagingworks/protoloop/internal/domain"
	"github.com/imagingworks/protoloop/internal/domain/fhir"
	"github.com/imagingworks/protoloop/internal/domain/pipeline"
	"github.com/imagingworks/protoloop/internal/domain/review"
	"github.com/imagingworks/protoloop/internal/extract"
	"github.com/imagingworks/protoloop/internal/logger"
	"github.com/imagingworks/protoloop/internal/port/artifact"
	"github.com/imagingworks/protoloop/internal/port/enrichment"
	"github.com/imagingworks/protoloop/internal/port/events"
	"github.com/imagingworks/protoloop/internal/port/generation"
)

// BundleConverter turns a final candidate into an exportable document. The
// export is optional and best-effort.
type BundleConverter interface {
	Convert(ctx context.Context, final pipeline.Candidate) (*fhir.Bundle, error)
}

// PipelineService drives the generate-review loop for one patient record at a
// time. Initialization and artifact persistence failures abort a run; every
// other upstream failure degrades into default-shaped data and the loop keeps
// going.
type PipelineService struct {
	enricher  enrichment.Enricher
	generator generation.Generator
	reviews   *ReviewService
	store     artifact.Store
	publisher events.Publisher
	converter BundleConverter
	metrics   *otel.Metrics
	log       *slog.Logger

	now func() time.Time
}

func NewPipelineService(
	enricher enrichment.Enricher,
	generator generation.Generator,
	reviews *ReviewService,
	store artifact.Store,
	publisher events.Publisher,
	metrics *otel.Metrics,
	log *slog.Logger,
) *PipelineService {
	return &PipelineService{
		enricher:  enricher,
		generator: generator,
		reviews:   reviews,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// SetConverter enables the document export step after a run completes.
func (s *PipelineService) SetConverter(c BundleConverter) {
	s.converter = c
}

// Run executes one full pipeline run over a raw patient record.
func (s *PipelineService) Run(ctx context.Context, raw map[string]any) (pipeline.Result, error) {
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx, span := otel.StartRunSpan(ctx, runID)
	defer span.End()

	startedAt := s.now().UTC()
	if s.metrics != nil {
		s.metrics.RunsStarted.Add(ctx, 1)
	}
	log := s.log.With("run_id", runID)
	log.Info("pipeline run started")

	sharedContext, err := s.initContext(ctx, raw, log)
	if err != nil {
		s.countFailure(ctx)
		return pipeline.Result{}, err
	}

	state := pipeline.LoopState{State: pipeline.StateGenerate}
	confidence := 0.0

	for {
		iterCtx, iterSpan := otel.StartIterationSpan(ctx, runID, state.Iteration+1)

		candidate := s.generate(iterCtx, raw, sharedContext, &state, log)
		if err := s.store.SaveCandidate(iterCtx, runID, state.Iteration+1, candidate); err != nil {
			iterSpan.End()
			s.countFailure(ctx)
			return pipeline.Result{}, fmt.Errorf("save candidate: %w", err)
		}

		state.State = pipeline.StateReview
		result, err := s.reviews.Review(iterCtx, raw, candidate)
		if err != nil {
			iterSpan.End()
			s.countFailure(ctx)
			return pipeline.Result{}, fmt.Errorf("review step: %w", err)
		}
		if err := s.store.SaveFeedback(iterCtx, runID, state.Iteration+1, result); err != nil {
			iterSpan.End()
			s.countFailure(ctx)
			return pipeline.Result{}, fmt.Errorf("save feedback: %w", err)
		}

		state.Iteration++
		state.LastCandidate = candidate
		state.LastFeedback = &result
		confidence = result.Confidence
		if s.metrics != nil {
			s.metrics.Iterations.Add(iterCtx, 1)
		}

		stopped := pipeline.ShouldStop(state.Iteration, confidence)
		s.publishIteration(iterCtx, runID, state.Iteration, confidence, stopped, log)
		log.Info("iteration complete",
			"iteration", state.Iteration, "confidence", confidence, "stopped", stopped)
		iterSpan.End()

		if stopped {
			break
		}
		state.State = pipeline.StateGenerate
	}

	state.State = pipeline.StateDone
	if err := s.store.SaveFinal(ctx, runID, state.LastCandidate); err != nil {
		s.countFailure(ctx)
		return pipeline.Result{}, fmt.Errorf("save final: %w", err)
	}

	finishedAt := s.now().UTC()
	if err := s.publisher.PublishRunCompleted(ctx, events.RunCompletedEvent{
		RunID:     runID,
		LoopsRun:  state.Iteration,
		Timestamp: finishedAt,
	}); err != nil {
		log.Warn("run completed event not published", "error", err)
	}
	if s.metrics != nil {
		s.metrics.RunsCompleted.Add(ctx, 1)
		s.metrics.RunDuration.Record(ctx, finishedAt.Sub(startedAt).Seconds())
	}

	s.exportBundle(ctx, runID, state.LastCandidate, log)

	log.Info("pipeline run complete", "loops", state.Iteration, "confidence", confidence)
	return pipeline.Result{
		RunID:       runID,
		FinalOutput: state.LastCandidate,
		LoopsRun:    state.Iteration,
		Confidence:  confidence,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	}, nil
}

// initContext obtains the shared enrichment context. Fresh enrichment is
// preferred; a previously persisted context is the fallback. When both are
// unavailable the run cannot start.
func (s *PipelineService) initContext(ctx context.Context, raw map[string]any, log *slog.Logger) (string, error) {
	enriched, err := s.enricher.EnrichContext(ctx, raw)
	if err == nil {
		if saveErr := s.store.SaveSharedContext(ctx, enriched); saveErr != nil {
			return "", fmt.Errorf("save shared context: %w", saveErr)
		}
		return enriched, nil
	}
	log.Warn("enrichment failed, trying persisted context", "error", err)

	persisted, loadErr := s.store.LoadSharedContext(ctx)
	if loadErr != nil {
		return "", fmt.Errorf("%w: enrichment failed (%v) and no persisted context (%v)",
			domain.ErrInitFailed, err, loadErr)
	}
	log.Info("reusing persisted shared context")
	return persisted, nil
}

// generate produces the next candidate, feeding back the previous review when
// one exists. A failed generation call degrades to the default candidate.
func (s *PipelineService) generate(ctx context.Context, raw map[string]any, sharedContext string, state *pipeline.LoopState, log *slog.Logger) pipeline.Candidate {
	var feedback *review.Feedback
	if state.LastFeedback != nil {
		feedback = &state.LastFeedback.Feedback
	}

	candidate, err := s.generator.Generate(ctx, raw, sharedContext, feedback)
	if err != nil {
		log.Error("generation failed, using default candidate", "error", err)
		return extract.SafeDefault()
	}
	return candidate
}

func (s *PipelineService) publishIteration(ctx context.Context, runID string, iteration int, confidence float64, stopped bool, log *slog.Logger) {
	err := s.publisher.PublishIteration(ctx, events.IterationEvent{
		RunID:      runID,
		Iteration:  iteration,
		Confidence: confidence,
		Stopped:    stopped,
		Timestamp:  s.now().UTC(),
	})
	if err != nil {
		log.Warn("iteration event not published", "error", err)
	}
}

// exportBundle converts the final output to the downstream document format.
// Failure is logged and never affects the completed run.
func (s *PipelineService) exportBundle(ctx context.Context, runID string, final pipeline.Candidate, log *slog.Logger) {
	if s.converter == nil {
		return
	}
	bundle, err := s.converter.Convert(ctx, final)
	if err != nil {
		log.Error("bundle export failed", "error", err)
		return
	}
	if err := s.store.SaveBundle(ctx, runID, bundle); err != nil {
		log.Error("bundle not persisted", "error", err)
		return
	}
	log.Info("bundle exported")
}

func (s *PipelineService) countFailure(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.RunsFailed.Add(ctx, 1)
	}
}
