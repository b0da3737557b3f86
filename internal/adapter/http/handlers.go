package http

import (
	"net/http"

	"github.com/imagingworks/protoloop/internal/service"
)

// bodyLimit bounds request bodies. Patient records are small; anything larger
// is a mistake.
const bodyLimit = 1 << 20

// Handlers bundles the HTTP handlers and their service dependencies.
type Handlers struct {
	pipeline *service.PipelineService
	reviews  *service.ReviewService
}

func NewHandlers(pipeline *service.PipelineService, reviews *service.ReviewService) *Handlers {
	return &Handlers{pipeline: pipeline, reviews: reviews}
}

type runRequest struct {
	Record map[string]any `json:"record"`
}

// RunPipeline executes a full generate-review run over the posted record.
func (h *Handlers) RunPipeline(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[runRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if len(req.Record) == 0 {
		writeError(w, http.StatusBadRequest, "record is required")
		return
	}

	result, err := h.pipeline.Run(r.Context(), req.Record)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type reviewRequest struct {
	Record    map[string]any `json:"record"`
	Candidate map[string]any `json:"candidate"`
}

// Review runs a single review step over a record and candidate.
func (h *Handlers) Review(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[reviewRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if len(req.Record) == 0 {
		writeError(w, http.StatusBadRequest, "record is required")
		return
	}
	if len(req.Candidate) == 0 {
		writeError(w, http.StatusBadRequest, "candidate is required")
		return
	}

	result, err := h.reviews.Review(r.Context(), req.Record, req.Candidate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Health reports process liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
