package api

import (
	"context"
	"net/http"

	"github.com/okian/sickbay/internal/domain/model"
)

// RunsDependencies defines the interface for run summaries.
type RunsDependencies interface {
	LastRun(ctx context.Context) (model.RunSummary, error)
}

// RunsHandler handles run summary requests.
type RunsHandler struct {
	deps RunsDependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunsDependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// HandleLastRun handles GET /v1/runs/last.
func (h *RunsHandler) HandleLastRun(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.LastRun(r.Context())
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
