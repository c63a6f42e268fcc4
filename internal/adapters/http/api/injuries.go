package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/sickbay/internal/adapters/repository"
	"github.com/okian/sickbay/internal/domain/model"
)

const (
	defaultInjuryLimit = 100
	maxInjuryLimit     = 500
)

// InjuriesDependencies defines the interface for injury queries.
type InjuriesDependencies interface {
	Injuries(ctx context.Context, f repository.InjuryFilter) ([]model.InjuryRecord, error)
}

// InjuriesHandler handles injury list requests.
type InjuriesHandler struct {
	deps InjuriesDependencies
}

// NewInjuriesHandler creates a new injuries handler.
func NewInjuriesHandler(deps InjuriesDependencies) *InjuriesHandler {
	return &InjuriesHandler{deps: deps}
}

type injuriesResponse struct {
	Injuries []model.InjuryRecord `json:"injuries"`
	Count    int                  `json:"count"`
}

// HandleListInjuries handles GET /v1/injuries?player_id=&active=&limit=.
func (h *InjuriesHandler) HandleListInjuries(w http.ResponseWriter, r *http.Request) {
	f, err := parseInjuryFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	list, err := h.deps.Injuries(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if list == nil {
		list = []model.InjuryRecord{}
	}
	writeJSON(w, http.StatusOK, injuriesResponse{Injuries: list, Count: len(list)})
}

func parseInjuryFilter(r *http.Request) (repository.InjuryFilter, error) {
	q := r.URL.Query()
	f := repository.InjuryFilter{Limit: defaultInjuryLimit}

	if v := q.Get("player_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, fmt.Errorf("%w: invalid player_id", ErrBadRequest)
		}
		f.PlayerID = id
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("%w: invalid active", ErrBadRequest)
		}
		f.ActiveOnly = active
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("%w: invalid limit", ErrBadRequest)
		}
		f.Limit = min(n, maxInjuryLimit)
	}
	return f, nil
}
