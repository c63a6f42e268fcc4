// Package api exposes the read side of the injury store over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/sickbay/internal/adapters/repository"
	"github.com/okian/sickbay/internal/domain/model"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Injuries(ctx context.Context, f repository.InjuryFilter) ([]model.InjuryRecord, error)
	Player(ctx context.Context, id int64) (model.Player, error)
	LastRun(ctx context.Context) (model.RunSummary, error)
	Ping(ctx context.Context) error
}

// Server wires HTTP routes for the read API.
type Server struct {
	healthHandler   *HealthHandler
	injuriesHandler *InjuriesHandler
	playersHandler  *PlayersHandler
	runsHandler     *RunsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(deps),
		injuriesHandler: NewInjuriesHandler(deps),
		playersHandler:  NewPlayersHandler(deps),
		runsHandler:     NewRunsHandler(deps),
	}
}

// Routes returns the router with every endpoint attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Route("/v1", func(r chi.Router) {
		r.Get("/injuries", MetricsMiddleware(s.injuriesHandler.HandleListInjuries, "injuries"))
		r.Get("/players/{id}", MetricsMiddleware(s.playersHandler.HandleGetPlayer, "players"))
		r.Get("/runs/last", MetricsMiddleware(s.runsHandler.HandleLastRun, "runs"))
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeLookupError maps a store error to 404 or 500.
func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}
