// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/truthfuse/internal/adapters/repository"
	service "github.com/okian/truthfuse/internal/app"
	"github.com/okian/truthfuse/internal/domain/fusion"
	"github.com/okian/truthfuse/internal/domain/model"
	"github.com/okian/truthfuse/pkg/logger"
)

// Request headers carrying the already-authenticated caller.
const (
	HeaderReporterID     = "X-Reporter-ID"
	HeaderReporterRole   = "X-Reporter-Role"
	HeaderIdempotencyKey = "Idempotency-Key"
)

const defaultMaxImageBytes = 10 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit fuses a report; idempotencyKey may be empty.
	Submit(ctx context.Context, r model.Report, idempotencyKey string) (fusion.Outcome, error)

	Events(ctx context.Context) ([]model.Event, error)
	AllEvents(ctx context.Context) ([]model.Event, error)
	Event(ctx context.Context, id string) (model.Event, error)
	Resolve(ctx context.Context, id string) (model.Event, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	reportsHandler *ReportsHandler
	eventsHandler  *EventsHandler
}

// Option applies a configuration option to the Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxImageBytes int64
	log           logger.Logger
}

// WithMaxImageBytes caps the accepted image size.
func WithMaxImageBytes(n int64) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxImageBytes = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{maxImageBytes: defaultMaxImageBytes, log: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		reportsHandler: NewReportsHandler(deps, o.maxImageBytes, o.log),
		eventsHandler:  NewEventsHandler(deps, o.log),
	}
}

// Register attaches all HTTP routes to router.
func (s *Server) Register(_ context.Context, router *mux.Router) {
	router.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	router.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	router.HandleFunc("/reports", MetricsMiddleware(s.reportsHandler.HandlePostReport, "reports")).Methods(http.MethodPost)
	router.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandleListActive, "events")).Methods(http.MethodGet)
	router.HandleFunc("/events/{id}", MetricsMiddleware(s.eventsHandler.HandleGetEvent, "event")).Methods(http.MethodGet)
	router.HandleFunc("/events/{id}/resolve", MetricsMiddleware(s.eventsHandler.HandleResolve, "resolve")).Methods(http.MethodPut)
	router.HandleFunc("/admin/events", MetricsMiddleware(s.eventsHandler.HandleListAll, "admin_events")).Methods(http.MethodGet)
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

// statusFor translates an error kind to an HTTP status and error code.
// Internal failures never leak their cause.
func statusFor(err error) (int, string, error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request", err
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large", err
	case errors.Is(err, ErrUnsupported):
		return http.StatusUnsupportedMediaType, "unsupported_media_type", err
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden", err
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found", err
	case errors.Is(err, service.ErrReplayed):
		return http.StatusConflict, "replayed", err
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable", nil
	default:
		return http.StatusInternalServerError, "internal_error", nil
	}
}

func fail(w http.ResponseWriter, err error) {
	status, code, shown := statusFor(err)
	writeError(w, status, code, shown)
}

func requireAdmin(r *http.Request) error {
	if model.ParseRole(r.Header.Get(HeaderReporterRole)) != model.RoleAdmin {
		return ErrForbidden
	}
	return nil
}
