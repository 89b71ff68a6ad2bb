package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/truthfuse/internal/domain/model"
	"github.com/okian/truthfuse/pkg/logger"
)

// publicEvent is the event projection shown to non-admin callers. It omits
// who reported and which reports fed the event.
type publicEvent struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Location        model.Location `json:"location"`
	Active          bool           `json:"active"`
	ConfidenceScore float64        `json:"confidence_score"`
	Severity        model.Severity `json:"severity"`
	Status          model.Status   `json:"status"`
	ReportCount     int            `json:"report_count"`
	Conclusion      string         `json:"conclusion"`
	LastUpdated     time.Time      `json:"last_updated"`
	CreatedAt       time.Time      `json:"created_at"`
}

func toPublic(e model.Event) publicEvent {
	return publicEvent{
		ID:              e.ID,
		Name:            e.Name,
		Location:        e.Location,
		Active:          e.Active,
		ConfidenceScore: e.ConfidenceScore,
		Severity:        e.Severity,
		Status:          e.Status,
		ReportCount:     e.ReportCount,
		Conclusion:      e.Conclusion,
		LastUpdated:     e.LastUpdated,
		CreatedAt:       e.CreatedAt,
	}
}

// EventsHandler serves event reads and the admin resolve action.
type EventsHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies, l logger.Logger) *EventsHandler {
	return &EventsHandler{deps: deps, log: l}
}

// HandleListActive handles GET /events.
func (h *EventsHandler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	events, err := h.deps.Events(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	out := make([]publicEvent, 0, len(events))
	for _, e := range events {
		out = append(out, toPublic(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetEvent handles GET /events/{id}.
func (h *EventsHandler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_event"
	ev, err := h.deps.Event(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// HandleResolve handles PUT /events/{id}/resolve. Admin only.
func (h *EventsHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve_event"
	if err := requireAdmin(r); err != nil {
		fail(w, NewKind(op, err))
		return
	}
	id := mux.Vars(r)["id"]
	ev, err := h.deps.Resolve(r.Context(), id)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	h.log.Info(r.Context(), "event resolved by admin",
		logger.String("event_id", id),
		logger.String("admin_id", r.Header.Get(HeaderReporterID)))
	writeJSON(w, http.StatusOK, ev)
}

// HandleListAll handles GET /admin/events. Admin only.
func (h *EventsHandler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_all_events"
	if err := requireAdmin(r); err != nil {
		fail(w, NewKind(op, err))
		return
	}
	events, err := h.deps.AllEvents(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
