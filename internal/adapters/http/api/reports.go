package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/truthfuse/internal/domain/fusion"
	"github.com/okian/truthfuse/internal/domain/geo"
	"github.com/okian/truthfuse/internal/domain/model"
	"github.com/okian/truthfuse/pkg/logger"
)

// formOverhead is the non-image allowance on top of the image cap.
const formOverhead = 1 << 20

// reportRequest mirrors the OpenAPI schema for POST /reports. Image is base64
// in JSON bodies and a file part in multipart bodies.
type reportRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Severity    string   `json:"severity"`
	EventDate   string   `json:"event_date"`
	ImageURL    string   `json:"image_url"`
	Image       []byte   `json:"image"`
}

func (q reportRequest) validate() error {
	switch {
	case strings.TrimSpace(q.Title) == "":
		return errors.New("missing title")
	case q.Lat == nil || q.Lng == nil:
		return errors.New("missing lat/lng")
	case !geo.Valid(model.Location{Lat: *q.Lat, Lon: *q.Lng}):
		return errors.New("lat/lng out of range")
	}
	if q.EventDate != "" {
		if _, err := time.Parse(time.RFC3339, q.EventDate); err != nil {
			return errors.New("invalid event_date; must be RFC3339")
		}
	}
	return nil
}

type reportResponse struct {
	Status   string          `json:"status"`
	Event    *publicEvent    `json:"event,omitempty"`
	Findings *model.Findings `json:"findings,omitempty"`
}

// ReportsHandler handles report submissions.
type ReportsHandler struct {
	deps          Dependencies
	maxImageBytes int64
	log           logger.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps Dependencies, maxImageBytes int64, l logger.Logger) *ReportsHandler {
	return &ReportsHandler{deps: deps, maxImageBytes: maxImageBytes, log: l}
}

// HandlePostReport handles POST /reports requests.
func (h *ReportsHandler) HandlePostReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_report"

	reporterID := strings.TrimSpace(r.Header.Get(HeaderReporterID))
	if reporterID == "" {
		fail(w, NewKind(op, fmt.Errorf("%w: missing %s header", ErrBadRequest, HeaderReporterID)))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes*2+formOverhead)
	req, err := h.decode(r)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if err := req.validate(); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if int64(len(req.Image)) > h.maxImageBytes {
		fail(w, NewKind(op, ErrTooLarge))
		return
	}

	report := model.Report{
		ReporterID:      reporterID,
		ReporterRole:    model.ParseRole(r.Header.Get(HeaderReporterRole)),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Keywords:        model.TitleKeywords(req.Title),
		Location:        model.Location{Lat: *req.Lat, Lon: *req.Lng},
		ClaimedSeverity: model.ParseSeverity(req.Severity),
		Image:           req.Image,
		ImageURL:        req.ImageURL,
		SubmittedAt:     time.Now().UTC(),
	}
	report.EventDate = report.SubmittedAt
	if req.EventDate != "" {
		report.EventDate, _ = time.Parse(time.RFC3339, req.EventDate)
	}

	out, err := h.deps.Submit(r.Context(), report, strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)))
	if err != nil {
		h.log.Warn(r.Context(), "report submission failed",
			logger.String("reporter_id", reporterID), logger.Error(err))
		fail(w, Wrap(op, err))
		return
	}

	resp := reportResponse{Status: string(out.Kind), Findings: &out.Findings}
	ev := toPublic(out.Event)
	resp.Event = &ev
	switch out.Kind {
	case fusion.KindDuplicate:
		resp.Findings = nil
		writeJSON(w, http.StatusConflict, resp)
	default:
		writeJSON(w, http.StatusCreated, resp)
	}
}

// decode reads a multipart form or a JSON body.
func (h *ReportsHandler) decode(r *http.Request) (reportRequest, error) {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		ct = ""
	}
	switch ct {
	case "multipart/form-data":
		return h.decodeMultipart(r)
	case "application/json", "":
		var req reportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return reportRequest{}, bodyError(err)
		}
		return req, nil
	default:
		return reportRequest{}, fmt.Errorf("%w: %s", ErrUnsupported, ct)
	}
}

func (h *ReportsHandler) decodeMultipart(r *http.Request) (reportRequest, error) {
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		return reportRequest{}, bodyError(err)
	}
	req := reportRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Severity:    r.FormValue("severity"),
		EventDate:   r.FormValue("event_date"),
		ImageURL:    r.FormValue("image_url"),
	}
	for name, dst := range map[string]**float64{"lat": &req.Lat, "lng": &req.Lng} {
		raw := strings.TrimSpace(r.FormValue(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return reportRequest{}, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
		}
		*dst = &v
	}

	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return reportRequest{}, bodyError(err)
	}
	defer file.Close()

	img, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return reportRequest{}, bodyError(err)
	}
	req.Image = img
	return req, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: %w", ErrTooLarge, err)
	}
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}
