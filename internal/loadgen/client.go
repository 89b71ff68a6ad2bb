package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/truthfuse/internal/adapters/http/api"
)

var errUnexpectedStatus = errors.New("unexpected status")

// Result is the service's answer to one submission.
type Result struct {
	Status  string
	EventID string
}

// Event is the subset of an event the verifier reads.
type Event struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	ReportCount     int     `json:"report_count"`
	ConfidenceScore float64 `json:"confidence_score"`
	Status          string  `json:"status"`
}

// Client talks to the truthfuse HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Health checks that /healthz answers 200.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: healthz %d", errUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// Submit posts one report.
func (c *Client) Submit(ctx context.Context, s Submission) (Result, error) {
	body, err := json.Marshal(map[string]any{
		"title":    s.Title,
		"lat":      s.Lat,
		"lng":      s.Lng,
		"severity": s.Severity,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal report: %w", err)
	}
	headers := map[string]string{
		"Content-Type":         "application/json",
		api.HeaderReporterID:   s.ReporterID,
		api.HeaderReporterRole: s.Role,
	}
	resp, err := c.do(ctx, http.MethodPost, "/reports", bytes.NewReader(body), headers)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		return Result{}, fmt.Errorf("%w: reports %d", errUnexpectedStatus, resp.StatusCode)
	}
	var ack struct {
		Status string `json:"status"`
		Code   string `json:"code"`
		Event  *Event `json:"event"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return Result{}, fmt.Errorf("decode ack: %w", err)
	}
	res := Result{Status: ack.Status}
	if res.Status == "" {
		res.Status = ack.Code
	}
	if ack.Event != nil {
		res.EventID = ack.Event.ID
	}
	return res, nil
}

// Event fetches one event by id.
func (c *Client) Event(ctx context.Context, id string) (Event, error) {
	resp, err := c.do(ctx, http.MethodGet, "/events/"+id, nil, nil)
	if err != nil {
		return Event{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Event{}, fmt.Errorf("%w: event %s %d", errUnexpectedStatus, id, resp.StatusCode)
	}
	var ev Event
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
