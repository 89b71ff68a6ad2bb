// Package classifier calls the remote image-content classification service.
// Every failure mode degrades to a fallback verdict; Classify never errors.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/okian/truthfuse/pkg/logger"
	"github.com/okian/truthfuse/pkg/metrics"
)

const (
	defaultTimeout      = 5 * time.Second
	defaultMaxFailures  = 5
	defaultResetTimeout = 30 * time.Second
	maxResponseBytes    = 1 << 20

	formField = "image"
	formFile  = "report_image.jpg"
)

// Verdict is the classifier's answer. Fallback distinguishes "unavailable"
// from "looked and said no".
type Verdict struct {
	Verified   bool     `json:"verified"`
	Category   string   `json:"category,omitempty"`
	Confidence float64  `json:"confidence"`
	Labels     []string `json:"labels,omitempty"`
	Fallback   bool     `json:"fallback"`
}

// Fallback is the verdict used whenever the service cannot answer.
func Fallback() Verdict {
	return Verdict{Fallback: true}
}

type response struct {
	Verified         bool    `json:"verified"`
	DetectedCategory *string `json:"detected_category"`
	Confidence       float64 `json:"confidence"`
	RawDetections    []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"raw_detections"`
}

// Classifier is the capability the fusion engine depends on.
type Classifier interface {
	Classify(ctx context.Context, image []byte) Verdict
}

// Disabled always answers with the fallback verdict.
type Disabled struct{}

// Classify implements Classifier.
func (Disabled) Classify(context.Context, []byte) Verdict { return Fallback() }

// HTTPClassifier posts images as multipart form data.
type HTTPClassifier struct {
	url     string
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     logger.Logger

	maxFailures  int
	resetTimeout time.Duration
}

// New creates a classifier for url.
func New(url string, opts ...Option) *HTTPClassifier {
	c := &HTTPClassifier{
		url:          url,
		client:       &http.Client{},
		timeout:      defaultTimeout,
		log:          logger.Discard(),
		maxFailures:  defaultMaxFailures,
		resetTimeout: defaultResetTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = newBreaker(c.maxFailures, c.resetTimeout)
	return c
}

// BreakerState exposes the circuit state for diagnostics.
func (c *HTTPClassifier) BreakerState() State {
	if c.breaker == nil {
		return Closed
	}
	return c.breaker.State()
}

// Classify implements Classifier.
func (c *HTTPClassifier) Classify(ctx context.Context, image []byte) Verdict {
	v, err := c.classify(ctx, image)
	if err != nil {
		if !errors.Is(err, ErrNoImage) {
			c.log.Warn(ctx, "classifier unavailable, using fallback", logger.Error(err))
		}
		metrics.RecordClassifierCall("fallback")
		return Fallback()
	}
	if v.Verified {
		metrics.RecordClassifierCall("verified")
	} else {
		metrics.RecordClassifierCall("rejected")
	}
	return v
}

func (c *HTTPClassifier) classify(ctx context.Context, image []byte) (Verdict, error) {
	if len(image) == 0 {
		return Verdict{}, ErrNoImage
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return Verdict{}, ErrRateLimited
	}
	return c.guarded(func() (Verdict, error) {
		start := time.Now()
		defer func() {
			metrics.RecordClassifierLatency(float64(time.Since(start).Milliseconds()))
		}()
		return c.post(ctx, image)
	})
}

func (c *HTTPClassifier) post(ctx context.Context, image []byte) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(formField, formFile)
	if err != nil {
		return Verdict{}, fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return Verdict{}, fmt.Errorf("build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Verdict{}, fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return Verdict{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("post %s: %w", c.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return Verdict{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var r response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&r); err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	v := Verdict{Verified: r.Verified, Confidence: r.Confidence}
	if r.DetectedCategory != nil {
		v.Category = strings.ToLower(*r.DetectedCategory)
	}
	for _, d := range r.RawDetections {
		v.Labels = append(v.Labels, d.Label)
	}
	c.log.Debug(ctx, "classifier verdict",
		logger.Bool("verified", v.Verified),
		logger.String("category", v.Category),
		logger.Float64("confidence", v.Confidence),
		logger.String("labels", strings.Join(v.Labels, ",")),
	)
	return v, nil
}
