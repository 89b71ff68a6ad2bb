// Package forensics checks whether an image's embedded metadata is plausible
// for the location a report claims.
package forensics

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/truthfuse/internal/domain/geo"
	"github.com/okian/truthfuse/internal/domain/model"
)

const (
	defaultGPSTolerance = 200
	defaultMaxAge       = 24 * time.Hour

	scoreVerified = 0.5
	scoreMismatch = -0.5
	scoreStale    = -0.2
)

// Reasons that do not embed measurements.
const (
	ReasonNoImage   = "no image provided"
	ReasonCorrupt   = "corrupt or unreadable image data"
	ReasonNoGPS     = "no GPS metadata (likely screenshot or downloaded)"
	ReasonNoCapture = "no capture timestamp"
)

// Result is the verdict on one image.
type Result struct {
	Score    float64 `json:"score"`
	Verified bool    `json:"verified"`
	Reason   string  `json:"reason"`
}

// Option applies a configuration option to the Verifier.
type Option func(*Verifier)

// WithClock overrides the time source used to age images.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithReader overrides the metadata reader.
func WithReader(r MetadataReader) Option {
	return func(v *Verifier) {
		if r != nil {
			v.reader = r
		}
	}
}

// WithGPSTolerance sets the maximum metres between image GPS and report.
func WithGPSTolerance(m float64) Option {
	return func(v *Verifier) {
		if m > 0 {
			v.tolerance = m
		}
	}
}

// WithMaxAge sets the freshness window for capture timestamps.
func WithMaxAge(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.maxAge = d
		}
	}
}

// Verifier inspects image metadata. It is safe for concurrent use.
type Verifier struct {
	reader    MetadataReader
	now       func() time.Time
	tolerance float64
	maxAge    time.Duration
}

// NewVerifier creates a verifier backed by the EXIF reader.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		reader:    ExifReader{},
		now:       time.Now,
		tolerance: defaultGPSTolerance,
		maxAge:    defaultMaxAge,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify never fails: unusable evidence is expressed as a zero or negative
// score with a reason.
func (v *Verifier) Verify(img []byte, claimed model.Location) (res Result) {
	if len(img) == 0 {
		return Result{Reason: ReasonNoImage}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Reason: ReasonCorrupt}
		}
	}()

	md, err := v.reader.Read(img)
	switch {
	case err != nil:
		return Result{Reason: ReasonCorrupt}
	case !md.HasGPS:
		return Result{Reason: ReasonNoGPS}
	}

	dist := geo.RoundedDistance(md.Location, claimed)
	if dist > v.tolerance {
		return Result{
			Score:  scoreMismatch,
			Reason: fmt.Sprintf("location mismatch: %.0fm from report (max %.0fm)", dist, v.tolerance),
		}
	}

	if !md.HasTime {
		return Result{Reason: ReasonNoCapture}
	}

	age := time.Duration(math.Abs(float64(v.now().Sub(md.TakenAt))))
	hours := age.Hours()
	if age > v.maxAge {
		return Result{
			Score:  scoreStale,
			Reason: fmt.Sprintf("stale image: %.1fh old (max %.0fh)", hours, v.maxAge.Hours()),
		}
	}

	return Result{
		Score:    scoreVerified,
		Verified: true,
		Reason:   fmt.Sprintf("verified: %.0fm drift, %.1fh old", dist, hours),
	}
}
