package fusion

import (
	"time"

	"github.com/okian/truthfuse/internal/adapters/classifier"
	"github.com/okian/truthfuse/internal/domain/matching"
	"github.com/okian/truthfuse/internal/domain/scoring"
	"github.com/okian/truthfuse/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithVerifier replaces the image forensics verifier.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) {
		if v != nil {
			e.verifier = v
		}
	}
}

// WithClassifier sets the content classifier. The default is disabled.
func WithClassifier(c classifier.Classifier) Option {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithMatcher replaces the similarity matcher.
func WithMatcher(m *matching.Matcher) Option {
	return func(e *Engine) {
		if m != nil {
			e.matcher = m
		}
	}
}

// WithScorer replaces the confidence scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithPublisher sets where activity entries and event updates go.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides how event and report IDs are minted.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithCellLevel sets the s2 cell level used to serialise create-or-merge.
func WithCellLevel(level int) Option {
	return func(e *Engine) {
		if level >= 0 && level <= 30 {
			e.cellLevel = level
		}
	}
}

// WithDedupRadius sets how close a repeat report by the same reporter must be
// to count as a duplicate.
func WithDedupRadius(m float64) Option {
	return func(e *Engine) {
		if m > 0 {
			e.dedupRadius = m
		}
	}
}
