// Package notifier implements the notification boundary: sinks that carry
// activity-log entries and event updates to their transports, and an async
// dispatcher that keeps delivery off the fusion path.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/truthfuse/internal/domain/model"
	"github.com/okian/truthfuse/pkg/logger"
)

// Sink publishes one notification.
type Sink interface {
	Publish(ctx context.Context, n model.Notification) error
}

// Closer is implemented by sinks holding transport connections.
type Closer interface {
	Close() error
}

func encode(n model.Notification) ([]byte, error) {
	if n.Kind != model.KindActivity && n.Kind != model.KindEventUpdate {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
	b, err := json.Marshal(n.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", n.Kind, err)
	}
	return b, nil
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a sink that logs through l.
func NewLogSink(l logger.Logger) *LogSink {
	return &LogSink{log: l.Named("notifier")}
}

// Publish implements Sink.
func (s *LogSink) Publish(ctx context.Context, n model.Notification) error {
	switch n.Kind {
	case model.KindActivity:
		if n.Activity == nil {
			return nil
		}
		fields := []logger.Field{
			logger.String("channel", string(n.Kind)),
			logger.String("type", n.Activity.Level),
		}
		if n.Activity.EventID != "" {
			fields = append(fields, logger.String("event_id", n.Activity.EventID))
		}
		if n.Activity.Level == model.LevelError {
			s.log.Warn(ctx, n.Activity.Message, fields...)
		} else {
			s.log.Info(ctx, n.Activity.Message, fields...)
		}
	case model.KindEventUpdate:
		if n.Event == nil {
			return nil
		}
		s.log.Info(ctx, "event update",
			logger.String("channel", string(n.Kind)),
			logger.String("event_id", n.Event.ID),
			logger.String("status", string(n.Event.Status)),
			logger.Float64("confidence", n.Event.ConfidenceScore),
			logger.Int("report_count", n.Event.ReportCount),
		)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
	return nil
}

// FanOut publishes to every sink and joins their errors.
type FanOut []Sink

// Publish implements Sink.
func (f FanOut) Publish(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (f FanOut) Close() error {
	var errs []error
	for _, s := range f {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Recorder captures notifications in memory.
type Recorder struct {
	mu  sync.Mutex
	all []model.Notification
}

// Publish implements Sink.
func (r *Recorder) Publish(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.Event != nil {
		ev := n.Event.Clone()
		n.Event = &ev
	}
	r.all = append(r.all, n)
	return nil
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.all...)
}

// Activities returns the recorded activity messages in order.
func (r *Recorder) Activities() []string {
	var out []string
	for _, n := range r.All() {
		if n.Kind == model.KindActivity && n.Activity != nil {
			out = append(out, n.Activity.Message)
		}
	}
	return out
}

// Events returns the recorded event updates in order.
func (r *Recorder) Events() []model.Event {
	var out []model.Event
	for _, n := range r.All() {
		if n.Kind == model.KindEventUpdate && n.Event != nil {
			out = append(out, *n.Event)
		}
	}
	return out
}
