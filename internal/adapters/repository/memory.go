package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/truthfuse/internal/domain/keylock"
	"github.com/okian/truthfuse/internal/domain/model"
)

// MemoryStore keeps events and reports in process memory. Writers of one
// event are serialised by a per-event lock; commits swap in a fully built
// copy so readers never see a half-applied update.
type MemoryStore struct {
	mu      sync.RWMutex
	events  map[string]model.Event
	order   []string
	reports map[string]model.Report

	locks  *keylock.Locker
	gauges *gaugeUpdater
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &MemoryStore{
		events:  make(map[string]model.Event),
		reports: make(map[string]model.Report),
		locks:   keylock.New(),
		gauges:  newGaugeUpdater(),
	}
	s.gauges.start(ctx, o.metricsInterval, s.Counts)
	return s
}

// Close stops the background gauge updater.
func (s *MemoryStore) Close() error {
	s.gauges.stop()
	return nil
}

func (s *MemoryStore) Create(_ context.Context, e model.Event) (model.Event, error) {
	defer observe("create", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; ok {
		return model.Event{}, fmt.Errorf("event %s: %w", e.ID, ErrExists)
	}
	e = e.Clone()
	e.Version = 1
	s.events[e.ID] = e
	s.order = append(s.order, e.ID)
	return e.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Event, error) {
	defer observe("get", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return e.Clone(), nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]model.Event, error) {
	defer observe("list_active", time.Now())
	return s.list(true), nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]model.Event, error) {
	defer observe("list_all", time.Now())
	return s.list(false), nil
}

func (s *MemoryStore) list(activeOnly bool) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, 0, len(s.order))
	for _, id := range s.order {
		e := s.events[id]
		if activeOnly && !e.Active {
			continue
		}
		out = append(out, e.Clone())
	}
	return out
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (model.Event, error) {
	defer observe("update", time.Now())

	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		return model.Event{}, err
	}
	next.ID = current.ID
	next.Version = current.Version + 1

	s.mu.Lock()
	s.events[id] = next
	s.mu.Unlock()

	return next.Clone(), nil
}

func (s *MemoryStore) Counts(_ context.Context) (active, total int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.Active {
			active++
		}
	}
	return active, len(s.events), nil
}

func (s *MemoryStore) SaveReport(_ context.Context, r model.Report) error {
	defer observe("save_report", time.Now())

	r.Image = nil
	r.Keywords = append([]string(nil), r.Keywords...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
	return nil
}

func (s *MemoryStore) SaveFindings(_ context.Context, reportID string, f model.Findings) error {
	defer observe("save_findings", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[reportID]
	if !ok {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	r.Findings = f
	s.reports[reportID] = r
	return nil
}

func (s *MemoryStore) LinkEvent(_ context.Context, reportID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[reportID]
	if !ok {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	r.EventID = eventID
	s.reports[reportID] = r
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, id string) (model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return model.Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	r.Keywords = append([]string(nil), r.Keywords...)
	return r, nil
}
