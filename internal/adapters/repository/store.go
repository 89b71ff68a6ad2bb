// Package repository stores fused events and the reports behind them.
//
// Every store serialises writers per event through Update, which applies a
// caller function to a private copy and commits only when it succeeds.
package repository

import (
	"context"

	"github.com/okian/truthfuse/internal/domain/model"
)

// UpdateFunc mutates a private copy of an event. Returning an error aborts
// the update and leaves the stored event untouched.
type UpdateFunc func(e *model.Event) error

// EventStore provides read/write access to fused events.
type EventStore interface {
	// Create stores a new event at version 1.
	// Returns ErrExists if the ID is taken.
	Create(ctx context.Context, e model.Event) (model.Event, error)

	// Get returns a snapshot of the event.
	// Returns ErrNotFound if the event is unknown.
	Get(ctx context.Context, id string) (model.Event, error)

	// ListActive returns active events in creation order.
	ListActive(ctx context.Context) ([]model.Event, error)

	// ListAll returns every event, resolved ones included, in creation order.
	ListAll(ctx context.Context) ([]model.Event, error)

	// Update serialises with other writers of id, applies fn to a fresh copy
	// and commits it with Version incremented. The error from fn is returned
	// unchanged.
	Update(ctx context.Context, id string, fn UpdateFunc) (model.Event, error)

	// Counts returns the number of active events and of all events.
	Counts(ctx context.Context) (active, total int, err error)
}

// ReportStore persists submitted reports and the findings derived from them.
type ReportStore interface {
	// SaveReport inserts or replaces a report. The image bytes are never stored.
	SaveReport(ctx context.Context, r model.Report) error

	// SaveFindings writes engine findings back onto a stored report.
	SaveFindings(ctx context.Context, reportID string, f model.Findings) error

	// LinkEvent records the event a report was fused into.
	LinkEvent(ctx context.Context, reportID, eventID string) error

	// GetReport returns a stored report.
	GetReport(ctx context.Context, id string) (model.Report, error)
}

// Store is the full storage collaborator used by the service.
type Store interface {
	EventStore
	ReportStore
	Close() error
}
