// Package loadgen drives a running truthfuse service with clustered synthetic
// reports and checks that every cluster fused into exactly one event.
package loadgen

import (
	"time"

	"github.com/okian/truthfuse/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL           string         // Base URL of the service
	Hotspots          int            // Number of independent incident sites
	ReportsPerHotspot int            // Distinct reporters per site
	Duplicates        bool           // Each site's first reporter reports twice
	Workers           int            // Concurrent submitters
	Timeout           time.Duration  // HTTP request timeout
	Seed              uint64         // Generator seed; equal seeds give equal runs
	Origin            model.Location // Centre of the hotspot grid
	OutputFile        string         // Optional JSON dump of the submissions
	Verbose           bool
}

// Submission is one report as sent to POST /reports.
type Submission struct {
	Hotspot    int     `json:"hotspot"`
	ReporterID string  `json:"reporter_id"`
	Role       string  `json:"role"`
	Title      string  `json:"title"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Severity   string  `json:"severity"`
}

// Stats holds run statistics.
type Stats struct {
	Generated int
	Submitted int
	Created   int
	Merged    int
	Duplicate int
	Failed    int
	Verified  int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
