// Package model contains domain models passed between layers.
package model

import "time"

// MaxConfidence is the confidence ceiling; no event ever reaches 100.
const MaxConfidence = 99.9

// Location is a WGS84 point in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// Reporter is the denormalised contribution of one report to an event.
type Reporter struct {
	ReporterID      string   `json:"reporter_id"`
	Role            Role     `json:"role"`
	ClaimedSeverity Severity `json:"claimed_severity"`
	Keywords        []string `json:"keywords,omitempty"`
}

// Event is a fused incident aggregating one or more reports.
type Event struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Location        Location   `json:"location"`
	Active          bool       `json:"active"`
	ConfidenceScore float64    `json:"confidence_score"`
	Severity        Severity   `json:"severity"`
	Status          Status     `json:"status"`
	ReportCount     int        `json:"report_count"`
	Conclusion      string     `json:"conclusion"`
	LastUpdated     time.Time  `json:"last_updated"`
	CreatedAt       time.Time  `json:"created_at"`
	SourceReports   []string   `json:"source_reports"`
	Reporters       []Reporter `json:"reporters"`
	Version         int64      `json:"version"`
}

// Clone returns a deep copy so callers never alias stored slices.
func (e Event) Clone() Event {
	out := e
	out.SourceReports = append([]string(nil), e.SourceReports...)
	out.Reporters = make([]Reporter, len(e.Reporters))
	for i, r := range e.Reporters {
		r.Keywords = append([]string(nil), r.Keywords...)
		out.Reporters[i] = r
	}
	return out
}

// HasReporter reports whether reporterID already contributed to the event.
func (e *Event) HasReporter(reporterID string) bool {
	for _, r := range e.Reporters {
		if r.ReporterID == reporterID {
			return true
		}
	}
	return false
}

// KeywordUnion returns every keyword contributed by the event's reporters.
func (e *Event) KeywordUnion() []string {
	var out []string
	for _, r := range e.Reporters {
		out = append(out, r.Keywords...)
	}
	return out
}
