package model

import (
	"strings"
	"time"
)

// Findings are the engine-derived fields written back onto a report.
type Findings struct {
	ForensicScore        float64 `json:"forensic_score"`
	ForensicVerified     bool    `json:"forensic_verified"`
	ForensicReason       string  `json:"forensic_reason"`
	ClassifierVerified   bool    `json:"classifier_verified"`
	ClassifierCategory   string  `json:"classifier_category,omitempty"`
	ClassifierConfidence float64 `json:"classifier_confidence"`
	ClassifierFallback   bool    `json:"classifier_fallback"`
	Power                float64 `json:"power"`
}

// Report is a single submission. It is not mutated after creation except for
// Findings and EventID, which the engine fills in.
type Report struct {
	ID              string    `json:"id"`
	ReporterID      string    `json:"reporter_id"`
	ReporterRole    Role      `json:"reporter_role"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Keywords        []string  `json:"keywords"`
	Location        Location  `json:"location"`
	ClaimedSeverity Severity  `json:"severity"`
	Image           []byte    `json:"-"`
	ImageURL        string    `json:"image_url,omitempty"`
	EventDate       time.Time `json:"event_date"`
	SubmittedAt     time.Time `json:"submitted_at"`
	EventID         string    `json:"event_id,omitempty"`
	Findings        Findings  `json:"findings"`
}

// TitleKeywords lower-cases the trimmed title and splits it on whitespace.
func TitleKeywords(title string) []string {
	return strings.Fields(strings.ToLower(strings.TrimSpace(title)))
}
