// Package matching decides which active event, if any, a report corroborates.
package matching

import (
	"math"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/okian/truthfuse/internal/domain/geo"
	"github.com/okian/truthfuse/internal/domain/lexicon"
	"github.com/okian/truthfuse/internal/domain/model"
)

const (
	defaultSpatialRadius   = 500
	defaultAutoMergeRadius = 50
	defaultTitleThreshold  = 0.85

	jwBoostThreshold = 0.7
	jwPrefixSize     = 4
)

// Reason explains why a candidate became eligible.
type Reason string

const (
	ReasonKeyword   Reason = "keyword"
	ReasonTitle     Reason = "title"
	ReasonProximity Reason = "proximity"
)

// Match is the winning candidate.
type Match struct {
	Event    model.Event
	Distance float64
	Reason   Reason
}

// Matcher finds the best active event for a report. It holds no state beyond
// its thresholds and is safe for concurrent use.
type Matcher struct {
	spatialRadius   float64
	autoMergeRadius float64
	titleThreshold  float64
}

// NewMatcher creates a matcher with the default thresholds.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		spatialRadius:   defaultSpatialRadius,
		autoMergeRadius: defaultAutoMergeRadius,
		titleThreshold:  defaultTitleThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SpatialRadius returns the widest distance at which a report may match.
func (m *Matcher) SpatialRadius() float64 { return m.spatialRadius }

// TitleSimilarity is the case-insensitive Jaro-Winkler similarity of a and b.
func TitleSimilarity(a, b string) float64 {
	return smetrics.JaroWinkler(strings.ToLower(a), strings.ToLower(b), jwBoostThreshold, jwPrefixSize)
}

// FindMatch returns the closest eligible event within the spatial radius.
// A candidate is eligible if it shares a stemmed keyword with any prior
// reporter, its name is similar enough to the report title, or it is within
// the auto-merge radius. Ties keep the first candidate encountered.
func (m *Matcher) FindMatch(report model.Report, active []model.Event) (Match, bool) {
	var (
		best    Match
		found   bool
		nearest = math.Inf(1)
	)
	for i := range active {
		ev := &active[i]
		d := geo.RoundedDistance(report.Location, ev.Location)
		if d > m.spatialRadius {
			continue
		}
		reason, ok := m.eligible(report, ev, d)
		if !ok {
			continue
		}
		if d < nearest {
			nearest = d
			best = Match{Event: *ev, Distance: d, Reason: reason}
			found = true
		}
	}
	return best, found
}

func (m *Matcher) eligible(report model.Report, ev *model.Event, d float64) (Reason, bool) {
	if lexicon.SharesStem(report.Keywords, ev.KeywordUnion()) {
		return ReasonKeyword, true
	}
	if TitleSimilarity(report.Title, ev.Name) > m.titleThreshold {
		return ReasonTitle, true
	}
	if d < m.autoMergeRadius {
		return ReasonProximity, true
	}
	return "", false
}
