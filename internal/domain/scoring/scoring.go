// Package scoring turns evidence signals into report power, moves event
// confidence along the asymptotic update law, and aggregates severity.
package scoring

import (
	"math"

	"github.com/okian/truthfuse/internal/domain/model"
)

// Scoring constants.
const (
	defaultRoleWeight = 0.5
	roleFactor        = 0.4
	evidenceFactor    = 0.6
	evidenceFloor     = 0.2
	evidenceStep      = 0.4
	seedDamping       = 0.45
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithRoleWeights overrides per-role trust weights. Non-positive weights are
// ignored; roles missing from the map keep their built-in weight.
func WithRoleWeights(weights map[string]float64) Option {
	return func(s *Scorer) {
		for role, w := range weights {
			if w > 0 {
				s.roleWeights[model.ParseRole(role)] = math.Min(w, 1)
			}
		}
	}
}

// WithDefaultWeight sets the weight used for unknown roles.
func WithDefaultWeight(w float64) Option {
	return func(s *Scorer) {
		if w > 0 && w <= 1 {
			s.defaultWeight = w
		}
	}
}

// Scorer holds the role weight table. It is immutable after construction and
// safe for concurrent use.
type Scorer struct {
	roleWeights   map[model.Role]float64
	defaultWeight float64
}

// NewScorer creates a scorer with the built-in role weights.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		roleWeights: map[model.Role]float64{
			model.RoleVerifiedSource: 1.0,
			model.RoleAdmin:          1.0,
			model.RoleCitizen:        0.5,
		},
		defaultWeight: defaultRoleWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weight returns the trust weight of role.
func (s *Scorer) Weight(role model.Role) float64 {
	if w, ok := s.roleWeights[role]; ok {
		return w
	}
	return s.defaultWeight
}

// ReportPower combines role trust and evidence into a [0,1] credibility weight.
// A report with no corroborating evidence still carries the 0.2 evidence floor.
func (s *Scorer) ReportPower(role model.Role, forensicsVerified, classifierVerified bool) float64 {
	evidence := evidenceFloor
	if forensicsVerified {
		evidence += evidenceStep
	}
	if classifierVerified {
		evidence += evidenceStep
	}
	evidence = clamp(evidence, 0, 1)
	return clamp(s.Weight(role)*roleFactor+evidence*evidenceFactor, 0, 1)
}

// DeriveSeverity is the role-weighted mean of the reporters' claimed severity
// ordinals, rounded and clamped to [LOW, CRITICAL]. It depends only on the
// multiset of reporters. An empty list yields LOW.
func (s *Scorer) DeriveSeverity(reporters []model.Reporter) model.Severity {
	if len(reporters) == 0 {
		return model.SeverityLow
	}
	var sum, total float64
	for _, r := range reporters {
		w := s.Weight(r.Role)
		sum += float64(r.ClaimedSeverity.Ordinal()) * w
		total += w
	}
	return model.SeverityFromOrdinal(int(math.Round(sum / total)))
}

// AsymptoticUpdate moves confidence c by a fraction delta of the remaining
// headroom to the ceiling. Negations subtract the same headroom-derived step.
func AsymptoticUpdate(c, delta float64, negation bool) float64 {
	c = clamp(c, 0, model.MaxConfidence)
	delta = clamp(delta, 0, 1)
	if !negation && delta == 1 {
		return model.MaxConfidence
	}
	step := (model.MaxConfidence - c) * delta
	if negation {
		return clamp(c-step, 0, model.MaxConfidence)
	}
	return clamp(c+step, 0, model.MaxConfidence)
}

// SeedConfidence is the dampened confidence of a brand-new event.
func SeedConfidence(power float64) float64 {
	return AsymptoticUpdate(0, power*seedDamping, false)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
