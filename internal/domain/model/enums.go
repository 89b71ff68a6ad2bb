package model

import "strings"

// Role is the reporter trust class resolved by the auth collaborator.
type Role string

const (
	RoleCitizen        Role = "citizen"
	RoleVerifiedSource Role = "verified_source"
	RoleAdmin          Role = "admin"
)

// ParseRole normalises a role label. Unknown labels are returned as-is so that
// scoring can weight them as the lowest trust class.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether r is one of the declared roles.
func (r Role) Known() bool {
	switch r {
	case RoleCitizen, RoleVerifiedSource, RoleAdmin:
		return true
	}
	return false
}

// Severity is the claimed or aggregated impact level of an incident.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityOrdinals = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

var severityByOrdinal = [...]Severity{1: SeverityLow, 2: SeverityMedium, 3: SeverityHigh, 4: SeverityCritical}

// ParseSeverity maps a label to a Severity; unknown labels become LOW.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityOrdinals[sev]; !ok {
		return SeverityLow
	}
	return sev
}

// Ordinal returns 1..4; unknown severities count as LOW.
func (s Severity) Ordinal() int {
	if o, ok := severityOrdinals[s]; ok {
		return o
	}
	return 1
}

// SeverityFromOrdinal clamps o to [1, 4] and returns its label.
func SeverityFromOrdinal(o int) Severity {
	if o < 1 {
		o = 1
	}
	if o > 4 {
		o = 4
	}
	return severityByOrdinal[o]
}

// Status is the event lifecycle state.
type Status string

const (
	StatusMonitoring Status = "MONITORING"
	StatusVerified   Status = "VERIFIED"
	StatusDisputed   Status = "DISPUTED"
	StatusDebunked   Status = "DEBUNKED"
	StatusResolved   Status = "RESOLVED"
)

// Terminal reports whether no further merges are accepted in this status.
func (s Status) Terminal() bool { return s == StatusResolved }
