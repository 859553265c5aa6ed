package model

import "slices"

// Status is the overall label of an assessment.
type Status string

const (
	StatusStable         Status = "stable"
	StatusAttention      Status = "attention"
	StatusUrgent         Status = "urgent"
	StatusUnableToAssess Status = "unable_to_assess"
)

// RiskLevel of a risk flag.
type RiskLevel string

const (
	RiskLevelUrgent RiskLevel = "urgent"
)

// RiskFlag is raised when a single domain severity exceeds the hard threshold.
type RiskFlag struct {
	Domain   Domain    `json:"domain"`
	Level    RiskLevel `json:"level"`
	Severity float64   `json:"severity"`
	Reason   string    `json:"reason"`
}

// DomainSummary is the filtered view of one agent finding.
type DomainSummary struct {
	Domain       Domain         `json:"domain"`
	Severity     float64        `json:"severity"`
	Observations []*Observation `json:"observations"`
}

// HealthAssessment is the fused output returned to the caller.
type HealthAssessment struct {
	SessionID        SessionID                 `json:"session_id,omitempty"`
	Status           Status                    `json:"overall_status"`
	CombinedSeverity float64                   `json:"combined_severity"`
	Summaries        map[Domain]*DomainSummary `json:"summaries"`
	Unavailable      []Domain                  `json:"unavailable,omitempty"`
	Recommendations  []*Recommendation         `json:"recommendations"`
	RiskFlags        []*RiskFlag               `json:"risk_flags,omitempty"`
	MemoryContext    int                       `json:"memory_context"`

	PersistenceDegraded bool     `json:"persistence_degraded"`
	Warnings            []string `json:"warnings,omitempty"`
}

// Summary returns the summary for a domain, or nil when the domain was not
// invoked or failed.
func (a *HealthAssessment) Summary(d Domain) *DomainSummary {
	if a == nil || a.Summaries == nil {
		return nil
	}
	return a.Summaries[d]
}

// HasUrgentFlag reports whether any risk flag is urgent
func (a *HealthAssessment) HasUrgentFlag() bool {
	for _, f := range a.RiskFlags {
		if f.Level == RiskLevelUrgent {
			return true
		}
	}
	return false
}

// Warn appends a non-fatal warning
func (a *HealthAssessment) Warn(msg string) {
	a.Warnings = append(a.Warnings, msg)
}

// Copy returns a deep copy of the assessment
func (a *HealthAssessment) Copy() *HealthAssessment {
	if a == nil {
		return nil
	}
	c := *a
	if a.Summaries != nil {
		c.Summaries = make(map[Domain]*DomainSummary, len(a.Summaries))
		for d, s := range a.Summaries {
			if s == nil {
				c.Summaries[d] = nil
				continue
			}
			sc := *s
			sc.Observations = copyObservations(s.Observations)
			c.Summaries[d] = &sc
		}
	}
	c.Unavailable = slices.Clone(a.Unavailable)
	c.Recommendations = copyRecommendations(a.Recommendations)
	if a.RiskFlags != nil {
		c.RiskFlags = make([]*RiskFlag, len(a.RiskFlags))
		for i, f := range a.RiskFlags {
			if f != nil {
				fc := *f
				c.RiskFlags[i] = &fc
			}
		}
	}
	c.Warnings = slices.Clone(a.Warnings)
	return &c
}
