package model

import (
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidFinding = goerr.New("invalid finding")
)

// Priority of a recommendation. Higher is more urgent.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// Observation is a free-text claim with a confidence.
type Observation struct {
	Claim      string  `json:"claim"`
	Confidence float64 `json:"confidence"`
}

// Recommendation is an action on a target area.
type Recommendation struct {
	Action     string   `json:"action"`
	Target     string   `json:"target"`
	Priority   Priority `json:"priority"`
	Rationale  string   `json:"rationale,omitempty"`
	Confidence float64  `json:"confidence"`

	// Set during fusion
	Domain       Domain `json:"domain,omitempty"`
	Superseded   bool   `json:"superseded,omitempty"`
	SupersededBy string `json:"superseded_by,omitempty"`
}

// Key is the semantic key used for deduplication: normalized action + target.
func (r *Recommendation) Key() string {
	return NormalizePhrase(r.Action) + "|" + NormalizePhrase(r.Target)
}

// NormalizePhrase lowercases and collapses whitespace, underscores and dashes.
func NormalizePhrase(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// AgentFinding is the structured output of one agent adapter.
type AgentFinding struct {
	Domain          Domain            `json:"domain"`
	Severity        float64           `json:"severity"`
	Observations    []*Observation    `json:"observations"`
	Recommendations []*Recommendation `json:"recommendations,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
}

// Validate checks the finding belongs to a known domain and that every score is in [0,1]
func (f *AgentFinding) Validate() error {
	if f == nil {
		return goerr.Wrap(ErrInvalidFinding, "finding is nil")
	}
	if err := f.Domain.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidFinding, "finding has invalid domain", goerr.V("domain", f.Domain))
	}
	if !inUnit(f.Severity) {
		return goerr.Wrap(ErrInvalidFinding, "severity out of range", goerr.V("domain", f.Domain), goerr.V("severity", f.Severity))
	}
	for _, o := range f.Observations {
		if o == nil || !inUnit(o.Confidence) {
			return goerr.Wrap(ErrInvalidFinding, "observation confidence out of range", goerr.V("domain", f.Domain))
		}
	}
	for _, r := range f.Recommendations {
		if r == nil || !inUnit(r.Confidence) {
			return goerr.Wrap(ErrInvalidFinding, "recommendation confidence out of range", goerr.V("domain", f.Domain))
		}
		if strings.TrimSpace(r.Action) == "" {
			return goerr.Wrap(ErrInvalidFinding, "recommendation action is empty", goerr.V("domain", f.Domain))
		}
	}
	return nil
}

func copyObservations(src []*Observation) []*Observation {
	if src == nil {
		return nil
	}
	dst := make([]*Observation, len(src))
	for i, o := range src {
		if o != nil {
			c := *o
			dst[i] = &c
		}
	}
	return dst
}

func copyRecommendations(src []*Recommendation) []*Recommendation {
	if src == nil {
		return nil
	}
	dst := make([]*Recommendation, len(src))
	for i, r := range src {
		if r != nil {
			c := *r
			dst[i] = &c
		}
	}
	return dst
}

// Copy returns a deep copy of the finding
func (f *AgentFinding) Copy() *AgentFinding {
	if f == nil {
		return nil
	}
	c := *f
	c.Observations = copyObservations(f.Observations)
	c.Recommendations = copyRecommendations(f.Recommendations)
	c.Tags = slices.Clone(f.Tags)
	return &c
}
