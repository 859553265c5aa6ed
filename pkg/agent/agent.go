package agent

import (
	"context"
	"strings"

	"github.com/medley-health/medley/pkg/model"
)

// Adapter is one domain reasoner. Calls are not assumed to be deterministic.
type Adapter interface {
	Domain() model.Domain
	Invoke(ctx context.Context, req *model.Request, bundle *Bundle) (*model.AgentFinding, error)
}

// Bundle is the memory context handed to every adapter of one request.
type Bundle struct {
	Profile     *model.UserProfile
	Experiences []*model.ScoredExperience
}

// ExperiencesOf returns the retrieved experiences of one domain, keeping rank order
func (b *Bundle) ExperiencesOf(d model.Domain) []*model.ScoredExperience {
	if b == nil {
		return nil
	}
	var result []*model.ScoredExperience
	for _, e := range b.Experiences {
		if e.Experience != nil && e.Experience.Domain == d {
			result = append(result, e)
		}
	}
	return result
}

// ConcernCount returns how often the profile has seen tag
func (b *Bundle) ConcernCount(tag string) int {
	if b == nil || b.Profile == nil {
		return 0
	}
	return b.Profile.ConcernCounts[tag]
}

// Result is the settled outcome of one adapter call: a finding or an error,
// never both.
type Result struct {
	Domain  model.Domain
	Finding *model.AgentFinding
	Err     error
}

// OK reports whether the call produced a finding
func (r *Result) OK() bool {
	return r.Err == nil && r.Finding != nil
}

// MatchKeywords returns the keywords found in text, case-insensitively
func MatchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// Clamp bounds v to [0,1]
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
