package coordinator

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/medley-health/medley/pkg/model"
)

type polarity struct {
	axis string
	up   bool
}

// actionPolarity maps a leading action verb to the axis it moves and its direction
var actionPolarity = map[string]polarity{
	"increase": {"amount", true},
	"raise":    {"amount", true},
	"boost":    {"amount", true},
	"more":     {"amount", true},
	"reduce":   {"amount", false},
	"decrease": {"amount", false},
	"lower":    {"amount", false},
	"limit":    {"amount", false},
	"cut":      {"amount", false},
	"less":     {"amount", false},

	"start":    {"activity", true},
	"begin":    {"activity", true},
	"resume":   {"activity", true},
	"continue": {"activity", true},
	"maintain": {"activity", true},
	"stop":     {"activity", false},
	"quit":     {"activity", false},
	"pause":    {"activity", false},
	"avoid":    {"activity", false},

	"add":    {"presence", true},
	"remove": {"presence", false},
}

func actionOf(r *model.Recommendation) (polarity, bool) {
	fields := strings.Fields(model.NormalizePhrase(r.Action))
	if len(fields) == 0 {
		return polarity{}, false
	}
	p, ok := actionPolarity[fields[0]]
	return p, ok
}

func contradictory(a, b *model.Recommendation) bool {
	pa, ok := actionOf(a)
	if !ok {
		return false
	}
	pb, ok := actionOf(b)
	if !ok {
		return false
	}
	return pa.axis == pb.axis && pa.up != pb.up
}

// targetsOverlap reports whether one target's words are all contained in the other's
func targetsOverlap(a, b string) bool {
	ta := strings.Fields(model.NormalizePhrase(a))
	tb := strings.Fields(model.NormalizePhrase(b))
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	for _, w := range ta {
		if !slices.Contains(tb, w) {
			return false
		}
	}
	return true
}

// beats reports whether a wins a conflict against b
func beats(a, b *model.Recommendation) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Domain.Outranks(b.Domain)
}

func label(r *model.Recommendation) string {
	return fmt.Sprintf("%s: %s %s", r.Domain, model.NormalizePhrase(r.Action), model.NormalizePhrase(r.Target))
}

// resolveConflicts flags every recommendation that is contradicted by a
// stronger one from another domain. The outcome does not depend on input order.
func resolveConflicts(recs []*model.Recommendation) {
	for _, r := range recs {
		var winner *model.Recommendation
		for _, other := range recs {
			if other == r || other.Domain == r.Domain {
				continue
			}
			if !contradictory(r, other) || !targetsOverlap(r.Target, other.Target) {
				continue
			}
			if beats(other, r) && (winner == nil || beats(other, winner)) {
				winner = other
			}
		}
		if winner != nil {
			r.Superseded = true
			r.SupersededBy = label(winner)
		}
	}
}

// dedupe merges recommendations sharing a key. The merged item keeps the max
// confidence and priority and is superseded only if every contributor was.
func dedupe(recs []*model.Recommendation) []*model.Recommendation {
	byKey := map[string]*model.Recommendation{}
	var order []string
	for _, r := range recs {
		key := r.Key()
		merged, ok := byKey[key]
		if !ok {
			c := *r
			byKey[key] = &c
			order = append(order, key)
			continue
		}
		if beats(r, merged) {
			merged.Domain = r.Domain
			merged.Rationale = r.Rationale
		}
		merged.Confidence = max(merged.Confidence, r.Confidence)
		merged.Priority = max(merged.Priority, r.Priority)
		if !r.Superseded {
			merged.Superseded = false
			merged.SupersededBy = ""
		}
	}

	result := make([]*model.Recommendation, 0, len(order))
	for _, key := range order {
		result = append(result, byKey[key])
	}
	return result
}

func sortRecommendations(recs []*model.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Superseded != b.Superseded {
			return !a.Superseded
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Domain != b.Domain {
			return a.Domain.Outranks(b.Domain)
		}
		return a.Key() < b.Key()
	})
}

func summarize(f *model.AgentFinding, floor float64) *model.DomainSummary {
	var observations []*model.Observation
	for _, o := range f.Observations {
		if o.Confidence >= floor {
			c := *o
			observations = append(observations, &c)
		}
	}
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Confidence > observations[j].Confidence
	})
	return &model.DomainSummary{
		Domain:       f.Domain,
		Severity:     f.Severity,
		Observations: observations,
	}
}

// CombinedSeverity weights the severities of present domains with weights
// renormalized to sum to 1. Equal weights are used when every present weight is zero.
func (c *Config) CombinedSeverity(severities map[model.Domain]float64) float64 {
	if len(severities) == 0 {
		return 0
	}
	var total, sum float64
	for d, s := range severities {
		w := c.Weight(d)
		total += w
		sum += w * s
	}
	if total == 0 {
		for _, s := range severities {
			sum += s
		}
		return sum / float64(len(severities))
	}
	return sum / total
}

// StatusOf buckets a combined severity
func (c *Config) StatusOf(severity float64) model.Status {
	switch {
	case severity < c.StatusAttention:
		return model.StatusStable
	case severity < c.StatusUrgent:
		return model.StatusAttention
	default:
		return model.StatusUrgent
	}
}

// Fuse merges successful findings into one assessment. Findings are not
// modified. unavailable lists domains that were selected but failed.
func Fuse(cfg *Config, findings []*model.AgentFinding, unavailable []model.Domain) *model.HealthAssessment {
	sorted := slices.Clone(findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Domain.Outranks(sorted[j].Domain)
	})

	assessment := &model.HealthAssessment{
		Summaries:       map[model.Domain]*model.DomainSummary{},
		Recommendations: []*model.Recommendation{},
	}

	severities := map[model.Domain]float64{}
	var recs []*model.Recommendation
	for _, f := range sorted {
		assessment.Summaries[f.Domain] = summarize(f, cfg.ConfidenceFloor)
		severities[f.Domain] = f.Severity

		for _, r := range f.Recommendations {
			c := *r
			c.Domain = f.Domain
			c.Superseded = false
			c.SupersededBy = ""
			recs = append(recs, &c)
		}

		if f.Severity > cfg.RiskThreshold {
			assessment.RiskFlags = append(assessment.RiskFlags, &model.RiskFlag{
				Domain:   f.Domain,
				Level:    model.RiskLevelUrgent,
				Severity: f.Severity,
				Reason:   fmt.Sprintf("%s severity %.2f exceeds %.2f", f.Domain, f.Severity, cfg.RiskThreshold),
			})
		}
	}

	resolveConflicts(recs)
	recs = dedupe(recs)
	sortRecommendations(recs)
	assessment.Recommendations = recs

	assessment.CombinedSeverity = cfg.CombinedSeverity(severities)
	assessment.Status = cfg.StatusOf(assessment.CombinedSeverity)

	if len(unavailable) > 0 {
		assessment.Unavailable = slices.Clone(unavailable)
		model.SortDomains(assessment.Unavailable)
	}
	return assessment
}
