package coordinator

import (
	"context"

	"github.com/medley-health/medley/pkg/agent"
	"github.com/medley-health/medley/pkg/model"
	"github.com/medley-health/medley/pkg/policy"
	"github.com/medley-health/medley/pkg/utils/logging"
)

var physicalKeywords = []string{
	"pain", "hurt", "ache", "injury", "injured", "sprain", "strain", "knee", "ankle", "back pain",
	"shoulder", "muscle", "joint", "fever", "cough", "headache", "dizzy", "tired", "fatigue",
	"exercise", "training", "workout", "running", "match", "game", "sport", "weight",
	"sleep", "symptom",
}

var economicKeywords = []string{
	"cost", "afford", "price", "expensive", "cheap", "money", "insurance", "income", "salary",
	"pay for", "bill", "budget", "debt", "loan", "job", "unemployed", "financial", "fees",
}

var costConcerns = []string{"cost", "insurance", "afford", "financial", "money"}

// classify selects domains from keywords and hints. Mental is always first.
func classify(req *model.Request) []model.Domain {
	domains := []model.Domain{model.DomainMental}

	if req.Hints.HasSportsMetrics() || len(agent.MatchKeywords(req.Text, physicalKeywords)) > 0 {
		domains = append(domains, model.DomainPhysical)
	}

	economic := req.Hints.Income != nil || req.Hints.Country != "" ||
		len(agent.MatchKeywords(req.Text, economicKeywords)) > 0
	for _, concern := range req.Hints.HealthConcerns {
		if len(agent.MatchKeywords(concern, costConcerns)) > 0 {
			economic = true
		}
	}
	if economic {
		domains = append(domains, model.DomainEconomic)
	}
	return domains
}

// dispatch returns the selected domains ordered by priority. When a policy is
// configured it replaces keyword classification; a failing policy falls back
// to keywords.
func (c *Coordinator) dispatch(ctx context.Context, req *model.Request, profile *model.UserProfile) []model.Domain {
	var domains []model.Domain
	if c.policy != nil {
		selected, err := c.policy.Domains(ctx, &policy.Input{Text: req.Text, Hints: req.Hints, Profile: profile})
		if err != nil {
			logging.From(ctx).Warn("dispatch policy failed, using keywords", "error", err)
			domains = classify(req)
		} else {
			domains = append([]model.Domain{model.DomainMental}, selected...)
		}
	} else {
		domains = classify(req)
	}

	seen := map[model.Domain]bool{}
	unique := make([]model.Domain, 0, len(domains))
	for _, d := range domains {
		if !seen[d] {
			seen[d] = true
			unique = append(unique, d)
		}
	}
	model.SortDomains(unique)
	return unique
}
