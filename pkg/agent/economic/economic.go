package economic

import (
	"context"
	"fmt"
	"strings"

	"github.com/medley-health/medley/pkg/agent"
	"github.com/medley-health/medley/pkg/model"
)

var costKeywords = []string{
	"afford", "expensive", "cost", "price", "insurance", "bill", "money",
	"income", "salary", "budget", "debt", "费用", "保险", "收入", "贵",
}

// Agent reasons about how income and the country's health system constrain care
type Agent struct{}

// New creates an economic health agent
func New() *Agent {
	return &Agent{}
}

func (a *Agent) Domain() model.Domain {
	return model.DomainEconomic
}

func (a *Agent) Invoke(ctx context.Context, req *model.Request, bundle *agent.Bundle) (*model.AgentFinding, error) {
	finding := &model.AgentFinding{Domain: model.DomainEconomic}

	income := req.Hints.Income
	country := req.Hints.Country
	if bundle != nil && bundle.Profile != nil {
		if income == nil {
			income = bundle.Profile.Income
		}
		if country == "" {
			country = bundle.Profile.Country
		}
	}
	concerns := req.Hints.HealthConcerns

	if hits := agent.MatchKeywords(req.Text, costKeywords); len(hits) > 0 {
		finding.Tags = append(finding.Tags, "cost")
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "cost of care is a stated concern: " + strings.Join(hits, ", "),
			Confidence: 0.6,
		})
	}

	profile := LookupCountry(country)
	if profile == nil {
		a.assessWithoutCountry(finding, income, country)
		return finding, nil
	}

	access := profile.AccessibilityScore(income)
	finding.Severity = agent.Clamp(1 - access)
	finding.Observations = append(finding.Observations, &model.Observation{
		Claim:      fmt.Sprintf("healthcare accessibility in %s is %.2f", profile.Name, access),
		Confidence: 0.7,
	})

	rec := func(action, target string, p model.Priority, confidence float64, rationale string) {
		finding.Recommendations = append(finding.Recommendations, &model.Recommendation{
			Action:     action,
			Target:     target,
			Priority:   p,
			Rationale:  rationale,
			Confidence: confidence,
		})
	}

	if profile.PublicCoverage > 0.8 {
		rec("use", "public health insurance", model.PriorityMedium, 0.7, "public coverage is high")
	}
	if profile.PublicCoverage < 0.5 {
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "low public coverage, most care is paid out of pocket",
			Confidence: 0.7,
		})
	}
	if profile.Accessibility < 0.6 {
		rec("plan", "healthcare needs in advance", model.PriorityMedium, 0.6, "healthcare accessibility is low")
	}

	if income != nil {
		level := profile.RelativeIncome(*income)
		finding.Tags = append(finding.Tags, "income_"+level)
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      fmt.Sprintf("income is %s relative to the national average", strings.ReplaceAll(level, "_", " ")),
			Confidence: 0.8,
		})

		switch {
		case *income < profile.GDPPerCapita*0.5:
			finding.Severity = agent.Clamp(finding.Severity + 0.1)
			finding.Observations = append(finding.Observations, &model.Observation{
				Claim:      "income far below the national average may make care hard to afford",
				Confidence: 0.75,
			})
			rec("use", "public healthcare resources", model.PriorityHigh, 0.75, "income is low")
			rec("seek", "free health screening", model.PriorityMedium, 0.7, "")
			rec("prioritize", "preventive care", model.PriorityMedium, 0.65, "prevention avoids expensive treatment")
		case *income < profile.GDPPerCapita:
			rec("consider", "supplemental health insurance", model.PriorityMedium, 0.6, "income is below average")
			rec("schedule", "regular health checkups", model.PriorityLow, 0.6, "")
		default:
			rec("invest", "preventive care", model.PriorityLow, 0.6, "income allows a wider choice of care")
			rec("consider", "private health insurance", model.PriorityLow, 0.5, "")
		}
	} else {
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "income unknown, affordability can not be assessed precisely",
			Confidence: 0.4,
		})
	}

	if profile.hasPractice("traditional_medicine") {
		rec("combine", "traditional and modern medicine", model.PriorityLow, 0.4, "")
	}
	if profile.hasIssue("diabetes") {
		rec("screen", "diabetes", model.PriorityLow, 0.5, "diabetes is common in "+profile.Name)
	}
	if profile.hasIssue("mental_health") || containsConcern(concerns, "mental_health") {
		if income != nil && *income > profile.GDPPerCapita {
			rec("invest", "mental health services", model.PriorityLow, 0.5, "")
		} else {
			rec("seek", "community mental health resources", model.PriorityLow, 0.5, "")
		}
	}

	return finding, nil
}

func (a *Agent) assessWithoutCountry(finding *model.AgentFinding, income *float64, country string) {
	if country != "" {
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "no health system data for country " + strings.ToUpper(country),
			Confidence: 0.5,
		})
	}

	switch {
	case income == nil:
		finding.Severity = 0.1
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "income and country unknown, economic barriers can not be assessed",
			Confidence: 0.3,
		})
	case *income < 5000:
		finding.Severity = 0.5
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "low income may limit healthcare options",
			Confidence: 0.6,
		})
		finding.Recommendations = append(finding.Recommendations,
			&model.Recommendation{Action: "use", Target: "public healthcare resources", Priority: model.PriorityHigh, Confidence: 0.6},
			&model.Recommendation{Action: "seek", Target: "community health services", Priority: model.PriorityMedium, Confidence: 0.55},
		)
	default:
		finding.Severity = 0.2
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "no strong economic barrier detected",
			Confidence: 0.4,
		})
	}
}

func containsConcern(concerns []string, concern string) bool {
	for _, c := range concerns {
		if model.NormalizePhrase(c) == model.NormalizePhrase(concern) {
			return true
		}
	}
	return false
}
