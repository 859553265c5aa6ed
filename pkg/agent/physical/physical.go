package physical

import (
	"context"
	"strings"

	"github.com/medley-health/medley/pkg/agent"
	"github.com/medley-health/medley/pkg/model"
)

var bodyKeywords = []string{
	"pain", "hurt", "ache", "sore", "injury", "injured", "sprain",
	"knee", "ankle", "back", "muscle", "joint", "fatigue", "tired",
	"疼", "痛", "不适", "疲劳", "受伤", "膝盖", "脚踝", "肌肉", "关节",
}

// Risk factor names
const (
	FactorRecentInjury       = "recent injury"
	FactorTrainingLoadHigh   = "training load too high"
	FactorTrainingLoadRaised = "training load raised"
	FactorMatchIntensityHigh = "match intensity too high"
	FactorMatchIntensity     = "match intensity raised"
	FactorGamesPlayed        = "too many games played"
	FactorAge                = "age over 30"
	FactorRecovery           = "insufficient recovery time"
)

// InjuryRisk is the rule-based injury estimate from structured training metrics.
type InjuryRisk struct {
	Score      float64
	Factors    []string
	Confidence float64
}

// Level buckets the score: low < 0.3 <= medium < 0.6 <= high
func (r *InjuryRisk) Level() string {
	switch {
	case r.Score < 0.3:
		return "low"
	case r.Score < 0.6:
		return "medium"
	default:
		return "high"
	}
}

func (r *InjuryRisk) has(factor string) bool {
	for _, f := range r.Factors {
		if f == factor {
			return true
		}
	}
	return false
}

// PredictInjuryRisk scores hints. age may come from the profile when the
// request does not carry one.
func PredictInjuryRisk(h model.Hints, age *int) *InjuryRisk {
	r := &InjuryRisk{}
	add := func(factor string, score float64) {
		r.Factors = append(r.Factors, factor)
		r.Score += score
	}

	if h.RecentInjury {
		add(FactorRecentInjury, 0.3)
	}
	if h.TrainingLoad != nil {
		switch {
		case *h.TrainingLoad > 0.8:
			add(FactorTrainingLoadHigh, 0.2)
		case *h.TrainingLoad > 0.6:
			add(FactorTrainingLoadRaised, 0.1)
		}
	}
	if h.MatchIntensity != nil {
		switch {
		case *h.MatchIntensity > 0.8:
			add(FactorMatchIntensityHigh, 0.2)
		case *h.MatchIntensity > 0.6:
			add(FactorMatchIntensity, 0.1)
		}
	}
	if h.GamesPlayed != nil && *h.GamesPlayed > 20 {
		add(FactorGamesPlayed, 0.1)
	}
	if age != nil && *age > 30 {
		add(FactorAge, 0.05)
	}
	if h.RecoveryDays != nil && *h.RecoveryDays < 2 {
		add(FactorRecovery, 0.15)
	}

	r.Score = agent.Clamp(r.Score)
	r.Confidence = 0.5 + 0.1*float64(len(r.Factors))
	if r.Confidence > 0.9 {
		r.Confidence = 0.9
	}
	return r
}

// Agent assesses physical strain from symptoms in text and training metrics
type Agent struct{}

// New creates a physical health agent
func New() *Agent {
	return &Agent{}
}

func (a *Agent) Domain() model.Domain {
	return model.DomainPhysical
}

func (a *Agent) Invoke(ctx context.Context, req *model.Request, bundle *agent.Bundle) (*model.AgentFinding, error) {
	finding := &model.AgentFinding{Domain: model.DomainPhysical}

	if req.Hints.HasSportsMetrics() {
		age := req.Hints.Age
		if age == nil && bundle != nil && bundle.Profile != nil {
			age = bundle.Profile.Age
		}
		risk := PredictInjuryRisk(req.Hints, age)
		finding.Severity = risk.Score
		finding.Tags = append(finding.Tags, "training")
		claim := "injury risk is " + risk.Level()
		if len(risk.Factors) > 0 {
			claim += ": " + strings.Join(risk.Factors, ", ")
		}
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      claim,
			Confidence: risk.Confidence,
		})
		finding.Recommendations = append(finding.Recommendations, recommendationsFor(risk)...)
	}

	if symptoms := agent.MatchKeywords(req.Text, bodyKeywords); len(symptoms) > 0 {
		severity, label := 0.3, "mild"
		if len(symptoms) > 1 {
			severity, label = 0.5, "moderate"
		}
		if severity > finding.Severity {
			finding.Severity = severity
		}
		finding.Tags = append(finding.Tags, "symptoms")
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      label + " physical symptoms reported: " + strings.Join(symptoms, ", "),
			Confidence: 0.5,
		})
		finding.Recommendations = append(finding.Recommendations, &model.Recommendation{
			Action:     "consult",
			Target:     "medical professional",
			Priority:   model.PriorityMedium,
			Rationale:  "see a professional if symptoms persist",
			Confidence: 0.5,
		})
	}

	if len(finding.Observations) == 0 {
		finding.Severity = 0.05
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "no physical symptoms or training metrics reported",
			Confidence: 0.3,
		})
	}

	if past := bundle.ExperiencesOf(model.DomainPhysical); len(past) > 0 && past[0].Experience.Severity > 0.5 {
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "similar physical issue reported before: " + past[0].Experience.Summary,
			Confidence: 0.5,
		})
	}

	return finding, nil
}

func recommendationsFor(risk *InjuryRisk) []*model.Recommendation {
	var recs []*model.Recommendation
	rec := func(action, target string, p model.Priority, rationale string) {
		recs = append(recs, &model.Recommendation{
			Action:     action,
			Target:     target,
			Priority:   p,
			Rationale:  rationale,
			Confidence: risk.Confidence,
		})
	}

	switch {
	case risk.Score > 0.6:
		rec("reduce", "training intensity", model.PriorityHigh, "injury risk is high")
		rec("increase", "rest and recovery time", model.PriorityHigh, "")
		rec("consult", "sports medicine specialist", model.PriorityMedium, "")
	case risk.Score > 0.3:
		rec("adjust", "training plan", model.PriorityMedium, "injury risk is moderate")
		rec("increase", "warm up and stretching", model.PriorityMedium, "")
		rec("prioritize", "sleep and nutrition", model.PriorityLow, "")
	default:
		rec("continue", "current training plan", model.PriorityLow, "injury risk is low")
	}

	if risk.has(FactorMatchIntensityHigh) {
		rec("reduce", "match frequency", model.PriorityMedium, "match intensity is too high")
	}
	if risk.has(FactorRecentInjury) {
		rec("start", "supervised rehabilitation", model.PriorityHigh, "avoid repeating a recent injury")
	}
	return recs
}
