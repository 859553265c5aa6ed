package mental

import (
	"context"
	"fmt"
	"strings"

	"github.com/medley-health/medley/pkg/agent"
	"github.com/medley-health/medley/pkg/model"
)

var crisisKeywords = []string{
	"suicide", "suicidal", "kill myself", "end my life", "want to die",
	"self harm", "self-harm", "hurt myself", "no reason to live",
	"自杀", "轻生", "不想活", "伤害自己",
}

var distressKeywords = []string{
	"anxious", "anxiety", "depressed", "depression", "stress", "hopeless",
	"panic", "lonely", "overwhelmed", "insomnia", "can't sleep", "sad",
	"burnout", "burned out", "worthless", "exhausted", "cry",
	"焦虑", "抑郁", "压力", "失眠", "孤独",
}

// Agent screens free text for crisis and distress signals
type Agent struct {
	hotline string
}

// Option is a functional option for Agent
type Option func(*Agent)

// WithHotline sets the crisis line quoted in urgent recommendations
func WithHotline(hotline string) Option {
	return func(a *Agent) {
		a.hotline = hotline
	}
}

// New creates a mental health agent
func New(opts ...Option) *Agent {
	a := &Agent{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Domain() model.Domain {
	return model.DomainMental
}

func (a *Agent) Invoke(ctx context.Context, req *model.Request, bundle *agent.Bundle) (*model.AgentFinding, error) {
	finding := &model.AgentFinding{Domain: model.DomainMental}

	if crisis := agent.MatchKeywords(req.Text, crisisKeywords); len(crisis) > 0 {
		finding.Severity = 0.95
		finding.Tags = []string{"crisis"}
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "message contains crisis signals: " + strings.Join(crisis, ", "),
			Confidence: 0.9,
		})
		rationale := "crisis signals need immediate human support"
		if a.hotline != "" {
			rationale += "; crisis line: " + a.hotline
		}
		finding.Recommendations = append(finding.Recommendations,
			&model.Recommendation{
				Action:     "seek",
				Target:     "immediate crisis support",
				Priority:   model.PriorityCritical,
				Rationale:  rationale,
				Confidence: 0.9,
			},
			&model.Recommendation{
				Action:     "contact",
				Target:     "mental health professional",
				Priority:   model.PriorityHigh,
				Confidence: 0.85,
			},
		)
		return finding, nil
	}

	distress := agent.MatchKeywords(req.Text, distressKeywords)
	switch {
	case len(distress) > 0:
		finding.Severity = agent.Clamp(0.2 + 0.15*float64(len(distress)))
		if finding.Severity > 0.75 {
			finding.Severity = 0.75
		}
		confidence := agent.Clamp(0.5 + 0.1*float64(len(distress)))
		if confidence > 0.85 {
			confidence = 0.85
		}
		finding.Tags = append(finding.Tags, tagsFor(distress)...)
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "signs of emotional distress: " + strings.Join(distress, ", "),
			Confidence: confidence,
		})

		if finding.Severity >= 0.5 {
			finding.Recommendations = append(finding.Recommendations, &model.Recommendation{
				Action:     "consult",
				Target:     "mental health professional",
				Priority:   model.PriorityHigh,
				Rationale:  "several distress signals in one message",
				Confidence: confidence,
			})
		}
		finding.Recommendations = append(finding.Recommendations, &model.Recommendation{
			Action:     "practice",
			Target:     "relaxation and stress management",
			Priority:   model.PriorityMedium,
			Confidence: confidence,
		})

	default:
		finding.Severity = 0.1
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      "no distress signals in message",
			Confidence: 0.4,
		})
		finding.Recommendations = append(finding.Recommendations, &model.Recommendation{
			Action:     "maintain",
			Target:     "emotional self care",
			Priority:   model.PriorityLow,
			Confidence: 0.4,
		})
	}

	// Memory context: a recurring concern raises severity slightly.
	recurring := 0
	for _, e := range bundle.ExperiencesOf(model.DomainMental) {
		if e.Experience.Severity > 0.5 {
			recurring++
		}
	}
	if n := bundle.ConcernCount(string(model.DomainMental)); recurring > 0 || n >= 3 {
		finding.Severity = agent.Clamp(finding.Severity + 0.05)
		finding.Observations = append(finding.Observations, &model.Observation{
			Claim:      fmt.Sprintf("recurring mental health concern (%d past sessions, %d similar memories)", n, recurring),
			Confidence: 0.6,
		})
	}

	return finding, nil
}

func tagsFor(keywords []string) []string {
	seen := map[string]bool{}
	var tags []string
	for _, kw := range keywords {
		tag := "stress"
		switch kw {
		case "anxious", "anxiety", "panic", "焦虑":
			tag = "anxiety"
		case "depressed", "depression", "hopeless", "sad", "worthless", "cry", "抑郁":
			tag = "low_mood"
		case "insomnia", "can't sleep", "失眠":
			tag = "sleep"
		case "lonely", "孤独":
			tag = "loneliness"
		}
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}
