package agent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/medley-health/medley/pkg/agent"
	"github.com/medley-health/medley/pkg/model"
)

type mockGenerator struct {
	generateFunc func(ctx context.Context, system, prompt string) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	return m.generateFunc(ctx, system, prompt)
}

func TestLLMInvoke(t *testing.T) {
	var gotSystem, gotPrompt string
	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, system, prompt string) (string, error) {
			gotSystem, gotPrompt = system, prompt
			return "```json\n" + `{
				"severity": 0.6,
				"observations": [{"claim": "knee overuse", "confidence": 0.7}],
				"recommendations": [{"action": "reduce", "target": "running volume", "priority": 9, "confidence": 0.7, "domain": "economic"}],
				"tags": ["knee"]
			}` + "\n```", nil
		},
	}

	age := 41
	profile := model.NewUserProfile("alice")
	profile.Age = &age
	profile.ConcernCounts["physical"] = 2
	bundle := &agent.Bundle{
		Profile: profile,
		Experiences: []*model.ScoredExperience{
			{Experience: &model.HealthExperience{
				Domain:    model.DomainPhysical,
				Summary:   "knee pain after marathon",
				Severity:  0.5,
				CreatedAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			}},
		},
	}

	llm := agent.NewLLM(model.DomainPhysical, gen)
	gt.Equal(t, llm.Domain(), model.DomainPhysical)

	finding, err := llm.Invoke(context.Background(), &model.Request{UserID: "alice", Text: "my knee hurts"}, bundle)
	gt.NoError(t, err)
	gt.Equal(t, finding.Domain, model.DomainPhysical)
	gt.Equal(t, finding.Severity, 0.6)
	gt.A(t, finding.Recommendations).Length(1)
	gt.Equal(t, finding.Recommendations[0].Priority, model.PriorityCritical)
	gt.Equal(t, finding.Recommendations[0].Domain, model.Domain(""))

	gt.S(t, gotSystem).Contains("physical health specialist")
	gt.S(t, gotSystem).Contains("age: 41")
	gt.S(t, gotSystem).Contains("knee pain after marathon")
	gt.S(t, gotSystem).Contains("2026-01-10")
	gt.S(t, gotPrompt).Contains("my knee hurts")
}

func TestLLMInvokeGeneratorError(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, system, prompt string) (string, error) {
			return "", goerr.New("rate limited")
		},
	}

	_, err := agent.NewLLM(model.DomainMental, gen).Invoke(context.Background(), &model.Request{UserID: "alice", Text: "hi"}, nil)
	gt.Error(t, err)
}

func TestParseFindingRejectsOutOfRange(t *testing.T) {
	_, err := agent.ParseFinding(model.DomainMental, `{"severity": 1.4, "observations": []}`)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrInvalidFinding))

	_, err = agent.ParseFinding(model.DomainMental, `not json`)
	gt.Error(t, err)
}

func TestBundleHelpers(t *testing.T) {
	profile := model.NewUserProfile("alice")
	profile.ConcernCounts["sleep"] = 3
	bundle := &agent.Bundle{
		Profile: profile,
		Experiences: []*model.ScoredExperience{
			{Experience: &model.HealthExperience{ID: "1", Domain: model.DomainMental}},
			{Experience: &model.HealthExperience{ID: "2", Domain: model.DomainEconomic}},
			{Experience: &model.HealthExperience{ID: "3", Domain: model.DomainMental}},
		},
	}

	mental := bundle.ExperiencesOf(model.DomainMental)
	gt.A(t, mental).Length(2)
	gt.Equal(t, mental[0].Experience.ID, model.ExperienceID("1"))
	gt.Equal(t, bundle.ConcernCount("sleep"), 3)

	var empty *agent.Bundle
	gt.A(t, empty.ExperiencesOf(model.DomainMental)).Length(0)
	gt.Equal(t, empty.ConcernCount("sleep"), 0)
}

func TestMatchKeywords(t *testing.T) {
	found := agent.MatchKeywords("My KNEE hurts after the game", []string{"knee", "hurt", "ankle"})
	gt.Equal(t, found, []string{"knee", "hurt"})
	gt.Equal(t, agent.Clamp(1.3), 1.0)
	gt.Equal(t, agent.Clamp(-0.1), 0.0)
}
