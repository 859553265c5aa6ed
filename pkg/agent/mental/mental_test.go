package mental_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/medley-health/medley/pkg/agent"
	"github.com/medley-health/medley/pkg/agent/mental"
	"github.com/medley-health/medley/pkg/model"
)

func invoke(t *testing.T, a *mental.Agent, text string, bundle *agent.Bundle) *model.AgentFinding {
	t.Helper()
	finding, err := a.Invoke(context.Background(), &model.Request{UserID: "alice", Text: text}, bundle)
	gt.NoError(t, err)
	gt.NoError(t, finding.Validate())
	return finding
}

func TestCrisis(t *testing.T) {
	a := mental.New(mental.WithHotline("988"))
	gt.Equal(t, a.Domain(), model.DomainMental)

	finding := invoke(t, a, "Sometimes I want to die", nil)
	gt.True(t, finding.Severity > 0.8)
	gt.Equal(t, finding.Tags, []string{"crisis"})
	gt.Equal(t, finding.Recommendations[0].Priority, model.PriorityCritical)
	gt.S(t, finding.Recommendations[0].Rationale).Contains("988")
}

func TestDistress(t *testing.T) {
	finding := invoke(t, mental.New(), "I feel anxious and overwhelmed, and I can't sleep", nil)
	gt.True(t, finding.Severity > 0.6 && finding.Severity < 0.7)
	gt.True(t, len(finding.Recommendations) == 2)
	gt.Equal(t, finding.Recommendations[0].Action, "consult")

	tags := map[string]bool{}
	for _, tag := range finding.Tags {
		tags[tag] = true
	}
	gt.True(t, tags["anxiety"])
	gt.True(t, tags["sleep"])
	gt.True(t, tags["stress"])
}

func TestCalm(t *testing.T) {
	finding := invoke(t, mental.New(), "Had a good week at work", nil)
	gt.Equal(t, finding.Severity, 0.1)
	gt.A(t, finding.Recommendations).Length(1)
}

func TestRecurringConcern(t *testing.T) {
	profile := model.NewUserProfile("alice")
	profile.ConcernCounts["mental"] = 4
	finding := invoke(t, mental.New(), "Had a good week at work", &agent.Bundle{Profile: profile})
	gt.True(t, finding.Severity > 0.1)
	gt.A(t, finding.Observations).Length(2)
}
