package physical_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/medley-health/medley/pkg/agent"
	"github.com/medley-health/medley/pkg/agent/physical"
	"github.com/medley-health/medley/pkg/model"
)

func ptr[T any](v T) *T { return &v }

func TestPredictInjuryRisk(t *testing.T) {
	testCases := map[string]struct {
		hints   model.Hints
		age     *int
		level   string
		factors int
	}{
		"no metrics": {
			hints: model.Hints{},
			level: "low",
		},
		"high load and recent injury": {
			hints:   model.Hints{TrainingLoad: ptr(0.9), RecentInjury: true},
			level:   "medium",
			factors: 2,
		},
		"everything at once": {
			hints: model.Hints{
				TrainingLoad:   ptr(0.9),
				MatchIntensity: ptr(0.85),
				GamesPlayed:    ptr(25),
				RecoveryDays:   ptr(1),
				RecentInjury:   true,
			},
			age:     ptr(33),
			level:   "high",
			factors: 6,
		},
		"raised but not high": {
			hints:   model.Hints{TrainingLoad: ptr(0.7), MatchIntensity: ptr(0.7)},
			level:   "low",
			factors: 2,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			risk := physical.PredictInjuryRisk(tc.hints, tc.age)
			gt.Equal(t, risk.Level(), tc.level)
			gt.A(t, risk.Factors).Length(tc.factors)
			gt.True(t, risk.Score <= 1)
			gt.True(t, risk.Confidence <= 0.9)
		})
	}
}

func TestInvokeHighRisk(t *testing.T) {
	a := physical.New()
	gt.Equal(t, a.Domain(), model.DomainPhysical)

	req := &model.Request{
		UserID: "alice",
		Text:   "legs feel heavy",
		Hints: model.Hints{
			TrainingLoad:   ptr(0.95),
			MatchIntensity: ptr(0.9),
			RecoveryDays:   ptr(1),
			RecentInjury:   true,
		},
	}
	finding, err := a.Invoke(context.Background(), req, nil)
	gt.NoError(t, err)
	gt.NoError(t, finding.Validate())
	gt.True(t, finding.Severity > 0.8)
	gt.Equal(t, finding.Recommendations[0].Action, "reduce")
	gt.Equal(t, finding.Recommendations[0].Target, "training intensity")
}

func TestInvokeUsesProfileAge(t *testing.T) {
	profile := model.NewUserProfile("alice")
	profile.Age = ptr(45)
	req := &model.Request{UserID: "alice", Hints: model.Hints{RecentInjury: true}}

	withAge, err := physical.New().Invoke(context.Background(), req, &agent.Bundle{Profile: profile})
	gt.NoError(t, err)
	withoutAge, err := physical.New().Invoke(context.Background(), req, nil)
	gt.NoError(t, err)
	gt.True(t, withAge.Severity > withoutAge.Severity)
}

func TestInvokeSymptoms(t *testing.T) {
	finding, err := physical.New().Invoke(context.Background(), &model.Request{UserID: "alice", Text: "My knee and ankle hurt"}, nil)
	gt.NoError(t, err)
	gt.Equal(t, finding.Severity, 0.5)
	gt.Equal(t, finding.Recommendations[0].Action, "consult")
	gt.S(t, finding.Observations[0].Claim).Contains("moderate")
}

func TestInvokeNothingReported(t *testing.T) {
	finding, err := physical.New().Invoke(context.Background(), &model.Request{UserID: "alice", Text: "money is tight"}, nil)
	gt.NoError(t, err)
	gt.Equal(t, finding.Severity, 0.05)
	gt.A(t, finding.Recommendations).Length(0)
}
