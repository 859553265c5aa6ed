package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/medley-health/medley/pkg/model"
)

func ptr[T any](v T) *T { return &v }

func TestRequestValidate(t *testing.T) {
	testCases := []struct {
		name  string
		req   *model.Request
		valid bool
	}{
		{"text only", &model.Request{UserID: "u1", Text: "I feel tired"}, true},
		{"hints only", &model.Request{UserID: "u1", Hints: model.Hints{Income: ptr(1000.0)}}, true},
		{"empty", &model.Request{UserID: "u1", Text: "   "}, false},
		{"no user", &model.Request{Text: "hello"}, false},
		{"training load out of range", &model.Request{UserID: "u1", Text: "x", Hints: model.Hints{TrainingLoad: ptr(1.5)}}, false},
		{"negative age", &model.Request{UserID: "u1", Text: "x", Hints: model.Hints{Age: ptr(-1)}}, false},
		{"three-letter country is not fatal", &model.Request{UserID: "u1", Text: "x", Hints: model.Hints{Country: "USA"}}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.valid {
				gt.NoError(t, err)
			} else {
				gt.Error(t, err)
				gt.True(t, errors.Is(err, model.ErrRequestInvalid))
			}
		})
	}
}

func TestHintsDropInvalid(t *testing.T) {
	h := model.Hints{Country: "USA", Income: ptr(1000.0)}
	dropped := h.DropInvalid()
	gt.A(t, dropped).Length(1)
	gt.S(t, dropped[0]).Contains("USA")
	gt.Equal(t, h.Country, "")
	gt.Equal(t, *h.Income, 1000.0)

	for _, code := range []string{"us", "IN", " br "} {
		h := model.Hints{Country: code}
		gt.A(t, h.DropInvalid()).Length(0)
		gt.Equal(t, h.Country, code)
	}

	h = model.Hints{Country: "1A"}
	gt.A(t, h.DropInvalid()).Length(1)
}

func TestSessionRecordCopy(t *testing.T) {
	s := &model.SessionRecord{
		ID:      model.NewSessionID(),
		UserID:  "u1",
		Request: &model.Request{UserID: "u1", Text: "tired", Hints: model.Hints{Age: ptr(30), HealthConcerns: []string{"sleep"}}},
		Findings: []*model.AgentFinding{{
			Domain:          model.DomainMental,
			Observations:    []*model.Observation{{Claim: "poor sleep", Confidence: 0.5}},
			Recommendations: []*model.Recommendation{{Action: "reduce", Target: "caffeine"}},
			Tags:            []string{"sleep"},
		}},
		Unavailable: []model.Domain{model.DomainEconomic},
		Assessment: &model.HealthAssessment{
			Summaries: map[model.Domain]*model.DomainSummary{
				model.DomainMental: {Domain: model.DomainMental, Observations: []*model.Observation{{Claim: "poor sleep"}}},
			},
			Recommendations: []*model.Recommendation{{Action: "reduce", Target: "caffeine"}},
			RiskFlags:       []*model.RiskFlag{{Domain: model.DomainMental, Level: model.RiskLevelUrgent}},
		},
	}

	c := s.Copy()
	*c.Request.Hints.Age = 99
	c.Request.Hints.HealthConcerns[0] = "x"
	c.Findings[0].Observations[0].Claim = "x"
	c.Findings[0].Recommendations[0].Action = "x"
	c.Findings[0].Tags[0] = "x"
	c.Unavailable[0] = model.DomainPhysical
	c.Assessment.Summaries[model.DomainMental].Observations[0].Claim = "x"
	delete(c.Assessment.Summaries, model.DomainMental)
	c.Assessment.Recommendations[0].Target = "x"
	c.Assessment.RiskFlags[0].Domain = model.DomainPhysical

	gt.Equal(t, *s.Request.Hints.Age, 30)
	gt.Equal(t, s.Request.Hints.HealthConcerns[0], "sleep")
	gt.Equal(t, s.Findings[0].Observations[0].Claim, "poor sleep")
	gt.Equal(t, s.Findings[0].Recommendations[0].Action, "reduce")
	gt.Equal(t, s.Findings[0].Tags[0], "sleep")
	gt.Equal(t, s.Unavailable[0], model.DomainEconomic)
	gt.Equal(t, s.Assessment.Summaries[model.DomainMental].Observations[0].Claim, "poor sleep")
	gt.Equal(t, s.Assessment.Recommendations[0].Target, "caffeine")
	gt.Equal(t, s.Assessment.RiskFlags[0].Domain, model.DomainMental)

	var nilRecord *model.SessionRecord
	gt.Nil(t, nilRecord.Copy())
}

func TestProfileApplyKeepsExplicitFields(t *testing.T) {
	now := time.Now()
	p := model.NewUserProfile("u1")
	p.Apply(&model.ProfileDelta{Country: "US", Age: ptr(30), TagIncrements: map[string]int{"mental": 1}}, now)
	gt.Equal(t, p.Country, "US")
	gt.Equal(t, *p.Age, 30)

	p.Apply(&model.ProfileDelta{Country: "CN", Age: ptr(40), TagIncrements: map[string]int{"mental": 2, "physical": 1}}, now)
	gt.Equal(t, p.Country, "US")
	gt.Equal(t, *p.Age, 30)
	gt.Equal(t, p.ConcernCounts["mental"], 3)
	gt.Equal(t, p.ConcernCounts["physical"], 1)
}

func TestProfileApplyIgnoresNegativeIncrements(t *testing.T) {
	p := model.NewUserProfile("u1")
	p.ConcernCounts["mental"] = 2
	p.Apply(&model.ProfileDelta{TagIncrements: map[string]int{"mental": -5}}, time.Now())
	gt.Equal(t, p.ConcernCounts["mental"], 2)
}

func TestProfileCopyIsDeep(t *testing.T) {
	p := model.NewUserProfile("u1")
	p.Age = ptr(20)
	p.ConcernCounts["x"] = 1

	c := p.Copy()
	*c.Age = 99
	c.ConcernCounts["x"] = 5
	gt.Equal(t, *p.Age, 20)
	gt.Equal(t, p.ConcernCounts["x"], 1)
}

func TestDomainOrdering(t *testing.T) {
	domains := []model.Domain{model.DomainEconomic, model.DomainMental, model.DomainPhysical}
	model.SortDomains(domains)
	gt.Equal(t, domains, []model.Domain{model.DomainMental, model.DomainPhysical, model.DomainEconomic})
	gt.True(t, model.DomainMental.Outranks(model.DomainPhysical))
	gt.True(t, model.DomainPhysical.Outranks(model.DomainEconomic))
	gt.Error(t, model.Domain("spiritual").Validate())
}

func TestRecommendationKey(t *testing.T) {
	a := &model.Recommendation{Action: "Reduce", Target: "training_load"}
	b := &model.Recommendation{Action: "reduce ", Target: "Training  Load"}
	gt.Equal(t, a.Key(), b.Key())
}

func TestFindingValidate(t *testing.T) {
	f := &model.AgentFinding{Domain: model.DomainMental, Severity: 0.5}
	gt.NoError(t, f.Validate())

	f.Severity = 1.2
	gt.Error(t, f.Validate())

	f = &model.AgentFinding{Domain: "other", Severity: 0.5}
	gt.Error(t, f.Validate())
}
