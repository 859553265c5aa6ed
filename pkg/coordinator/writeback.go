package coordinator

import (
	"slices"
	"strings"
	"time"

	"github.com/medley-health/medley/pkg/model"
)

const maxSummaryText = 200

// experienceSummary is the text embedded for later retrieval: the request
// excerpt followed by the strongest claims and the tags.
func experienceSummary(req *model.Request, f *model.AgentFinding, floor float64) string {
	var parts []string
	if text := strings.TrimSpace(req.Text); text != "" {
		if r := []rune(text); len(r) > maxSummaryText {
			text = string(r[:maxSummaryText])
		}
		parts = append(parts, text)
	}

	s := summarize(f, floor)
	for i, o := range s.Observations {
		if i == 3 {
			break
		}
		parts = append(parts, o.Claim)
	}
	if len(f.Tags) > 0 {
		parts = append(parts, "tags: "+strings.Join(f.Tags, ", "))
	}
	return strings.Join(parts, " | ")
}

// buildWriteBack extracts salient experiences and the profile delta of one request
func (c *Coordinator) buildWriteBack(req *model.Request, findings []*model.AgentFinding, assessment *model.HealthAssessment, unavailable []model.Domain, now time.Time) *model.WriteBack {
	sessionID := model.NewSessionID()
	assessment.SessionID = sessionID

	stored := make([]*model.AgentFinding, len(findings))
	for i, f := range findings {
		stored[i] = f.Copy()
	}
	session := &model.SessionRecord{
		ID:          sessionID,
		UserID:      req.UserID,
		CreatedAt:   now,
		Request:     req.Copy(),
		Findings:    stored,
		Unavailable: slices.Clone(unavailable),
		Assessment:  assessment.Copy(),
	}

	var experiences []*model.HealthExperience
	delta := &model.ProfileDelta{TagIncrements: map[string]int{}}
	for _, f := range findings {
		delta.TagIncrements[string(f.Domain)]++
		for _, tag := range f.Tags {
			if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
				delta.TagIncrements[tag]++
			}
		}

		if f.Severity > c.cfg.SalienceFloor {
			experiences = append(experiences, &model.HealthExperience{
				ID:        model.NewExperienceID(),
				UserID:    req.UserID,
				SessionID: sessionID,
				Domain:    f.Domain,
				Summary:   experienceSummary(req, f, c.cfg.ConfidenceFloor),
				Severity:  f.Severity,
				CreatedAt: now,
			})
		}
	}

	h := req.Hints
	delta.Age = h.Age
	delta.Income = h.Income
	delta.Country = strings.ToUpper(h.Country)

	return &model.WriteBack{
		UserID:      req.UserID,
		At:          now,
		Session:     session,
		Experiences: experiences,
		Delta:       delta,
	}
}
