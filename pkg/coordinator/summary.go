package coordinator

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
)

// HealthSummary aggregates the sessions of a user over a window of days
type HealthSummary struct {
	UserID        string               `json:"user_id"`
	Days          int                  `json:"days"`
	Sessions      int                  `json:"sessions"`
	StatusCounts  map[model.Status]int `json:"status_counts"`
	DomainCounts  map[model.Domain]int `json:"domain_counts"`
	RiskFlags     int                  `json:"risk_flags"`
	ConcernCounts map[string]int       `json:"concern_counts,omitempty"`
	LastSession   *time.Time           `json:"last_session,omitempty"`
}

// Summary reports what happened in the last days. A read failure of the
// profile is tolerated; a failure to list sessions is returned.
func (c *Coordinator) Summary(ctx context.Context, userID string, days int) (*HealthSummary, error) {
	if userID == "" {
		return nil, goerr.Wrap(model.ErrRequestInvalid, "user id is empty")
	}
	if days <= 0 {
		return nil, goerr.Wrap(model.ErrRequestInvalid, "days must be positive", goerr.V("days", days))
	}

	since := c.now().Add(-time.Duration(days) * 24 * time.Hour)
	sessions, err := c.memory.Sessions(ctx, userID, since, 0)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load sessions for summary", goerr.V("user_id", userID))
	}

	summary := &HealthSummary{
		UserID:       userID,
		Days:         days,
		Sessions:     len(sessions),
		StatusCounts: map[model.Status]int{},
		DomainCounts: map[model.Domain]int{},
	}
	for _, s := range sessions {
		if summary.LastSession == nil || s.CreatedAt.After(*summary.LastSession) {
			at := s.CreatedAt
			summary.LastSession = &at
		}
		for _, f := range s.Findings {
			summary.DomainCounts[f.Domain]++
		}
		if s.Assessment != nil {
			summary.StatusCounts[s.Assessment.Status]++
			summary.RiskFlags += len(s.Assessment.RiskFlags)
		}
	}

	if profile, err := c.memory.GetProfile(ctx, userID); err == nil {
		summary.ConcernCounts = profile.ConcernCounts
	}
	return summary, nil
}
