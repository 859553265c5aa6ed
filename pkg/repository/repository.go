package repository

import (
	"context"
	"time"

	"github.com/medley-health/medley/pkg/model"
)

// Repository defines persistence for per-user health memory. Layout is keyed
// by user id: profile, ordered session history and experiences per domain.
type Repository interface {
	// GetProfile retrieves a profile. Returns model.ErrNotFound when absent.
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)

	// PutProfile overwrites a profile explicitly
	PutProfile(ctx context.Context, profile *model.UserProfile) error

	// DeleteUser removes the profile, sessions and experiences of a user
	DeleteUser(ctx context.Context, userID string) error

	// ListSessions returns sessions created at or after since, newest first.
	// limit <= 0 means no limit.
	ListSessions(ctx context.Context, userID string, since time.Time, limit int) ([]*model.SessionRecord, error)

	// ListExperiences returns experiences of the given domains (all when empty)
	ListExperiences(ctx context.Context, userID string, domains []model.Domain) ([]*model.HealthExperience, error)

	// Commit atomically appends the session and experiences and merges the
	// profile delta into the stored profile (creating it when absent).
	Commit(ctx context.Context, wb *model.WriteBack) error
}

func domainSet(domains []model.Domain) map[model.Domain]bool {
	if len(domains) == 0 {
		return nil
	}
	set := make(map[model.Domain]bool, len(domains))
	for _, d := range domains {
		set[d] = true
	}
	return set
}
