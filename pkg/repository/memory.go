package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
)

type userRecords struct {
	profile     *model.UserProfile
	sessions    []*model.SessionRecord
	experiences map[model.Domain][]*model.HealthExperience
}

// Memory is a process-local Repository. Reads return copies so callers can
// not mutate stored state.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*userRecords
}

// NewMemory creates a new in-memory repository
func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]*userRecords),
	}
}

func (m *Memory) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok || u.profile == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "profile not found", goerr.V("user_id", userID))
	}
	return u.profile.Copy(), nil
}

func (m *Memory) PutProfile(ctx context.Context, profile *model.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return goerr.New("profile user id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.user(profile.UserID).profile = profile.Copy()
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.users, userID)
	return nil
}

func (m *Memory) ListSessions(ctx context.Context, userID string, since time.Time, limit int) ([]*model.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}

	var result []*model.SessionRecord
	for i := len(u.sessions) - 1; i >= 0; i-- {
		s := u.sessions[i]
		if s.CreatedAt.Before(since) {
			continue
		}
		result = append(result, s.Copy())
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *Memory) ListExperiences(ctx context.Context, userID string, domains []model.Domain) ([]*model.HealthExperience, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}

	filter := domainSet(domains)
	var result []*model.HealthExperience
	for _, d := range model.AllDomains() {
		if filter != nil && !filter[d] {
			continue
		}
		for _, exp := range u.experiences[d] {
			result = append(result, copyExperience(exp))
		}
	}
	return result, nil
}

func (m *Memory) Commit(ctx context.Context, wb *model.WriteBack) error {
	if err := validateWriteBack(wb); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Build the new state first; nothing is visible until the swap below.
	u := m.user(wb.UserID)
	profile := u.profile.Copy()
	if profile == nil {
		profile = model.NewUserProfile(wb.UserID)
	}
	profile.Apply(wb.Delta, commitTime(wb))

	sessions := u.sessions
	if wb.Session != nil {
		sessions = append(slices.Clip(sessions), wb.Session.Copy())
	}

	experiences := make(map[model.Domain][]*model.HealthExperience, len(u.experiences))
	for d, list := range u.experiences {
		experiences[d] = list
	}
	for _, exp := range wb.Experiences {
		experiences[exp.Domain] = append(slices.Clip(experiences[exp.Domain]), copyExperience(exp))
	}

	u.profile = profile
	u.sessions = sessions
	u.experiences = experiences
	return nil
}

func (m *Memory) user(userID string) *userRecords {
	u, ok := m.users[userID]
	if !ok {
		u = &userRecords{experiences: make(map[model.Domain][]*model.HealthExperience)}
		m.users[userID] = u
	}
	return u
}

func copyExperience(exp *model.HealthExperience) *model.HealthExperience {
	c := *exp
	c.Embedding = slices.Clone(exp.Embedding)
	return &c
}

func validateWriteBack(wb *model.WriteBack) error {
	if wb == nil || wb.UserID == "" {
		return goerr.New("write-back user id is required")
	}
	if wb.Session != nil && wb.Session.UserID != wb.UserID {
		return goerr.New("session belongs to another user", goerr.V("user_id", wb.UserID), goerr.V("session_user_id", wb.Session.UserID))
	}
	for _, exp := range wb.Experiences {
		if exp == nil {
			return goerr.New("nil experience in write-back")
		}
		if exp.UserID != wb.UserID {
			return goerr.New("experience belongs to another user", goerr.V("user_id", wb.UserID), goerr.V("experience_id", exp.ID))
		}
		if err := exp.Domain.Validate(); err != nil {
			return goerr.Wrap(err, "invalid experience domain", goerr.V("experience_id", exp.ID))
		}
	}
	return nil
}

func commitTime(wb *model.WriteBack) time.Time {
	if wb.At.IsZero() {
		return time.Now()
	}
	return wb.At
}
