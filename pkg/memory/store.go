package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
	"github.com/medley-health/medley/pkg/repository"
	"github.com/medley-health/medley/pkg/utils/logging"
)

// DefaultHalfLife is the age at which an experience's retrieval weight halves.
const DefaultHalfLife = 30 * 24 * time.Hour

// Store is the per-user memory. It serializes reads and writes of the same
// user and leaves different users independent.
type Store struct {
	repo     repository.Repository
	embedder Embedder
	halfLife time.Duration
	now      func() time.Time
	locks    *userLocks
}

// Option is a functional option for Store
type Option func(*Store)

// WithEmbedder sets the embedder used for experiences and queries
func WithEmbedder(e Embedder) Option {
	return func(s *Store) {
		s.embedder = e
	}
}

// WithHalfLife sets the recency half-life. Zero or negative disables decay.
func WithHalfLife(d time.Duration) Option {
	return func(s *Store) {
		s.halfLife = d
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store backed by repo
func New(repo repository.Repository, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		embedder: NewHashEmbedder(0),
		halfLife: DefaultHalfLife,
		now:      time.Now,
		locks:    newUserLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store clock
func (s *Store) Now() time.Time {
	return s.now()
}

// GetProfile returns the profile of a user. A first-time user gets a
// synthesized default profile and no error. On any other read failure the
// default profile is still returned together with ErrMemoryReadDegraded.
func (s *Store) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	unlock := s.locks.rlock(userID)
	defer unlock()

	profile, err := s.repo.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if errors.Is(err, model.ErrNotFound) {
		return model.NewUserProfile(userID), nil
	}

	logging.From(ctx).Warn("failed to read profile, using defaults", "user_id", userID, "error", err)
	return model.NewUserProfile(userID), goerr.Wrap(model.ErrMemoryReadDegraded, "failed to read profile",
		goerr.V("user_id", userID), goerr.V("cause", err.Error()))
}

// PutProfile overwrites the stored profile. This is the only path that can
// change a demographic field once set.
func (s *Store) PutProfile(ctx context.Context, profile *model.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return goerr.Wrap(model.ErrRequestInvalid, "profile user id is required")
	}

	unlock := s.locks.lock(profile.UserID)
	defer unlock()

	p := profile.Copy()
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := s.repo.PutProfile(ctx, p); err != nil {
		return goerr.Wrap(model.ErrMemoryWriteFailed, "failed to put profile",
			goerr.V("user_id", profile.UserID), goerr.V("cause", err.Error()))
	}
	return nil
}

// DeleteProfile removes a user's profile, sessions and experiences
func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return goerr.Wrap(model.ErrMemoryWriteFailed, "failed to delete user",
			goerr.V("user_id", userID), goerr.V("cause", err.Error()))
	}
	return nil
}

// AppendSession records one session on its own
func (s *Store) AppendSession(ctx context.Context, session *model.SessionRecord) error {
	if session == nil {
		return goerr.New("session is required")
	}
	return s.Commit(ctx, &model.WriteBack{
		UserID:  session.UserID,
		Session: session,
	})
}

// AppendExperience records one experience on its own
func (s *Store) AppendExperience(ctx context.Context, exp *model.HealthExperience) error {
	if exp == nil {
		return goerr.New("experience is required")
	}
	return s.Commit(ctx, &model.WriteBack{
		UserID:      exp.UserID,
		Experiences: []*model.HealthExperience{exp},
	})
}

// Commit writes session, experiences and profile delta as one unit. Missing
// experience embeddings are computed first; nothing is written if that fails.
func (s *Store) Commit(ctx context.Context, wb *model.WriteBack) error {
	if wb == nil || wb.UserID == "" {
		return goerr.Wrap(model.ErrMemoryWriteFailed, "write-back user id is required")
	}

	for _, exp := range wb.Experiences {
		if exp == nil || len(exp.Embedding) > 0 {
			continue
		}
		vec, err := s.embedder.Embed(ctx, exp.Summary)
		if err != nil {
			return goerr.Wrap(model.ErrMemoryWriteFailed, "failed to embed experience",
				goerr.V("experience_id", exp.ID), goerr.V("cause", err.Error()))
		}
		exp.Embedding = vec
	}
	if wb.At.IsZero() {
		wb.At = s.now()
	}

	unlock := s.locks.lock(wb.UserID)
	defer unlock()

	if err := s.repo.Commit(ctx, wb); err != nil {
		return goerr.Wrap(model.ErrMemoryWriteFailed, "failed to commit write-back",
			goerr.V("user_id", wb.UserID), goerr.V("cause", err.Error()))
	}
	return nil
}

// Sessions returns sessions since the given time, newest first
func (s *Store) Sessions(ctx context.Context, userID string, since time.Time, limit int) ([]*model.SessionRecord, error) {
	unlock := s.locks.rlock(userID)
	defer unlock()

	sessions, err := s.repo.ListSessions(ctx, userID, since, limit)
	if err != nil {
		return nil, goerr.Wrap(model.ErrMemoryReadDegraded, "failed to list sessions",
			goerr.V("user_id", userID), goerr.V("cause", err.Error()))
	}
	return sessions, nil
}

// RetrieveExperiences returns up to k experiences of the given domains (all
// when empty) ranked by similarity to query times recency decay. An empty
// query ranks by recency only. When the query can not be embedded the
// recency-only ranking is returned together with ErrMemoryReadDegraded.
func (s *Store) RetrieveExperiences(ctx context.Context, userID string, domains []model.Domain, query string, k int) ([]*model.ScoredExperience, error) {
	if k <= 0 {
		return nil, nil
	}

	var degraded error
	var qvec []float32
	if len(Tokenize(query)) > 0 {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			logging.From(ctx).Warn("failed to embed query, ranking by recency", "user_id", userID, "error", err)
			degraded = goerr.Wrap(model.ErrMemoryReadDegraded, "failed to embed query",
				goerr.V("user_id", userID), goerr.V("cause", err.Error()))
		} else {
			qvec = vec
		}
	}

	unlock := s.locks.rlock(userID)
	experiences, err := s.repo.ListExperiences(ctx, userID, domains)
	unlock()
	if err != nil {
		return nil, goerr.Wrap(model.ErrMemoryReadDegraded, "failed to list experiences",
			goerr.V("user_id", userID), goerr.V("cause", err.Error()))
	}

	now := s.now()
	scored := make([]*model.ScoredExperience, 0, len(experiences))
	for _, exp := range experiences {
		similarity := 1.0
		if qvec != nil {
			similarity = math.Max(0, Cosine(qvec, exp.Embedding))
		}
		decay := Decay(now.Sub(exp.CreatedAt), s.halfLife)
		scored = append(scored, &model.ScoredExperience{
			Experience: exp,
			Similarity: similarity,
			Decay:      decay,
			Score:      similarity * decay,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Experience.CreatedAt.Equal(b.Experience.CreatedAt) {
			return a.Experience.CreatedAt.After(b.Experience.CreatedAt)
		}
		return a.Experience.ID < b.Experience.ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, degraded
}

// Decay is 0.5^(age/halfLife). Negative ages count as zero and a non-positive
// half-life disables decay.
func Decay(age, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, float64(age)/float64(halfLife))
}
