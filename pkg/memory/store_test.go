package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/medley-health/medley/pkg/memory"
	"github.com/medley-health/medley/pkg/model"
	"github.com/medley-health/medley/pkg/repository"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// failingRepo embeds a working repository and overrides selected methods
type failingRepo struct {
	repository.Repository
	getProfileFunc      func(ctx context.Context, userID string) (*model.UserProfile, error)
	commitFunc          func(ctx context.Context, wb *model.WriteBack) error
	listExperiencesFunc func(ctx context.Context, userID string, domains []model.Domain) ([]*model.HealthExperience, error)
}

func (r *failingRepo) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if r.getProfileFunc != nil {
		return r.getProfileFunc(ctx, userID)
	}
	return r.Repository.GetProfile(ctx, userID)
}

func (r *failingRepo) Commit(ctx context.Context, wb *model.WriteBack) error {
	if r.commitFunc != nil {
		return r.commitFunc(ctx, wb)
	}
	return r.Repository.Commit(ctx, wb)
}

func (r *failingRepo) ListExperiences(ctx context.Context, userID string, domains []model.Domain) ([]*model.HealthExperience, error) {
	if r.listExperiencesFunc != nil {
		return r.listExperiencesFunc(ctx, userID, domains)
	}
	return r.Repository.ListExperiences(ctx, userID, domains)
}

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, goerr.New("embedding backend down")
}

func experience(userID string, domain model.Domain, summary string, age time.Duration) *model.HealthExperience {
	return &model.HealthExperience{
		ID:        model.NewExperienceID(),
		UserID:    userID,
		Domain:    domain,
		Summary:   summary,
		Severity:  0.5,
		CreatedAt: baseTime.Add(-age),
	}
}

func TestGetProfileFirstTimeUser(t *testing.T) {
	store := memory.New(repository.NewMemory())

	profile, err := store.GetProfile(context.Background(), "alice")
	gt.NoError(t, err)
	gt.Equal(t, profile.UserID, "alice")
	gt.Nil(t, profile.Age)
	gt.Equal(t, len(profile.ConcernCounts), 0)
}

func TestGetProfileReadFailure(t *testing.T) {
	repo := &failingRepo{
		Repository: repository.NewMemory(),
		getProfileFunc: func(ctx context.Context, userID string) (*model.UserProfile, error) {
			return nil, goerr.New("corrupted record")
		},
	}
	store := memory.New(repo)

	profile, err := store.GetProfile(context.Background(), "alice")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrMemoryReadDegraded))
	gt.NotNil(t, profile)
	gt.Equal(t, profile.UserID, "alice")
}

func TestPutProfileOverwritesExplicitly(t *testing.T) {
	ctx := context.Background()
	store := memory.New(repository.NewMemory(), memory.WithClock(fixedClock(baseTime)))

	gt.NoError(t, store.Commit(ctx, &model.WriteBack{
		UserID: "alice",
		Delta:  &model.ProfileDelta{Country: "US"},
	}))

	profile, err := store.GetProfile(ctx, "alice")
	gt.NoError(t, err)
	profile.Country = "BR"
	gt.NoError(t, store.PutProfile(ctx, profile))

	got, err := store.GetProfile(ctx, "alice")
	gt.NoError(t, err)
	gt.Equal(t, got.Country, "BR")
	gt.Equal(t, got.UpdatedAt, baseTime)
}

func TestCommitEmbedsExperiences(t *testing.T) {
	ctx := context.Background()
	store := memory.New(repository.NewMemory(), memory.WithClock(fixedClock(baseTime)))

	exp := experience("alice", model.DomainMental, "stress and poor sleep", 0)
	gt.NoError(t, store.AppendExperience(ctx, exp))

	hits, err := store.RetrieveExperiences(ctx, "alice", nil, "", 5)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.Equal(t, len(hits[0].Experience.Embedding), 256)
}

func TestCommitFailureIsReported(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{
		Repository: repository.NewMemory(),
		commitFunc: func(ctx context.Context, wb *model.WriteBack) error {
			return goerr.New("disk full")
		},
	}
	store := memory.New(repo)

	err := store.AppendSession(ctx, &model.SessionRecord{
		ID:        model.NewSessionID(),
		UserID:    "alice",
		CreatedAt: baseTime,
	})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrMemoryWriteFailed))
}

func TestCommitEmbedFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	store := memory.New(repo, memory.WithEmbedder(brokenEmbedder{}))

	err := store.Commit(ctx, &model.WriteBack{
		UserID: "alice",
		Session: &model.SessionRecord{
			ID:        model.NewSessionID(),
			UserID:    "alice",
			CreatedAt: baseTime,
		},
		Experiences: []*model.HealthExperience{experience("alice", model.DomainPhysical, "knee pain", 0)},
		Delta:       &model.ProfileDelta{TagIncrements: map[string]int{"physical": 1}},
	})
	gt.True(t, errors.Is(err, model.ErrMemoryWriteFailed))

	sessions, err := repo.ListSessions(ctx, "alice", time.Time{}, 0)
	gt.NoError(t, err)
	gt.A(t, sessions).Length(0)
	_, err = repo.GetProfile(ctx, "alice")
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRetrieveRecencyOrdering(t *testing.T) {
	ctx := context.Background()
	store := memory.New(repository.NewMemory(),
		memory.WithClock(fixedClock(baseTime)),
		memory.WithHalfLife(30*24*time.Hour),
	)

	old := experience("alice", model.DomainMental, "anxious about exams", 40*24*time.Hour)
	recent := experience("alice", model.DomainMental, "anxious about exams", 10*24*time.Hour)
	gt.NoError(t, store.AppendExperience(ctx, old))
	gt.NoError(t, store.AppendExperience(ctx, recent))

	hits, err := store.RetrieveExperiences(ctx, "alice", []model.Domain{model.DomainMental}, "exams make me anxious", 5)
	gt.NoError(t, err)
	gt.A(t, hits).Length(2)
	gt.Equal(t, hits[0].Experience.ID, recent.ID)
	gt.Equal(t, hits[1].Experience.ID, old.ID)
	gt.Equal(t, hits[0].Similarity, hits[1].Similarity)
	gt.True(t, hits[0].Score > hits[1].Score)
}

func TestRetrieveSimilarityBeatsSmallAgeGap(t *testing.T) {
	ctx := context.Background()
	store := memory.New(repository.NewMemory(), memory.WithClock(fixedClock(baseTime)))

	related := experience("alice", model.DomainPhysical, "knee pain after running", 3*24*time.Hour)
	unrelated := experience("alice", model.DomainPhysical, "budget worries insurance", 1*24*time.Hour)
	gt.NoError(t, store.AppendExperience(ctx, related))
	gt.NoError(t, store.AppendExperience(ctx, unrelated))

	hits, err := store.RetrieveExperiences(ctx, "alice", nil, "knee pain running", 1)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.Equal(t, hits[0].Experience.ID, related.ID)
}

func TestRetrieveDomainFilterAndK(t *testing.T) {
	ctx := context.Background()
	store := memory.New(repository.NewMemory(), memory.WithClock(fixedClock(baseTime)))

	for i := 0; i < 4; i++ {
		gt.NoError(t, store.AppendExperience(ctx, experience("alice", model.DomainEconomic, "cost of care", time.Duration(i)*time.Hour)))
	}
	gt.NoError(t, store.AppendExperience(ctx, experience("alice", model.DomainMental, "cost of care", 0)))

	hits, err := store.RetrieveExperiences(ctx, "alice", []model.Domain{model.DomainEconomic}, "", 3)
	gt.NoError(t, err)
	gt.A(t, hits).Length(3)
	for _, h := range hits {
		gt.Equal(t, h.Experience.Domain, model.DomainEconomic)
	}

	none, err := store.RetrieveExperiences(ctx, "alice", nil, "", 0)
	gt.NoError(t, err)
	gt.A(t, none).Length(0)
}

func TestRetrieveEmbedFailureFallsBackToRecency(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	// write with a working embedder, then read with a broken one
	writer := memory.New(repo, memory.WithClock(fixedClock(baseTime)))
	older := experience("alice", model.DomainMental, "low mood", 5*24*time.Hour)
	newer := experience("alice", model.DomainMental, "better sleep", 1*24*time.Hour)
	gt.NoError(t, writer.AppendExperience(ctx, older))
	gt.NoError(t, writer.AppendExperience(ctx, newer))

	reader := memory.New(repo, memory.WithClock(fixedClock(baseTime)), memory.WithEmbedder(brokenEmbedder{}))
	hits, err := reader.RetrieveExperiences(ctx, "alice", nil, "low mood", 5)
	gt.True(t, errors.Is(err, model.ErrMemoryReadDegraded))
	gt.A(t, hits).Length(2)
	gt.Equal(t, hits[0].Experience.ID, newer.ID)
	gt.Equal(t, hits[0].Similarity, 1.0)
}

func TestRetrieveListFailure(t *testing.T) {
	repo := &failingRepo{
		Repository: repository.NewMemory(),
		listExperiencesFunc: func(ctx context.Context, userID string, domains []model.Domain) ([]*model.HealthExperience, error) {
			return nil, goerr.New("timeout")
		},
	}
	store := memory.New(repo)

	hits, err := store.RetrieveExperiences(context.Background(), "alice", nil, "", 5)
	gt.True(t, errors.Is(err, model.ErrMemoryReadDegraded))
	gt.A(t, hits).Length(0)
}

func TestConcurrentCommitsSameUser(t *testing.T) {
	ctx := context.Background()
	store := memory.New(repository.NewMemory())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Commit(ctx, &model.WriteBack{
				UserID: "alice",
				Delta:  &model.ProfileDelta{TagIncrements: map[string]int{"sleep": 1}},
			})
			if err != nil {
				t.Errorf("commit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	profile, err := store.GetProfile(ctx, "alice")
	gt.NoError(t, err)
	gt.Equal(t, profile.ConcernCounts["sleep"], 20)
	gt.Equal(t, store.LockCount(), 0)
}

func TestDifferentUsersDoNotBlock(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})

	repo := &failingRepo{Repository: repository.NewMemory()}
	repo.commitFunc = func(ctx context.Context, wb *model.WriteBack) error {
		if wb.UserID == "alice" {
			close(entered)
			<-release
		}
		return repo.Repository.Commit(ctx, wb)
	}
	store := memory.New(repo)

	done := make(chan error, 1)
	go func() {
		done <- store.Commit(ctx, &model.WriteBack{UserID: "alice", Delta: &model.ProfileDelta{Country: "US"}})
	}()
	<-entered

	// bob is served while alice's write is held
	_, err := store.GetProfile(ctx, "bob")
	gt.NoError(t, err)

	close(release)
	gt.NoError(t, <-done)
}

func TestDeleteProfile(t *testing.T) {
	ctx := context.Background()
	store := memory.New(repository.NewMemory())

	gt.NoError(t, store.AppendExperience(ctx, experience("alice", model.DomainMental, "stress", 0)))
	gt.NoError(t, store.DeleteProfile(ctx, "alice"))

	hits, err := store.RetrieveExperiences(ctx, "alice", nil, "", 5)
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)
}

func TestDecay(t *testing.T) {
	halfLife := 30 * 24 * time.Hour
	gt.Equal(t, memory.Decay(0, halfLife), 1.0)
	gt.Equal(t, memory.Decay(-time.Hour, halfLife), 1.0)
	gt.Equal(t, memory.Decay(halfLife, halfLife), 0.5)
	gt.Equal(t, memory.Decay(2*halfLife, halfLife), 0.25)
	gt.Equal(t, memory.Decay(time.Hour, 0), 1.0)
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	e := memory.NewHashEmbedder(64)

	a, err := e.Embed(ctx, "Knee pain, after running!")
	gt.NoError(t, err)
	b, err := e.Embed(ctx, "knee pain after running")
	gt.NoError(t, err)
	gt.A(t, a).Length(64)
	gt.True(t, memory.Cosine(a, b) > 0.999)

	empty, err := e.Embed(ctx, "")
	gt.NoError(t, err)
	gt.Equal(t, memory.Cosine(a, empty), 0.0)
	gt.Equal(t, memory.Cosine(a, []float32{1}), 0.0)
}
