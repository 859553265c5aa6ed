package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/medley-health/medley/pkg/archive"
	"github.com/medley-health/medley/pkg/model"
)

func ptr[T any](v T) *T { return &v }

type bucketObject struct {
	bytes.Buffer
	onClose func([]byte)
}

func (o *bucketObject) Close() error {
	o.onClose(o.Bytes())
	return nil
}

type mockBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *mockBucket) Put(ctx context.Context, key, contentType string) (io.WriteCloser, error) {
	return &bucketObject{onClose: func(data []byte) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.objects[key] = bytes.Clone(data)
	}}, nil
}

func (m *mockBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockBucket) Delete(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	return nil
}

func newTestRuntime(t *testing.T) *runtime {
	cfg := config{backend: "memory"}
	rt, err := cfg.newRuntime(context.Background())
	gt.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestFindSession(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)

	a, err := chatTurn(ctx, rt, "alice", "my knee hurts", model.Hints{})
	gt.NoError(t, err)

	s, err := findSession(ctx, rt, "alice", a.SessionID)
	gt.NoError(t, err)
	gt.Equal(t, s.ID, a.SessionID)

	_, err = findSession(ctx, rt, "alice", "missing")
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestFindSessionFromArchive(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	bucket := &mockBucket{objects: map[string][]byte{}}
	rt.archive = archive.NewGCS(bucket, archive.WithPrefix("medley"))

	archived := &model.SessionRecord{
		ID:         model.NewSessionID(),
		UserID:     "alice",
		CreatedAt:  time.Now(),
		Request:    &model.Request{UserID: "alice", Text: "old question"},
		Assessment: &model.HealthAssessment{Status: model.StatusStable},
	}
	gt.NoError(t, rt.archive.Export(ctx, archived))
	_, ok := bucket.objects["medley/alice/"+string(archived.ID)+".json"]
	gt.True(t, ok)

	s, err := findSession(ctx, rt, "alice", archived.ID)
	gt.NoError(t, err)
	gt.Equal(t, s.Request.Text, "old question")
	gt.Equal(t, s.Assessment.Status, model.StatusStable)

	_, err = findSession(ctx, rt, "bob", archived.ID)
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestChatHintsApplyToEveryMessage(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	hints := model.Hints{Income: ptr(3000.0)}

	for _, message := range []string{"my knee hurts", "I feel stressed", "cannot sleep"} {
		a, err := chatTurn(ctx, rt, "alice", message, hints)
		gt.NoError(t, err)
		gt.NotNil(t, a.Summary(model.DomainEconomic))
	}
	gt.Equal(t, *hints.Income, 3000.0)

	profile, err := rt.store.GetProfile(ctx, "alice")
	gt.NoError(t, err)
	gt.Equal(t, *profile.Income, 3000.0)
}
