package archive_test

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

type memoryObject struct {
	bytes.Buffer
	onClose func([]byte)
}

func (o *memoryObject) Close() error {
	o.onClose(o.Bytes())
	return nil
}

type mockStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *mockStorage) Put(ctx context.Context, key, contentType string) (io.WriteCloser, error) {
	return &memoryObject{onClose: func(data []byte) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.objects[key] = bytes.Clone(data)
		m.types[key] = contentType
	}}, nil
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockStorage) Delete(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	return nil
}

type mockBigQuery struct {
	ensureCalls int
	ensureErr   error
	rows        []*archive.SessionRow
}

func (m *mockBigQuery) EnsureTable(ctx context.Context, datasetID, tableID string, row any) error {
	m.ensureCalls++
	return m.ensureErr
}

func (m *mockBigQuery) Insert(ctx context.Context, datasetID, tableID string, rows any) error {
	m.rows = append(m.rows, rows.([]*archive.SessionRow)...)
	return nil
}

func newSession(userID string) *model.SessionRecord {
	return &model.SessionRecord{
		ID:        model.NewSessionID(),
		UserID:    userID,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Request:   &model.Request{UserID: userID, Text: "my knee hurts"},
		Findings: []*model.AgentFinding{
			{Domain: model.DomainMental, Severity: 0.1},
			{Domain: model.DomainPhysical, Severity: 0.5},
		},
		Unavailable: []model.Domain{model.DomainEconomic},
		Assessment: &model.HealthAssessment{
			Status:           model.StatusAttention,
			CombinedSeverity: 0.3,
			Recommendations:  []*model.Recommendation{{Action: "consult", Target: "doctor", Confidence: 0.6}},
		},
	}
}

func TestGCSExportAndLoad(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorage()
	sink := archive.NewGCS(storage)
	gt.Equal(t, sink.Name(), "gcs")

	session := newSession("alice")
	gt.NoError(t, sink.Export(ctx, session))

	key := "sessions/alice/" + string(session.ID) + ".json"
	gt.Equal(t, storage.types[key], "application/json")

	loaded, err := sink.Load(ctx, "alice", session.ID)
	gt.NoError(t, err)
	gt.Equal(t, loaded.ID, session.ID)
	gt.Equal(t, loaded.Assessment.Status, model.StatusAttention)
	gt.A(t, loaded.Findings).Length(2)
}

func TestGCSDeleteUser(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorage()
	sink := archive.NewGCS(storage, archive.WithPrefix("archive"))

	alice := newSession("alice")
	bob := newSession("bob")
	gt.NoError(t, sink.Export(ctx, alice))
	gt.NoError(t, sink.Export(ctx, bob))

	gt.NoError(t, sink.DeleteUser(ctx, "alice"))
	_, err := sink.Load(ctx, "alice", alice.ID)
	gt.True(t, errors.Is(err, model.ErrNotFound))
	_, err = sink.Load(ctx, "bob", bob.ID)
	gt.NoError(t, err)
}

func TestBigQueryExport(t *testing.T) {
	ctx := context.Background()
	client := &mockBigQuery{}
	sink := archive.NewBigQuery(client, "medley", "sessions")
	gt.Equal(t, sink.Name(), "bigquery")

	gt.NoError(t, sink.Export(ctx, newSession("alice")))
	gt.NoError(t, sink.Export(ctx, newSession("bob")))
	gt.Equal(t, client.ensureCalls, 1)
	gt.A(t, client.rows).Length(2)

	row := client.rows[0]
	gt.Equal(t, row.UserID, "alice")
	gt.Equal(t, row.Status, "attention")
	gt.Equal(t, row.Domains, []string{"mental", "physical"})
	gt.Equal(t, row.Unavailable, []string{"economic"})
	gt.Equal(t, row.Recommendations, int64(1))
}

func TestBigQueryRetriesTableCreation(t *testing.T) {
	ctx := context.Background()
	client := &mockBigQuery{ensureErr: errors.New("quota exceeded")}
	sink := archive.NewBigQuery(client, "medley", "sessions")

	gt.Error(t, sink.Export(ctx, newSession("alice")))
	gt.A(t, client.rows).Length(0)

	client.ensureErr = nil
	gt.NoError(t, sink.Export(ctx, newSession("alice")))
	gt.Equal(t, client.ensureCalls, 2)
	gt.A(t, client.rows).Length(1)
}
