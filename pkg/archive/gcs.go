package archive

import (
	"context"
	"encoding/json"
	"path"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/adapter"
	"github.com/medley-health/medley/pkg/model"
)

// GCS writes each session as JSON under sessions/<user>/<session>.json
type GCS struct {
	storage adapter.Storage
	prefix  string
}

// GCSOption configures GCS
type GCSOption func(*GCS)

// WithPrefix sets the object prefix. Default is "sessions".
func WithPrefix(prefix string) GCSOption {
	return func(g *GCS) {
		g.prefix = prefix
	}
}

// NewGCS creates a sink on top of a bucket
func NewGCS(storage adapter.Storage, opts ...GCSOption) *GCS {
	g := &GCS{storage: storage, prefix: "sessions"}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GCS) Name() string {
	return "gcs"
}

func (g *GCS) key(userID string, sessionID model.SessionID) string {
	return path.Join(g.prefix, userID, string(sessionID)+".json")
}

// Export uploads the session record
func (g *GCS) Export(ctx context.Context, session *model.SessionRecord) error {
	key := g.key(session.UserID, session.ID)
	w, err := g.storage.Put(ctx, key, "application/json")
	if err != nil {
		return goerr.Wrap(err, "failed to open archive object", goerr.V("key", key))
	}

	if err := json.NewEncoder(w).Encode(session); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write archive object", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to close archive object", goerr.V("key", key))
	}
	return nil
}

// Load reads an archived session back
func (g *GCS) Load(ctx context.Context, userID string, sessionID model.SessionID) (*model.SessionRecord, error) {
	key := g.key(userID, sessionID)
	r, err := g.storage.Get(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open archived session", goerr.V("key", key))
	}
	defer r.Close()

	var session model.SessionRecord
	if err := json.NewDecoder(r).Decode(&session); err != nil {
		return nil, goerr.Wrap(err, "failed to decode archived session", goerr.V("key", key))
	}
	return &session, nil
}

// DeleteUser removes every archived session of a user
func (g *GCS) DeleteUser(ctx context.Context, userID string) error {
	prefix := path.Join(g.prefix, userID) + "/"
	if err := g.storage.Delete(ctx, prefix); err != nil {
		return goerr.Wrap(err, "failed to delete archived sessions", goerr.V("user_id", userID))
	}
	return nil
}
