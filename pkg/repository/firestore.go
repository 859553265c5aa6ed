package repository

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionUsers       = "users"
	collectionSessions    = "sessions"
	collectionExperiences = "experiences"
)

// Firestore implements Repository using Cloud Firestore. Layout:
//
//	users/{user_id}                      profile
//	users/{user_id}/sessions/{id}        session record
//	users/{user_id}/experiences/{id}     experience with vector embedding
type Firestore struct {
	client *firestore.Client
}

// sessionDoc keeps the nested session as JSON; only the query keys are
// native fields.
type sessionDoc struct {
	ID        string    `firestore:"id"`
	CreatedAt time.Time `firestore:"created_at"`
	Data      string    `firestore:"data"`
}

type experienceDoc struct {
	ID        string             `firestore:"id"`
	SessionID string             `firestore:"session_id"`
	Domain    string             `firestore:"domain"`
	Summary   string             `firestore:"summary"`
	Embedding firestore.Vector32 `firestore:"embedding"`
	Severity  float64            `firestore:"severity"`
	CreatedAt time.Time          `firestore:"created_at"`
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...option.ClientOption) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}
	return &Firestore{client: client}, nil
}

// Close closes the Firestore client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) userDoc(userID string) *firestore.DocumentRef {
	return r.client.Collection(collectionUsers).Doc(userID)
}

func (r *Firestore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	snap, err := r.userDoc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "profile not found", goerr.V("user_id", userID))
		}
		return nil, goerr.Wrap(err, "failed to get profile", goerr.V("user_id", userID))
	}
	return decodeProfile(snap)
}

func decodeProfile(snap *firestore.DocumentSnapshot) (*model.UserProfile, error) {
	var profile model.UserProfile
	if err := snap.DataTo(&profile); err != nil {
		return nil, goerr.Wrap(err, "failed to decode profile", goerr.V("doc_id", snap.Ref.ID))
	}
	if profile.ConcernCounts == nil {
		profile.ConcernCounts = map[string]int{}
	}
	return &profile, nil
}

func (r *Firestore) PutProfile(ctx context.Context, profile *model.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return goerr.New("profile user id is required")
	}
	if _, err := r.userDoc(profile.UserID).Set(ctx, profile); err != nil {
		return goerr.Wrap(err, "failed to put profile", goerr.V("user_id", profile.UserID))
	}
	return nil
}

func (r *Firestore) DeleteUser(ctx context.Context, userID string) error {
	bw := r.client.BulkWriter(ctx)
	user := r.userDoc(userID)

	for _, name := range []string{collectionSessions, collectionExperiences} {
		iter := user.Collection(name).Documents(ctx)
		for {
			snap, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				bw.End()
				return goerr.Wrap(err, "failed to iterate user records", goerr.V("collection", name), goerr.V("user_id", userID))
			}
			if _, err := bw.Delete(snap.Ref); err != nil {
				iter.Stop()
				bw.End()
				return goerr.Wrap(err, "failed to enqueue delete", goerr.V("doc_id", snap.Ref.ID))
			}
		}
		iter.Stop()
	}
	bw.End()

	if _, err := user.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return goerr.Wrap(err, "failed to delete profile", goerr.V("user_id", userID))
	}
	return nil
}

func (r *Firestore) ListSessions(ctx context.Context, userID string, since time.Time, limit int) ([]*model.SessionRecord, error) {
	q := r.userDoc(userID).Collection(collectionSessions).
		Where("created_at", ">=", since).
		OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var result []*model.SessionRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate sessions", goerr.V("user_id", userID))
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode session doc", goerr.V("doc_id", snap.Ref.ID))
		}
		var session model.SessionRecord
		if err := json.Unmarshal([]byte(doc.Data), &session); err != nil {
			return nil, goerr.Wrap(err, "failed to decode session", goerr.V("doc_id", snap.Ref.ID))
		}
		result = append(result, &session)
	}
	return result, nil
}

func (r *Firestore) ListExperiences(ctx context.Context, userID string, domains []model.Domain) ([]*model.HealthExperience, error) {
	q := r.userDoc(userID).Collection(collectionExperiences).Query
	if len(domains) > 0 {
		names := make([]string, len(domains))
		for i, d := range domains {
			names[i] = string(d)
		}
		q = q.Where("domain", "in", names)
	}
	q = q.OrderBy("created_at", firestore.Asc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var result []*model.HealthExperience
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate experiences", goerr.V("user_id", userID))
		}

		var doc experienceDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode experience", goerr.V("doc_id", snap.Ref.ID))
		}
		result = append(result, &model.HealthExperience{
			ID:        model.ExperienceID(doc.ID),
			UserID:    userID,
			SessionID: model.SessionID(doc.SessionID),
			Domain:    model.Domain(doc.Domain),
			Summary:   doc.Summary,
			Embedding: []float32(doc.Embedding),
			Severity:  doc.Severity,
			CreatedAt: doc.CreatedAt,
		})
	}
	return result, nil
}

func (r *Firestore) Commit(ctx context.Context, wb *model.WriteBack) error {
	if err := validateWriteBack(wb); err != nil {
		return err
	}

	var sessionData []byte
	if wb.Session != nil {
		data, err := json.Marshal(wb.Session)
		if err != nil {
			return goerr.Wrap(err, "failed to encode session", goerr.V("session_id", wb.Session.ID))
		}
		sessionData = data
	}

	user := r.userDoc(wb.UserID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		profile := model.NewUserProfile(wb.UserID)
		snap, err := tx.Get(user)
		switch {
		case err == nil:
			if profile, err = decodeProfile(snap); err != nil {
				return err
			}
		case status.Code(err) == codes.NotFound:
		default:
			return goerr.Wrap(err, "failed to read profile in transaction", goerr.V("user_id", wb.UserID))
		}

		profile.Apply(wb.Delta, commitTime(wb))
		if err := tx.Set(user, profile); err != nil {
			return goerr.Wrap(err, "failed to write profile", goerr.V("user_id", wb.UserID))
		}

		if wb.Session != nil {
			doc := &sessionDoc{
				ID:        string(wb.Session.ID),
				CreatedAt: wb.Session.CreatedAt,
				Data:      string(sessionData),
			}
			if err := tx.Create(user.Collection(collectionSessions).Doc(doc.ID), doc); err != nil {
				return goerr.Wrap(err, "failed to write session", goerr.V("session_id", doc.ID))
			}
		}

		for _, exp := range wb.Experiences {
			doc := &experienceDoc{
				ID:        string(exp.ID),
				SessionID: string(exp.SessionID),
				Domain:    string(exp.Domain),
				Summary:   exp.Summary,
				Embedding: firestore.Vector32(exp.Embedding),
				Severity:  exp.Severity,
				CreatedAt: exp.CreatedAt,
			}
			if err := tx.Create(user.Collection(collectionExperiences).Doc(doc.ID), doc); err != nil {
				return goerr.Wrap(err, "failed to write experience", goerr.V("experience_id", doc.ID))
			}
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to commit write-back", goerr.V("user_id", wb.UserID))
	}
	return nil
}
