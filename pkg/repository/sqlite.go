package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
	_ "modernc.org/sqlite"
)

// SQLite implements Repository on a local SQLite file. Nested records are
// stored as JSON columns.
type SQLite struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes write transactions to avoid SQLITE_BUSY
}

// NewSQLite opens (and creates if needed) a SQLite database at dbPath.
// Use ":memory:" for a throwaway database.
func NewSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", dbPath))
		}
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", dbPath))
	}
	if dbPath == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to ping database", goerr.V("path", dbPath))
	}

	s := &SQLite{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at);
	CREATE TABLE IF NOT EXISTS experiences (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_experiences_user ON experiences(user_id, domain, created_at);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return goerr.Wrap(err, "failed to create schema")
	}
	return nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	return getProfile(ctx, s.db, userID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getProfile(ctx context.Context, q queryer, userID string) (*model.UserProfile, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrNotFound, "profile not found", goerr.V("user_id", userID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query profile", goerr.V("user_id", userID))
	}

	var profile model.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, goerr.Wrap(err, "failed to decode profile", goerr.V("user_id", userID))
	}
	if profile.ConcernCounts == nil {
		profile.ConcernCounts = map[string]int{}
	}
	return &profile, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putProfile(ctx context.Context, e execer, profile *model.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return goerr.Wrap(err, "failed to encode profile", goerr.V("user_id", profile.UserID))
	}

	query := `
	INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at`
	if _, err := e.ExecContext(ctx, query, profile.UserID, string(data), profile.UpdatedAt.UnixNano()); err != nil {
		return goerr.Wrap(err, "failed to upsert profile", goerr.V("user_id", profile.UserID))
	}
	return nil
}

func (s *SQLite) PutProfile(ctx context.Context, profile *model.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return goerr.New("profile user id is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return putProfile(ctx, s.db, profile)
}

func (s *SQLite) DeleteUser(ctx context.Context, userID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"profiles", "sessions", "experiences"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", userID); err != nil {
			return goerr.Wrap(err, "failed to delete user records", goerr.V("table", table), goerr.V("user_id", userID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit delete", goerr.V("user_id", userID))
	}
	return nil
}

func (s *SQLite) ListSessions(ctx context.Context, userID string, since time.Time, limit int) ([]*model.SessionRecord, error) {
	query := `SELECT data FROM sessions WHERE user_id = ? AND created_at >= ? ORDER BY created_at DESC, id DESC`
	args := []any{userID, since.UnixNano()}
	if since.IsZero() {
		args[1] = int64(0)
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query sessions", goerr.V("user_id", userID))
	}
	defer rows.Close()

	var result []*model.SessionRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to scan session row")
		}
		var session model.SessionRecord
		if err := json.Unmarshal([]byte(data), &session); err != nil {
			return nil, goerr.Wrap(err, "failed to decode session", goerr.V("user_id", userID))
		}
		result = append(result, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate sessions")
	}
	return result, nil
}

func (s *SQLite) ListExperiences(ctx context.Context, userID string, domains []model.Domain) ([]*model.HealthExperience, error) {
	query := `SELECT data FROM experiences WHERE user_id = ?`
	args := []any{userID}
	if len(domains) > 0 {
		placeholders := make([]string, len(domains))
		for i, d := range domains {
			placeholders[i] = "?"
			args = append(args, string(d))
		}
		query += ` AND domain IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query experiences", goerr.V("user_id", userID))
	}
	defer rows.Close()

	var result []*model.HealthExperience
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to scan experience row")
		}
		var exp model.HealthExperience
		if err := json.Unmarshal([]byte(data), &exp); err != nil {
			return nil, goerr.Wrap(err, "failed to decode experience", goerr.V("user_id", userID))
		}
		result = append(result, &exp)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate experiences")
	}
	return result, nil
}

func (s *SQLite) Commit(ctx context.Context, wb *model.WriteBack) error {
	if err := validateWriteBack(wb); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	profile, err := getProfile(ctx, tx, wb.UserID)
	if errors.Is(err, model.ErrNotFound) {
		profile = model.NewUserProfile(wb.UserID)
	} else if err != nil {
		return err
	}
	profile.Apply(wb.Delta, commitTime(wb))
	if err := putProfile(ctx, tx, profile); err != nil {
		return err
	}

	if wb.Session != nil {
		data, err := json.Marshal(wb.Session)
		if err != nil {
			return goerr.Wrap(err, "failed to encode session", goerr.V("session_id", wb.Session.ID))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sessions (id, user_id, created_at, data) VALUES (?, ?, ?, ?)`,
			string(wb.Session.ID), wb.UserID, wb.Session.CreatedAt.UnixNano(), string(data)); err != nil {
			return goerr.Wrap(err, "failed to insert session", goerr.V("session_id", wb.Session.ID))
		}
	}

	for _, exp := range wb.Experiences {
		data, err := json.Marshal(exp)
		if err != nil {
			return goerr.Wrap(err, "failed to encode experience", goerr.V("experience_id", exp.ID))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO experiences (id, user_id, domain, created_at, data) VALUES (?, ?, ?, ?, ?)`,
			string(exp.ID), wb.UserID, string(exp.Domain), exp.CreatedAt.UnixNano(), string(data)); err != nil {
			return goerr.Wrap(err, "failed to insert experience", goerr.V("experience_id", exp.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit write-back", goerr.V("user_id", wb.UserID))
	}
	return nil
}
