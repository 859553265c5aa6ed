package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
	"github.com/medley-health/medley/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// findSession looks a session up in memory first and then in the archive
func findSession(ctx context.Context, rt *runtime, userID string, id model.SessionID) (*model.SessionRecord, error) {
	sessions, err := rt.store.Sessions(ctx, userID, time.Time{}, 0)
	if err != nil {
		if rt.archive == nil {
			return nil, goerr.Wrap(err, "failed to list sessions")
		}
		logging.From(ctx).Warn("failed to list sessions, trying archive", "error", err)
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}

	if rt.archive == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "session not found", goerr.V("session_id", id))
	}
	s, err := rt.archive.Load(ctx, userID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "session not found in memory or archive", goerr.V("session_id", id))
	}
	return s, nil
}

func historyCommand() *cli.Command {
	var (
		cfg       config
		userID    string
		sessionID string
		days      int64
		limit     int64
		asJSON    bool
	)

	flags := []cli.Flag{
		userFlag(&userID),
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Show one session in detail, falling back to the archive bucket",
			Destination: &sessionID,
		},
		&cli.IntFlag{
			Name:        "days",
			Usage:       "Only sessions of the last N days (0 for all)",
			Value:       0,
			Destination: &days,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of sessions to list",
			Value:       20,
			Sources:     cli.EnvVars("MEDLEY_HISTORY_LIMIT"),
			Destination: &limit,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print full session records as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List past sessions of a user, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.withLogger(ctx)
			if err != nil {
				return err
			}
			w := c.Root().Writer

			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if sessionID != "" {
				s, err := findSession(ctx, rt, userID, model.SessionID(sessionID))
				if err != nil {
					if errors.Is(err, model.ErrNotFound) {
						fmt.Fprintf(w, "Session %s not found for user %s\n", sessionID, userID)
						return nil
					}
					return err
				}
				if asJSON {
					return writeJSON(w, s)
				}
				formatSession(w, s)
				if s.Assessment != nil {
					formatAssessment(w, s.Assessment)
				}
				return nil
			}

			var since time.Time
			if days > 0 {
				since = time.Now().Add(-time.Duration(days) * 24 * time.Hour)
			}

			sessions, err := rt.store.Sessions(ctx, userID, since, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to list sessions")
			}

			if asJSON {
				return writeJSON(w, sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintf(w, "No sessions found for user %s\n", userID)
				return nil
			}
			for _, s := range sessions {
				formatSession(w, s)
			}
			return nil
		},
	}
}
