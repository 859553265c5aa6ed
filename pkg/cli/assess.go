package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
	"github.com/medley-health/medley/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// hintInput holds structured hint flags before they are turned into model.Hints
type hintInput struct {
	age            int64
	income         float64
	country        string
	trainingLoad   float64
	matchIntensity float64
	gamesPlayed    int64
	recoveryDays   int64
	recentInjury   bool
	concerns       []string
}

func hintFlags(h *hintInput) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "age", Usage: "Age in years", Destination: &h.age},
		&cli.FloatFlag{Name: "income", Usage: "Annual income", Destination: &h.income},
		&cli.StringFlag{Name: "country", Usage: "Two-letter country code", Destination: &h.country},
		&cli.FloatFlag{Name: "training-load", Usage: "Training load in [0,1]", Destination: &h.trainingLoad},
		&cli.FloatFlag{Name: "match-intensity", Usage: "Match intensity in [0,1]", Destination: &h.matchIntensity},
		&cli.IntFlag{Name: "games-played", Usage: "Games played this season", Destination: &h.gamesPlayed},
		&cli.IntFlag{Name: "recovery-days", Usage: "Days of recovery between sessions", Destination: &h.recoveryDays},
		&cli.BoolFlag{Name: "recent-injury", Usage: "Injured in the last months", Destination: &h.recentInjury},
		&cli.StringSliceFlag{Name: "concern", Usage: "Health concern (repeatable)", Destination: &h.concerns},
	}
}

// hints converts the flags that were actually set
func (h *hintInput) hints(c *cli.Command) model.Hints {
	var hints model.Hints
	if c.IsSet("age") {
		age := int(h.age)
		hints.Age = &age
	}
	if c.IsSet("income") {
		income := h.income
		hints.Income = &income
	}
	if c.IsSet("training-load") {
		load := h.trainingLoad
		hints.TrainingLoad = &load
	}
	if c.IsSet("match-intensity") {
		intensity := h.matchIntensity
		hints.MatchIntensity = &intensity
	}
	if c.IsSet("games-played") {
		games := int(h.gamesPlayed)
		hints.GamesPlayed = &games
	}
	if c.IsSet("recovery-days") {
		days := int(h.recoveryDays)
		hints.RecoveryDays = &days
	}
	hints.Country = h.country
	hints.RecentInjury = h.recentInjury
	hints.HealthConcerns = h.concerns
	return hints
}

// assessOne runs one request and reports all-domains-unavailable as output, not failure
func assessOne(ctx context.Context, rt *runtime, req *model.Request) (*model.HealthAssessment, error) {
	a, err := rt.coordinator.Assess(ctx, req)
	if err != nil {
		if errors.Is(err, model.ErrAllDomainsUnavailable) && a != nil {
			logging.From(ctx).Warn("no domain could be assessed", "error", err)
			return a, nil
		}
		return nil, goerr.Wrap(err, "failed to assess request")
	}
	return a, nil
}

func assessCommand() *cli.Command {
	var (
		cfg     config
		userID  string
		text    string
		asJSON  bool
		hintsIn hintInput
	)

	flags := []cli.Flag{
		userFlag(&userID),
		&cli.StringFlag{
			Name:        "text",
			Aliases:     []string{"t"},
			Usage:       "Free text of the request (positional arguments are used when omitted)",
			Destination: &text,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the assessment as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, hintFlags(&hintsIn)...)
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:      "assess",
		Usage:     "Assess one health request",
		ArgsUsage: "[text...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.withLogger(ctx)
			if err != nil {
				return err
			}

			if text == "" {
				text = strings.Join(c.Args().Slice(), " ")
			}

			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			a, err := assessOne(ctx, rt, &model.Request{
				UserID: userID,
				Text:   text,
				Hints:  hintsIn.hints(c),
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(c.Root().Writer, a)
			}
			formatAssessment(c.Root().Writer, a)
			fmt.Fprintln(c.Root().Writer)
			return nil
		},
	}
}
