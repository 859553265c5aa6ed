package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func summaryCommand() *cli.Command {
	var (
		cfg    config
		userID string
		days   int64
		asJSON bool
	)

	flags := []cli.Flag{
		userFlag(&userID),
		&cli.IntFlag{
			Name:        "days",
			Usage:       "Window size in days",
			Value:       30,
			Destination: &days,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the summary as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:  "summary",
		Usage: "Summarize the health sessions of a user over a window of days",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.withLogger(ctx)
			if err != nil {
				return err
			}

			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			summary, err := rt.coordinator.Summary(ctx, userID, int(days))
			if err != nil {
				return goerr.Wrap(err, "failed to build summary")
			}

			if asJSON {
				return writeJSON(c.Root().Writer, summary)
			}
			formatSummary(c.Root().Writer, summary)
			return nil
		},
	}
}
