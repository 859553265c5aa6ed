package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
	"github.com/medley-health/medley/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func recallCommand() *cli.Command {
	var (
		cfg     config
		userID  string
		query   string
		domains []string
		k       int64
	)

	flags := []cli.Flag{
		userFlag(&userID),
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Text to rank experiences against (recency only when empty)",
			Destination: &query,
		},
		&cli.StringSliceFlag{
			Name:        "domain",
			Usage:       "Restrict to a domain (repeatable)",
			Destination: &domains,
		},
		&cli.IntFlag{
			Name:        "k",
			Usage:       "Number of experiences to return",
			Value:       5,
			Destination: &k,
		},
	}
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:  "recall",
		Usage: "Retrieve the most relevant past experiences of a user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.withLogger(ctx)
			if err != nil {
				return err
			}

			filter := make([]model.Domain, 0, len(domains))
			for _, name := range domains {
				d := model.Domain(name)
				if err := d.Validate(); err != nil {
					return err
				}
				filter = append(filter, d)
			}

			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			exps, err := rt.store.RetrieveExperiences(ctx, userID, filter, query, int(k))
			if err != nil {
				if !errors.Is(err, model.ErrMemoryReadDegraded) || exps == nil {
					return goerr.Wrap(err, "failed to retrieve experiences")
				}
				logging.From(ctx).Warn("query could not be embedded, ranked by recency", "error", err)
			}

			if len(exps) == 0 {
				fmt.Fprintf(c.Root().Writer, "No experiences found for user %s\n", userID)
				return nil
			}
			for _, e := range exps {
				formatExperience(c.Root().Writer, e)
			}
			return nil
		},
	}
}
