package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show, update or delete a user profile",
		Commands: []*cli.Command{
			profileShowCommand(),
			profileSetCommand(),
			profileDeleteCommand(),
		},
	}
}

func profileShowCommand() *cli.Command {
	var (
		cfg    config
		userID string
		asJSON bool
	)

	flags := []cli.Flag{
		userFlag(&userID),
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the profile as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:  "show",
		Usage: "Show the stored profile",
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

			profile, err := rt.store.GetProfile(ctx, userID)
			if err != nil {
				logging.From(ctx).Warn("profile read degraded, showing defaults", "error", err)
			}

			if asJSON {
				return writeJSON(c.Root().Writer, profile)
			}
			formatProfile(c.Root().Writer, profile)
			return nil
		},
	}
}

// profileSetCommand is the explicit update path: unlike session write-back it
// overwrites demographic fields.
func profileSetCommand() *cli.Command {
	var (
		cfg      config
		userID   string
		age      int64
		income   float64
		country  string
		baseline []string
	)

	flags := []cli.Flag{
		userFlag(&userID),
		&cli.IntFlag{Name: "age", Usage: "Age in years", Destination: &age},
		&cli.FloatFlag{Name: "income", Usage: "Annual income", Destination: &income},
		&cli.StringFlag{Name: "country", Usage: "Two-letter country code", Destination: &country},
		&cli.StringSliceFlag{Name: "baseline", Usage: "Baseline condition flag (repeatable, replaces existing)", Destination: &baseline},
	}
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:  "set",
		Usage: "Overwrite profile fields",
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

			profile, err := rt.store.GetProfile(ctx, userID)
			if err != nil {
				return goerr.Wrap(err, "refusing to overwrite a profile that could not be read")
			}

			if c.IsSet("age") {
				if age < 0 {
					return goerr.New("age must not be negative", goerr.V("age", age))
				}
				v := int(age)
				profile.Age = &v
			}
			if c.IsSet("income") {
				if income < 0 {
					return goerr.New("income must not be negative", goerr.V("income", income))
				}
				v := income
				profile.Income = &v
			}
			if c.IsSet("country") {
				if len(country) != 2 {
					return goerr.New("country must be a two-letter code", goerr.V("country", country))
				}
				profile.Country = strings.ToUpper(country)
			}
			if c.IsSet("baseline") {
				profile.BaselineFlags = baseline
			}

			if err := rt.store.PutProfile(ctx, profile); err != nil {
				return goerr.Wrap(err, "failed to save profile")
			}
			formatProfile(c.Root().Writer, profile)
			return nil
		},
	}
}

func profileDeleteCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{userFlag(&userID)}
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:  "delete",
		Usage: "Delete the profile, sessions and experiences of a user",
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

			if err := rt.store.DeleteProfile(ctx, userID); err != nil {
				return goerr.Wrap(err, "failed to delete user")
			}
			if rt.archive != nil {
				if err := rt.archive.DeleteUser(ctx, userID); err != nil {
					return goerr.Wrap(err, "failed to delete archived sessions")
				}
			}

			fmt.Fprintf(c.Root().Writer, "Deleted user %s\n", userID)
			return nil
		},
	}
}
