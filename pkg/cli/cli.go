package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "medley",
		Usage: "Multi-domain health assessment with long-term memory",
		Commands: []*cli.Command{
			assessCommand(),
			chatCommand(),
			profileCommand(),
			historyCommand(),
			summaryCommand(),
			recallCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// userFlag returns the required user identifier flag
func userFlag(userID *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "user",
		Aliases:     []string{"u"},
		Usage:       "User identifier",
		Sources:     cli.EnvVars("MEDLEY_USER"),
		Destination: userID,
		Required:    true,
	}
}

// runtimeFlags returns every flag needed to build a runtime
func runtimeFlags(cfg *config) []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, llmFlags(cfg)...)
	flags = append(flags, coordinatorFlags(cfg)...)
	return flags
}
