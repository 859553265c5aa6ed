package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
	"github.com/medley-health/medley/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".medley_history")
}

// chatTurn assesses one message with the command line hints. The hints go
// with every message; the stored profile keeps the first value it received.
func chatTurn(ctx context.Context, rt *runtime, userID, message string, hints model.Hints) (*model.HealthAssessment, error) {
	return assessOne(ctx, rt, &model.Request{UserID: userID, Text: message, Hints: hints.Copy()})
}

func chatCommand() *cli.Command {
	var (
		cfg     config
		userID  string
		hintsIn hintInput
	)

	flags := []cli.Flag{userFlag(&userID)}
	flags = append(flags, hintFlags(&hintsIn)...)
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive health conversation; hints given as flags apply to every message",
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

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     historyFile(),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start line editor")
			}
			defer rl.Close()

			hints := hintsIn.hints(c)
			fmt.Fprintf(w, "Chat session started for %s. Type 'exit' to quit, '/summary' or '/profile' for memory.\n", userID)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				switch message {
				case "":
					continue
				case "exit", "quit":
					fmt.Fprintf(w, "\nChat session completed\n")
					return nil
				case "/summary":
					summary, err := rt.coordinator.Summary(ctx, userID, 30)
					if err != nil {
						logging.From(ctx).Error("failed to summarize", "error", err)
						continue
					}
					formatSummary(w, summary)
					continue
				case "/profile":
					profile, err := rt.store.GetProfile(ctx, userID)
					if err != nil {
						logging.From(ctx).Warn("profile read degraded", "error", err)
					}
					formatProfile(w, profile)
					continue
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				sp.Suffix = " assessing..."
				sp.Start()
				a, err := chatTurn(ctx, rt, userID, message, hints)
				sp.Stop()
				if err != nil {
					logging.From(ctx).Error("assessment failed", "error", err)
					continue
				}

				formatAssessment(w, a)
				fmt.Fprintln(w)
			}

			fmt.Fprintf(w, "\nChat session completed\n")
			return nil
		},
	}
}
