// Command bruteforcer finds the best boundary entry of a layout by driving a
// running beam grid server one energize call at a time, then checks the
// result against the server's own sweep.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/beamgrid/game/engine"
)

const sessionFile = ".session"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		logrus.WithError(err).Fatal("bruteforcer failed")
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "bruteforcer",
		Usage: "Energize every boundary entry over the REST API and report the best",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Beam grid server URL"},
			&cli.StringFlag{Name: "config", Usage: "Layout configuration ID (default: server default)"},
			&cli.StringFlag{Name: "continue", Usage: "Reuse an existing session by ID"},
			&cli.StringFlag{Name: "session-file", Value: sessionFile, Usage: "File remembering the last session ID (empty disables)"},
			&cli.StringFlag{Name: "strategy", Value: StrategySystematic, Usage: "Entry order: systematic or edge"},
			&cli.IntFlag{Name: "delay", Usage: "Delay between runs in milliseconds"},
			&cli.BoolFlag{Name: "verify", Value: true, Usage: "Compare the result with the server sweep"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: run,
	}
}

// Outcome is the result of one brute force pass
type Outcome struct {
	SessionID string
	Best      engine.BeamState
	Max       int
	Runs      int
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("v") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	client := NewClient(cmd.String("url"))
	logrus.WithField("url", cmd.String("url")).Info("Connecting to beam grid server")

	if err := openSession(ctx, client, cmd.String("continue"), cmd.String("config"), cmd.String("session-file")); err != nil {
		return err
	}

	outcome, err := bruteForce(ctx, client, cmd.String("strategy"), time.Duration(cmd.Int("delay"))*time.Millisecond)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"session": outcome.SessionID,
		"best":    outcome.Best.String(),
		"max":     outcome.Max,
		"runs":    outcome.Runs,
	}).Info("Brute force complete")
	fmt.Fprintf(cmd.Root().Writer, "%d\n", outcome.Max)

	if cmd.Bool("verify") {
		return verify(ctx, client, outcome)
	}
	return nil
}

// openSession resumes the explicit or remembered session, falling back to a
// fresh one
func openSession(ctx context.Context, client *Client, continueID, configID, file string) error {
	savedID := continueID
	if savedID == "" && file != "" {
		if data, err := os.ReadFile(file); err == nil {
			savedID = string(bytes.TrimSpace(data))
		}
	}

	if savedID != "" {
		session, err := client.Resume(ctx, savedID)
		if err == nil {
			logrus.WithFields(logrus.Fields{
				"session": session.ID,
				"config":  session.ConfigName,
				"grid":    fmt.Sprintf("%dx%d", session.Width, session.Height),
			}).Info("Session resumed")
			return nil
		}
		logrus.WithError(err).Warn("Failed to resume session (may be expired), creating a new one")
	}

	session, err := client.CreateSession(ctx, configID)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"session": session.ID,
		"config":  session.ConfigName,
		"grid":    fmt.Sprintf("%dx%d", session.Width, session.Height),
	}).Info("Session created")

	if file != "" {
		if err := os.WriteFile(file, []byte(session.ID), 0644); err != nil {
			logrus.WithError(err).Warn("Failed to save session ID")
		}
	}
	return nil
}

// bruteForce energizes every boundary entry in strategy order and keeps the
// best. Ties resolve to the first entry tried.
func bruteForce(ctx context.Context, client *Client, order string, delay time.Duration) (*Outcome, error) {
	grid, err := client.Grid(ctx)
	if err != nil {
		return nil, err
	}

	strategy, err := NewSystematicStrategy(grid.Rows, order)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{SessionID: client.SessionID()}
	for {
		entry, ok := strategy.NextEntry()
		if !ok {
			break
		}

		result, err := client.Energize(ctx, entry)
		if err != nil {
			return nil, err
		}
		outcome.Runs++

		if outcome.Runs == 1 || result.Run.Energized > outcome.Max {
			outcome.Max = result.Run.Energized
			outcome.Best = entry
			logrus.WithFields(logrus.Fields{
				"entry":     entry.String(),
				"energized": result.Run.Energized,
				"remaining": strategy.Remaining(),
			}).Info("New best entry")
		} else {
			logrus.WithFields(logrus.Fields{
				"entry":     entry.String(),
				"energized": result.Run.Energized,
			}).Debug("Entry tried")
		}

		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return outcome, nil
}

// verify compares a brute force outcome with the server sweep. Best entries
// may differ on ties; the maximum and run count may not.
func verify(ctx context.Context, client *Client, outcome *Outcome) error {
	sweep, err := client.Sweep(ctx)
	if err != nil {
		return err
	}

	if sweep.Max != outcome.Max || sweep.Runs != outcome.Runs {
		return fmt.Errorf("server sweep disagrees: max %d over %d runs, brute force found %d over %d runs",
			sweep.Max, sweep.Runs, outcome.Max, outcome.Runs)
	}

	logrus.WithFields(logrus.Fields{
		"server_best": sweep.Best.String(),
		"max":         sweep.Max,
	}).Info("Server sweep agrees")
	return nil
}
