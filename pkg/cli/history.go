package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/smoke-runner/pkg/store"
)

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "Show recorded smoke runs",
	Description: `List runs recorded with --history-db, show one run's screen results,
or follow one screen across runs.

Examples:
  smoke-runner history --history-db smoke.sqlite
  smoke-runner history --history-db smoke.sqlite --run <run-id>
  smoke-runner history --history-db smoke.sqlite --screen ar_routing`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "history-db",
			Usage:    "SQLite database written by smoke runs",
			EnvVars:  []string{"SMOKE_RUNNER_HISTORY_DB"},
			Required: true,
		},
		&cli.StringFlag{
			Name:  "run",
			Usage: "Show the screens of one run",
		},
		&cli.StringFlag{
			Name:  "screen",
			Usage: "Show the latest results of one screen",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of rows",
			Value: 20,
		},
	},
	Action: runHistory,
}

func runHistory(c *cli.Context) error {
	if _, err := os.Stat(c.String("history-db")); err != nil {
		return fmt.Errorf("history database: %w", err)
	}
	s, err := store.Open(c.String("history-db"))
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := c.Context
	switch {
	case c.String("run") != "":
		rec, err := s.GetRun(ctx, c.String("run"))
		if err != nil {
			return err
		}
		printRunScreens(os.Stdout, rec)
	case c.String("screen") != "":
		screens, err := s.ScreenHistory(ctx, c.String("screen"), c.Int("limit"))
		if err != nil {
			return err
		}
		printScreenHistory(os.Stdout, screens)
	default:
		runs, err := s.ListRuns(ctx, c.Int("limit"))
		if err != nil {
			return err
		}
		printRuns(os.Stdout, runs)
	}
	return nil
}

func printRuns(w io.Writer, runs []*store.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tPACKAGE\tSTATUS\tDEVICES\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Package, r.Status,
			r.PassedDevices, r.Devices, formatDuration(r.DurationMs))
	}
	tw.Flush()
}

func printRunScreens(w io.Writer, rec *store.RunRecord) {
	fmt.Fprintf(w, "Run %s (%s) %s\n\n", rec.RunID, rec.Package, rec.Status)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tSCREEN\tSTATUS\tDURATION\tREASON")
	for _, s := range rec.Screens {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Serial, s.ScreenID, s.Status, formatDuration(s.DurationMs), s.FailureReason)
	}
	tw.Flush()
}

func printScreenHistory(w io.Writer, screens []*store.ScreenRecord) {
	if len(screens) == 0 {
		fmt.Fprintln(w, "No results for this screen")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tDEVICE\tSTATUS\tREASON")
	for _, s := range screens {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"), s.Serial, s.Status, s.FailureReason)
	}
	tw.Flush()
}
