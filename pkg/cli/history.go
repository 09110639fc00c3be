package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/history"
	"github.com/urfave/cli/v2"
)

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "Show recorded runs and per-scenario pass rates",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "history-db",
			Usage: "SQLite history file (default: history.db under $FLOWDRIVER_HOME or ~/.flowdriver)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Number of recent runs to show",
			Value: 10,
		},
		&cli.StringFlag{
			Name:  "scenario",
			Usage: "Show every recorded outcome of one scenario",
		},
	},
	Action: showHistory,
}

func showHistory(c *cli.Context) error {
	suite, err := loadConfig(c)
	if err != nil {
		return err
	}
	path := c.String("history-db")
	if path == "" {
		path = suite.HistoryPath()
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := c.Context
	w := c.App.Writer

	if name := c.String("scenario"); name != "" {
		recs, err := store.ScenarioHistory(ctx, name, c.Int("limit"))
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return fmt.Errorf("no history for scenario %q", name)
		}
		fmt.Fprintf(w, "  %-20s %-38s %-8s %10s  %s\n", "Started", "Run", "Status", "Duration", "Error")
		fmt.Fprintln(w, strings.Repeat("─", 100))
		for _, r := range recs {
			fmt.Fprintf(w, "  %-20s %-38s %-8s %10s  %s\n",
				r.StartTime.Format(time.DateTime), r.RunID, r.Status,
				formatDuration(r.Duration.Milliseconds()), r.Error)
		}
		return nil
	}

	runs, err := store.Runs(ctx, c.Int("limit"))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  %-20s %-38s %-7s %5s %5s %5s %10s\n", "Started", "Run", "Driver", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", 100))
	for _, r := range runs {
		fmt.Fprintf(w, "  %-20s %-38s %-7s %5d %5d %5d %10s\n",
			r.StartTime.Format(time.DateTime), r.ID, r.Driver,
			r.Passed, r.Failed, r.Skipped, formatDuration(r.Duration.Milliseconds()))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	if len(stats) > 0 {
		fmt.Fprintf(w, "\n  %-42s %6s %8s\n", "Scenario", "Runs", "Pass %")
		fmt.Fprintln(w, strings.Repeat("─", 60))
		for _, s := range stats {
			fmt.Fprintf(w, "  %-42s %6d %7.0f%%\n", s.Name, s.Runs, s.PassRate()*100)
		}
	}
	return nil
}
