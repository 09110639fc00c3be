package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

var listCommand = &cli.Command{
	Name:      "list",
	Usage:     "List the scenarios a run would execute",
	ArgsUsage: "[scenario-file-or-folder]...",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude scenarios with these tags",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Base directory for relative data files",
		},
	},
	Action: listScenarios,
}

func listScenarios(c *cli.Context) error {
	suite, err := loadConfig(c)
	if err != nil {
		return err
	}
	rc, err := selectionConfig(c, suite)
	if err != nil {
		return err
	}

	scenarios, err := loadScenarios(rc)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "  %-32s %6s  %-24s %s\n", "Scenario", "Steps", "Tags", "Source")
	fmt.Fprintln(w, strings.Repeat("─", 92))
	for _, sc := range scenarios {
		fmt.Fprintf(w, "  %-32s %6d  %-24s %s\n",
			sc.Name(), len(sc.Steps), strings.Join(sc.Config.Tags, ","), sc.SourcePath)
	}
	fmt.Fprintf(w, "\n  %d scenario(s)\n", len(scenarios))
	return nil
}
