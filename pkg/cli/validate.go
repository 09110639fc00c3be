package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check scenarios and their data files without running them",
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
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Form fields available to every scenario (KEY=VALUE)",
		},
	},
	Action: validateScenarios,
}

func validateScenarios(c *cli.Context) error {
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
	for _, sc := range scenarios {
		fmt.Fprintf(c.App.Writer, "  %s✓%s %s (%d steps)\n",
			color(colorGreen), color(colorReset), sc.Name(), len(sc.Steps))
	}
	fmt.Fprintf(c.App.Writer, "\n  %d scenario(s) valid\n", len(scenarios))
	return nil
}
