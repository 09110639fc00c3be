package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	appiumdriver "github.com/devicelab-dev/flowdriver/pkg/driver/appium"
	"github.com/devicelab-dev/flowdriver/pkg/driver/mock"
	"github.com/devicelab-dev/flowdriver/pkg/executor"
	"github.com/devicelab-dev/flowdriver/pkg/history"
	"github.com/devicelab-dev/flowdriver/pkg/logger"
	"github.com/devicelab-dev/flowdriver/pkg/metrics"
	"github.com/devicelab-dev/flowdriver/pkg/report"
	"github.com/devicelab-dev/flowdriver/pkg/tracing"
	"github.com/urfave/cli/v2"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenarios against the automation backend",
	ArgsUsage: "[scenario-file-or-folder]...",
	Description: `Run one or more scenario files. Without arguments the scenarios listed
in flowdriver.yaml are run, or the built-in scenarios when none are configured.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  flowdriver run
  flowdriver run flows/ --include-tags smoke
  flowdriver run checkout.yaml -e FirstName=Jane --data-dir ./data
  flowdriver --driver mock run --parallel 2
  flowdriver run flows/ --watch`,
	Flags: []cli.Flag{
		// Environment variables
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Form fields available to every scenario (KEY=VALUE)",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Base directory for relative data files",
		},

		// Tag filtering
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude scenarios with these tags",
		},

		// Waiting
		&cli.IntFlag{
			Name:  "timeout",
			Usage: "Default wait timeout in ms for steps without their own",
		},
		&cli.IntFlag{
			Name:  "poll-interval",
			Usage: "Visibility poll interval in ms",
		},

		// Execution modes
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Run up to N scenarios at once, each on its own session",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining scenarios after the first failure",
		},
		&cli.BoolFlag{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "Re-run when scenario or data files change",
		},

		// Output
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.StringFlag{
			Name:  "history-db",
			Usage: "SQLite file recording past runs (default: history.db under $FLOWDRIVER_HOME or ~/.flowdriver)",
		},
		&cli.BoolFlag{
			Name:  "no-history",
			Usage: "Don't record this run in the history database",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write Prometheus metrics in textfile format",
		},
		&cli.StringFlag{
			Name:  "trace-file",
			Usage: "Write OpenTelemetry spans as JSON",
		},
	},
	Action: runScenarios,
}

func runScenarios(c *cli.Context) error {
	suite, err := loadConfig(c)
	if err != nil {
		return err
	}
	rc, err := buildRunConfig(c, suite)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Create output directory
	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	logPath := filepath.Join(rc.OutputDir, "flowdriver.log")
	if err := logger.Init(logPath); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	if rc.LogLevel != "" {
		if err := logger.SetLevel(rc.LogLevel); err != nil {
			return err
		}
	}

	// 3. Initialize tracing
	if rc.TraceFile != "" {
		if err := tracing.Init("flowdriver", Version, rc.TraceFile); err != nil {
			return err
		}
		defer func() {
			if err := tracing.Shutdown(context.Background()); err != nil {
				logger.Warn("tracing shutdown: %v", err)
			}
		}()
	}

	logger.Info("=== Run started ===")
	logger.Info("Output directory: %s", rc.OutputDir)
	logger.Info("Driver: %s", rc.Driver)

	out := newConsole(c.App.Writer)
	if rc.Watch {
		return watchAndRun(ctx, rc, out)
	}

	result, err := executeRun(ctx, rc, out)
	if err != nil {
		logger.Error("run failed: %v", err)
		return err
	}
	if !result.Success() {
		return fmt.Errorf("%d of %d scenarios did not pass", result.Total-result.Passed, result.Total)
	}
	return nil
}

// executeRun runs the selected scenarios once and writes every output.
func executeRun(ctx context.Context, rc *RunConfig, out *console) (*executor.RunResult, error) {
	factory, err := backendFactory(rc)
	if err != nil {
		return nil, err
	}

	scenarios, err := loadScenarios(rc)
	if err != nil {
		return nil, err
	}
	logger.Info("Validated %d scenario(s)", len(scenarios))

	recorder := metrics.New()
	runner := executor.NewWithFactory(factory, executor.RunnerConfig{
		Policy:          rc.Policy,
		DataDir:         rc.DataDir,
		Parallelism:     rc.Parallel,
		StopOnFail:      rc.StopOnFail,
		Metrics:         recorder,
		OnScenarioStart: out.onScenarioStart,
		OnStepComplete:  out.onStepComplete,
		OnScenarioEnd:   out.onScenarioEnd,
	})

	result, err := runner.Run(ctx, scenarios)
	if err != nil {
		return nil, err
	}
	out.printSummary(result)

	appID := rc.AppID
	if appID == "" {
		appID = scenarios[0].Config.AppID
	}
	index := report.Build(result.Scenarios, report.BuilderConfig{
		RunID:         result.RunID,
		StartTime:     result.StartTime,
		Duration:      result.Duration,
		AppID:         appID,
		RunnerVersion: Version,
		Driver:        rc.Driver,
	})
	if err := report.Write(rc.OutputDir, index); err != nil {
		return nil, err
	}
	out.printf("\n  Reports: %s\n", rc.OutputDir)

	if rc.HistoryPath != "" {
		if err := recordHistory(context.WithoutCancel(ctx), rc, result); err != nil {
			logger.Warn("history: %v", err)
			out.printf("  Warning: could not record history: %v\n", err)
		}
	}

	if rc.MetricsFile != "" {
		if err := recorder.WriteTextfile(rc.MetricsFile); err != nil {
			return nil, fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	logger.Info("run %s finished: %d passed, %d failed, %d skipped",
		result.RunID, result.Passed, result.Failed, result.Skipped)
	return result, nil
}

func recordHistory(ctx context.Context, rc *RunConfig, result *executor.RunResult) error {
	store, err := history.Open(rc.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Record(ctx, history.Run{
		ID:        result.RunID,
		StartTime: result.StartTime,
		Duration:  result.Duration,
		Driver:    rc.Driver,
	}, result.Scenarios)
}

// backendFactory returns a constructor for the selected backend.
// Each call opens a new session.
func backendFactory(rc *RunConfig) (executor.BackendFactory, error) {
	switch rc.Driver {
	case "mock":
		return func(ctx context.Context) (core.Backend, error) {
			return mock.New(mock.Config{Permissive: true}), nil
		}, nil
	case "appium", "":
		return func(ctx context.Context) (core.Backend, error) {
			d, err := appiumdriver.NewDriver(ctx, rc.AppiumURL, cloneCapabilities(rc.Capabilities))
			if err != nil {
				return nil, err
			}
			return d, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown driver %q (want appium or mock)", rc.Driver)
}
