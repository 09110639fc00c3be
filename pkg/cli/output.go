package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/devicelab-dev/flowdriver/pkg/executor"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// console prints live progress. Callbacks may arrive from several
// goroutines when scenarios run in parallel.
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsole(w io.Writer) *console {
	if w == nil {
		w = os.Stdout
	}
	return &console{w: w}
}

func (o *console) printf(format string, a ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format, a...)
}

func (o *console) onScenarioStart(idx, total int, name, file string) {
	o.printf("\n  %s[%d/%d]%s %s%s%s (%s)\n%s\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), name, color(colorReset), file,
		strings.Repeat("─", 60))
}

func (o *console) onStepComplete(scenario string, step core.StepResult) {
	desc := step.Step.Describe()
	durationMs := step.Duration.Milliseconds()
	durStr := formatDuration(durationMs)

	switch step.Status {
	case core.StatusPassed:
		symbol := "✓"
		symbolColor := color(colorGreen)
		durColor := ""
		if durationMs >= slowThresholdMs {
			durColor = color(colorYellow)
			symbol = "⚠"
			symbolColor = color(colorYellow)
		}
		o.printf("    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset))
	case core.StatusFailed:
		msg := fmt.Sprintf("    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), desc, durStr)
		if step.Error != "" {
			msg += fmt.Sprintf("      %s╰─%s %s\n", color(colorGray), color(colorReset), step.Error)
		}
		o.printf("%s", msg)
	}
}

func (o *console) onScenarioEnd(res *core.ScenarioResult) {
	dur := formatDuration(res.Duration.Milliseconds())
	if res.Passed() {
		o.printf("%s✓ %s%s %s%s%s\n",
			color(colorGreen), color(colorReset), res.Name, color(colorGray), dur, color(colorReset))
		return
	}
	o.printf("%s✗ %s%s %s%s%s\n",
		color(colorRed), color(colorReset), res.Name, color(colorGray), dur, color(colorReset))
	if res.FailedStep >= 0 && res.FailedStep < len(res.Steps) {
		o.printf("  %sskipped %d remaining step(s)%s\n",
			color(colorGray), len(res.Steps)-res.FailedStep-1, color(colorReset))
	}
}

func (o *console) printSummary(result *executor.RunResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.w

	// Step totals
	var totalSteps, passedSteps, failedSteps, skippedSteps int
	for _, sr := range result.Scenarios {
		p, f, s := sr.CountSteps()
		totalSteps += len(sr.Steps)
		passedSteps += p
		failedSteps += f
		skippedSteps += s
	}

	fmt.Fprintln(w)
	if passedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(result.Duration.Milliseconds()))
	}
	if failedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Fprintln(w)

	tableWidth := 92
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Scenario", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, sr := range result.Scenarios {
		var status, statusColor string
		switch sr.Status {
		case core.ScenarioFailed:
			status = "✗ FAIL"
			statusColor = color(colorRed)
		case core.ScenarioPassed:
			status = "✓ PASS"
			statusColor = color(colorGreen)
		default:
			status = "- SKIP"
			statusColor = color(colorCyan)
		}

		// Truncate name if too long
		name := sr.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		p, f, s := sr.CountSteps()
		fmt.Fprintf(w, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			len(sr.Steps), p, f, s,
			formatDuration(sr.Duration.Milliseconds()))
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.Passed, result.Total)
	statusColor := color(colorGreen)
	if result.Failed > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(result.Duration.Milliseconds()))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
