package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/logger"
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

func applyColorFlag(c *cli.Context) {
	if getBool(c, "no-ansi") {
		colorsEnabled = false
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func printBanner() {
	// Box is 62 characters wide between the ║ symbols
	title := fmt.Sprintf("  smoke-runner %s", Version)
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Printf("║%s%s║\n", title, strings.Repeat(" ", max(0, 62-len(title))))
	fmt.Println("║  Screen-by-screen smoke test for Android apps                ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printAction prints a console banner for a long-running step and mirrors
// it to the log file.
func printAction(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Info("%s", msg)
	fmt.Printf("  %s⏳ %s...%s\n", color(colorCyan), msg, color(colorReset))
}

func printDone(format string, args ...interface{}) {
	fmt.Printf("  %s✓ %s%s\n", color(colorGreen), fmt.Sprintf(format, args...), color(colorReset))
}

func printWarn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Warn("%s", msg)
	fmt.Printf("  %s⚠%s Warning: %s\n", color(colorYellow), color(colorReset), msg)
}

// printSummary prints the per-device table and the overall result.
func printSummary(result *core.RunResult) {
	fmt.Printf("\n%sSummary%s\n", color(colorBold), color(colorReset))
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("  %-24s %-10s %8s %10s\n", "Device", "Status", "Screens", "Duration")
	for _, d := range result.Devices {
		fmt.Printf("  %-24s %s%-10s%s %8s %10s\n",
			d.Serial, color(statusColor(d.Status)), d.Status, color(colorReset),
			fmt.Sprintf("%d/%d", d.PassedScreens, len(d.Screens)),
			formatDuration(d.Duration.Milliseconds()))
		for _, s := range d.Screens {
			if !s.Succeeded {
				fmt.Printf("    %s✗%s %s: %s\n", color(colorRed), color(colorReset), s.ScreenID, s.FailureReason)
			}
		}
	}
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("  Run %s: %s%s%s in %s (%d passed, %d failed, %d errored, %d skipped)\n\n",
		result.RunID, color(statusColor(result.Status)), result.Status, color(colorReset),
		formatDuration(result.Duration.Milliseconds()),
		result.PassedDevices, result.FailedDevices, result.ErroredDevices, result.SkippedDevices)
}

func statusColor(s core.Status) string {
	switch s {
	case core.StatusPassed:
		return colorGreen
	case core.StatusFailed:
		return colorRed
	case core.StatusErrored, core.StatusSkipped:
		return colorYellow
	default:
		return colorGray
	}
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dm %ds", ms/60000, (ms%60000)/1000)
}

// Flag helpers. Global flags may be given before or after a subcommand, so
// the value is taken from the nearest context where the flag was set.

func setIn(c *cli.Context, name string) *cli.Context {
	for _, ctx := range c.Lineage() {
		for _, n := range ctx.LocalFlagNames() {
			if n == name {
				return ctx
			}
		}
	}
	return nil
}

func isSet(c *cli.Context, name string) bool {
	return setIn(c, name) != nil
}

func getString(c *cli.Context, name string) string {
	if ctx := setIn(c, name); ctx != nil {
		return ctx.String(name)
	}
	return c.String(name)
}

func getInt(c *cli.Context, name string) int {
	if ctx := setIn(c, name); ctx != nil {
		return ctx.Int(name)
	}
	return c.Int(name)
}

func getBool(c *cli.Context, name string) bool {
	if ctx := setIn(c, name); ctx != nil {
		return ctx.Bool(name)
	}
	return c.Bool(name)
}
