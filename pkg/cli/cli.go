// Package cli provides the command-line interface for smoke-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to smoke.yaml (default: smoke.yaml in $SMOKE_RUNNER_HOME or the working directory)",
		EnvVars: []string{"SMOKE_RUNNER_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"s"},
		Usage:   "Device serial(s) to use (comma-separated, default: all attached)",
		EnvVars: []string{"ANDROID_SERIAL"},
	},
	&cli.IntFlag{
		Name:  "command-timeout",
		Usage: "Timeout for a single adb call in ms (0 = none, default from config)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"SMOKE_RUNNER_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// RunFlags configure the smoke run itself.
var RunFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "build",
		Aliases: []string{"b"},
		Usage:   "Build the APK before testing",
		Value:   true,
	},
	&cli.IntFlag{
		Name:    "time-before-screenshot",
		Aliases: []string{"t"},
		Usage:   "Wait before each screenshot in ms (default from config, 4000)",
	},
	&cli.StringFlag{
		Name:  "apk",
		Usage: "APK to install (overrides config)",
	},
	&cli.StringFlag{
		Name:  "output",
		Usage: "Output directory (default: outputDir from config)",
	},
	&cli.BoolFlag{
		Name:  "flatten",
		Usage: "Don't create timestamp subfolder",
	},
	&cli.BoolFlag{
		Name:  "parallel",
		Usage: "Run all devices concurrently",
	},
	&cli.IntFlag{
		Name:  "max-parallel",
		Usage: "Cap concurrent devices with --parallel (0 = all)",
	},
	&cli.BoolFlag{
		Name:  "no-log-check",
		Usage: "Skip device log crash checks",
	},
	&cli.StringFlag{
		Name:    "history-db",
		Usage:   "Record the run in this SQLite database",
		EnvVars: []string{"SMOKE_RUNNER_HISTORY_DB"},
	},
	&cli.BoolFlag{
		Name:  "strict",
		Usage: "Exit with status 1 when any screen fails",
	},
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "smoke-runner",
		Usage:   "Screen-by-screen smoke test for Android apps",
		Version: Version,
		Description: `smoke-runner builds the app, installs it on every attached device,
discovers tap coordinates for each configured screen from a live UI
hierarchy dump, then replays them screen by screen, capturing one
screenshot per screen and checking device logs for crashes.

Examples:
  smoke-runner
  smoke-runner -b=false -t 6000
  smoke-runner --device emulator-5554 --output ./smoke
  smoke-runner --parallel --history-db smoke.sqlite
  smoke-runner devices
  smoke-runner hierarchy --device emulator-5554 --id start_ar`,
		Flags:  append(append([]cli.Flag{}, GlobalFlags...), RunFlags...),
		Action: runSmoke,
		Commands: []*cli.Command{
			devicesCommand,
			hierarchyCommand,
			historyCommand,
		},
	}
}
