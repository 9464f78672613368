package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/smoke-runner/pkg/build"
	"github.com/devicelab-dev/smoke-runner/pkg/config"
	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/device"
	"github.com/devicelab-dev/smoke-runner/pkg/executor"
	"github.com/devicelab-dev/smoke-runner/pkg/layout"
	"github.com/devicelab-dev/smoke-runner/pkg/logger"
	"github.com/devicelab-dev/smoke-runner/pkg/report"
	"github.com/devicelab-dev/smoke-runner/pkg/store"
)

// RunConfig holds everything a smoke run needs after flag parsing.
type RunConfig struct {
	Config    *config.Config
	OutputDir string
	Devices   []string // requested serials; empty means all online
	Build     bool
	Parallel  bool
	MaxPar    int
	HistoryDB string
	Strict    bool
	Verbose   bool
}

func runSmoke(c *cli.Context) error {
	if c.NArg() > 0 {
		return fmt.Errorf("unknown command %q", c.Args().First())
	}
	applyColorFlag(c)

	cfg, err := loadConfig(getString(c, "config"))
	if err != nil {
		return err
	}
	applyOverrides(c, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(cfg.OutputRoot(), getString(c, "output"), getBool(c, "flatten"))
	if err != nil {
		return err
	}

	printBanner()

	return executeSmoke(&RunConfig{
		Config:    cfg,
		OutputDir: outputDir,
		Devices:   parseDevices(getString(c, "device")),
		Build:     getBool(c, "build"),
		Parallel:  getBool(c, "parallel"),
		MaxPar:    getInt(c, "max-parallel"),
		HistoryDB: getString(c, "history-db"),
		Strict:    getBool(c, "strict"),
		Verbose:   getBool(c, "verbose"),
	})
}

// loadConfig reads --config, or smoke.yaml from the home directory.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	return config.LoadFromDir(config.GetHome())
}

// applyOverrides lets flags take precedence over smoke.yaml.
func applyOverrides(c *cli.Context, cfg *config.Config) {
	if isSet(c, "time-before-screenshot") {
		cfg.Delays.BeforeScreenshotMs = getInt(c, "time-before-screenshot")
	}
	if isSet(c, "command-timeout") {
		cfg.CommandTimeoutMs = getInt(c, "command-timeout")
	}
	if apk := getString(c, "apk"); apk != "" {
		cfg.APK = apk
	}
	if getBool(c, "no-log-check") {
		cfg.LogCheck = false
	}
}

// resolveOutputDir determines the output directory.
//   - No --output: <config outputDir>/<timestamp>/
//   - --output given: <output>/<timestamp>/
//   - --flatten: no timestamp subfolder
func resolveOutputDir(configured, output string, flatten bool) (string, error) {
	baseDir := output
	if baseDir == "" {
		baseDir = configured
	}
	if baseDir == "" {
		return "", core.ErrMissingRequired.WithMessage("no output directory configured")
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

// parseDevices splits the --device flag value. Returns nil if no devices
// were specified (all online devices are used).
func parseDevices(deviceFlag string) []string {
	if deviceFlag == "" {
		return nil
	}
	var serials []string
	for _, s := range strings.Split(deviceFlag, ",") {
		if s = strings.TrimSpace(s); s != "" {
			serials = append(serials, s)
		}
	}
	return serials
}

// selectDevices keeps online devices, restricted to the requested serials
// when given, in adb enumeration order.
func selectDevices(online, requested []string) ([]string, error) {
	if len(requested) == 0 {
		if len(online) == 0 {
			return nil, core.ErrNoDevices
		}
		return online, nil
	}

	available := make(map[string]bool, len(online))
	for _, s := range online {
		available[s] = true
	}
	for _, s := range requested {
		if !available[s] {
			return nil, core.ErrNoDevices.WithMessage(fmt.Sprintf("device %s is not attached or not online", s))
		}
	}
	return requested, nil
}

func executeSmoke(cfg *RunConfig) error {
	// 1. Create output directory
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	l := layout.New(cfg.OutputDir)

	// 2. Initialize logging
	if err := logger.Init(l.LogFilePath()); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	if !cfg.Verbose {
		_ = logger.SetLevel("info")
	}

	logger.Info("=== Smoke run started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Package: %s/%s", cfg.Config.Package, cfg.Config.Activity)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Build
	if cfg.Build {
		printAction("Building %s", cfg.Config.Package)
		if err := build.New(cfg.Config.ProjectDir, cfg.Config.BuildCommand).Build(ctx); err != nil {
			logger.Error("Build failed: %v", err)
			return err
		}
		printDone("Build finished")
	}

	// 4. Devices
	devices, err := connectDevices(ctx, cfg)
	if err != nil {
		logger.Error("Device setup failed: %v", err)
		return err
	}

	// 5. Run
	runID := uuid.New().String()
	serials := make([]string, len(devices))
	for i, d := range devices {
		serials[i] = d.Serial()
	}
	builderCfg := report.BuilderConfig{
		OutputDir:     cfg.OutputDir,
		App:           report.App{Package: cfg.Config.Package, Activity: cfg.Config.Activity, APK: cfg.Config.APKPath()},
		RunnerVersion: Version,
		LogCheck:      cfg.Config.LogCheck,
	}
	indexWriter := report.NewIndexWriter(cfg.OutputDir, report.NewIndex(runID, serials, builderCfg))
	indexWriter.Start()

	progress := &progressPrinter{parallel: cfg.Parallel}
	runnerCfg := executor.RunnerConfig{
		Config: cfg.Config,
		Layout: l,
		RunID:  runID,
		OnDeviceStart: func(idx, total int, serial string) {
			indexWriter.DeviceStarted(idx)
			progress.deviceStart(idx, total, serial)
		},
		OnPhase:     progress.phase,
		OnScreenEnd: progress.screenEnd,
		OnDeviceEnd: func(r core.DeviceResult) {
			indexWriter.UpdateDevice(r)
			progress.deviceEnd(r)
		},
	}

	fmt.Printf("\n%sExecution%s\n", color(colorBold), color(colorReset))
	var result *core.RunResult
	if cfg.Parallel && len(devices) > 1 {
		pr := executor.NewParallelRunner(devices, runnerCfg)
		pr.Limit = cfg.MaxPar
		result, err = pr.Run(ctx)
		if err != nil {
			logger.Error("Parallel run failed: %v", err)
			return err
		}
	} else {
		result = executor.New(runnerCfg).Run(ctx, devices)
	}
	logger.Info("Run %s finished: %s (%d passed, %d failed, %d errored devices)",
		result.RunID, result.Status, result.PassedDevices, result.FailedDevices, result.ErroredDevices)

	// 6. Reports
	indexWriter.End(result, builderCfg)
	htmlPath := filepath.Join(cfg.OutputDir, "report.html")
	if err := report.GenerateHTML(cfg.OutputDir, report.HTMLConfig{OutputPath: htmlPath}); err != nil {
		printWarn("failed to generate HTML report: %v", err)
	}

	// 7. History
	if cfg.HistoryDB != "" {
		if err := saveHistory(ctx, cfg.HistoryDB, cfg.Config.Package, result); err != nil {
			printWarn("failed to record run history: %v", err)
		}
	}

	printSummary(result)
	fmt.Println("  Reports:")
	fmt.Printf("    JSON: %s\n", l.ReportPath())
	fmt.Printf("    HTML: %s\n", htmlPath)
	fmt.Printf("    Log:  %s\n", l.LogFilePath())
	fmt.Println()

	if cfg.Strict && result.Status != core.StatusPassed {
		return fmt.Errorf("smoke run %s", result.Status)
	}
	return nil
}

// connectDevices enumerates online devices and opens a client for each.
func connectDevices(ctx context.Context, cfg *RunConfig) ([]core.Device, error) {
	timeout := cfg.Config.CommandTimeout()
	infos, err := device.ListDevices(ctx, device.WithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	serials, err := selectDevices(device.OnlineSerials(infos), cfg.Devices)
	if err != nil {
		return nil, err
	}

	devices := make([]core.Device, 0, len(serials))
	for _, serial := range serials {
		d, err := device.New(serial, device.WithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	logger.Info("Devices: %v", serials)
	return devices, nil
}

func saveHistory(ctx context.Context, path, pkg string, result *core.RunResult) error {
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	_, err = s.SaveRun(ctx, pkg, result)
	return err
}

// progressPrinter serializes console output from device goroutines.
type progressPrinter struct {
	mu       sync.Mutex
	parallel bool
}

func (p *progressPrinter) deviceStart(idx, total int, serial string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Printf("\n  %s[%d/%d]%s %s%s%s\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), serial, color(colorReset))
	if !p.parallel {
		fmt.Println(strings.Repeat("─", 60))
	}
}

func (p *progressPrinter) phase(serial, phase string) {
	if p.parallel {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Printf("    %s▸%s %s\n", color(colorCyan), color(colorReset), phaseLabel(phase))
}

func (p *progressPrinter) screenEnd(serial string, r core.ScreenResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prefix := "    "
	if p.parallel {
		prefix = "    " + serial + " "
	}
	durStr := formatDuration(r.Duration.Milliseconds())
	if r.Succeeded {
		fmt.Printf("%s%s✓%s %s %s(%s)%s\n", prefix, color(colorGreen), color(colorReset), r.ScreenID, color(colorGray), durStr, color(colorReset))
		return
	}
	fmt.Printf("%s%s✗%s %s (%s)\n", prefix, color(colorRed), color(colorReset), r.ScreenID, durStr)
	if r.FailureReason != "" {
		fmt.Printf("%s  %s╰─%s %s\n", prefix, color(colorGray), color(colorReset), r.FailureReason)
	}
}

func (p *progressPrinter) deviceEnd(r core.DeviceResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	symbol, c := "✓", colorGreen
	switch r.Status {
	case core.StatusFailed:
		symbol, c = "✗", colorRed
	case core.StatusErrored, core.StatusSkipped:
		symbol, c = "⚠", colorYellow
	}
	fmt.Printf("  %s%s %s%s %s%d/%d screens, %s%s\n",
		color(c), symbol, r.Serial, color(colorReset),
		color(colorGray), r.PassedScreens, len(r.Screens), formatDuration(r.Duration.Milliseconds()), color(colorReset))
	if r.Error != "" {
		fmt.Printf("    %s╰─%s %s\n", color(colorGray), color(colorReset), r.Error)
	}
}

func phaseLabel(phase string) string {
	switch phase {
	case executor.PhaseUninstall:
		return "Removing previous install"
	case executor.PhaseInstall:
		return "Installing APK"
	case executor.PhaseDiscovery:
		return "Discovering screen coordinates"
	case executor.PhaseReplay:
		return "Replaying screens"
	case executor.PhaseCleanup:
		return "Uninstalling"
	default:
		return phase
	}
}
