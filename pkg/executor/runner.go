// Package executor runs the smoke protocol on devices: install, discover,
// replay, uninstall.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/smoke-runner/pkg/config"
	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/discovery"
	"github.com/devicelab-dev/smoke-runner/pkg/layout"
	"github.com/devicelab-dev/smoke-runner/pkg/logger"
	"github.com/devicelab-dev/smoke-runner/pkg/replay"
)

// Phase names reported through OnPhase.
const (
	PhaseUninstall = "uninstall"
	PhaseInstall   = "install"
	PhaseDiscovery = "discovery"
	PhaseReplay    = "replay"
	PhaseCleanup   = "cleanup"
)

// RunnerConfig configures the smoke runner.
type RunnerConfig struct {
	Config *config.Config
	Layout layout.Layout

	// RunID identifies the run in reports; a uuid is generated when empty.
	RunID string

	// Sleep overrides every protocol wait (tests use an instant sleeper).
	Sleep core.Sleeper

	// Live progress callbacks
	OnDeviceStart func(idx, total int, serial string)
	OnPhase       func(serial, phase string)
	OnScreenEnd   func(serial string, result core.ScreenResult)
	OnDeviceEnd   func(result core.DeviceResult)
}

// Runner runs devices one after another, in enumeration order.
type Runner struct {
	config RunnerConfig
}

// New creates a new Runner.
func New(cfg RunnerConfig) *Runner {
	return &Runner{config: cfg}
}

// Run executes the smoke protocol on every device sequentially. Device
// failures are recorded in the result and never stop the run; only a
// cancelled context does.
func (r *Runner) Run(ctx context.Context, devices []core.Device) *core.RunResult {
	start := time.Now()
	results := make([]core.DeviceResult, len(devices))

	for i, dev := range devices {
		if ctx.Err() != nil {
			results[i] = skippedDevice(dev.Serial(), ctx.Err())
			continue
		}
		results[i] = r.runDevice(ctx, i, len(devices), dev)
	}

	return buildRunResult(r.config.RunID, results, start)
}

func (r *Runner) runDevice(ctx context.Context, idx, total int, dev core.Device) core.DeviceResult {
	serial := dev.Serial()
	if r.config.OnDeviceStart != nil {
		r.config.OnDeviceStart(idx, total, serial)
	}

	result := core.DeviceResult{
		Serial:    serial,
		Status:    core.StatusRunning,
		StartTime: time.Now(),
	}

	if err := r.execute(ctx, dev, &result); err != nil {
		result.Error = err.Error()
		logger.WithFields(logger.Fields{"device": serial}).Error("device aborted: %v", err)
	}

	result.Duration = time.Since(result.StartTime)
	result.ComputeSummary()
	if r.config.OnDeviceEnd != nil {
		r.config.OnDeviceEnd(result)
	}
	return result
}

// execute runs uninstall, clear logs, install, discovery, replay and a final
// uninstall. Screen results gathered before an abort are kept.
func (r *Runner) execute(ctx context.Context, dev core.Device, result *core.DeviceResult) error {
	cfg := r.config.Config
	serial := dev.Serial()
	log := logger.WithFields(logger.Fields{"device": serial})

	if err := r.config.Layout.Prepare(serial); err != nil {
		return err
	}

	// A stale install from a previous run is removed first; the package may
	// not be present at all.
	r.phase(serial, PhaseUninstall)
	if err := dev.Uninstall(ctx, cfg.Package); err != nil {
		log.Warn("uninstall %s: %v", cfg.Package, err)
	}
	defer func() {
		r.phase(serial, PhaseCleanup)
		if err := dev.Uninstall(ctx, cfg.Package); err != nil {
			log.Warn("final uninstall %s: %v", cfg.Package, err)
		}
	}()

	if err := dev.ClearLogs(ctx); err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}

	r.phase(serial, PhaseInstall)
	if err := dev.Install(ctx, cfg.APKPath(), true); err != nil {
		return fmt.Errorf("install: %w", err)
	}

	r.phase(serial, PhaseDiscovery)
	proto := discovery.FromConfig(cfg, dev, r.config.Layout)
	if r.config.Sleep != nil {
		proto.Sleep = r.config.Sleep
	}
	table, err := proto.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	r.phase(serial, PhaseReplay)
	engine := replay.FromConfig(cfg, dev, r.config.Layout)
	if r.config.Sleep != nil {
		engine.Sleep = r.config.Sleep
	}
	if r.config.OnScreenEnd != nil {
		engine.OnScreenEnd = func(s core.ScreenResult) { r.config.OnScreenEnd(serial, s) }
	}
	screens, err := engine.Replay(ctx, table)
	result.Screens = screens
	if err != nil {
		return err
	}
	return nil
}

func (r *Runner) phase(serial, phase string) {
	logger.WithFields(logger.Fields{"device": serial}).Info("phase %s", phase)
	if r.config.OnPhase != nil {
		r.config.OnPhase(serial, phase)
	}
}

func skippedDevice(serial string, err error) core.DeviceResult {
	return core.DeviceResult{
		Serial: serial,
		Status: core.StatusSkipped,
		Error:  fmt.Sprintf("not run: %v", err),
	}
}

// buildRunResult aggregates device results into a run result.
func buildRunResult(runID string, devices []core.DeviceResult, start time.Time) *core.RunResult {
	if runID == "" {
		runID = uuid.New().String()
	}
	result := &core.RunResult{
		RunID:     runID,
		StartTime: start,
		Duration:  time.Since(start),
		Devices:   devices,
	}
	result.ComputeSummary()
	return result
}
