// Package replay drives each screen from a fresh app launch by replaying
// its tap script, then captures a screenshot and checks device logs for
// crashes.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/config"
	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/layout"
	"github.com/devicelab-dev/smoke-runner/pkg/logger"
	"github.com/devicelab-dev/smoke-runner/pkg/logscan"
	"github.com/devicelab-dev/smoke-runner/pkg/script"
)

// Delays are the settle waits around each screen.
type Delays struct {
	LaunchSettle     time.Duration
	BeforeScreenshot time.Duration
	Cooldown         time.Duration
	LogPullSettle    time.Duration
	LogReadSettle    time.Duration
}

// Engine replays a script table on one device.
type Engine struct {
	Device   core.Device
	Package  string
	Activity string
	Layout   layout.Layout

	LogCheck    bool
	MinSeverity string
	Signature   logscan.Signature

	Delays Delays
	Sleep  core.Sleeper

	// Live progress callbacks
	OnScreenStart func(idx, total int, screenID string)
	OnScreenEnd   func(result core.ScreenResult)
}

// FromConfig builds an Engine for dev.
func FromConfig(cfg *config.Config, dev core.Device, l layout.Layout) *Engine {
	return &Engine{
		Device:      dev,
		Package:     cfg.Package,
		Activity:    cfg.Activity,
		Layout:      l,
		LogCheck:    cfg.LogCheck,
		MinSeverity: cfg.Crash.MinSeverity,
		Signature: logscan.Signature{
			PackageMarker: cfg.Crash.PackageMarker,
			RuntimeMarker: cfg.Crash.RuntimeMarker,
		},
		Delays: Delays{
			LaunchSettle:     config.Millis(cfg.Delays.LaunchSettleMs),
			BeforeScreenshot: config.Millis(cfg.Delays.BeforeScreenshotMs),
			Cooldown:         config.Millis(cfg.Delays.CooldownMs),
			LogPullSettle:    config.Millis(cfg.Delays.LogPullSettleMs),
			LogReadSettle:    config.Millis(cfg.Delays.LogReadSettleMs),
		},
		Sleep: core.Sleep,
	}
}

// Replay runs every script in table order. A crash fails only its screen;
// a device communication error or timeout stops the replay and the results
// gathered so far are returned with it.
func (e *Engine) Replay(ctx context.Context, table *script.Table) ([]core.ScreenResult, error) {
	if e.Sleep == nil {
		e.Sleep = core.Sleep
	}

	scripts := table.Scripts()
	results := make([]core.ScreenResult, 0, len(scripts))

	for i, s := range scripts {
		if e.OnScreenStart != nil {
			e.OnScreenStart(i, len(scripts), s.ScreenID())
		}

		result, err := e.replayScreen(ctx, s)
		if err != nil {
			result.Succeeded = false
			result.Status = core.StatusErrored
			result.Category = core.CategoryOf(err)
			result.FailureReason = err.Error()
			results = append(results, result)
			if e.OnScreenEnd != nil {
				e.OnScreenEnd(result)
			}
			return results, fmt.Errorf("replay %s: %w", s.ScreenID(), err)
		}

		results = append(results, result)
		if e.OnScreenEnd != nil {
			e.OnScreenEnd(result)
		}
	}

	return results, nil
}

// replayScreen returns a non-nil error only for failures that end the
// device's replay. Crashes are reported in the result.
func (e *Engine) replayScreen(ctx context.Context, s script.Script) (core.ScreenResult, error) {
	serial := e.Device.Serial()
	screenID := s.ScreenID()
	log := logger.WithFields(logger.Fields{"device": serial, "screen": screenID})

	start := time.Now()
	result := core.ScreenResult{
		ScreenID:  screenID,
		Status:    core.StatusRunning,
		StartTime: start,
	}
	finish := func() core.ScreenResult {
		result.Duration = time.Since(start)
		return result
	}

	if err := e.Device.ClearLogs(ctx); err != nil {
		return finish(), err
	}
	if err := e.Device.Launch(ctx, e.Package, e.Activity); err != nil {
		return finish(), err
	}
	if err := e.Sleep(ctx, e.Delays.LaunchSettle); err != nil {
		return finish(), err
	}

	actions := s.Actions()
	for i, a := range actions {
		if a.CaptureBefore != "" {
			path := e.Layout.ScreenshotPath(serial, screenID+a.CaptureBefore)
			if err := e.Device.Screenshot(ctx, path); err != nil {
				return finish(), err
			}
			result.Attachments = append(result.Attachments, core.NewScreenshotAttachment(path))
			log.Debug("captured %s", path)
		}

		log.Debug("action %d/%d %s", i+1, len(actions), a)
		if err := e.Device.Tap(ctx, a.Point); err != nil {
			return finish(), err
		}
		if err := e.Sleep(ctx, a.Delay); err != nil {
			return finish(), err
		}

		last := i == len(actions)-1
		if !e.LogCheck || !(a.CheckLogs || last) {
			continue
		}
		err := e.checkLogs(ctx, serial, screenID, &result)
		if errors.Is(err, core.ErrAppCrashed) {
			log.Error("crash after action %d: %s", i+1, result.CrashLine)
			result.Succeeded = false
			result.Status = core.StatusFailed
			result.Category = core.ErrCategoryApp
			result.FailureReason = core.FailureExceptionInLogs
			if err := e.Device.ForceStop(ctx, e.Package); err != nil {
				return finish(), err
			}
			return finish(), nil
		}
		if err != nil {
			return finish(), err
		}
	}

	if err := e.Sleep(ctx, e.Delays.BeforeScreenshot); err != nil {
		return finish(), err
	}
	path := e.Layout.ScreenshotPath(serial, screenID)
	if err := e.Device.Screenshot(ctx, path); err != nil {
		return finish(), err
	}
	result.Attachments = append(result.Attachments, core.NewScreenshotAttachment(path))
	result.ScreenshotPath = path

	if err := e.Sleep(ctx, e.Delays.Cooldown); err != nil {
		return finish(), err
	}
	if err := e.Device.ForceStop(ctx, e.Package); err != nil {
		return finish(), err
	}

	result.Succeeded = true
	result.Status = core.StatusPassed
	log.Info("screen passed")
	return finish(), nil
}

// checkLogs pulls the device log for the screen and scans it. It returns
// core.ErrAppCrashed on a signature match.
func (e *Engine) checkLogs(ctx context.Context, serial, screenID string, result *core.ScreenResult) error {
	if err := e.Sleep(ctx, e.Delays.LogPullSettle); err != nil {
		return err
	}
	path := e.Layout.LogPath(serial, screenID)
	if err := e.Device.CaptureLogs(ctx, e.MinSeverity, path); err != nil {
		return err
	}
	if err := e.Sleep(ctx, e.Delays.LogReadSettle); err != nil {
		return err
	}

	if !hasAttachment(result.Attachments, path) {
		result.Attachments = append(result.Attachments, core.NewDeviceLogAttachment(path))
	}

	match, found, err := logscan.ScanFile(path, e.Signature)
	if err != nil {
		// The log is already on disk; a local read problem is not a device fault.
		logger.WithFields(logger.Fields{"device": serial, "screen": screenID}).
			Warn("skipping log scan of %s: %v", path, err)
		return nil
	}
	if found {
		result.CrashLine = match.Line
		return core.ErrAppCrashed.WithDetails(map[string]interface{}{"line": match.Number})
	}
	return nil
}

func hasAttachment(attachments []core.Attachment, path string) bool {
	for _, a := range attachments {
		if a.Path == path {
			return true
		}
	}
	return false
}
