package report

import (
	"path/filepath"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
)

// BuilderConfig contains the run metadata copied into the report.
type BuilderConfig struct {
	OutputDir     string
	App           App
	RunnerVersion string
	LogCheck      bool
}

// NewIndex creates a running index with one pending entry per device.
func NewIndex(runID string, serials []string, cfg BuilderConfig) *Index {
	now := time.Now()
	index := &Index{
		Version:     Version,
		RunID:       runID,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		App:         cfg.App,
		Runner:      RunnerInfo{Version: cfg.RunnerVersion, LogCheck: cfg.LogCheck},
		Devices:     make([]DeviceEntry, len(serials)),
	}
	for i, serial := range serials {
		index.Devices[i] = DeviceEntry{Index: i, Serial: serial, Status: StatusPending, Screens: []ScreenEntry{}}
	}
	index.Summary = computeSummary(index.Devices)
	return index
}

// Build converts a finished run into a report index.
func Build(run *core.RunResult, cfg BuilderConfig) *Index {
	serials := make([]string, len(run.Devices))
	for i, d := range run.Devices {
		serials[i] = d.Serial
	}

	index := NewIndex(run.RunID, serials, cfg)
	index.StartTime = run.StartTime
	for i, d := range run.Devices {
		index.Devices[i] = deviceEntry(i, d, cfg.OutputDir)
	}
	end := run.StartTime.Add(run.Duration)
	index.EndTime = &end
	index.Duration = run.Duration.Milliseconds()
	index.Status = FromCore(run.Status)
	index.Summary = computeSummary(index.Devices)
	return index
}

func deviceEntry(idx int, d core.DeviceResult, outputDir string) DeviceEntry {
	entry := DeviceEntry{
		Index:    idx,
		Serial:   d.Serial,
		Status:   FromCore(d.Status),
		Duration: d.Duration.Milliseconds(),
		Screens:  make([]ScreenEntry, 0, len(d.Screens)),
	}
	if !d.StartTime.IsZero() {
		start := d.StartTime
		entry.StartTime = &start
	}
	if d.Error != "" {
		msg := d.Error
		entry.Error = &msg
	}

	for _, s := range d.Screens {
		se := ScreenEntry{
			ScreenID:      s.ScreenID,
			Succeeded:     s.Succeeded,
			Status:        FromCore(s.Status),
			Duration:      s.Duration.Milliseconds(),
			FailureReason: s.FailureReason,
			CrashLine:     s.CrashLine,
		}
		for _, a := range s.Attachments {
			switch a.Name {
			case core.AttachmentScreenshot:
				se.Screenshots = append(se.Screenshots, relPath(outputDir, a.Path))
			case core.AttachmentDeviceLog:
				se.DeviceLog = relPath(outputDir, a.Path)
			}
		}
		entry.Screens = append(entry.Screens, se)
	}
	return entry
}

func relPath(base, path string) string {
	if base == "" {
		return path
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// computeSummary calculates summary from device and screen statuses.
func computeSummary(devices []DeviceEntry) Summary {
	var s Summary
	for _, d := range devices {
		s.Devices++
		switch d.Status {
		case StatusPassed:
			s.PassedDevices++
		case StatusFailed:
			s.FailedDevices++
		case StatusErrored:
			s.ErroredDevices++
		case StatusSkipped:
			s.SkippedDevices++
		}
		for _, sc := range d.Screens {
			s.Screens++
			if sc.Succeeded {
				s.PassedScreens++
			} else {
				s.FailedScreens++
			}
		}
	}
	return s
}

// computeRunStatus determines overall run status from devices.
func computeRunStatus(devices []DeviceEntry) Status {
	hasFailure := false
	hasError := false
	allComplete := true

	for _, d := range devices {
		switch d.Status {
		case StatusFailed:
			hasFailure = true
		case StatusErrored, StatusSkipped:
			hasError = true
		}
		if !d.Status.IsTerminal() {
			allComplete = false
		}
	}

	switch {
	case !allComplete:
		return StatusRunning
	case hasError:
		return StatusErrored
	case hasFailure:
		return StatusFailed
	default:
		return StatusPassed
	}
}
