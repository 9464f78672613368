package core

import (
	"time"
)

// FailureExceptionInLogs is the failure reason for screens whose log scan
// matched the crash signature.
const FailureExceptionInLogs = "exception in logs"

// ScreenResult captures the outcome of replaying one screen on one device
type ScreenResult struct {
	ScreenID       string `json:"screenId"`
	Succeeded      bool   `json:"succeeded"`
	ScreenshotPath string `json:"screenshotPath,omitempty"`
	FailureReason  string `json:"failureReason,omitempty"`

	Status    Status        `json:"status"`
	Category  ErrorCategory `json:"-"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// CrashLine is the first log line that matched the crash signature
	CrashLine string `json:"crashLine,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// Screenshots returns the paths of all screenshot attachments, in capture order
func (r *ScreenResult) Screenshots() []string {
	var paths []string
	for _, a := range r.Attachments {
		if a.Name == AttachmentScreenshot {
			paths = append(paths, a.Path)
		}
	}
	return paths
}

// DeviceResult captures the outcome of a full smoke run on one device
type DeviceResult struct {
	Serial string `json:"serial"`
	Status Status `json:"status"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Error is set when discovery failed or the device became unreachable
	Error string `json:"error,omitempty"`

	Screens []ScreenResult `json:"screens"`

	PassedScreens int `json:"passedScreens"`
	FailedScreens int `json:"failedScreens"`
}

// ComputeSummary calculates screen counts and the device status
func (d *DeviceResult) ComputeSummary() {
	d.PassedScreens = 0
	d.FailedScreens = 0
	for _, s := range d.Screens {
		if s.Succeeded {
			d.PassedScreens++
		} else {
			d.FailedScreens++
		}
	}

	switch {
	case d.Error != "":
		d.Status = StatusErrored
	case d.FailedScreens > 0:
		d.Status = StatusFailed
	default:
		d.Status = StatusPassed
	}
}

// RunResult captures the outcome of a smoke run across all devices
type RunResult struct {
	RunID     string        `json:"runId"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Status    Status        `json:"status"`

	Devices []DeviceResult `json:"devices"`

	TotalDevices   int `json:"totalDevices"`
	PassedDevices  int `json:"passedDevices"`
	FailedDevices  int `json:"failedDevices"`
	ErroredDevices int `json:"erroredDevices"`
	SkippedDevices int `json:"skippedDevices"`
}

// ComputeSummary calculates device counts and the overall status.
// Rules:
// - Any errored or skipped device → StatusErrored
// - Otherwise any failed screen → StatusFailed
// - All passed → StatusPassed
func (r *RunResult) ComputeSummary() {
	r.TotalDevices = len(r.Devices)
	r.PassedDevices = 0
	r.FailedDevices = 0
	r.ErroredDevices = 0
	r.SkippedDevices = 0

	for _, d := range r.Devices {
		switch d.Status {
		case StatusPassed:
			r.PassedDevices++
		case StatusFailed:
			r.FailedDevices++
		case StatusErrored:
			r.ErroredDevices++
		case StatusSkipped:
			r.SkippedDevices++
		}
	}

	switch {
	case r.ErroredDevices > 0, r.SkippedDevices > 0:
		r.Status = StatusErrored
	case r.FailedDevices > 0:
		r.Status = StatusFailed
	default:
		r.Status = StatusPassed
	}
}
