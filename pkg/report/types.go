// Package report writes the JSON run report.
//
//   - report.json: run index with per-device and per-screen results
//   - report.html: static summary rendered from report.json
//
// Artifact paths in the report are relative to the report directory so the
// whole output tree can be archived and moved.
package report

import (
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusErrored || s == StatusSkipped
}

// FromCore converts an execution status.
func FromCore(s core.Status) Status {
	return Status(s.String())
}

// Index is the report.json document.
type Index struct {
	Version     string        `json:"version"`
	RunID       string        `json:"runId"`
	UpdateSeq   uint64        `json:"updateSeq"`
	Status      Status        `json:"status"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     *time.Time    `json:"endTime,omitempty"`
	Duration    int64         `json:"duration"` // milliseconds
	LastUpdated time.Time     `json:"lastUpdated"`
	App         App           `json:"app"`
	Runner      RunnerInfo    `json:"smokeRunner"`
	Summary     Summary       `json:"summary"`
	Devices     []DeviceEntry `json:"devices"`
}

// App contains application information.
type App struct {
	Package  string `json:"package"`
	Activity string `json:"activity"`
	APK      string `json:"apk,omitempty"`
}

// RunnerInfo contains smoke-runner information.
type RunnerInfo struct {
	Version  string `json:"version"`
	LogCheck bool   `json:"logCheck"`
}

// Summary contains aggregated counts.
type Summary struct {
	Devices        int `json:"devices"`
	PassedDevices  int `json:"passedDevices"`
	FailedDevices  int `json:"failedDevices"`
	ErroredDevices int `json:"erroredDevices"`
	SkippedDevices int `json:"skippedDevices"`
	Screens        int `json:"screens"`
	PassedScreens  int `json:"passedScreens"`
	FailedScreens  int `json:"failedScreens"`
}

// DeviceEntry is the report entry for one device.
type DeviceEntry struct {
	Index     int           `json:"index"` // enumeration position
	Serial    string        `json:"serial"`
	Status    Status        `json:"status"`
	StartTime *time.Time    `json:"startTime,omitempty"`
	Duration  int64         `json:"duration"` // milliseconds
	Error     *string       `json:"error,omitempty"`
	Screens   []ScreenEntry `json:"screens"`
}

// ScreenEntry is the report entry for one screen on one device.
type ScreenEntry struct {
	ScreenID      string   `json:"screenId"`
	Succeeded     bool     `json:"succeeded"`
	Status        Status   `json:"status"`
	Duration      int64    `json:"duration"` // milliseconds
	FailureReason string   `json:"failureReason,omitempty"`
	CrashLine     string   `json:"crashLine,omitempty"`
	Screenshots   []string `json:"screenshots,omitempty"`
	DeviceLog     string   `json:"deviceLog,omitempty"`
}
