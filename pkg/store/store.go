// Package store keeps a history of smoke runs in a local SQLite database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
)

// ErrRunNotFound is returned when a run is not in the history.
var ErrRunNotFound = errors.New("run not found")

// Store defines the interface for run history persistence.
type Store interface {
	// SaveRun records a finished run with one row per device screen.
	SaveRun(ctx context.Context, pkg string, run *core.RunResult) (*RunRecord, error)

	// GetRun retrieves a run and its screens by run id.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	// ScreenHistory returns the latest results of one screen across runs.
	ScreenHistory(ctx context.Context, screenID string, limit int) ([]*ScreenRecord, error)

	Close() error
}

// RunRecord is one smoke run.
type RunRecord struct {
	ID             uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	RunID          string         `json:"run_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_run_id"`
	Package        string         `json:"package" gorm:"type:varchar(255);not null"`
	Status         string         `json:"status" gorm:"type:varchar(20);not null;index:idx_status"`
	StartedAt      time.Time      `json:"started_at" gorm:"index:idx_started_at"`
	DurationMs     int64          `json:"duration_ms"`
	Devices        int            `json:"devices"`
	PassedDevices  int            `json:"passed_devices"`
	FailedDevices  int            `json:"failed_devices"`
	ErroredDevices int            `json:"errored_devices"`
	Screens        []ScreenRecord `json:"screens,omitempty" gorm:"foreignKey:RunRecordID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time      `json:"created_at"`
}

// BeforeCreate hook to generate UUID before creating a new run
func (r *RunRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ScreenRecord is the result of one screen on one device.
type ScreenRecord struct {
	ID             uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	RunRecordID    uuid.UUID `json:"run_record_id" gorm:"type:char(36);not null;index:idx_run_record_id"`
	Seq            int       `json:"seq" gorm:"not null"` // device enumeration order, then replay order
	Serial         string    `json:"serial" gorm:"type:varchar(128);not null"`
	ScreenID       string    `json:"screen_id" gorm:"type:varchar(128);not null;index:idx_screen_id"`
	Succeeded      bool      `json:"succeeded"`
	Status         string    `json:"status" gorm:"type:varchar(20);not null"`
	FailureReason  string    `json:"failure_reason,omitempty" gorm:"type:text"`
	CrashLine      string    `json:"crash_line,omitempty" gorm:"type:text"`
	ScreenshotPath string    `json:"screenshot_path,omitempty" gorm:"type:text"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// BeforeCreate hook to generate UUID before creating a new screen record
func (s *ScreenRecord) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// NewRunRecord flattens a run result into records.
func NewRunRecord(pkg string, run *core.RunResult) *RunRecord {
	rec := &RunRecord{
		RunID:          run.RunID,
		Package:        pkg,
		Status:         run.Status.String(),
		StartedAt:      run.StartTime,
		DurationMs:     run.Duration.Milliseconds(),
		Devices:        run.TotalDevices,
		PassedDevices:  run.PassedDevices,
		FailedDevices:  run.FailedDevices,
		ErroredDevices: run.ErroredDevices,
	}
	for _, d := range run.Devices {
		for _, s := range d.Screens {
			rec.Screens = append(rec.Screens, ScreenRecord{
				Seq:            len(rec.Screens),
				Serial:         d.Serial,
				ScreenID:       s.ScreenID,
				Succeeded:      s.Succeeded,
				Status:         s.Status.String(),
				FailureReason:  s.FailureReason,
				CrashLine:      s.CrashLine,
				ScreenshotPath: s.ScreenshotPath,
				DurationMs:     s.Duration.Milliseconds(),
			})
		}
	}
	return rec
}
