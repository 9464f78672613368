package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/logger"
)

// GormStore implements the Store interface using GORM and SQLite.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// Open opens (or creates) the history database at path and migrates it.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an open database and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&RunRecord{}, &ScreenRecord{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveRun records a finished run in one transaction.
func (s *GormStore) SaveRun(ctx context.Context, pkg string, run *core.RunResult) (*RunRecord, error) {
	rec := NewRunRecord(pkg, run)
	if rec.RunID == "" {
		return nil, fmt.Errorf("save run: empty run id")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		logger.Error("failed to save run %s: %v", rec.RunID, err)
		return nil, err
	}

	logger.Info("run %s saved with %d screen results", rec.RunID, len(rec.Screens))
	return rec, nil
}

// GetRun retrieves a run by its run id.
func (s *GormStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	err := s.db.WithContext(ctx).
		Preload("Screens", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq ASC")
		}).
		Where("run_id = ?", runID).
		First(&rec).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListRuns returns up to limit runs, newest first. Screens are not loaded.
func (s *GormStore) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	var runs []*RunRecord
	q := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// ScreenHistory returns the latest results of screenID, newest first.
func (s *GormStore) ScreenHistory(ctx context.Context, screenID string, limit int) ([]*ScreenRecord, error) {
	var screens []*ScreenRecord
	q := s.db.WithContext(ctx).
		Where("screen_id = ?", screenID).
		Order("created_at DESC").
		Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&screens).Error; err != nil {
		return nil, err
	}
	return screens, nil
}

// Close closes the underlying database.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
