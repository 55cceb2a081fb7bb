// Package audit records an immutable trail of job claims and reported
// outcomes (completed, failed, dead), so the claim algorithm's serializability (never two
// claims for the same job) can be verified after the fact instead of
// only asserted.
package audit

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"queuectl/pkg/models"
)

// Log appends AuditEntry rows to the shared database.
type Log struct {
	db *gorm.DB
}

// NewLog wraps the given *gorm.DB (shared with the Job Store so both
// write through the same SQLite connection/lock).
func NewLog(db *gorm.DB) *Log {
	return &Log{db: db}
}

// Record appends one audit entry.
func (l *Log) Record(ctx context.Context, entry models.AuditEntry) error {
	if result := l.db.WithContext(ctx).Create(&entry); result.Error != nil {
		return fmt.Errorf("failed to record audit entry: %w", result.Error)
	}
	return nil
}

// ForJob returns every audit entry recorded for a job id, oldest first.
func (l *Log) ForJob(ctx context.Context, jobID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	result := l.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("at asc").
		Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", result.Error)
	}
	return entries, nil
}

// CountByEvent counts how many times jobID has a given event, e.g. to
// check that a job was claimed exactly once.
func (l *Log) CountByEvent(ctx context.Context, jobID string, event models.AuditEvent) (int64, error) {
	var count int64
	result := l.db.WithContext(ctx).
		Model(&models.AuditEntry{}).
		Where("job_id = ? AND event = ?", jobID, event).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", result.Error)
	}
	return count, nil
}
