package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent names the kind of transition an AuditEntry records.
type AuditEvent string

const (
	AuditEventClaimed   AuditEvent = "claimed"
	AuditEventCompleted AuditEvent = "completed"
	AuditEventFailed    AuditEvent = "failed"
	AuditEventDead      AuditEvent = "dead"
)

// AuditEntry is an immutable record of one job transition, used to
// verify claim exclusivity under concurrent workers (see spec scenario
// on duplicate-free processing of a batch).
type AuditEntry struct {
	ID       uuid.UUID  `json:"id" gorm:"type:text;primaryKey"`
	JobID    string     `json:"job_id" gorm:"not null;index:idx_audit_job"`
	Event    AuditEvent `json:"event" gorm:"type:varchar(16);not null"`
	WorkerID int        `json:"worker_id"`
	At       time.Time  `json:"at" gorm:"not null"`
}

func (AuditEntry) TableName() string {
	return "audit_log"
}

// NewAuditEntry stamps a fresh entry with a generated ID.
func NewAuditEntry(jobID string, event AuditEvent, workerID int, at time.Time) AuditEntry {
	return AuditEntry{
		ID:       uuid.New(),
		JobID:    jobID,
		Event:    event,
		WorkerID: workerID,
		At:       at,
	}
}
