package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAuditEntry(t *testing.T) {
	now := time.Now().UTC()
	entry := NewAuditEntry("job-1", AuditEventClaimed, 2, now)

	assert.Equal(t, "job-1", entry.JobID)
	assert.Equal(t, AuditEventClaimed, entry.Event)
	assert.Equal(t, 2, entry.WorkerID)
	assert.Equal(t, now, entry.At)
	assert.NotEqual(t, entry.ID.String(), "")
}
