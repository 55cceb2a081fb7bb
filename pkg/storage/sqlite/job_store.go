// Package sqlite implements the Job Store on top of a local SQLite file
// via GORM, the teacher's persistence idiom swapped from a network
// database onto the single local file the spec calls for.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"queuectl/pkg/models"
	"queuectl/pkg/storage"
)

// Store is the GORM/SQLite-backed JobStore implementation.
type Store struct {
	db *gorm.DB
}

// Open connects to (creating if absent) the SQLite file at path and
// migrates the jobs and audit_log schemas.
func Open(path string) (*Store, error) {
	cfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
	}

	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows only one writer; a single connection avoids
	// "database is locked" errors under concurrent workers and lets the
	// transaction boundary below double as the store's exclusive lock.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Job{}, &models.AuditEntry{}); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying *gorm.DB so sibling packages (pkg/audit) can
// share the same connection/transaction boundary.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Save(ctx context.Context, job *models.Job) error {
	result := s.db.WithContext(ctx).Save(job)
	if result.Error != nil {
		return fmt.Errorf("failed to save job: %w", result.Error)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	result := s.db.WithContext(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, result.Error
	}
	return &job, nil
}

// ClaimNextPending implements the two-statement atomic claim algorithm
// from the spec: read the oldest pending row, then a conditional update
// guarded by "state = pending", checked via RowsAffected. Both
// statements run in one transaction so nothing else can interleave a
// claim between the read and the conditional write.
func (s *Store) ClaimNextPending(ctx context.Context) (*models.Job, error) {
	var claimed models.Job
	now := time.Now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidate models.Job
		result := tx.
			Where("state = ?", models.StatePending).
			Order("created_at asc, id asc").
			Limit(1).
			First(&candidate)
		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				return storage.ErrNotFound
			}
			return result.Error
		}

		update := tx.Model(&models.Job{}).
			Where("id = ? AND state = ?", candidate.ID, models.StatePending).
			Updates(map[string]interface{}{
				"state":      models.StateProcessing,
				"updated_at": now,
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			// Lost the race to a concurrent claimant.
			return storage.ErrNotFound
		}

		candidate.State = models.StateProcessing
		candidate.UpdatedAt = now
		claimed = candidate
		return nil
	})

	if err != nil {
		if err == storage.ErrNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to claim next pending job: %w", err)
	}
	return &claimed, nil
}

func (s *Store) RetryableReady(ctx context.Context, now time.Time) ([]models.Job, error) {
	var jobs []models.Job
	result := s.db.WithContext(ctx).
		Where("state = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", models.StateFailed, now).
		Order("next_retry_at asc").
		Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list retryable jobs: %w", result.Error)
	}
	return jobs, nil
}

func (s *Store) List(ctx context.Context, state *models.State, limit int) ([]models.Job, error) {
	var jobs []models.Job
	q := s.db.WithContext(ctx).Order("updated_at desc").Limit(limit)
	if state != nil {
		q = q.Where("state = ?", *state)
	}
	result := q.Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", result.Error)
	}
	return jobs, nil
}

func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	var rows []struct {
		State models.State
		Count int
	}
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Select("state, count(*) as count").
		Group("state").
		Find(&rows)
	if result.Error != nil {
		return models.Stats{}, fmt.Errorf("failed to get stats: %w", result.Error)
	}

	var stats models.Stats
	for _, row := range rows {
		switch row.State {
		case models.StatePending:
			stats.Pending = row.Count
		case models.StateProcessing:
			stats.Processing = row.Count
		case models.StateCompleted:
			stats.Completed = row.Count
		case models.StateFailed:
			stats.Failed = row.Count
		case models.StateDead:
			stats.Dead = row.Count
		}
	}
	stats.Total = stats.Pending + stats.Processing + stats.Completed + stats.Failed + stats.Dead
	return stats, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&models.Job{}, "id = ?", id)
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete job: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) ResetProcessing(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("state = ?", models.StateProcessing).
		Updates(map[string]interface{}{
			"state":      models.StatePending,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset processing jobs: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *Store) CleanupOld(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	result := s.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", models.StateCompleted, cutoff).
		Delete(&models.Job{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up old jobs: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

var _ storage.JobStore = (*Store)(nil)
