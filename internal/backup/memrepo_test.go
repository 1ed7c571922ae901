package backup

import (
	"sync"
	"time"

	"DSync-Ops/internal/models"
)

// 内存版仓储实现，用于不依赖数据库地验证状态机

type memBackupRepo struct {
	mu   sync.Mutex
	seq  uint
	jobs map[uint]*models.BackupJob
}

func newMemBackupRepo() *memBackupRepo {
	return &memBackupRepo{jobs: make(map[uint]*models.BackupJob)}
}

func (r *memBackupRepo) Create(job *models.BackupJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	job.ID = r.seq
	job.CreatedAt = time.Now().UTC()
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *memBackupRepo) GetByID(id uint) (*models.BackupJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (r *memBackupRepo) UpdateFields(id uint, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "status":
			job.Status = v.(models.BackupStatus)
		case "file_size":
			size := v.(int64)
			job.FileSize = &size
		case "completed_at":
			t := v.(time.Time)
			job.CompletedAt = &t
		case "error_message":
			msg := v.(string)
			job.ErrorMessage = &msg
		case "cron_schedule":
			if v == nil {
				job.CronSchedule = nil
			} else {
				s := v.(string)
				job.CronSchedule = &s
			}
		case "is_scheduled":
			job.IsScheduled = v.(bool)
		case "next_run_at":
			if v == nil {
				job.NextRunAt = nil
			} else {
				t := v.(time.Time)
				job.NextRunAt = &t
			}
		}
	}
	return nil
}

func (r *memBackupRepo) List(offset, limit int) ([]models.BackupJob, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []models.BackupJob
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	return jobs, int64(len(jobs)), nil
}

func (r *memBackupRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

func (r *memBackupRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

type memHistoryRepo struct {
	mu      sync.Mutex
	seq     uint
	entries []*models.BackupHistoryEntry
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{}
}

func (r *memHistoryRepo) Create(entry *models.BackupHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.ID = r.seq
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *memHistoryRepo) ListByBackupID(backupID uint, limit int) ([]models.BackupHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BackupHistoryEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].BackupID == backupID {
			out = append(out, *r.entries[i])
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memHistoryRepo) LatestInProgress(backupID uint) (*models.BackupHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.BackupID == backupID && e.Status == models.StatusInProgress {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memHistoryRepo) UpdateFields(id uint, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.ID != id {
			continue
		}
		for k, v := range fields {
			switch k {
			case "status":
				entry.Status = v.(models.BackupStatus)
			case "completed_at":
				t := v.(time.Time)
				entry.CompletedAt = &t
			case "duration_seconds":
				d := v.(float64)
				entry.DurationSeconds = &d
			case "file_path":
				p := v.(string)
				entry.FilePath = &p
			case "file_size":
				size := v.(int64)
				entry.FileSize = &size
			case "error_message":
				msg := v.(string)
				entry.ErrorMessage = &msg
			}
		}
	}
	return nil
}

func (r *memHistoryRepo) DeleteByBackupID(backupID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.BackupHistoryEntry
	for _, e := range r.entries {
		if e.BackupID != backupID {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return nil
}

func (r *memHistoryRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.BackupHistoryEntry
	var removed int64
	for _, e := range r.entries {
		if e.StartedAt.Before(cutoff) && e.Status != models.StatusInProgress {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}
