package backup

import (
	"strings"
	"time"

	"DSync-Ops/internal/cronexpr"
	"DSync-Ops/internal/models"
	"DSync-Ops/internal/repo"
)

// ScheduleManager 维护任务的cron调度字段。
// 只负责计算与持久化next_run_at，不负责触发，触发由外部轮询器完成。
type ScheduleManager struct {
	jobs repo.BackupRepository
}

func NewScheduleManager(jobs repo.BackupRepository) *ScheduleManager {
	return &ScheduleManager{jobs: jobs}
}

// SetSchedule 设置cron表达式与启用状态，三个字段一并持久化。
// 启用时表达式必须为5个字段；停用时next_run_at清空，表达式保留。
func (m *ScheduleManager) SetSchedule(jobID uint, cronExpr string, enabled bool) (*models.BackupJob, error) {
	job, err := m.jobs.GetByID(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}

	if enabled {
		if strings.TrimSpace(cronExpr) == "" {
			return nil, newValidationError("启用调度时cron表达式不能为空")
		}
		if len(strings.Fields(cronExpr)) != 5 {
			return nil, newValidationError("cron表达式必须为5个字段")
		}
	}

	fields := map[string]interface{}{
		"is_scheduled": enabled,
	}
	if cronExpr == "" {
		fields["cron_schedule"] = nil
	} else {
		fields["cron_schedule"] = cronExpr
	}

	if enabled {
		// 可能无可行匹配，此时next_run_at为空
		if next := cronexpr.ComputeNextRun(cronExpr, time.Now().UTC()); next != nil {
			fields["next_run_at"] = *next
		} else {
			fields["next_run_at"] = nil
		}
	} else {
		fields["next_run_at"] = nil
	}

	if err := m.jobs.UpdateFields(jobID, fields); err != nil {
		return nil, err
	}
	return m.jobs.GetByID(jobID)
}

// Enable 启用已有表达式的调度，表达式未配置时拒绝
func (m *ScheduleManager) Enable(jobID uint) (*models.BackupJob, error) {
	job, err := m.jobs.GetByID(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	if job.CronSchedule == nil || strings.TrimSpace(*job.CronSchedule) == "" {
		return nil, newValidationError("任务未配置cron表达式，无法启用调度")
	}

	fields := map[string]interface{}{
		"is_scheduled": true,
	}
	if next := cronexpr.ComputeNextRun(*job.CronSchedule, time.Now().UTC()); next != nil {
		fields["next_run_at"] = *next
	} else {
		fields["next_run_at"] = nil
	}

	if err := m.jobs.UpdateFields(jobID, fields); err != nil {
		return nil, err
	}
	return m.jobs.GetByID(jobID)
}

// Disable 停用调度，cron表达式保留以便再次启用
func (m *ScheduleManager) Disable(jobID uint) (*models.BackupJob, error) {
	job, err := m.jobs.GetByID(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}

	if err := m.jobs.UpdateFields(jobID, map[string]interface{}{
		"is_scheduled": false,
		"next_run_at":  nil,
	}); err != nil {
		return nil, err
	}
	return m.jobs.GetByID(jobID)
}
