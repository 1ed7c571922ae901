package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"DSync-Ops/internal/cronexpr"
	"DSync-Ops/internal/db"
	"DSync-Ops/internal/helpers"
	"DSync-Ops/internal/models"
	"DSync-Ops/internal/repo"
)

func logInfo(format string, args ...interface{}) {
	if helpers.AppLogger != nil {
		helpers.AppLogger.Infof(format, args...)
	}
}

func logError(format string, args ...interface{}) {
	if helpers.AppLogger != nil {
		helpers.AppLogger.Errorf(format, args...)
	}
}

// Notifier 终态通知边界，失败只记录日志
type Notifier interface {
	NotifyJobFinished(job *models.BackupJob)
}

// CreateRequest 创建备份请求
type CreateRequest struct {
	BackupName       string `json:"backup_name"`
	DbEngine         string `json:"db_engine"`
	ConnectionString string `json:"connection_string"`
	DatabaseName     string `json:"database_name"`
	BackupType       string `json:"backup_type"`
	CronSchedule     string `json:"cron_schedule"` // 可选，创建时同时配置调度
	CreatedBy        string `json:"created_by"`    // 可选
}

// Service 备份执行编排。每次创建请求对应一个新的任务行与一次执行，
// 同名请求互不影响，各自独立执行（不做去重与互斥）。
type Service struct {
	jobs      repo.BackupRepository
	history   repo.HistoryRepository
	executor  ExecutorClient
	notifier  Notifier
	backupDir string
	tmpDir    string
}

func NewService(jobs repo.BackupRepository, history repo.HistoryRepository, executor ExecutorClient, notifier Notifier, backupDir, tmpDir string) *Service {
	return &Service{
		jobs:      jobs,
		history:   history,
		executor:  executor,
		notifier:  notifier,
		backupDir: backupDir,
		tmpDir:    tmpDir,
	}
}

// Create 校验请求并同步落库，随后在独立协程中执行备份。
// 返回时任务状态为in_progress，结果通过轮询任务或历史接口获取。
func (s *Service) Create(req *CreateRequest) (*models.BackupJob, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	engine := models.SourceEngine(req.DbEngine)
	now := time.Now().UTC()
	filePath := filepath.Join(s.backupDir, deriveFileName(req.BackupName, engine, now))

	encrypted, err := helpers.Encrypt(req.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("加密连接串失败: %w", err)
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "console"
	}

	job := &models.BackupJob{
		Name:             req.BackupName,
		DbEngine:         engine,
		ConnectionString: encrypted,
		DatabaseName:     req.DatabaseName,
		BackupType:       models.BackupType(req.BackupType),
		FilePath:         filePath,
		Status:           models.StatusInProgress,
		CreatedBy:        createdBy,
	}

	if req.CronSchedule != "" {
		cron := req.CronSchedule
		job.CronSchedule = &cron
		job.IsScheduled = true
		job.NextRunAt = cronexpr.ComputeNextRun(cron, now)
	}

	if err := s.jobs.Create(job); err != nil {
		return nil, err
	}

	cfg := &ExecutorConfig{
		BackupName:       req.BackupName,
		DbEngine:         req.DbEngine,
		ConnectionString: req.ConnectionString,
		DatabaseName:     req.DatabaseName,
		BackupType:       req.BackupType,
		FilePath:         filePath,
	}

	// 异步执行备份，调用方不等待
	go s.runExecution(job.ID, cfg, models.TriggerManual)

	return job, nil
}

func validateCreate(req *CreateRequest) error {
	if strings.TrimSpace(req.BackupName) == "" {
		return newValidationError("backup_name不能为空")
	}
	if !models.SourceEngine(req.DbEngine).Valid() {
		return newValidationError("不支持的数据库引擎: %s", req.DbEngine)
	}
	if strings.TrimSpace(req.ConnectionString) == "" {
		return newValidationError("connection_string不能为空")
	}
	if strings.TrimSpace(req.DatabaseName) == "" {
		return newValidationError("database_name不能为空")
	}
	if !models.BackupType(req.BackupType).Valid() {
		return newValidationError("不支持的备份类型: %s", req.BackupType)
	}
	if req.CronSchedule != "" && len(strings.Fields(req.CronSchedule)) != 5 {
		return newValidationError("cron表达式必须为5个字段")
	}
	return nil
}

// deriveFileName 文件名为 {name}_{ISO时间戳，冒号和点替换为横线}.{引擎扩展名}
func deriveFileName(name string, engine models.SourceEngine, now time.Time) string {
	ts := now.Format("2006-01-02T15:04:05.000000")
	ts = strings.ReplaceAll(ts, ":", "-")
	ts = strings.ReplaceAll(ts, ".", "-")
	return fmt.Sprintf("%s_%s.%s", name, ts, models.EngineFileExt[engine])
}

// runExecution 一次执行的完整流程，在独立协程中运行。
// 任何panic都会被兜底捕获并写入终态，任务不允许永远停留在in_progress。
func (s *Service) runExecution(jobID uint, cfg *ExecutorConfig, trigger models.TriggerSource) {
	defer func() {
		if r := recover(); r != nil {
			logError("备份任务 %d 执行协程发生异常: %v", jobID, r)
			s.finalizeFailure(jobID, fmt.Sprintf("执行过程发生异常: %v", r))
		}
	}()

	entry := &models.BackupHistoryEntry{
		BackupID:    jobID,
		BackupName:  cfg.BackupName,
		Status:      models.StatusInProgress,
		StartedAt:   time.Now().UTC(),
		FilePath:    &cfg.FilePath,
		TriggeredBy: trigger,
	}
	if err := s.history.Create(entry); err != nil {
		// 持久化失败只记录，不中断执行
		logError("备份任务 %d 写入历史记录失败: %v", jobID, err)
	}

	configPath, err := WriteExecutorConfig(s.tmpDir, cfg)
	if err != nil {
		s.finalizeFailure(jobID, fmt.Sprintf("写入执行器配置文件失败: %v", err))
		return
	}

	result, runErr := s.executor.Run(context.Background(), configPath)

	// 无论成功失败都尽力删除临时配置文件
	if rmErr := os.Remove(configPath); rmErr != nil {
		logError("删除临时配置文件失败: %v", rmErr)
	}

	if runErr != nil {
		s.finalizeFailure(jobID, fmt.Sprintf("启动备份执行器失败: %v", runErr))
		return
	}

	if result.ExitCode != 0 {
		msg := result.Stderr
		if msg == "" {
			msg = result.Stdout
		}
		s.finalizeFailure(jobID, msg)
		return
	}

	var report ExecutorReport
	if err := json.Unmarshal([]byte(result.Stdout), &report); err != nil {
		s.finalizeFailure(jobID, fmt.Sprintf("解析执行器输出失败: %v", err))
		return
	}

	if !report.Success {
		msg := "Backup failed"
		if report.ErrorMessage != nil && *report.ErrorMessage != "" {
			msg = *report.ErrorMessage
		}
		s.finalizeFailure(jobID, msg)
		return
	}

	// 防御性契约检查：执行器报告成功但数值字段缺失或为负时按失败处理
	if report.FileSize == nil || *report.FileSize < 0 {
		s.finalizeFailure(jobID, "执行器返回的file_size缺失或非法")
		return
	}
	if report.DurationSeconds == nil || *report.DurationSeconds < 0 {
		s.finalizeFailure(jobID, "执行器返回的duration_seconds缺失或非法")
		return
	}

	s.finalizeSuccess(jobID, cfg.FilePath, &report)
}

// finalizeSuccess 任务行与历史行是两次独立写入，中途崩溃可能导致两表状态不一致，
// 属已知限制，不在此处加事务掩盖。
func (s *Service) finalizeSuccess(jobID uint, derivedPath string, report *ExecutorReport) {
	now := time.Now().UTC()
	fileSize := int64(*report.FileSize)

	if err := s.jobs.UpdateFields(jobID, map[string]interface{}{
		"status":       models.StatusCompleted,
		"file_size":    fileSize,
		"completed_at": now,
	}); err != nil {
		logError("备份任务 %d 更新任务状态失败: %v", jobID, err)
	}

	finalPath := derivedPath
	if report.FilePath != nil && *report.FilePath != "" {
		finalPath = *report.FilePath
	}

	entry, err := s.history.LatestInProgress(jobID)
	if err != nil {
		logError("备份任务 %d 查询历史记录失败: %v", jobID, err)
	} else if entry != nil {
		if err := s.history.UpdateFields(entry.ID, map[string]interface{}{
			"status":           models.StatusCompleted,
			"completed_at":     now,
			"duration_seconds": *report.DurationSeconds,
			"file_path":        finalPath,
			"file_size":        fileSize,
		}); err != nil {
			logError("备份任务 %d 更新历史记录失败: %v", jobID, err)
		}
	}

	db.Cache.Del(db.BackupJobCacheKey(jobID))
	logInfo("备份任务 %d 执行完成: %s (%d字节)", jobID, finalPath, fileSize)
	s.notifyFinished(jobID)
}

func (s *Service) finalizeFailure(jobID uint, errMsg string) {
	now := time.Now().UTC()

	if err := s.jobs.UpdateFields(jobID, map[string]interface{}{
		"status":        models.StatusFailed,
		"error_message": errMsg,
		"completed_at":  now,
	}); err != nil {
		logError("备份任务 %d 更新任务状态失败: %v", jobID, err)
	}

	entry, err := s.history.LatestInProgress(jobID)
	if err != nil {
		logError("备份任务 %d 查询历史记录失败: %v", jobID, err)
	} else if entry != nil {
		if err := s.history.UpdateFields(entry.ID, map[string]interface{}{
			"status":        models.StatusFailed,
			"completed_at":  now,
			"error_message": errMsg,
		}); err != nil {
			logError("备份任务 %d 更新历史记录失败: %v", jobID, err)
		}
	}

	db.Cache.Del(db.BackupJobCacheKey(jobID))
	logError("备份任务 %d 执行失败: %s", jobID, errMsg)
	s.notifyFinished(jobID)
}

func (s *Service) notifyFinished(jobID uint) {
	if s.notifier == nil {
		return
	}
	job, err := s.jobs.GetByID(jobID)
	if err != nil || job == nil {
		return
	}
	s.notifier.NotifyJobFinished(job)
}

// Delete 操作员显式删除任务：连同历史记录与备份文件一起删除
func (s *Service) Delete(id uint) error {
	job, err := s.jobs.GetByID(id)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}

	if job.FilePath != "" && helpers.PathExists(job.FilePath) {
		if err := os.Remove(job.FilePath); err != nil {
			logError("删除备份文件失败: %v", err)
		}
	}

	if err := s.history.DeleteByBackupID(id); err != nil {
		return err
	}
	if err := s.jobs.Delete(id); err != nil {
		return err
	}
	db.Cache.Del(db.BackupJobCacheKey(id))
	logInfo("备份任务 %d 已删除", id)
	return nil
}
