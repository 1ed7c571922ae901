package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"DSync-Ops/internal/backup"
	"DSync-Ops/internal/db"
	"DSync-Ops/internal/models"
	"DSync-Ops/internal/repo"
)

var (
	backupService   *backup.Service
	scheduleManager *backup.ScheduleManager
	backupRepo      repo.BackupRepository
	historyRepo     repo.HistoryRepository
)

// InitBackupController 注入备份控制器依赖
func InitBackupController(svc *backup.Service, mgr *backup.ScheduleManager, jobs repo.BackupRepository, history repo.HistoryRepository) {
	backupService = svc
	scheduleManager = mgr
	backupRepo = jobs
	historyRepo = history
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法的任务ID"})
		return 0, false
	}
	return uint(id), true
}

// CreateBackup 创建备份任务并立即异步执行
func CreateBackup(c *gin.Context) {
	var req backup.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	job, err := backupService.Create(&req)
	if err != nil {
		if backup.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "备份任务已创建",
		"backup_id": job.ID,
		"status":    string(models.StatusInProgress),
	})
}

// UpdateSchedule 设置任务的cron调度
func UpdateSchedule(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	type scheduleRequest struct {
		CronSchedule string `json:"cron_schedule"`
		IsScheduled  bool   `json:"is_scheduled"`
	}
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	job, err := scheduleManager.SetSchedule(id, req.CronSchedule, req.IsScheduled)
	if err != nil {
		respondScheduleError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "调度已更新",
		"next_run_at": job.NextRunAt,
	})
}

// EnableSchedule 启用任务已保存的cron调度。
// 任务不存在和未配置表达式都按404处理，对调用方而言都是“无可启用的调度”。
func EnableSchedule(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	job, err := scheduleManager.Enable(id)
	if err != nil {
		respondScheduleError(c, err, http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "调度已启用",
		"next_run_at": job.NextRunAt,
	})
}

// DisableSchedule 停用任务的cron调度
func DisableSchedule(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if _, err := scheduleManager.Disable(id); err != nil {
		respondScheduleError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "调度已停用"})
}

func respondScheduleError(c *gin.Context, err error, validationStatus int) {
	switch {
	case err == backup.ErrNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case backup.IsValidationError(err):
		c.JSON(validationStatus, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetHistory 查询任务的执行历史，最新在前
func GetHistory(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "非法的limit参数"})
			return
		}
		limit = v
	}

	entries, err := historyRepo.ListByBackupID(id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []models.BackupHistoryEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// GetBackup 查询单个任务，优先走缓存
func GetBackup(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	cacheKey := db.BackupJobCacheKey(id)
	if cached := db.Cache.Get(cacheKey); cached != nil {
		var job models.BackupJob
		if json.Unmarshal(cached, &job) == nil {
			c.JSON(http.StatusOK, gin.H{"backup": job})
			return
		}
	}

	job, err := backupRepo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "备份任务不存在"})
		return
	}

	if data, err := json.Marshal(job); err == nil {
		db.Cache.Set(cacheKey, data, -1)
	}

	c.JSON(http.StatusOK, gin.H{"backup": job})
}

// ListBackups 分页列出备份任务
func ListBackups(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if offset < 0 {
		offset = 0
	}

	jobs, total, err := backupRepo.List(offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if jobs == nil {
		jobs = []models.BackupJob{}
	}

	c.JSON(http.StatusOK, gin.H{
		"backups": jobs,
		"total":   total,
	})
}

// DeleteBackup 删除任务及其历史记录与备份文件
func DeleteBackup(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := backupService.Delete(id); err != nil {
		if err == backup.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "备份任务已删除"})
}
