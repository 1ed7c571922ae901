package repo

import (
	"errors"
	"time"

	"DSync-Ops/internal/models"

	"gorm.io/gorm"
)

// BackupRepository 备份任务表的窄接口，核心逻辑只依赖这些操作
type BackupRepository interface {
	Create(job *models.BackupJob) error
	GetByID(id uint) (*models.BackupJob, error)
	UpdateFields(id uint, fields map[string]interface{}) error
	List(offset, limit int) ([]models.BackupJob, int64, error)
	Delete(id uint) error
}

// HistoryRepository 执行历史表的窄接口
type HistoryRepository interface {
	Create(entry *models.BackupHistoryEntry) error
	ListByBackupID(backupID uint, limit int) ([]models.BackupHistoryEntry, error)
	LatestInProgress(backupID uint) (*models.BackupHistoryEntry, error)
	UpdateFields(id uint, fields map[string]interface{}) error
	DeleteByBackupID(backupID uint) error
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type GormBackupRepository struct{ db *gorm.DB }

func NewBackupRepository(db *gorm.DB) *GormBackupRepository { return &GormBackupRepository{db: db} }

func (r *GormBackupRepository) Create(job *models.BackupJob) error {
	return r.db.Create(job).Error
}

// GetByID 未找到时返回(nil, nil)
func (r *GormBackupRepository) GetByID(id uint) (*models.BackupJob, error) {
	var job models.BackupJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *GormBackupRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	return r.db.Model(&models.BackupJob{}).Where("id = ?", id).Updates(fields).Error
}

func (r *GormBackupRepository) List(offset, limit int) ([]models.BackupJob, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var total int64
	if err := r.db.Model(&models.BackupJob{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var jobs []models.BackupJob
	err := r.db.Order("id DESC").Offset(offset).Limit(limit).Find(&jobs).Error
	return jobs, total, err
}

func (r *GormBackupRepository) Delete(id uint) error {
	return r.db.Where("id = ?", id).Delete(&models.BackupJob{}).Error
}

type GormHistoryRepository struct{ db *gorm.DB }

func NewHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

func (r *GormHistoryRepository) Create(entry *models.BackupHistoryEntry) error {
	return r.db.Create(entry).Error
}

func (r *GormHistoryRepository) ListByBackupID(backupID uint, limit int) ([]models.BackupHistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var entries []models.BackupHistoryEntry
	err := r.db.Where("backup_id = ?", backupID).Order("started_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// LatestInProgress 返回该任务最近一条in_progress历史，未找到时返回(nil, nil)
func (r *GormHistoryRepository) LatestInProgress(backupID uint) (*models.BackupHistoryEntry, error) {
	var entry models.BackupHistoryEntry
	err := r.db.Where("backup_id = ? AND status = ?", backupID, models.StatusInProgress).
		Order("started_at DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *GormHistoryRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	return r.db.Model(&models.BackupHistoryEntry{}).Where("id = ?", id).Updates(fields).Error
}

func (r *GormHistoryRepository) DeleteByBackupID(backupID uint) error {
	return r.db.Where("backup_id = ?", backupID).Delete(&models.BackupHistoryEntry{}).Error
}

// DeleteOlderThan 清理早于cutoff的已完结历史，返回删除行数
func (r *GormHistoryRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("started_at < ? AND status <> ?", cutoff, models.StatusInProgress).
		Delete(&models.BackupHistoryEntry{})
	return result.RowsAffected, result.Error
}
