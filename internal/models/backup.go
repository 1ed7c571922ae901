package models

import "time"

type SourceEngine string

const (
	EnginePostgreSQL SourceEngine = "PostgreSQL"
	EngineMariaDB    SourceEngine = "MariaDB"
	EngineMongoDB    SourceEngine = "MongoDB"
	EngineOracle     SourceEngine = "Oracle"
)

// EngineFileExt 各数据库引擎备份文件的扩展名
var EngineFileExt = map[SourceEngine]string{
	EnginePostgreSQL: "dump",
	EngineMariaDB:    "sql",
	EngineMongoDB:    "gz",
	EngineOracle:     "dmp",
}

func (e SourceEngine) Valid() bool {
	_, ok := EngineFileExt[e]
	return ok
}

type BackupType string

const (
	BackupTypeStructure BackupType = "structure"
	BackupTypeData      BackupType = "data"
	BackupTypeFull      BackupType = "full"
	BackupTypeConfig    BackupType = "config"
)

func (t BackupType) Valid() bool {
	switch t {
	case BackupTypeStructure, BackupTypeData, BackupTypeFull, BackupTypeConfig:
		return true
	}
	return false
}

type BackupStatus string

const (
	StatusInProgress BackupStatus = "in_progress"
	StatusCompleted  BackupStatus = "completed"
	StatusFailed     BackupStatus = "failed"
)

type TriggerSource string

const (
	TriggerManual    TriggerSource = "manual"
	TriggerScheduled TriggerSource = "scheduled"
)

// BackupJob 一行代表一次执行实例，不是可复用模板。
// 状态只变更一次：in_progress -> completed/failed，由后台任务写入。
type BackupJob struct {
	BaseModel
	Name             string       `json:"name"`
	DbEngine         SourceEngine `json:"db_engine"`
	ConnectionString string       `json:"-"` // AES加密存储，接口不回显
	DatabaseName     string       `json:"database_name"`
	BackupType       BackupType   `json:"backup_type"`
	FilePath         string       `json:"file_path"`
	Status           BackupStatus `json:"status" gorm:"index"`
	ErrorMessage     *string      `json:"error_message"`
	FileSize         *int64       `json:"file_size"`
	CreatedBy        string       `json:"created_by"`
	CompletedAt      *time.Time   `json:"completed_at"`
	CronSchedule     *string      `json:"cron_schedule"`
	IsScheduled      bool         `json:"is_scheduled"`
	NextRunAt        *time.Time   `json:"next_run_at"`
	LastRunAt        *time.Time   `json:"last_run_at"`
	RunCount         int          `json:"run_count" gorm:"default:0"`
}

func (*BackupJob) TableName() string {
	return "backups"
}

// BackupHistoryEntry 执行历史，只追加；开始时创建，结束时收尾，此后不再修改
type BackupHistoryEntry struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	BackupID        uint          `gorm:"index" json:"backup_id"`
	BackupName      string        `json:"backup_name"`
	Status          BackupStatus  `json:"status"`
	StartedAt       time.Time     `gorm:"index" json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at"`
	DurationSeconds *float64      `json:"duration_seconds"`
	FilePath        *string       `json:"file_path"`
	FileSize        *int64        `json:"file_size"`
	ErrorMessage    *string       `json:"error_message"`
	TriggeredBy     TriggerSource `json:"triggered_by"`
}

func (*BackupHistoryEntry) TableName() string {
	return "backup_history"
}
