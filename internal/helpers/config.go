package helpers

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

var Version = "0.1.0"
var ReleaseDate = "2026-08-31"

type DbEngine string

const (
	DbEngineSqlite   DbEngine = "sqlite"
	DbEnginePostgres DbEngine = "postgres"
	DbEngineUnset    DbEngine = ""
)

type configLog struct {
	File string `yaml:"file"` // 主日志文件名，位于ConfigDir/logs下
	Web  string `yaml:"web"`  // Web访问日志文件名
}

type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"sslMode"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
	MaxIdleConns int    `yaml:"maxIdleConns"`
}

type configDb struct {
	Engine         DbEngine       `yaml:"engine"`         // 元数据库引擎，可选值：sqlite, postgres
	SqliteFile     string         `yaml:"sqliteFile"`     // SQLite数据库文件路径
	PostgresConfig PostgresConfig `yaml:"postgresConfig"` // PostgreSQL数据库配置
}

type configBackup struct {
	Dir                  string `yaml:"dir"`                  // 备份文件输出目录
	ExecutorPath         string `yaml:"executorPath"`         // 外部备份执行器二进制路径
	TmpDir               string `yaml:"tmpDir"`               // 执行器临时配置文件目录
	HistoryRetentionDays int    `yaml:"historyRetentionDays"` // 历史记录保留天数
	HousekeepingCron     string `yaml:"housekeepingCron"`     // 维护任务cron表达式（5字段）
}

type configNotify struct {
	TelegramToken  string `yaml:"telegramToken"`
	TelegramChatId string `yaml:"telegramChatId"`
	WebhookUrl     string `yaml:"webhookUrl"` // 备份结束后回调的Webhook地址
	WebhookQps     int    `yaml:"webhookQps"` // Webhook限速，每秒请求数
}

type Config struct {
	Log       configLog    `yaml:"log"`
	Db        configDb     `yaml:"db"`
	CacheSize int          `yaml:"cacheSize"` // 内存缓存大小，单位字节
	HttpHost  string       `yaml:"httpHost"`  // HTTP监听地址，如 0.0.0.0:9800
	Backup    configBackup `yaml:"backup"`
	Notify    configNotify `yaml:"notify"`
}

var GlobalConfig Config
var RootDir string
var ConfigDir string
var DataDir string
var IsRelease bool

func InitConfig() error {
	configPath := filepath.Join(ConfigDir, "config.yaml")
	// 从配置文件加载
	if err := loadYaml(configPath, &GlobalConfig); err != nil {
		return err
	}
	ApplyDefaults()
	return nil
}

// ApplyDefaults 补全未配置项的默认值
func ApplyDefaults() {
	if GlobalConfig.Log.File == "" {
		GlobalConfig.Log.File = "app.log"
	}
	if GlobalConfig.Log.Web == "" {
		GlobalConfig.Log.Web = "web.log"
	}
	if GlobalConfig.Db.Engine == DbEngineUnset {
		GlobalConfig.Db.Engine = DbEngineSqlite
	}
	if GlobalConfig.Db.SqliteFile == "" {
		GlobalConfig.Db.SqliteFile = filepath.Join(ConfigDir, "metadata.db")
	}
	if GlobalConfig.CacheSize <= 0 {
		GlobalConfig.CacheSize = 32 * 1024 * 1024
	}
	if GlobalConfig.HttpHost == "" {
		GlobalConfig.HttpHost = "0.0.0.0:9800"
	}
	if GlobalConfig.Backup.Dir == "" {
		GlobalConfig.Backup.Dir = filepath.Join(DataDir, "backups")
	}
	if GlobalConfig.Backup.TmpDir == "" {
		GlobalConfig.Backup.TmpDir = os.TempDir()
	}
	if GlobalConfig.Backup.HistoryRetentionDays <= 0 {
		GlobalConfig.Backup.HistoryRetentionDays = 30
	}
	if GlobalConfig.Backup.HousekeepingCron == "" {
		GlobalConfig.Backup.HousekeepingCron = "17 3 * * *"
	}
	if GlobalConfig.Notify.WebhookQps <= 0 {
		GlobalConfig.Notify.WebhookQps = 1
	}
}

func LoadEnvFromFile(envPath string) error {
	f, err := os.Open(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("环境变量配置文件不存在: %s\n", envPath)
			return nil
		}
		return err
	}
	defer f.Close()
	fmt.Printf("已加载环境变量配置文件：%s\n", envPath)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		if key == "" {
			continue
		}
		value := line[idx+1:]
		os.Setenv(key, value)
	}

	return scanner.Err()
}

func loadYaml(configPath string, cfg interface{}) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	return nil
}
