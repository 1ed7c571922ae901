package db

import (
	"DSync-Ops/internal/helpers"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var Db *gorm.DB

// InitSqlite3 打开SQLite元数据库
func InitSqlite3(dbFile string) *gorm.DB {
	sqliteDb, err := gorm.Open(sqlite.Open(dbFile+"?cache=shared&_journal_mode=WAL&busy_timeout=30000&synchronous=NORMAL&foreign_keys=ON&cache_size=-100000"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect database: %v", err))
	}
	Db = sqliteDb
	return sqliteDb
}

// ConnectPostgres 连接外部PostgreSQL元数据库
func ConnectPostgres(dbConfig *helpers.PostgresConfig) error {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond, // 慢SQL阈值
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	sslMode := dbConfig.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host, dbConfig.Port, dbConfig.User, dbConfig.Password, dbConfig.Database, sslMode)
	sqlDB, cerr := sql.Open("postgres", connStr)
	if cerr != nil {
		helpers.AppLogger.Errorf("连接数据库失败: %v", cerr)
		return cerr
	}
	// 配置连接池
	maxOpen := dbConfig.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := dbConfig.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(60 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	var err error
	Db, err = gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	if err != nil {
		panic(fmt.Sprintf("failed to connect database: %v", err))
	}
	Db.Logger = newLogger
	helpers.AppLogger.Info("成功初始化数据库组件")

	return nil
}

// IsPostgres 判断当前使用的是否为PostgreSQL元数据库
func IsPostgres() bool {
	return helpers.GlobalConfig.Db.Engine == helpers.DbEnginePostgres
}
