package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"DSync-Ops/internal/backup"
	"DSync-Ops/internal/controllers"
	"DSync-Ops/internal/db"
	"DSync-Ops/internal/helpers"
	"DSync-Ops/internal/maintcron"
	"DSync-Ops/internal/models"
	"DSync-Ops/internal/notify"
	"DSync-Ops/internal/repo"
)

func main() {
	var configDir string
	var dataDir string
	flag.StringVar(&configDir, "config", "./config", "配置目录")
	flag.StringVar(&dataDir, "data", "./data", "数据目录")
	flag.Parse()

	var err error
	helpers.ConfigDir, err = filepath.Abs(configDir)
	if err != nil {
		fmt.Printf("解析配置目录失败: %v\n", err)
		os.Exit(1)
	}
	helpers.DataDir, err = filepath.Abs(dataDir)
	if err != nil {
		fmt.Printf("解析数据目录失败: %v\n", err)
		os.Exit(1)
	}

	if err := helpers.LoadEnvFromFile(filepath.Join(helpers.ConfigDir, ".env")); err != nil {
		fmt.Printf("加载环境变量配置失败: %v\n", err)
	}
	if err := helpers.InitConfig(); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	helpers.AppLogger = helpers.NewLogger(helpers.GlobalConfig.Log.File, true, true)
	defer helpers.AppLogger.Close()
	helpers.WebLogger = helpers.NewLogger(helpers.GlobalConfig.Log.Web, false, true)
	defer helpers.WebLogger.Close()
	helpers.AppLogger.Infof("DSync-Ops %s (%s) 启动中", helpers.Version, helpers.ReleaseDate)

	// 元数据库
	switch helpers.GlobalConfig.Db.Engine {
	case helpers.DbEnginePostgres:
		if err := db.ConnectPostgres(&helpers.GlobalConfig.Db.PostgresConfig); err != nil {
			helpers.AppLogger.Fatalf("连接PostgreSQL失败: %v", err)
		}
	default:
		db.InitSqlite3(helpers.GlobalConfig.Db.SqliteFile)
	}
	if err := db.Db.AutoMigrate(&models.BackupJob{}, &models.BackupHistoryEntry{}); err != nil {
		helpers.AppLogger.Fatalf("数据库迁移失败: %v", err)
	}
	db.InitCache()

	if err := os.MkdirAll(helpers.GlobalConfig.Backup.Dir, 0755); err != nil {
		helpers.AppLogger.Fatalf("创建备份目录失败: %v", err)
	}

	// 组装备份编排
	jobs := repo.NewBackupRepository(db.Db)
	history := repo.NewHistoryRepository(db.Db)
	executor := backup.NewSubprocessExecutor(helpers.GlobalConfig.Backup.ExecutorPath)
	notifier := notify.NewManager(&helpers.GlobalConfig)
	service := backup.NewService(jobs, history, executor, notifier,
		helpers.GlobalConfig.Backup.Dir, helpers.GlobalConfig.Backup.TmpDir)
	scheduleManager := backup.NewScheduleManager(jobs)
	controllers.InitBackupController(service, scheduleManager, jobs, history)

	// 后台维护任务
	maint := maintcron.NewManager(history,
		helpers.GlobalConfig.Backup.HistoryRetentionDays,
		helpers.GlobalConfig.Backup.TmpDir)
	if err := maint.Start(helpers.GlobalConfig.Backup.HousekeepingCron); err != nil {
		helpers.AppLogger.Fatalf("启动维护任务失败: %v", err)
	}

	if helpers.IsRelease {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.LoggerWithWriter(helpers.WebLogger.Writer()), gin.Recovery())
	controllers.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    helpers.GlobalConfig.HttpHost,
		Handler: engine,
	}

	go func() {
		helpers.AppLogger.Infof("HTTP服务监听: %s", helpers.GlobalConfig.HttpHost)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			helpers.AppLogger.Fatalf("HTTP服务异常退出: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	helpers.AppLogger.Info("收到退出信号，开始关闭")

	maint.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		helpers.AppLogger.Errorf("HTTP服务关闭失败: %v", err)
	}
	helpers.AppLogger.Info("已退出")
}
