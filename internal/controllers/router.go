package controllers

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有HTTP路由
func RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")

	backupGroup := api.Group("/backup")
	{
		backupGroup.POST("/create", CreateBackup)
		backupGroup.GET("/list", ListBackups)
		backupGroup.GET("/:id", GetBackup)
		backupGroup.DELETE("/:id", DeleteBackup)
		backupGroup.PUT("/:id/schedule", UpdateSchedule)
		backupGroup.POST("/:id/enable-schedule", EnableSchedule)
		backupGroup.POST("/:id/disable-schedule", DisableSchedule)
		backupGroup.GET("/:id/history", GetHistory)
	}

	logGroup := api.Group("/logs")
	{
		logGroup.GET("/old", GetOldLogs)
		logGroup.GET("/download", DownloadLogFile)
		logGroup.GET("/ws", LogWebSocket)
	}

	api.GET("/system/status", GetSystemStatus)
}
