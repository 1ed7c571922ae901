package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"

	"DSync-Ops/internal/helpers"
)

// GetSystemStatus 返回运行状态：版本、备份目录磁盘用量、内存与系统运行时长
func GetSystemStatus(c *gin.Context) {
	status := gin.H{
		"version":      helpers.Version,
		"release_date": helpers.ReleaseDate,
	}

	if usage, err := disk.Usage(helpers.GlobalConfig.Backup.Dir); err == nil {
		status["backup_disk"] = gin.H{
			"path":         usage.Path,
			"total":        usage.Total,
			"free":         usage.Free,
			"used_percent": usage.UsedPercent,
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory"] = gin.H{
			"total":        vm.Total,
			"available":    vm.Available,
			"used_percent": vm.UsedPercent,
		}
	}

	if uptime, err := host.Uptime(); err == nil {
		status["uptime_seconds"] = uptime
	}

	c.JSON(http.StatusOK, status)
}
