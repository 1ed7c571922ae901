package maintcron

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"DSync-Ops/internal/helpers"
	"DSync-Ops/internal/repo"
)

// staleConfigAge 执行器临时配置文件超过此时长视为残留
const staleConfigAge = 24 * time.Hour

// Manager 后台维护任务：按cron周期清理过期历史记录与残留的临时配置文件
type Manager struct {
	c             *cron.Cron
	history       repo.HistoryRepository
	retentionDays int
	tmpDir        string
}

func NewManager(history repo.HistoryRepository, retentionDays int, tmpDir string) *Manager {
	return &Manager{
		c:             cron.New(),
		history:       history,
		retentionDays: retentionDays,
		tmpDir:        tmpDir,
	}
}

// Start 注册维护任务并启动调度器
func (m *Manager) Start(spec string) error {
	if _, err := m.c.AddFunc(spec, m.Run); err != nil {
		return err
	}
	m.c.Start()
	if helpers.AppLogger != nil {
		helpers.AppLogger.Infof("维护任务已启动: %s", spec)
	}
	return nil
}

func (m *Manager) Stop() {
	ctx := m.c.Stop()
	<-ctx.Done()
}

// Run 执行一轮维护，可被cron触发或手动调用
func (m *Manager) Run() {
	m.purgeHistory()
	m.sweepTmpConfigs()
}

func (m *Manager) purgeHistory() {
	cutoff := time.Now().UTC().AddDate(0, 0, -m.retentionDays)
	removed, err := m.history.DeleteOlderThan(cutoff)
	if err != nil {
		if helpers.AppLogger != nil {
			helpers.AppLogger.Errorf("清理历史记录失败: %v", err)
		}
		return
	}
	if removed > 0 && helpers.AppLogger != nil {
		helpers.AppLogger.Infof("已清理 %d 条过期历史记录", removed)
	}
}

// sweepTmpConfigs 清理执行器异常退出后残留的临时配置文件
func (m *Manager) sweepTmpConfigs() {
	entries, err := os.ReadDir(m.tmpDir)
	if err != nil {
		if helpers.AppLogger != nil {
			helpers.AppLogger.Errorf("读取临时目录失败: %v", err)
		}
		return
	}

	cutoff := time.Now().Add(-staleConfigAge)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "backup-config-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.tmpDir, name)
		if err := os.Remove(path); err != nil {
			if helpers.AppLogger != nil {
				helpers.AppLogger.Errorf("删除残留配置文件失败: %v", err)
			}
			continue
		}
		if helpers.AppLogger != nil {
			helpers.AppLogger.Infof("已删除残留配置文件: %s", path)
		}
	}
}
