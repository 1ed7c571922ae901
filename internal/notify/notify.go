package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"

	"DSync-Ops/internal/helpers"
	"DSync-Ops/internal/models"
)

// webhookPayload 备份终态回调内容
type webhookPayload struct {
	BackupID     uint       `json:"backup_id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	FileSize     *int64     `json:"file_size,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Manager 备份结束后的通知分发，所有通道均为尽力而为，
// 失败只记录日志，不影响备份任务本身的状态。
type Manager struct {
	bot        *helpers.TelegramBot
	webhookUrl string
	client     *resty.Client
	limiter    *rate.Limiter
}

// NewManager 根据配置初始化通知通道，未配置的通道保持为空
func NewManager(cfg *helpers.Config) *Manager {
	m := &Manager{}

	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatId != "" {
		chatID, err := strconv.ParseInt(cfg.Notify.TelegramChatId, 10, 64)
		if err != nil {
			if helpers.AppLogger != nil {
				helpers.AppLogger.Errorf("telegramChatId格式非法: %s", cfg.Notify.TelegramChatId)
			}
		} else {
			m.bot = helpers.NewTelegramBot(cfg.Notify.TelegramToken, chatID)
		}
	}

	if cfg.Notify.WebhookUrl != "" {
		m.webhookUrl = cfg.Notify.WebhookUrl
		m.client = resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(2 * time.Second)
		m.limiter = rate.NewLimiter(rate.Limit(cfg.Notify.WebhookQps), 1)
	}

	return m
}

// NotifyJobFinished 推送备份终态，在执行协程内被同步调用
func (m *Manager) NotifyJobFinished(job *models.BackupJob) {
	if m == nil || job == nil {
		return
	}
	m.sendTelegram(job)
	m.sendWebhook(job)
}

func (m *Manager) sendTelegram(job *models.BackupJob) {
	if m.bot == nil {
		return
	}

	var text string
	switch job.Status {
	case models.StatusCompleted:
		var size int64
		if job.FileSize != nil {
			size = *job.FileSize
		}
		text = fmt.Sprintf("✅ 备份完成\n任务: %s (#%d)\n库: %s\n大小: %d字节", job.Name, job.ID, job.DatabaseName, size)
	case models.StatusFailed:
		msg := ""
		if job.ErrorMessage != nil {
			msg = *job.ErrorMessage
		}
		text = fmt.Sprintf("❌ 备份失败\n任务: %s (#%d)\n库: %s\n原因: %s", job.Name, job.ID, job.DatabaseName, msg)
	default:
		return
	}

	_ = m.bot.SendMessage(text)
}

func (m *Manager) sendWebhook(job *models.BackupJob) {
	if m.client == nil || m.webhookUrl == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.limiter.Wait(ctx); err != nil {
		if helpers.AppLogger != nil {
			helpers.AppLogger.Errorf("等待Webhook限速超时: %v", err)
		}
		return
	}

	payload := &webhookPayload{
		BackupID:     job.ID,
		Name:         job.Name,
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
		FileSize:     job.FileSize,
		CompletedAt:  job.CompletedAt,
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(m.webhookUrl)
	if err != nil {
		if helpers.AppLogger != nil {
			helpers.AppLogger.Errorf("推送Webhook失败: %v", err)
		}
		return
	}
	if resp.IsError() {
		if helpers.AppLogger != nil {
			helpers.AppLogger.Errorf("Webhook返回异常状态: %s", resp.Status())
		}
	}
}
