package helpers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBot 用于推送备份结果通知
type TelegramBot struct {
	Token  string
	ChatID int64
	Client *tgbotapi.BotAPI
}

// maskToken 掩码token用于日志输出
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "***" + token[len(token)-4:]
}

// NewTelegramBot 创建Telegram机器人实例，配置缺失时返回nil
func NewTelegramBot(token string, chatID int64) *TelegramBot {
	if token == "" || chatID == 0 {
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		if AppLogger != nil {
			AppLogger.Errorf("创建Telegram机器人失败 (token: %s, chatID: %d): %v", maskToken(token), chatID, err)
		}
		return nil
	}
	return &TelegramBot{
		Token:  token,
		ChatID: chatID,
		Client: bot,
	}
}

// SendMessage 发送文本消息，失败仅记录日志
func (b *TelegramBot) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(b.ChatID, text)
	if _, err := b.Client.Send(msg); err != nil {
		if AppLogger != nil {
			AppLogger.Errorf("发送Telegram消息失败: %v", err)
		}
		return err
	}
	return nil
}
