package main

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sshbot/internal/auth"
	"sshbot/internal/dashboard"
)

// BotAPI abstracts Telegram bot methods used by the app.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// telegramTransport adapts BotAPI to the outbound interfaces of the internal
// packages: dashboard edits, alert notices, log documents and denials.
type telegramTransport struct {
	bot     BotAPI
	adminID int64
}

func newTelegramTransport(bot BotAPI, adminID int64) *telegramTransport {
	return &telegramTransport{bot: bot, adminID: adminID}
}

func (t *telegramTransport) EditDashboard(_ context.Context, chatID int64, messageID int, text string, withClose bool) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if withClose {
		kb := getDashboardKeyboard()
		edit.ReplyMarkup = &kb
	}
	_, err := t.bot.Send(edit)
	if isNotModified(err) {
		return dashboard.ErrNotModified
	}
	return err
}

func (t *telegramTransport) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	_, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// Notify sends an alert to the admin, retrying as plain text if the Markdown
// is rejected.
func (t *telegramTransport) Notify(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.adminID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err == nil {
		return nil
	}
	msg.ParseMode = ""
	_, err := t.bot.Send(msg)
	return err
}

func (t *telegramTransport) SendLog(_ context.Context, chatID int64, filePath, logPath string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(filePath))
	doc.Caption = "📋 Log " + logPath
	_, err := t.bot.Send(doc)
	return err
}

func (t *telegramTransport) DenyCallback(_ context.Context, callbackID string) error {
	_, err := t.bot.Request(tgbotapi.NewCallbackWithAlert(callbackID, auth.DeniedText))
	return err
}

func (t *telegramTransport) DenyMessage(_ context.Context, chatID int64) error {
	_, err := t.bot.Send(tgbotapi.NewMessage(chatID, auth.DeniedText))
	return err
}

func isNotModified(err error) bool {
	if err == nil {
		return false
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return strings.Contains(strings.ToLower(tgErr.Message), "message is not modified")
	}
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}
