package main

import (
	"html"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sshbot/internal/format"
)

// maxPreLen keeps <pre> blocks under Telegram's 4096 character message limit.
const maxPreLen = 3500

// ═══════════════════════════════════════════════════════════════════
//  MESSAGE HELPERS
// ═══════════════════════════════════════════════════════════════════

func safeSend(bot BotAPI, msg tgbotapi.Chattable) {
	if bot == nil {
		return
	}
	if _, err := bot.Send(msg); err != nil {
		slog.Error("Telegram send failed", "err", err)
	}
}

func sendMarkdown(bot BotAPI, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := bot.Send(msg); err != nil {
		slog.Error("Error sending Markdown message. Retrying as plain text", "err", err)
		msg.ParseMode = ""
		safeSend(bot, msg)
	}
}

func sendHTML(bot BotAPI, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	safeSend(bot, msg)
}

func editMessage(bot BotAPI, chatID int64, msgID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if bot == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		edit.ReplyMarkup = keyboard
	}
	if _, err := bot.Send(edit); err != nil && !isNotModified(err) {
		slog.Error("Error editing message to Markdown. Retrying as plain text", "err", err)
		edit.ParseMode = ""
		safeSend(bot, edit)
	}
}

func editHTML(bot BotAPI, chatID int64, msgID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if bot == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		edit.ReplyMarkup = keyboard
	}
	if _, err := bot.Send(edit); err != nil && !isNotModified(err) {
		slog.Error("Error editing HTML message", "err", err)
	}
}

// preBlock escapes s and wraps it in <pre>, truncated to fit one message.
func preBlock(s string) string {
	return "<pre>" + html.EscapeString(format.Truncate(s, maxPreLen)) + "</pre>"
}

func code(s string) string {
	return "<code>" + html.EscapeString(s) + "</code>"
}

// ═══════════════════════════════════════════════════════════════════
//  KEYBOARDS
// ═══════════════════════════════════════════════════════════════════

const (
	cbMainMenu       = "main_menu"
	cbManagementMenu = "open_management_menu"
	cbDashboardStart = "dashboard_start"
	cbDashboardStop  = "dashboard_stop"
	cbSummary        = "get_summary"
	cbNetwork        = "get_network_info"
	cbSpeedtest      = "run_speedtest"
	cbTopProcesses   = "get_top_processes"
	cbRestartPrompt  = "restart_service_prompt"
	cbKillPrompt     = "kill_process_prompt"
	cbLogPrompt      = "get_log_prompt"
	cbRestartYes     = "restart_service_yes"
	cbKillYes        = "kill_process_yes"
)

const (
	mainMenuText       = "👋 *Server monitoring bot*\n\nChoose an action:"
	managementMenuText = "⚙️ *Management menu*"
)

func getMainKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Dashboard", cbDashboardStart),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Summary", cbSummary),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Management", cbManagementMenu),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚀 SpeedTest", cbSpeedtest),
			tgbotapi.NewInlineKeyboardButtonData("🔌 Network", cbNetwork),
		),
	)
}

func getManagementKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Restart service", cbRestartPrompt)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📜 Get log", cbLogPrompt)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📈 Top processes", cbTopProcesses)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbMainMenu)),
	)
}

func getTopProcessesKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💀 Kill process", cbKillPrompt)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbManagementMenu)),
	)
}

func getBackKeyboard(target string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", target)),
	)
}

func getConfirmKeyboard(label, confirmData string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, confirmData)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbManagementMenu)),
	)
}

func getDashboardKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Close", cbDashboardStop)),
	)
}
