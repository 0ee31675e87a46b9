package main

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sshbot/internal/session"
)

func (r *Router) registerCallbackRoutes() {
	// Menus
	r.route(cbMainMenu, r.showMainMenu)
	r.route(cbManagementMenu, r.showManagementMenu)

	// Dashboard
	r.route(cbDashboardStart, r.startDashboard)
	r.route(cbDashboardStop, r.stopDashboard)

	// One-shot info
	r.route(cbSummary, r.info("⏳ Collecting server summary...", getSummaryText, mainBack))
	r.route(cbNetwork, r.info("⏳ Reading network connections...", getNetworkText, mainBack))
	r.route(cbSpeedtest, r.info("🚀 Running SpeedTest... this can take up to a minute.", getSpeedtestText, mainBack))
	r.route(cbTopProcesses, r.info("⏳ Listing processes...", getTopProcessesText, getTopProcessesKeyboard))

	// Flows
	r.route(cbRestartPrompt, r.prompt(session.RestartService))
	r.route(cbKillPrompt, r.prompt(session.KillProcess))
	r.route(cbLogPrompt, r.prompt(session.RetrieveLog))
	r.route(cbRestartYes, r.confirm(session.RestartService))
	r.route(cbKillYes, r.confirm(session.KillProcess))
}

func mainBack() tgbotapi.InlineKeyboardMarkup { return getBackKeyboard(cbMainMenu) }

func (r *Router) showMainMenu(_ context.Context, cb callbackQuery) {
	r.app.Sessions.Cancel(cb.userID)
	kb := getMainKeyboard()
	editMessage(r.bot, cb.chatID, cb.msgID, mainMenuText, &kb)
}

// showManagementMenu is also the back and cancel target of every flow.
func (r *Router) showManagementMenu(_ context.Context, cb callbackQuery) {
	if r.app.Sessions.Cancel(cb.userID) {
		slog.Info("Flow cancelled", "user_id", cb.userID)
	}
	kb := getManagementKeyboard()
	editMessage(r.bot, cb.chatID, cb.msgID, managementMenuText, &kb)
}

func (r *Router) startDashboard(rc context.Context, cb callbackQuery) {
	if err := r.app.Dashboards.Start(rc, cb.userID, cb.chatID, cb.msgID); err != nil {
		slog.Error("Dashboard start failed", "user_id", cb.userID, "err", err)
		kb := mainBack()
		editMessage(r.bot, cb.chatID, cb.msgID, "❌ Could not start the dashboard.", &kb)
	}
}

func (r *Router) stopDashboard(rc context.Context, cb callbackQuery) {
	if err := r.app.Dashboards.Stop(rc, cb.userID, cb.chatID, cb.msgID); err != nil {
		slog.Warn("Dashboard message delete failed", "user_id", cb.userID, "err", err)
	}
}

func (r *Router) info(placeholder string, build func(context.Context, *AppContext) string, keyboard func() tgbotapi.InlineKeyboardMarkup) func(context.Context, callbackQuery) {
	return func(rc context.Context, cb callbackQuery) {
		editMessage(r.bot, cb.chatID, cb.msgID, placeholder, nil)
		kb := keyboard()
		editHTML(r.bot, cb.chatID, cb.msgID, build(rc, r.app), &kb)
	}
}

func (r *Router) prompt(flow session.Flow) func(context.Context, callbackQuery) {
	return func(_ context.Context, cb callbackQuery) {
		beginFlow(r.app, r.bot, cb.userID, cb.chatID, cb.msgID, flow)
	}
}

func (r *Router) confirm(flow session.Flow) func(context.Context, callbackQuery) {
	return func(rc context.Context, cb callbackQuery) {
		confirmFlow(rc, r.app, r.bot, cb.userID, cb.chatID, cb.msgID, flow)
	}
}
