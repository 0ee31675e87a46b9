package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sshbot/internal/session"
)

const sessionExpiredText = "_Session expired, try again_"

var flowPrompts = map[session.Flow]string{
	session.RestartService: "🔄 *Restart service*\n\nSend the service name (for example `nginx`).",
	session.KillProcess:    "💀 *Kill process*\n\nSend the PID of the process to terminate.",
	session.RetrieveLog:    "📜 *Get log*\n\nSend the full path of the log file, optionally preceded by a line count (for example `500 /var/log/syslog`).",
}

// beginFlow starts flow for the user and shows its prompt, editing msgID when
// the flow was started from a button.
func beginFlow(ctx *AppContext, bot BotAPI, userID, chatID int64, msgID int, flow session.Flow) {
	if _, replaced := ctx.Sessions.Begin(userID, chatID, flow); replaced {
		slog.Info("Previous flow discarded", "user_id", userID, "flow", flow)
	}
	kb := getBackKeyboard(cbManagementMenu)
	if msgID > 0 {
		editMessage(bot, chatID, msgID, flowPrompts[flow], &kb)
		return
	}
	sendMarkdown(bot, chatID, flowPrompts[flow], &kb)
}

// handleFlowInput feeds free text to the user's session.
func handleFlowInput(rc context.Context, ctx *AppContext, bot BotAPI, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	reply, err := ctx.Sessions.Submit(rc, userID, msg.Text)
	var verr *session.ValidationError
	switch {
	case errors.Is(err, session.ErrNoSession):
		kb := getMainKeyboard()
		sendMarkdown(bot, chatID, "Nothing in progress. Choose an action:", &kb)
		return
	case errors.Is(err, session.ErrNotPrompting):
		sendMarkdown(bot, chatID, "Please use the buttons above, or /cancel.", nil)
		return
	case errors.As(err, &verr):
		slog.Info("Invalid flow input", "user_id", userID, "flow", verr.Flow, "reason", verr.Reason)
		kb := getBackKeyboard(cbManagementMenu)
		sendMarkdown(bot, chatID, repromptText(verr), &kb)
		return
	case err != nil:
		slog.Error("Flow input failed", "user_id", userID, "err", err)
		return
	}

	if reply.Outcome != nil {
		reportOutcome(bot, chatID, 0, *reply.Outcome)
		return
	}
	askConfirmation(bot, chatID, reply.Session)
}

func repromptText(verr *session.ValidationError) string {
	switch verr.Flow {
	case session.KillProcess:
		return "That doesn't look like a PID. Send digits only."
	case session.RestartService:
		return "The service name can't be empty. Send the service name."
	}
	return fmt.Sprintf("Invalid request: %s.\nSend `[lines] <path>`, for example `200 /var/log/syslog`.", verr.Reason)
}

func askConfirmation(bot BotAPI, chatID int64, s session.Session) {
	var text string
	var kb tgbotapi.InlineKeyboardMarkup
	switch s.Flow {
	case session.RestartService:
		text = fmt.Sprintf("Are you sure you want to restart service %s?", code(s.Payload.Service))
		kb = getConfirmKeyboard("✅ Yes, restart", cbRestartYes)
	case session.KillProcess:
		text = fmt.Sprintf("Are you sure you want to kill the process with PID %s?", code(s.Payload.PID))
		kb = getConfirmKeyboard("✅ Yes, kill PID "+s.Payload.PID, cbKillYes)
	default:
		return
	}
	sendHTML(bot, chatID, text, &kb)
}

// confirmFlow runs the staged action after a confirmation press.
func confirmFlow(rc context.Context, ctx *AppContext, bot BotAPI, userID, chatID int64, msgID int, flow session.Flow) {
	s, ok := ctx.Sessions.Current(userID)
	if !ok || s.Flow != flow || s.Stage != session.AwaitingConfirmation {
		editMessage(bot, chatID, msgID, sessionExpiredText, nil)
		return
	}

	switch flow {
	case session.RestartService:
		editHTML(bot, chatID, msgID, "⏳ Restarting service "+code(s.Payload.Service)+"...", nil)
	case session.KillProcess:
		editHTML(bot, chatID, msgID, "⏳ Killing process "+code(s.Payload.PID)+"...", nil)
	}

	out, err := ctx.Sessions.Confirm(rc, userID, flow)
	if err != nil {
		// Lost the race against another press or a replacement flow.
		editMessage(bot, chatID, msgID, sessionExpiredText, nil)
		return
	}
	reportOutcome(bot, chatID, msgID, out)
}

// reportOutcome shows a finished flow, editing msgID when set. A delivered
// log needs no further message.
func reportOutcome(bot BotAPI, chatID int64, msgID int, out session.Outcome) {
	if out.Flow == session.RetrieveLog && out.OK {
		return
	}
	text := outcomeText(out)
	kb := getBackKeyboard(cbManagementMenu)
	if msgID > 0 {
		editHTML(bot, chatID, msgID, text, &kb)
		return
	}
	sendHTML(bot, chatID, text, &kb)
}

func outcomeText(out session.Outcome) string {
	switch out.Flow {
	case session.RestartService:
		if out.OK {
			return fmt.Sprintf("✅ Service %s restarted successfully.", code(out.Target))
		}
		return fmt.Sprintf("❌ Could not restart service %s.\n%s", code(out.Target), preBlock(out.Output))
	case session.KillProcess:
		if out.OK {
			return fmt.Sprintf("✅ Process with PID %s terminated.", code(out.Target))
		}
		return fmt.Sprintf("❌ Could not kill process %s.\n%s", code(out.Target), preBlock(out.Output))
	case session.RetrieveLog:
		if out.OK {
			return fmt.Sprintf("✅ Log %s sent.", code(out.Target))
		}
		return fmt.Sprintf("❌ Could not retrieve log %s.\n%s", code(out.Target), preBlock(out.Output))
	}
	return ""
}
