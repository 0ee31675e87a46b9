package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sshbot/internal/session"
)

const logUsageText = "📜 *Log retrieval*\n\n" +
	"`/log [lines] <path>` sends the last lines of a log file as a document.\n" +
	"Lines default to 200, at most 5000.\n\n" +
	"Examples:\n`/log /var/log/syslog`\n`/log 1000 /var/log/nginx/error.log`"

type LogsCmd struct{}

func (c *LogsCmd) Execute(_ context.Context, _ *AppContext, bot BotAPI, msg *tgbotapi.Message, _ string) {
	sendMarkdown(bot, msg.Chat.ID, logUsageText, nil)
}
func (c *LogsCmd) Description() string { return "Show how to retrieve log files" }

type LogCmd struct{}

func (c *LogCmd) Execute(rc context.Context, ctx *AppContext, bot BotAPI, msg *tgbotapi.Message, args string) {
	req, err := session.ParseLogRequest(args)
	if err != nil {
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			sendMarkdown(bot, msg.Chat.ID, "❌ "+verr.Reason+"\n\n"+logUsageText, nil)
		}
		return
	}
	slog.Info("Log requested", "path", req.Path, "lines", req.Lines)
	reportOutcome(bot, msg.Chat.ID, 0, ctx.Sessions.RetrieveLog(rc, msg.Chat.ID, req))
}
func (c *LogCmd) Description() string { return "Send a log file: /log [lines] <path>" }

type RestartCmd struct{}

func (c *RestartCmd) Execute(rc context.Context, ctx *AppContext, bot BotAPI, msg *tgbotapi.Message, args string) {
	beginFlowFromCommand(rc, ctx, bot, msg, session.RestartService, args)
}
func (c *RestartCmd) Description() string { return "Restart a service: /restart <service>" }

// beginFlowFromCommand starts flow and, when the command carried an argument,
// submits it as the first reply.
func beginFlowFromCommand(rc context.Context, ctx *AppContext, bot BotAPI, msg *tgbotapi.Message, flow session.Flow, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		beginFlow(ctx, bot, msg.From.ID, msg.Chat.ID, 0, flow)
		return
	}
	ctx.Sessions.Begin(msg.From.ID, msg.Chat.ID, flow)
	input := *msg
	input.Text = args
	handleFlowInput(rc, ctx, bot, &input)
}

type CancelCmd struct{}

func (c *CancelCmd) Execute(_ context.Context, ctx *AppContext, bot BotAPI, msg *tgbotapi.Message, _ string) {
	if !ctx.Sessions.Cancel(msg.From.ID) {
		sendMarkdown(bot, msg.Chat.ID, "Nothing to cancel.", nil)
		return
	}
	kb := getManagementKeyboard()
	sendMarkdown(bot, msg.Chat.ID, "Cancelled.\n\n"+managementMenuText, &kb)
}
func (c *CancelCmd) Description() string { return "Cancel the current operation" }
