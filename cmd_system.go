package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shirou/gopsutil/v3/process"

	"sshbot/internal/format"
)

type StartCmd struct{}

func (c *StartCmd) Execute(_ context.Context, _ *AppContext, bot BotAPI, msg *tgbotapi.Message, _ string) {
	kb := getMainKeyboard()
	sendMarkdown(bot, msg.Chat.ID, mainMenuText, &kb)
}
func (c *StartCmd) Description() string { return "Open the main menu" }

type HelpCmd struct{ registry *CommandRegistry }

func (c *HelpCmd) Execute(_ context.Context, _ *AppContext, bot BotAPI, msg *tgbotapi.Message, _ string) {
	sendMarkdown(bot, msg.Chat.ID, getHelpText(c.registry), nil)
}
func (c *HelpCmd) Description() string { return "Show this help" }

func getHelpText(r *CommandRegistry) string {
	var b strings.Builder
	b.WriteString("📖 *Commands*\n\n")
	for _, name := range r.Names() {
		fmt.Fprintf(&b, "/%s - %s\n", name, r.Description(name))
	}
	b.WriteString("\nUse the menu buttons for the dashboard, summary and management actions.")
	return b.String()
}

type PingCmd struct{}

func (c *PingCmd) Execute(_ context.Context, ctx *AppContext, bot BotAPI, msg *tgbotapi.Message, _ string) {
	sendMarkdown(bot, msg.Chat.ID, getPingText(ctx), nil)
}
func (c *PingCmd) Description() string { return "Check bot uptime and host reachability" }

func getPingText(ctx *AppContext) string {
	var rss string
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			rss = format.FormatBytes(mi.RSS)
		} else {
			slog.Warn("Read bot memory usage", "err", err)
		}
	}
	if rss == "" {
		rss = "n/a"
	}

	host := "🟢 reachable"
	if since := ctx.Monitor.DownSince(); ctx.Monitor.HostUnreachable() {
		host = fmt.Sprintf("🔴 unreachable for %s", format.FormatDuration(time.Since(since)))
	}

	return fmt.Sprintf("🏓 *Pong!*\n\n"+
		"🤖 Bot uptime: `%s`\n"+
		"💾 Bot memory: `%s`\n"+
		"🧵 Goroutines: `%d`\n"+
		"🗂 Open sessions: `%d`\n"+
		"📊 Live dashboards: `%d`\n"+
		"🖥 `%s`: %s",
		format.FormatDuration(ctx.Bot.Uptime()),
		rss,
		runtime.NumGoroutine(),
		ctx.Sessions.Active(),
		ctx.Dashboards.Active(),
		ctx.Config.SSH.Host, host)
}
