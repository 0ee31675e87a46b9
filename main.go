package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sshbot/internal/remote"
)

func envFilePath() string {
	if p := os.Getenv("SSHBOT_ENV_FILE"); p != "" {
		return p
	}
	return ".env"
}

func main() {
	cfg, err := loadConfig(envFilePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	if err := run(cfg, logger); err != nil {
		slog.Error("Bot stopped", "err", err)
		closeLogger()
		os.Exit(1)
	}
	closeLogger()
}

func run(cfg *Config, logger *slog.Logger) error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC", "err", r, "stack", string(debug.Stack()))
		}
	}()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("start telegram bot: %w", err)
	}
	slog.Info("✅ Bot started", "username", bot.Self.UserName, "host", cfg.SSH.Host)

	host := remote.NewClient(cfg.Remote(), logger)
	app := InitApp(runCtx, cfg, bot, host, logger)
	if err := startMonitors(runCtx, app); err != nil {
		return err
	}
	defer app.Scheduler.Stop()

	router := NewRouter(app, bot)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-runCtx.Done():
			slog.Info("Shutting down...")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				router.HandleUpdate(runCtx, update)
			}()
		}
	}
}
