package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sshbot/internal/auth"
	"sshbot/internal/dashboard"
	"sshbot/internal/monitor"
	"sshbot/internal/remote"
	"sshbot/internal/scheduler"
	"sshbot/internal/session"
)

// RemoteHost is the managed host as seen by the bot.
type RemoteHost interface {
	remote.Executor
	remote.Pinger
}

// AppContext holds the application dependencies and state.
type AppContext struct {
	Config       *Config
	Remote       RemoteHost
	Gate         *auth.Gate
	Sessions     *session.Engine
	Dashboards   *dashboard.Manager
	Monitor      *monitor.State
	Alerts       *monitor.AlertEngine
	Availability *monitor.Availability
	Scheduler    *scheduler.Scheduler
	Bot          *BotContext
}

// BotContext holds bot process state.
type BotContext struct {
	mu        sync.Mutex
	StartTime time.Time
}

func (b *BotContext) Uptime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Since(b.StartTime)
}

// InitApp wires the components. Dashboards and scheduled checks stop when
// runCtx is done.
func InitApp(runCtx context.Context, cfg *Config, bot BotAPI, host RemoteHost, logger *slog.Logger) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	transport := newTelegramTransport(bot, cfg.AdminUserID)
	sched := scheduler.New(logger)
	state := monitor.NewState()

	return &AppContext{
		Config:       cfg,
		Remote:       host,
		Gate:         auth.NewGate(cfg.AdminUserID, transport, logger),
		Sessions:     session.NewEngine(host, transport, cfg.LogTempDir, logger),
		Dashboards:   dashboard.NewManager(runCtx, host, transport, sched, cfg.DashboardInterval, logger),
		Monitor:      state,
		Alerts:       monitor.NewAlertEngine(host, state, transport, cfg.Thresholds(), cfg.AlertRecoveryNotify, logger),
		Availability: monitor.NewAvailability(host, state, transport, cfg.SSH.Host, logger),
		Scheduler:    sched,
		Bot:          &BotContext{StartTime: time.Now()},
	}
}

// scheduleMonitors registers the availability and threshold checks.
func scheduleMonitors(runCtx context.Context, app *AppContext) error {
	if _, err := app.Scheduler.Every(app.Config.AvailabilityInterval, func() { app.Availability.Tick(runCtx) }); err != nil {
		return fmt.Errorf("schedule availability check: %w", err)
	}
	if _, err := app.Scheduler.Every(app.Config.AlertInterval, func() { app.Alerts.Tick(runCtx) }); err != nil {
		return fmt.Errorf("schedule threshold alerts: %w", err)
	}
	slog.Info("Background monitors scheduled",
		"availability_every", app.Config.AvailabilityInterval,
		"alerts_every", app.Config.AlertInterval,
		"thresholds", fmt.Sprintf("cpu=%.0f ram=%.0f disk=%.0f", app.Config.CPUThreshold, app.Config.RAMThreshold, app.Config.DiskThreshold))
	return nil
}

// startMonitors schedules the checks, runs the first availability check
// before the scheduler starts, then starts it. Each check only ever runs after
// its previous run has finished.
func startMonitors(runCtx context.Context, app *AppContext) error {
	if err := scheduleMonitors(runCtx, app); err != nil {
		return err
	}
	app.Availability.Tick(runCtx)
	app.Scheduler.Start()
	return nil
}
