package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"sshbot/internal/remote"
)

const DefaultAlertInterval = 10 * time.Minute

var metricQueries = map[Metric]string{
	CPU:  `vmstat 1 2 | tail -1 | awk '{print 100-$15}'`,
	RAM:  `free | awk 'NR==2{printf "%.1f", $3/$2*100}'`,
	Disk: `df / | awk 'NR==2{gsub("%","",$5); print $5}'`,
}

var metricLabels = map[Metric]string{
	CPU:  "🧠 CPU",
	RAM:  "💾 RAM",
	Disk: "💿 Disk (/)",
}

// Thresholds are percentages; a reading strictly above fires.
type Thresholds struct {
	CPU  float64
	RAM  float64
	Disk float64
}

func (t Thresholds) For(m Metric) float64 {
	switch m {
	case CPU:
		return t.CPU
	case RAM:
		return t.RAM
	case Disk:
		return t.Disk
	}
	return 100
}

// AlertEngine fires a notice once per upward crossing of a threshold and
// re-arms when the reading drops back to or below it.
type AlertEngine struct {
	exec           remote.Executor
	state          *State
	notifier       Notifier
	thresholds     Thresholds
	recoveryNotice bool
	logger         *slog.Logger
}

func NewAlertEngine(exec remote.Executor, state *State, notifier Notifier, thresholds Thresholds, recoveryNotice bool, logger *slog.Logger) *AlertEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertEngine{
		exec:           exec,
		state:          state,
		notifier:       notifier,
		thresholds:     thresholds,
		recoveryNotice: recoveryNotice,
		logger:         logger.With("component", "alerts"),
	}
}

// Tick checks every metric once. Nothing runs while the host is unreachable.
func (a *AlertEngine) Tick(ctx context.Context) {
	if a.state.HostUnreachable() {
		a.logger.Debug("Host unreachable, skipping threshold checks")
		return
	}
	for _, m := range Metrics {
		if ctx.Err() != nil {
			return
		}
		a.check(ctx, m)
	}
}

func (a *AlertEngine) check(ctx context.Context, m Metric) {
	value, err := a.read(ctx, m)
	if err != nil {
		a.logger.Warn("Metric check skipped", "metric", m, "err", err)
		return
	}

	threshold := a.thresholds.For(m)
	var text string
	switch a.state.observe(m, value > threshold) {
	case fired:
		a.logger.Warn("Threshold exceeded", "metric", m, "value", value, "threshold", threshold)
		text = fmt.Sprintf("🚨 *High usage*\n%s is at *%.1f%%* (threshold %.0f%%)", metricLabels[m], value, threshold)
	case cleared:
		a.logger.Info("Threshold cleared", "metric", m, "value", value)
		if !a.recoveryNotice {
			return
		}
		text = fmt.Sprintf("✅ *Back to normal*\n%s is at %.1f%%", metricLabels[m], value)
	default:
		return
	}

	if err := a.notifier.Notify(ctx, text); err != nil {
		a.logger.Error("Send alert", "metric", m, "err", err)
	}
}

func (a *AlertEngine) read(ctx context.Context, m Metric) (float64, error) {
	res := a.exec.Execute(ctx, metricQueries[m])
	if res.Failed() {
		return 0, fmt.Errorf("query: %s", res.Text())
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", res.Stdout, err)
	}
	return v, nil
}
