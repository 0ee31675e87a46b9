package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sshbot/internal/format"
	"sshbot/internal/remote"
)

const DefaultAvailabilityInterval = 2 * time.Minute

// Availability notifies once when the host stops answering and once when it
// comes back. Repeated failures or successes are silent.
type Availability struct {
	pinger   remote.Pinger
	state    *State
	notifier Notifier
	host     string
	now      func() time.Time
	logger   *slog.Logger
}

func NewAvailability(pinger remote.Pinger, state *State, notifier Notifier, host string, logger *slog.Logger) *Availability {
	if logger == nil {
		logger = slog.Default()
	}
	return &Availability{
		pinger:   pinger,
		state:    state,
		notifier: notifier,
		host:     host,
		now:      time.Now,
		logger:   logger.With("component", "availability"),
	}
}

func (a *Availability) Tick(ctx context.Context) {
	err := a.pinger.Ping(ctx)
	if ctx.Err() != nil {
		return
	}

	if err == nil {
		since, wasDown := a.state.markUp()
		if !wasDown {
			return
		}
		downFor := a.now().Sub(since)
		a.logger.Info("Host reachable again", "host", a.host, "down_for", downFor)
		a.send(ctx, fmt.Sprintf("✅ *Server is back online*\n`%s` was unreachable for %s.", a.host, format.FormatDuration(downFor)))
		return
	}

	if !a.state.markDown(a.now()) {
		a.logger.Debug("Host still unreachable", "host", a.host, "err", err)
		return
	}
	a.logger.Warn("Host unreachable", "host", a.host, "err", err)
	a.send(ctx, fmt.Sprintf("🔴 *Server unreachable*\nCould not connect to `%s`:\n%s", a.host, err))
}

func (a *Availability) send(ctx context.Context, text string) {
	if err := a.notifier.Notify(ctx, text); err != nil {
		a.logger.Error("Send availability notice", "err", err)
	}
}
