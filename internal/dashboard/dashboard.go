// Package dashboard keeps one self-refreshing status message per user.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sshbot/internal/format"
	"sshbot/internal/remote"
)

const DefaultInterval = 10 * time.Second

// PlaceholderText replaces the originating message until the first refresh.
const PlaceholderText = "⏳ Starting dashboard..."

const (
	ramQuery  = `free -b | awk 'NR==2{printf "%.1f", $3/$2*100}'`
	loadQuery = `uptime | awk -F'load average: ' '{print $2}'`
	diskQuery = `df -h / | awk 'NR==2{print $5}'`
)

// ErrNotModified is returned by an Editor when the new text equals the old.
var ErrNotModified = errors.New("message is not modified")

// Editor edits and deletes the dashboard message. withClose attaches the
// Close button.
type Editor interface {
	EditDashboard(ctx context.Context, chatID int64, messageID int, text string, withClose bool) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

type Scheduler interface {
	Every(interval time.Duration, fn func()) (cron.EntryID, error)
	Remove(id cron.EntryID)
}

type subscription struct {
	userID    int64
	chatID    int64
	messageID int
	entry     cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
	busy   sync.Mutex
}

type Manager struct {
	exec     remote.Executor
	editor   Editor
	sched    Scheduler
	interval time.Duration
	base     context.Context
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[int64]*subscription
}

// NewManager creates a manager whose subscriptions end when ctx is done.
func NewManager(ctx context.Context, exec remote.Executor, editor Editor, sched Scheduler, interval time.Duration, logger *slog.Logger) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		exec:     exec,
		editor:   editor,
		sched:    sched,
		interval: interval,
		base:     ctx,
		logger:   logger.With("component", "dashboard"),
		subs:     make(map[int64]*subscription),
	}
}

// Start binds a dashboard to messageID, replacing the user's previous one.
func (m *Manager) Start(ctx context.Context, userID, chatID int64, messageID int) error {
	if old := m.detach(userID); old != nil {
		m.release(old)
	}

	if err := m.editor.EditDashboard(ctx, chatID, messageID, PlaceholderText, false); err != nil && !errors.Is(err, ErrNotModified) {
		return fmt.Errorf("show dashboard placeholder: %w", err)
	}

	subCtx, cancel := context.WithCancel(m.base)
	sub := &subscription{userID: userID, chatID: chatID, messageID: messageID, ctx: subCtx, cancel: cancel}

	m.mu.Lock()
	if old, ok := m.subs[userID]; ok {
		// A concurrent Start won the race; the newest press wins.
		delete(m.subs, userID)
		defer m.release(old)
	}
	id, err := m.sched.Every(m.interval, func() { m.refresh(sub) })
	if err != nil {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("schedule dashboard: %w", err)
	}
	sub.entry = id
	m.subs[userID] = sub
	m.mu.Unlock()

	m.logger.Info("Dashboard started", "user_id", userID, "message_id", messageID)
	m.refresh(sub)
	return nil
}

// Stop cancels the user's dashboard and deletes messageID.
func (m *Manager) Stop(ctx context.Context, userID, chatID int64, messageID int) error {
	if sub := m.detach(userID); sub != nil {
		m.release(sub)
		m.logger.Info("Dashboard stopped", "user_id", userID)
	}
	return m.editor.DeleteMessage(ctx, chatID, messageID)
}

// Active returns the number of live subscriptions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Manager) detach(userID int64) *subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[userID]
	if !ok {
		return nil
	}
	delete(m.subs, userID)
	return sub
}

func (m *Manager) release(sub *subscription) {
	sub.cancel()
	m.sched.Remove(sub.entry)
}

// drop ends sub after a fatal failure, unless it was already replaced.
func (m *Manager) drop(sub *subscription) {
	m.mu.Lock()
	if cur, ok := m.subs[sub.userID]; ok && cur == sub {
		delete(m.subs, sub.userID)
	}
	m.mu.Unlock()
	m.release(sub)
}

func (m *Manager) refresh(sub *subscription) {
	if !sub.busy.TryLock() {
		return
	}
	defer sub.busy.Unlock()

	if sub.ctx.Err() != nil {
		return
	}

	snap, err := Query(sub.ctx, m.exec)
	if err != nil {
		if sub.ctx.Err() == nil {
			m.logger.Error("Dashboard query failed, cancelling", "user_id", sub.userID, "err", err)
			m.drop(sub)
		}
		return
	}
	if sub.ctx.Err() != nil {
		return
	}

	err = m.editor.EditDashboard(sub.ctx, sub.chatID, sub.messageID, Render(snap, m.interval), true)
	if err == nil || errors.Is(err, ErrNotModified) {
		return
	}
	m.logger.Error("Dashboard update failed, cancelling", "user_id", sub.userID, "err", err)
	m.drop(sub)
}

// Snapshot is one reading of the managed host.
type Snapshot struct {
	RAMPercent float64
	Load       string
	Disk       string
}

// Query reads memory, load and root filesystem usage.
func Query(ctx context.Context, exec remote.Executor) (Snapshot, error) {
	var snap Snapshot

	res := exec.Execute(ctx, ramQuery)
	if res.Failed() {
		return snap, fmt.Errorf("memory query: %s", res.Text())
	}
	ram, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return snap, fmt.Errorf("parse memory usage %q: %w", res.Stdout, err)
	}
	snap.RAMPercent = ram

	res = exec.Execute(ctx, loadQuery)
	if res.Failed() {
		return snap, fmt.Errorf("load query: %s", res.Text())
	}
	snap.Load = strings.TrimSpace(res.Stdout)

	res = exec.Execute(ctx, diskQuery)
	if res.Failed() {
		return snap, fmt.Errorf("disk query: %s", res.Text())
	}
	snap.Disk = strings.TrimSpace(res.Stdout)

	return snap, nil
}

// Render formats a snapshot as Markdown.
func Render(s Snapshot, interval time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Dashboard* (refreshes every %s)\n\n", format.FormatDuration(interval))
	fmt.Fprintf(&b, "🧠 *RAM:* `%s` %.1f%%\n", format.Gauge(s.RAMPercent, format.GaugeWidth), s.RAMPercent)
	fmt.Fprintf(&b, "💻 *CPU load:* `%s`\n", s.Load)
	fmt.Fprintf(&b, "💾 *Disk (/):* `%s` used", s.Disk)
	return b.String()
}
