// Package auth restricts every bot entry point to the single configured admin.
package auth

import (
	"context"
	"log/slog"
)

// DeniedText is shown to callers who are not the admin.
const DeniedText = "⛔ Access denied."

// Caller identifies who triggered an update and where it arrived.
// CallbackID is set only for button presses.
type Caller struct {
	UserID     int64
	ChatID     int64
	CallbackID string
}

// Denier delivers the denial notice on the channel the request came from.
type Denier interface {
	DenyCallback(ctx context.Context, callbackID string) error
	DenyMessage(ctx context.Context, chatID int64) error
}

type Gate struct {
	adminID int64
	denier  Denier
	logger  *slog.Logger
}

func NewGate(adminID int64, denier Denier, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{adminID: adminID, denier: denier, logger: logger.With("component", "auth")}
}

// Allowed reports whether userID is the admin.
func (g *Gate) Allowed(userID int64) bool {
	return g.adminID != 0 && userID == g.adminID
}

// Check admits the admin. Anyone else gets one denial notice and a WARN entry.
func (g *Gate) Check(ctx context.Context, c Caller) bool {
	if g.Allowed(c.UserID) {
		return true
	}
	g.logger.Warn("Unauthorized access attempt", "user_id", c.UserID, "chat_id", c.ChatID)

	var err error
	if c.CallbackID != "" {
		err = g.denier.DenyCallback(ctx, c.CallbackID)
	} else {
		err = g.denier.DenyMessage(ctx, c.ChatID)
	}
	if err != nil {
		g.logger.Error("Send denial notice", "user_id", c.UserID, "err", err)
	}
	return false
}

// Wrap returns next guarded by the gate. identify extracts the caller from the
// handler's input; next receives the same arguments unchanged.
func Wrap[T any](g *Gate, identify func(T) Caller, next func(context.Context, T)) func(context.Context, T) {
	return func(ctx context.Context, in T) {
		if !g.Check(ctx, identify(in)) {
			return
		}
		next(ctx, in)
	}
}
