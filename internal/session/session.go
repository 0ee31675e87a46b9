// Package session holds the per-user multi-step flows: restarting a service,
// killing a process and retrieving a log file.
//
// A flow moves Prompting -> AwaitingConfirmation -> Executing -> Terminal and
// never backwards; Cancel discards it. Each user has at most one session and
// beginning a new flow silently replaces the old one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"sshbot/internal/remote"
)

type Flow int

const (
	RestartService Flow = iota + 1
	KillProcess
	RetrieveLog
)

func (f Flow) String() string {
	switch f {
	case RestartService:
		return "restart_service"
	case KillProcess:
		return "kill_process"
	case RetrieveLog:
		return "retrieve_log"
	}
	return fmt.Sprintf("flow(%d)", int(f))
}

type Stage int

const (
	Prompting Stage = iota
	AwaitingConfirmation
	Executing
	Terminal
)

func (s Stage) String() string {
	switch s {
	case Prompting:
		return "prompting"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Executing:
		return "executing"
	case Terminal:
		return "terminal"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Payload is the input captured for the active flow.
type Payload struct {
	Service string
	PID     string
	Log     LogRequest
}

type Session struct {
	UserID  int64
	ChatID  int64
	Flow    Flow
	Stage   Stage
	Payload Payload

	id uint64
}

// Target is the service, pid or log path the session acts on.
func (s Session) Target() string {
	switch s.Flow {
	case RestartService:
		return s.Payload.Service
	case KillProcess:
		return s.Payload.PID
	case RetrieveLog:
		return s.Payload.Log.Path
	}
	return ""
}

var (
	ErrNoSession = errors.New("no active session")
	// ErrStale is returned for a confirmation that does not match the live
	// session's flow and stage, such as a repeated button press.
	ErrStale = errors.New("session expired")
	// ErrNotPrompting is returned for free text while no input is expected.
	ErrNotPrompting = errors.New("session is not waiting for input")
)

// ValidationError rejects user input; the session stays in Prompting.
type ValidationError struct {
	Flow   Flow
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input for %s: %s", e.Flow, e.Reason)
}

// FileSender delivers a staged log file to the chat.
type FileSender interface {
	SendLog(ctx context.Context, chatID int64, filePath, logPath string) error
}

// Outcome is the terminal result of a flow.
type Outcome struct {
	Flow   Flow
	Target string
	OK     bool
	// Output is the raw command output or failure text, shown on failure.
	Output string
}

// Reply describes the state after accepted input. Outcome is set when the
// input completed the flow.
type Reply struct {
	Session Session
	Outcome *Outcome
}

type Engine struct {
	exec    remote.Executor
	files   FileSender
	tempDir string
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
	nextID   uint64
}

func NewEngine(exec remote.Executor, files FileSender, tempDir string, logger *slog.Logger) *Engine {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		exec:     exec,
		files:    files,
		tempDir:  tempDir,
		logger:   logger.With("component", "session"),
		sessions: make(map[int64]*Session),
	}
}

// Begin starts flow for the user in Prompting, discarding any previous session.
// replaced reports whether one was discarded.
func (e *Engine) Begin(userID, chatID int64, flow Flow) (s Session, replaced bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.sessions[userID]; ok {
		replaced = true
		e.logger.Info("Session replaced", "user_id", userID, "old_flow", old.Flow, "old_stage", old.Stage, "new_flow", flow)
	}
	e.nextID++
	ns := &Session{UserID: userID, ChatID: chatID, Flow: flow, Stage: Prompting, id: e.nextID}
	e.sessions[userID] = ns
	return *ns, replaced
}

// Current returns a copy of the user's session.
func (e *Engine) Current(userID int64) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Cancel discards the user's session, reporting whether one existed.
func (e *Engine) Cancel(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[userID]
	delete(e.sessions, userID)
	return ok
}

// Active returns the number of live sessions.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Submit feeds free text to the user's session. A *ValidationError leaves the
// session in Prompting so the caller can re-prompt.
func (e *Engine) Submit(ctx context.Context, userID int64, text string) (Reply, error) {
	e.mu.Lock()
	s, ok := e.sessions[userID]
	if !ok {
		e.mu.Unlock()
		return Reply{}, ErrNoSession
	}
	if s.Stage != Prompting {
		snap := *s
		e.mu.Unlock()
		return Reply{Session: snap}, ErrNotPrompting
	}

	switch s.Flow {
	case RestartService:
		svc, err := ValidateService(text)
		if err != nil {
			snap := *s
			e.mu.Unlock()
			return Reply{Session: snap}, err
		}
		s.Payload.Service = svc
		s.Stage = AwaitingConfirmation
	case KillProcess:
		pid, err := ValidatePID(text)
		if err != nil {
			snap := *s
			e.mu.Unlock()
			return Reply{Session: snap}, err
		}
		s.Payload.PID = pid
		s.Stage = AwaitingConfirmation
	case RetrieveLog:
		req, err := ParseLogRequest(text)
		if err != nil {
			snap := *s
			e.mu.Unlock()
			return Reply{Session: snap}, err
		}
		s.Payload.Log = req
		s.Stage = Executing
	}
	snap := *s
	e.mu.Unlock()

	if snap.Stage != Executing {
		return Reply{Session: snap}, nil
	}

	out := e.RetrieveLog(ctx, snap.ChatID, snap.Payload.Log)
	e.finish(snap)
	snap.Stage = Terminal
	return Reply{Session: snap, Outcome: &out}, nil
}

// Confirm executes the staged action of flow. The move to Executing happens
// under the lock, so only one of several concurrent presses runs the command.
func (e *Engine) Confirm(ctx context.Context, userID int64, flow Flow) (Outcome, error) {
	e.mu.Lock()
	s, ok := e.sessions[userID]
	if !ok {
		e.mu.Unlock()
		return Outcome{}, ErrNoSession
	}
	if s.Flow != flow || s.Stage != AwaitingConfirmation {
		e.mu.Unlock()
		return Outcome{}, ErrStale
	}
	s.Stage = Executing
	snap := *s
	e.mu.Unlock()

	var cmd string
	switch snap.Flow {
	case RestartService:
		cmd = RestartCommand(snap.Payload.Service)
	case KillProcess:
		cmd = KillCommand(snap.Payload.PID)
	}

	res := e.exec.Execute(ctx, cmd)
	out := sentinelOutcome(snap.Flow, snap.Target(), res)
	e.logger.Info("Flow finished", "user_id", userID, "flow", snap.Flow, "target", snap.Target(), "ok", out.OK)
	e.finish(snap)
	return out, nil
}

// finish marks the session Terminal and removes it, unless it has been
// replaced meanwhile.
func (e *Engine) finish(s Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.sessions[s.UserID]; ok && cur.id == s.id {
		cur.Stage = Terminal
		delete(e.sessions, s.UserID)
	}
}
