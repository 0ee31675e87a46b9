// Package remotetest provides a scripted remote.Executor for tests.
package remotetest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"sshbot/internal/remote"
)

type rule struct {
	match  string
	result remote.Result
}

// Executor answers commands by substring match. Later rules win, so a test can
// change a reading between ticks by calling On again.
type Executor struct {
	mu       sync.Mutex
	rules    []rule
	fallback remote.Result
	pingErr  error
	commands []string
	pings    int
}

func New() *Executor {
	return &Executor{}
}

// On scripts the result for any command containing match.
func (e *Executor) On(match string, res remote.Result) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule{match: match, result: res})
	return e
}

// Default sets the result for commands no rule matches.
func (e *Executor) Default(res remote.Result) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallback = res
	return e
}

// FailPing makes Ping return err; nil restores reachability.
func (e *Executor) FailPing(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pingErr = err
}

func (e *Executor) Execute(ctx context.Context, command string) remote.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	if err := ctx.Err(); err != nil {
		return remote.Result{Err: err}
	}
	for i := len(e.rules) - 1; i >= 0; i-- {
		if strings.Contains(command, e.rules[i].match) {
			return e.rules[i].result
		}
	}
	return e.fallback
}

func (e *Executor) Ping(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pings++
	return e.pingErr
}

// Commands returns every command executed so far, in order.
func (e *Executor) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// Count returns how many executed commands contained match.
func (e *Executor) Count(match string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.commands {
		if strings.Contains(c, match) {
			n++
		}
	}
	return n
}

func (e *Executor) Pings() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pings
}

// OK is a successful result with the given stdout.
func OK(stdout string) remote.Result { return remote.Result{Stdout: stdout} }

// Stderr is a command failure with the given stderr.
func Stderr(stderr string) remote.Result { return remote.Result{Stderr: stderr} }

// Fault is a bridge failure (connect, auth, timeout).
func Fault(msg string) remote.Result { return remote.Result{Err: errors.New(msg)} }
