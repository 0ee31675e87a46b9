package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"sshbot/internal/remote"
)

// SuccessSentinel is echoed after a corrective command succeeds.
const SuccessSentinel = "OK"

const (
	DefaultLogLines = 200
	MaxLogLines     = 5000
)

var logErrorMarkers = []string{"No such file", "Permission denied", "cannot open"}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func RestartCommand(service string) string {
	return "sudo systemctl restart " + remote.ShellQuote(service) + " && echo '" + SuccessSentinel + "'"
}

func KillCommand(pid string) string {
	return "kill " + pid + " && echo '" + SuccessSentinel + "'"
}

func LogCommand(req LogRequest) string {
	return fmt.Sprintf("tail -n %d %s", req.Lines, remote.ShellQuote(req.Path))
}

func ValidateService(text string) (string, error) {
	svc := strings.TrimSpace(text)
	if svc == "" {
		return "", &ValidationError{Flow: RestartService, Input: text, Reason: "service name is empty"}
	}
	return svc, nil
}

// ValidatePID accepts ASCII decimal digits only. Surrounding whitespace is a
// non-digit too.
func ValidatePID(text string) (string, error) {
	pid := text
	if pid == "" {
		return "", &ValidationError{Flow: KillProcess, Input: text, Reason: "PID is empty"}
	}
	for _, r := range pid {
		if r < '0' || r > '9' {
			return "", &ValidationError{Flow: KillProcess, Input: text, Reason: "PID must contain digits only"}
		}
	}
	return pid, nil
}

type LogRequest struct {
	Path  string
	Lines int
}

// ParseLogRequest parses "[N] <path>". N defaults to DefaultLogLines.
func ParseLogRequest(text string) (LogRequest, error) {
	text = strings.TrimSpace(text)
	req := LogRequest{Lines: DefaultLogLines}
	if text == "" {
		return req, &ValidationError{Flow: RetrieveLog, Input: text, Reason: "log path is empty"}
	}

	first, rest, hasRest := strings.Cut(text, " ")
	if n, err := strconv.Atoi(first); err == nil {
		if !hasRest || strings.TrimSpace(rest) == "" {
			return req, &ValidationError{Flow: RetrieveLog, Input: text, Reason: "log path is empty"}
		}
		if n <= 0 || n > MaxLogLines {
			return req, &ValidationError{Flow: RetrieveLog, Input: text, Reason: fmt.Sprintf("line count must be between 1 and %d", MaxLogLines)}
		}
		req.Lines = n
		req.Path = strings.TrimSpace(rest)
		return req, nil
	}
	req.Path = text
	return req, nil
}

// RetrieveLog tails the remote file and delivers it as a document. The staged
// temporary file is removed on every path.
func (e *Engine) RetrieveLog(ctx context.Context, chatID int64, req LogRequest) Outcome {
	out := Outcome{Flow: RetrieveLog, Target: req.Path}

	res := e.exec.Execute(ctx, LogCommand(req))
	switch {
	case res.Failed():
		out.Output = res.Text()
		return out
	case res.Stdout == "":
		out.Output = "log is empty"
		return out
	case hasLogErrorMarker(res.Stdout):
		out.Output = res.Stdout
		return out
	}

	name := filepath.Join(e.tempDir, fmt.Sprintf("%s_%s.log", stagedBaseName(req.Path), uuid.NewString()))
	defer func() {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("Remove staged log", "file", name, "err", err)
		}
	}()

	if err := os.WriteFile(name, []byte(res.Stdout+"\n"), 0o600); err != nil {
		e.logger.Error("Stage log file", "file", name, "err", err)
		out.Output = "could not stage log file: " + err.Error()
		return out
	}
	if err := e.files.SendLog(ctx, chatID, name, req.Path); err != nil {
		e.logger.Error("Send log file", "path", req.Path, "err", err)
		out.Output = "could not send log file: " + err.Error()
		return out
	}

	out.OK = true
	return out
}

func sentinelOutcome(flow Flow, target string, res remote.Result) Outcome {
	out := Outcome{Flow: flow, Target: target}
	if res.Failed() {
		out.Output = res.Text()
		return out
	}
	out.OK = strings.Contains(res.Stdout, SuccessSentinel)
	if !out.OK {
		out.Output = res.Stdout
	}
	return out
}

// hasLogErrorMarker reports a tail diagnostic in place of log content.
func hasLogErrorMarker(s string) bool {
	if !strings.HasPrefix(s, "tail:") {
		return false
	}
	for _, m := range logErrorMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func stagedBaseName(path string) string {
	base := unsafeNameChars.ReplaceAllString(filepath.Base(path), "_")
	if base == "" || base == "." || base == "_" {
		return "log"
	}
	return base
}
