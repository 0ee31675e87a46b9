package main

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	persistentLog *lumberjack.Logger
	loggingMu     sync.Mutex
)

// newLogFile returns the size-rotated log file writer. Backups are numbered by
// timestamp and the oldest beyond LOG_BACKUPS are removed.
func newLogFile(cfg *Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogBackups,
		LocalTime:  true,
	}
}

// setupLogger installs the default logger writing to stdout and, when the file
// can be opened, to a size-rotated log file.
func setupLogger(cfg *Config) *slog.Logger {
	loggingMu.Lock()
	defer loggingMu.Unlock()

	closeLoggerLocked()

	var out io.Writer = os.Stdout
	lf := newLogFile(cfg)
	// An empty write opens the file now, so a bad path shows up at startup.
	_, err := lf.Write(nil)
	if err == nil {
		persistentLog = lf
		out = io.MultiWriter(os.Stdout, lf)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler).With("app", "sshbot")
	slog.SetDefault(logger)

	if err != nil {
		slog.Error("Persistent logging disabled: failed to open log file", "file", cfg.LogFile, "err", err)
	} else {
		slog.Info("Persistent logging enabled", "file", cfg.LogFile, "max_size_mb", cfg.LogMaxSizeMB, "backups", cfg.LogBackups)
	}
	return logger
}

func closeLogger() {
	loggingMu.Lock()
	defer loggingMu.Unlock()
	closeLoggerLocked()
}

func closeLoggerLocked() {
	if persistentLog == nil {
		return
	}
	_ = persistentLog.Close()
	persistentLog = nil
}
