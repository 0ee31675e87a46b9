// Package scheduler runs the bot's periodic tasks on a single cron instance.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner. Every job recovers from panics and is skipped
// while its previous run is still in progress.
type Scheduler struct {
	cron   *cron.Cron
	logger cron.Logger
}

// New creates a stopped scheduler logging through logger.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	l := slogAdapter{logger: logger.With("component", "scheduler")}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l))),
		logger: l,
	}
}

// Every schedules fn at a fixed interval, rounded down to whole seconds.
func (s *Scheduler) Every(interval time.Duration, fn func()) (cron.EntryID, error) {
	if interval < time.Second {
		return 0, fmt.Errorf("interval %s below one second", interval)
	}
	job := cron.NewChain(cron.SkipIfStillRunning(s.logger)).Then(cron.FuncJob(fn))
	return s.cron.Schedule(cron.Every(interval), job), nil
}

// Remove unschedules an entry. Unknown ids are ignored.
func (s *Scheduler) Remove(id cron.EntryID) {
	s.cron.Remove(id)
}

// Len reports the number of scheduled entries.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
