// Package monitor watches the managed host in the background: threshold
// alerts for cpu, ram and disk usage, and an availability latch.
package monitor

import (
	"context"
	"sync"
	"time"
)

type Metric string

const (
	CPU  Metric = "cpu"
	RAM  Metric = "ram"
	Disk Metric = "disk"
)

// Metrics lists the metrics checked on every alert tick, in order.
var Metrics = []Metric{CPU, RAM, Disk}

// Notifier delivers an alert to the admin.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// State is the process-wide alert state. It starts all clear.
type State struct {
	mu              sync.Mutex
	armed           map[Metric]bool
	hostUnreachable bool
	downSince       time.Time
}

func NewState() *State {
	return &State{armed: make(map[Metric]bool)}
}

func (s *State) Armed(m Metric) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed[m]
}

func (s *State) HostUnreachable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostUnreachable
}

// DownSince returns when the host became unreachable, or zero.
func (s *State) DownSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downSince
}

type edge int

const (
	noEdge edge = iota
	fired
	cleared
	suspended
)

// observe applies one reading to the metric's armed flag. The latch is
// checked under the same lock, so a host going down mid-tick suspends it.
func (s *State) observe(m Metric, over bool) edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hostUnreachable {
		return suspended
	}
	switch {
	case over && !s.armed[m]:
		s.armed[m] = true
		return fired
	case !over && s.armed[m]:
		s.armed[m] = false
		return cleared
	}
	return noEdge
}

// markDown sets the latch, reporting whether it was clear.
func (s *State) markDown(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hostUnreachable {
		return false
	}
	s.hostUnreachable = true
	s.downSince = now
	return true
}

// markUp clears the latch, returning when the outage began if it was set.
func (s *State) markUp() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hostUnreachable {
		return time.Time{}, false
	}
	since := s.downSince
	s.hostUnreachable = false
	s.downSince = time.Time{}
	return since, true
}
