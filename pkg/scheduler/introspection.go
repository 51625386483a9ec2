package scheduler

import (
	"time"

	"github.com/aretw0/introspection"
)

// SchedulerState exposes internal state for observability.
type SchedulerState struct {
	LastTickAt *time.Time `json:"last_tick_at,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Scheduler) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastTick.IsZero() {
		return SchedulerState{}
	}
	t := s.lastTick
	return SchedulerState{LastTickAt: &t}
}

// ComponentType implements introspection.Component.
func (s *Scheduler) ComponentType() string {
	return "scheduler"
}

var (
	_ introspection.Introspectable = (*Scheduler)(nil)
	_ introspection.Component      = (*Scheduler)(nil)
)
