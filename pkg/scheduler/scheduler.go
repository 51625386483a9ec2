// Package scheduler runs the periodic tick that drives remote mirroring and
// retention independent of any single file event: both are time-based
// concerns the watcher's per-path debounce timers don't cover.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/mirror"
	"github.com/confvault/confvault/pkg/retention"
	"github.com/confvault/confvault/pkg/settings"
)

// TickInterval is how often the scheduler re-evaluates mirror cadence and
// triggers a retention pass.
const TickInterval = time.Hour

// Scheduler evaluates mirror cadence and retention on a fixed tick.
type Scheduler struct {
	store     *settings.Store
	retention *retention.Engine
	pusher    mirror.Pusher
	branch    func() string
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	lastTick time.Time
}

// New creates a scheduler. pusher defaults to mirror.NullPusher when nil.
func New(store *settings.Store, retentionEngine *retention.Engine, pusher mirror.Pusher, branch func() string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if pusher == nil {
		pusher = mirror.NullPusher{}
	}
	return &Scheduler{store: store, retention: retentionEngine, pusher: pusher, branch: branch, logger: logger, now: time.Now}
}

// SetClock overrides the scheduler's time source; used by tests that need
// deterministic cadence-due computation.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Run blocks, ticking every TickInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick evaluates mirror cadence and retention once. Failures in either are
// logged, never propagated: a scheduler tick must never crash the process.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	s.lastTick = s.now()
	s.mu.Unlock()

	snap := s.store.Get()

	if snap.RetentionOn {
		if _, err := s.retention.Run(ctx, snap.Window()); err != nil && !errors.Is(err, core.ErrCleanupInProgress) {
			s.logger.Warn("scheduled retention run failed", "error", err)
		}
	}

	s.evaluateMirror(ctx, snap)
}

// evaluateMirror pushes when the configured cadence window has elapsed
// since the last recorded push, then atomically records the outcome.
func (s *Scheduler) evaluateMirror(ctx context.Context, snap core.Settings) {
	window, ok := cadenceWindow(snap.Mirror.Cadence)
	if !ok {
		return // manual or every-commit: not this scheduler's concern
	}
	if snap.Mirror.LastPushAt != nil && s.now().Sub(*snap.Mirror.LastPushAt) < window {
		return
	}

	result, pushErr := s.pusher.Push(ctx, s.branch())

	if err := s.store.Update(s.recordPush(s.store.Get(), result, pushErr)); err != nil {
		s.logger.Warn("failed to persist mirror push outcome", "error", err)
	}
	if pushErr != nil {
		s.logger.Warn("scheduled mirror push failed", "error", pushErr)
	}
}

func (s *Scheduler) recordPush(current core.Settings, result mirror.Result, pushErr error) core.Settings {
	now := s.now()
	current.Mirror.LastPushAt = &now
	current.Mirror.LastPushOK = pushErr == nil
	if pushErr != nil {
		current.Mirror.LastPushMessage = pushErr.Error()
	} else {
		current.Mirror.LastPushMessage = result.Message
	}
	return current
}

// cadenceWindow maps a scheduler-driven cadence to its minimum inter-push
// interval. CadenceManual and CadenceEveryCommit are not scheduler-driven.
func cadenceWindow(c core.MirrorCadence) (time.Duration, bool) {
	switch c {
	case core.CadenceHourly:
		return time.Hour, true
	case core.CadenceDaily:
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}
