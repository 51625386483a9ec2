// Package platform wires the Repository Manager, Commit Engine, Retention
// Engine, Restore Engine, Settings Store, Watcher, and Scheduler into one
// supervised process, with the watcher and scheduler each running as a
// goroutine behind a supervisor.Spec.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/confvault/confvault/pkg/commitengine"
	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/mirror"
	"github.com/confvault/confvault/pkg/reloadhook"
	"github.com/confvault/confvault/pkg/reposvc"
	"github.com/confvault/confvault/pkg/restore"
	"github.com/confvault/confvault/pkg/retention"
	"github.com/confvault/confvault/pkg/scheduler"
	"github.com/confvault/confvault/pkg/settings"
	"github.com/confvault/confvault/pkg/watcher"
)

// Service is one running confvault instance bound to a single config root.
type Service struct {
	Manager   *reposvc.Manager
	Commit    *commitengine.Engine
	Retention *retention.Engine
	Restore   *restore.Engine
	Settings  *settings.Store

	watcher *watcher.Watcher
	sched   *scheduler.Scheduler
	logger  *slog.Logger

	watcherSupervisor   *supervisor.Supervisor
	schedulerSupervisor *supervisor.Supervisor
}

// New wires a Service for root without starting anything.
func New(root string, opts ...Option) (*Service, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.pusher == nil {
		o.pusher = mirror.NullPusher{}
	}
	if o.hooks == nil {
		o.hooks = reloadhook.NoopHooks{}
	}

	store, err := settings.Open(root)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}

	extensions := o.extensions
	if len(extensions) == 0 {
		extensions = reposvc.DefaultExtensions
	}
	mgr := reposvc.New(root, extensions, o.hiddenFiles, o.logger)

	retentionEngine := retention.New(mgr.Driver, mgr.Config, o.logger)
	restoreEngine := restore.New(mgr.Driver, mgr.Config, o.logger, o.hooks)

	branch := func() string { return o.branch }

	commitEngine := commitengine.New(mgr.Driver, mgr.Config, o.logger, commitengine.Options{
		RetentionEnabled: func() bool { return store.Get().RetentionOn },
		TriggerRetention: func(ctx context.Context) {
			if _, err := retentionEngine.Run(ctx, store.Get().Window()); err != nil {
				o.logger.Warn("commit-triggered retention run failed", "error", err)
			}
		},
		MirrorCadence: func() core.MirrorCadence { return store.Get().Mirror.Cadence },
		Pusher:        o.pusher,
		Branch:        branch,
	})

	debounce := time.Duration(store.Get().DebounceSeconds) * time.Second
	w := watcher.New(root, mgr.Config, commitEngine.Trigger, debounce, o.logger)
	sched := scheduler.New(store, retentionEngine, o.pusher, branch, o.logger)

	return &Service{
		Manager:   mgr,
		Commit:    commitEngine,
		Retention: retentionEngine,
		Restore:   restoreEngine,
		Settings:  store,
		watcher:   w,
		sched:     sched,
		logger:    o.logger,
	}, nil
}

// Start runs the Repository Manager's startup sequence, then launches the
// Watcher and Scheduler as supervised goroutines that restart on failure.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Manager.Start(ctx); err != nil {
		return fmt.Errorf("repository manager startup: %w", err)
	}

	backoff := supervisor.Backoff{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		ResetDuration:   30 * time.Second,
		MaxRestarts:     10,
		MaxDuration:     time.Minute,
	}

	watcherSpec := supervisor.Spec{
		Name:          "confvault-watcher",
		Type:          string(worker.TypeGoroutine),
		Factory:       func() (worker.Worker, error) { return newWatcherWorker(s.watcher), nil },
		Backoff:       backoff,
		RestartPolicy: supervisor.RestartOnFailure,
	}
	s.watcherSupervisor = supervisor.New("confvault-watcher-supervisor", supervisor.StrategyOneForOne, watcherSpec)
	if err := s.watcherSupervisor.Start(ctx); err != nil {
		return fmt.Errorf("start watcher supervisor: %w", err)
	}

	schedulerSpec := supervisor.Spec{
		Name:          "confvault-scheduler",
		Type:          string(worker.TypeGoroutine),
		Factory:       func() (worker.Worker, error) { return newSchedulerWorker(s.sched), nil },
		Backoff:       backoff,
		RestartPolicy: supervisor.RestartOnFailure,
	}
	s.schedulerSupervisor = supervisor.New("confvault-scheduler-supervisor", supervisor.StrategyOneForOne, schedulerSpec)
	if err := s.schedulerSupervisor.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler supervisor: %w", err)
	}

	return nil
}

// Wait blocks until both supervised goroutines have stopped, logging (but
// not propagating) whichever error caused the stop.
func (s *Service) Wait() {
	if s.watcherSupervisor != nil {
		if err := <-s.watcherSupervisor.Wait(); err != nil {
			s.logger.Error("watcher supervisor stopped", "error", err)
		}
	}
	if s.schedulerSupervisor != nil {
		if err := <-s.schedulerSupervisor.Wait(); err != nil {
			s.logger.Error("scheduler supervisor stopped", "error", err)
		}
	}
}

// Stop requests both supervised goroutines to shut down.
func (s *Service) Stop(ctx context.Context) error {
	var firstErr error
	if s.watcherSupervisor != nil {
		if err := s.watcherSupervisor.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.schedulerSupervisor != nil {
		if err := s.schedulerSupervisor.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ServiceState exposes internal state for observability.
type ServiceState struct {
	Root  string `json:"root"`
	Ready bool   `json:"ready"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	return ServiceState{
		Root:  s.Manager.Root,
		Ready: s.Manager.Ready(),
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var (
	_ introspection.Introspectable = (*Service)(nil)
	_ introspection.Component      = (*Service)(nil)
)
