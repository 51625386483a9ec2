package platform

import (
	"context"
	"fmt"

	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/confvault/confvault/pkg/scheduler"
	"github.com/confvault/confvault/pkg/watcher"
)

// watcherWorker adapts watcher.Watcher to worker.Worker so the Repository
// Manager's filesystem observer restarts under supervision.
type watcherWorker struct {
	*worker.BaseWorker
	w      *watcher.Watcher
	cancel context.CancelFunc
}

func newWatcherWorker(w *watcher.Watcher) *watcherWorker {
	return &watcherWorker{BaseWorker: worker.NewBaseWorker("confvault-watcher"), w: w}
}

func (w *watcherWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.w.Run)
}

func (w *watcherWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *watcherWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{worker.MetadataType: string(worker.TypeGoroutine)}
	})
}

// schedulerWorker adapts scheduler.Scheduler to worker.Worker.
type schedulerWorker struct {
	*worker.BaseWorker
	s      *scheduler.Scheduler
	cancel context.CancelFunc
}

func newSchedulerWorker(s *scheduler.Scheduler) *schedulerWorker {
	return &schedulerWorker{BaseWorker: worker.NewBaseWorker("confvault-scheduler"), s: s}
}

func (w *schedulerWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("scheduler already started (status: %s)", status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.s.Run)
}

func (w *schedulerWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *schedulerWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{worker.MetadataType: string(worker.TypeGoroutine)}
	})
}
