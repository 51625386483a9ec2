// Package commitengine executes one commit intent end to end: stage,
// filter, compose the message, commit, and run post-commit hooks.
package commitengine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/gitdriver"
	"github.com/confvault/confvault/pkg/ignorefile"
	"github.com/confvault/confvault/pkg/message"
	"github.com/confvault/confvault/pkg/mirror"
)

// RetentionTrigger starts a retention run; commit engine hooks call it
// without waiting for completion semantics beyond logging failure.
type RetentionTrigger func(ctx context.Context)

// Engine executes commit intents against a single repository.
type Engine struct {
	driver   *gitdriver.Driver
	configFn func() ignorefile.Config
	logger   *slog.Logger

	retentionEnabled func() bool
	triggerRetention RetentionTrigger

	mirrorCadence func() core.MirrorCadence
	pusher        mirror.Pusher
	branch        func() string
}

// Options configures optional post-commit hooks. A nil field disables the
// corresponding hook.
type Options struct {
	RetentionEnabled func() bool
	TriggerRetention RetentionTrigger
	MirrorCadence    func() core.MirrorCadence
	Pusher           mirror.Pusher
	Branch           func() string
}

// New creates a commit engine bound to driver, using configFn to fetch the
// current tracked-file policy for its defence-in-depth filter.
func New(driver *gitdriver.Driver, configFn func() ignorefile.Config, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		driver:           driver,
		configFn:         configFn,
		logger:           logger,
		retentionEnabled: opts.RetentionEnabled,
		triggerRetention: opts.TriggerRetention,
		mirrorCadence:    opts.MirrorCadence,
		pusher:           opts.Pusher,
		branch:           opts.Branch,
	}
	return e
}

// Trigger runs the full commit procedure for a settled commit intent: reset
// the index, stage exactly the intent's paths, then the usual status →
// filter → message → commit sequence under one acquisition of the driver's
// write lock. Post-commit hooks run after that lock is released, since
// the retention hook acquires the same driver lock itself.
func (e *Engine) Trigger(ctx context.Context, intent *core.CommitIntent) {
	committed, err := e.stageAndCommit(ctx, func() error {
		if err := e.driver.ResetHead(ctx, ""); err != nil {
			return err
		}
		return e.driver.Add(ctx, intent.PathList()...)
	})
	if err != nil {
		e.logger.Error("commit engine run failed", "intent", intent.IntentID, "error", err)
		return
	}
	if committed {
		e.runPostCommitHooks(ctx)
	}
}

// CommitAll stages the entire tree and runs the same procedure; used by the
// manual commit-all operation.
// Like Trigger, post-commit hooks run after the driver lock is released.
func (e *Engine) CommitAll(ctx context.Context) error {
	committed, err := e.stageAndCommit(ctx, func() error {
		return e.driver.Add(ctx, ".")
	})
	if err != nil {
		return err
	}
	if committed {
		e.runPostCommitHooks(ctx)
	}
	return nil
}

// stageAndCommit acquires the driver's write lock, runs stage to populate
// the index, then filters and commits. The lock is released before this
// function returns, so callers must run any hook that itself touches the
// driver afterward, not inside stage.
func (e *Engine) stageAndCommit(ctx context.Context, stage func() error) (committed bool, err error) {
	unlock := e.driver.Lock()
	defer unlock()

	if err := stage(); err != nil {
		return false, err
	}
	return e.run(ctx)
}

// run assumes the driver's write lock is already held and the desired paths
// have already been staged by the caller. It reports whether a commit was
// made, but never runs post-commit hooks itself — those must run after the
// lock this function was called under has been released.
func (e *Engine) run(ctx context.Context) (bool, error) {
	status, err := e.driver.Status(ctx)
	if err != nil {
		return false, err
	}
	if status.Clean {
		e.logger.Debug("commit engine: nothing staged, dropping intent")
		return false, nil
	}

	cfg := e.configFn()
	var staged []string
	for _, f := range status.Files {
		if f.IndexStatus == ' ' || f.IndexStatus == '?' {
			continue
		}
		staged = append(staged, f.Path)
	}

	filtered := staged[:0:0]
	for _, p := range staged {
		if ignorefile.ExtensionAllowed(cfg, p) && !ignorefile.InNestedRepo(cfg, p) {
			filtered = append(filtered, p)
		}
	}

	if len(filtered) == 0 {
		e.logger.Debug("commit engine: filtered staged set empty, resetting index")
		return false, e.driver.ResetHead(ctx, "")
	}

	msg := message.Snapshot(filtered)
	if err := e.driver.Commit(ctx, msg); err != nil {
		if errors.Is(err, core.ErrNothingToCommit) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// runPostCommitHooks never returns an error: every failure is logged and
// non-fatal, matching the documented disposition for post-commit hooks. It
// must be called without the driver's write lock held.
func (e *Engine) runPostCommitHooks(ctx context.Context) {
	if e.retentionEnabled != nil && e.retentionEnabled() && e.triggerRetention != nil {
		e.triggerRetention(ctx)
	}

	if e.mirrorCadence == nil || e.pusher == nil || e.branch == nil {
		return
	}
	if e.mirrorCadence() != core.CadenceEveryCommit {
		return
	}
	if _, err := e.pusher.Push(ctx, e.branch()); err != nil {
		e.logger.Warn("mirror push after commit failed", "error", err)
	}
}
