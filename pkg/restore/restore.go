// Package restore performs per-file, per-commit, and hard-reset restores.
// A single-file restore mutates the working tree and leaves the resulting
// commit to the watcher/commit-engine feedback loop. A commit restore
// commits directly, so every restored path lands in one combined snapshot.
// A hard reset also commits directly, since it must write a "restored to"
// marker commit and optionally a pre-reset safety snapshot.
package restore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/gitdriver"
	"github.com/confvault/confvault/pkg/ignorefile"
	"github.com/confvault/confvault/pkg/message"
	"github.com/confvault/confvault/pkg/reloadhook"
)

const (
	automationsFile = "automations.yaml"
	scriptsFile     = "scripts.yaml"
)

// Engine restores working-tree content from history against a single
// repository.
type Engine struct {
	driver   *gitdriver.Driver
	configFn func() ignorefile.Config
	logger   *slog.Logger
	hooks    reloadhook.Hooks
}

// New creates a restore engine bound to driver. hooks defaults to
// reloadhook.NoopHooks when nil.
func New(driver *gitdriver.Driver, configFn func() ignorefile.Config, logger *slog.Logger, hooks reloadhook.Hooks) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if hooks == nil {
		hooks = reloadhook.NoopHooks{}
	}
	return &Engine{driver: driver, configFn: configFn, logger: logger, hooks: hooks}
}

// RestoreFile checks out path as it existed at commit. The resulting
// working-tree change is left for the watcher to observe and commit under
// its own name-equals-path message; this call does not commit.
func (e *Engine) RestoreFile(ctx context.Context, commit, path string) error {
	unlock := e.driver.Lock()
	defer unlock()

	if err := e.driver.Checkout(ctx, commit, path); err != nil {
		return fmt.Errorf("restore file %s@%s: %w", path, commit, err)
	}
	e.fireHookFor(ctx, path)
	return nil
}

// RestoreCommit restores the set of paths sourceCommit touched (relative to
// its parent) to their content at targetCommit, filtered by the tracked
// path policy, and produces one combined snapshot.
func (e *Engine) RestoreCommit(ctx context.Context, sourceCommit, targetCommit string) ([]string, error) {
	unlock := e.driver.Lock()
	defer unlock()

	paths, err := e.changedPaths(ctx, sourceCommit)
	if err != nil {
		return nil, fmt.Errorf("determine changed paths for %s: %w", sourceCommit, err)
	}

	cfg := e.configFn()
	var restored []string
	for _, cp := range paths {
		if !ignorefile.ExtensionAllowed(cfg, cp.Path) || ignorefile.InNestedRepo(cfg, cp.Path) {
			continue
		}
		if err := e.driver.Checkout(ctx, targetCommit, cp.Path); err != nil {
			// Absent at targetCommit too: the restore removes it.
			full := filepath.Join(e.driver.WorkDir(), cp.Path)
			if rmErr := os.Remove(full); rmErr != nil && !os.IsNotExist(rmErr) {
				return restored, fmt.Errorf("restore %s to %s: %w", cp.Path, targetCommit, err)
			}
		}
		restored = append(restored, cp.Path)
	}

	if len(restored) == 0 {
		return restored, nil
	}

	if err := e.driver.Add(ctx, "."); err != nil {
		return restored, fmt.Errorf("stage restored paths: %w", err)
	}
	if err := e.driver.Commit(ctx, message.Snapshot(restored)); err != nil && !errors.Is(err, core.ErrNothingToCommit) {
		return restored, fmt.Errorf("commit restored commit: %w", err)
	}

	for _, p := range restored {
		e.fireHookFor(ctx, p)
	}
	return restored, nil
}

// changedPaths determines the path set sourceCommit touched relative to its
// parent, falling back to the full tree (as all-added) when that list comes
// back empty.
func (e *Engine) changedPaths(ctx context.Context, sourceCommit string) ([]core.ChangedPath, error) {
	changed, err := e.driver.CommitDetails(ctx, sourceCommit)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		return changed, nil
	}

	tree, err := e.driver.LsTree(ctx, sourceCommit)
	if err != nil {
		return nil, err
	}
	fallback := make([]core.ChangedPath, 0, len(tree))
	for _, p := range tree {
		fallback = append(fallback, core.ChangedPath{Path: p, Status: "A"})
	}
	return fallback, nil
}

// HardReset rewrites every tracked path to its content at commit and
// advances the branch forward with a new commit; it never alters branch
// shape. If createBackup is true and the working tree is dirty, a safety
// snapshot is committed first.
func (e *Engine) HardReset(ctx context.Context, commit string, createBackup bool) error {
	unlock := e.driver.Lock()
	defer unlock()

	target, err := e.driver.ShowCommit(ctx, commit)
	if err != nil {
		return fmt.Errorf("resolve target commit %s: %w", commit, err)
	}

	if createBackup {
		if err := e.driver.Add(ctx, "."); err != nil {
			return fmt.Errorf("stage safety backup: %w", err)
		}
		status, err := e.driver.Status(ctx)
		if err != nil {
			return err
		}
		if !status.Clean {
			msg := message.SafetyBackupBeforeHardReset(target.ShortHash, target.CommitterTime)
			if err := e.driver.Commit(ctx, msg); err != nil && !errors.Is(err, core.ErrNothingToCommit) {
				return fmt.Errorf("commit safety backup: %w", err)
			}
		}
	}

	paths, err := e.driver.LsTree(ctx, commit)
	if err != nil {
		return fmt.Errorf("list tree at %s: %w", commit, err)
	}
	touchesDashboardState := false
	for _, p := range paths {
		if err := e.driver.Checkout(ctx, commit, p); err != nil {
			return fmt.Errorf("checkout %s@%s: %w", p, commit, err)
		}
		if isDashboardState(p) {
			touchesDashboardState = true
		}
	}

	if err := e.driver.Add(ctx, "."); err != nil {
		return fmt.Errorf("stage restored tree: %w", err)
	}
	if err := e.driver.Commit(ctx, message.RestoredAllFiles(target.CommitterTime)); err != nil && !errors.Is(err, core.ErrNothingToCommit) {
		return fmt.Errorf("commit hard reset: %w", err)
	}

	if touchesDashboardState {
		reloadhook.Fire(ctx, e.logger, "request-restart", e.hooks.RequestRestart)
	}
	return nil
}

// fireHookFor invokes the reload hook matching path, if any, never blocking
// the caller beyond the hook's own bounded timeout.
func (e *Engine) fireHookFor(ctx context.Context, path string) {
	switch filepath.Base(filepath.ToSlash(path)) {
	case automationsFile:
		reloadhook.Fire(ctx, e.logger, "reload-automations", e.hooks.ReloadAutomations)
	case scriptsFile:
		reloadhook.Fire(ctx, e.logger, "reload-scripts", e.hooks.ReloadScripts)
	}
}

func isDashboardState(path string) bool {
	path = filepath.ToSlash(path)
	for _, p := range ignorefile.UIStateAllowlist {
		if path == p {
			return true
		}
	}
	return false
}
