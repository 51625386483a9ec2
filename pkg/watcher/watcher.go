// Package watcher observes a config tree and turns settled filesystem
// changes into commit intents. Change notifications come from fsnotify,
// the same event source the commit path's git operations coordinate with
// via a pause/resume on .git/index.lock; a periodic full-tree reconcile
// runs alongside it as a backstop against missed or coalesced events.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/ignorefile"
)

const (
	// settleWindow is how long a file's mtime must be untouched before the
	// periodic reconcile backstop considers its latest write finished.
	settleWindow = 2 * time.Second

	// reconcileInterval is how often the full-tree backstop scan runs,
	// independent of the fsnotify event stream.
	reconcileInterval = 30 * time.Second

	// depthLimit bounds recursion so a misconfigured root never walks
	// forever.
	depthLimit = 15

	// maxRootOccurrences guards against a self-referential symlink loop that
	// somehow survives the symlink skip: if the root directory's own name
	// appears in a relative path more than this many times, the path is
	// rejected.
	maxRootOccurrences = 3
)

// CommitFunc is invoked once a commit intent's debounce timer fires. It is
// given the still-pending intent; the caller (the commit engine) is
// responsible for staging and committing.
type CommitFunc func(ctx context.Context, intent *core.CommitIntent)

// ConfigFunc returns the tracked-file policy to filter against. It is a
// func rather than a fixed value so the watcher always sees configuration
// changes reconciled after startup (e.g. newly discovered nested repos).
type ConfigFunc func() ignorefile.Config

// Watcher watches root for settled, tracked changes and debounces them into
// per-path commit intents.
type Watcher struct {
	root     string
	configFn ConfigFunc
	commit   CommitFunc
	debounce time.Duration
	logger   *slog.Logger
	rootName string

	mu        sync.Mutex
	known     map[string]time.Time // rel path -> last observed settled mtime
	pending   map[string]*core.CommitIntent
	timers    map[string]*time.Timer
	fsWatcher *fsnotify.Watcher // set for the duration of Run; nil otherwise
	gitLocked bool
}

// New creates a Watcher. debounce is the per-path quiet period before a
// settled change is delegated to the commit engine; zero uses the
// documented 5s default.
func New(root string, configFn ConfigFunc, commit CommitFunc, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:     root,
		configFn: configFn,
		commit:   commit,
		debounce: debounce,
		logger:   logger,
		rootName: filepath.Base(root),
		known:    make(map[string]time.Time),
		pending:  make(map[string]*core.CommitIntent),
		timers:   make(map[string]*time.Timer),
	}
}

// Run subscribes to filesystem change notifications for root and processes
// them until ctx is cancelled. A periodic full-tree reconcile runs
// alongside the subscription as a backstop. Pending debounce timers are
// abandoned on return; any commit already delegated runs to completion
// independently.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := w.recursiveAdd(fsWatcher, w.root); err != nil {
		return fmt.Errorf("watch tree: %w", err)
	}

	w.mu.Lock()
	w.fsWatcher = fsWatcher
	w.gitLocked = false
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.fsWatcher = nil
		w.mu.Unlock()
	}()

	w.reconcile(ctx)

	backstop := time.NewTicker(reconcileInterval)
	defer backstop.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			for _, t := range w.timers {
				t.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return fmt.Errorf("filesystem watcher events channel closed")
			}
			w.handleEvent(ctx, fsWatcher, event)

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return fmt.Errorf("filesystem watcher errors channel closed")
			}
			w.logger.Error("filesystem watcher error", "error", err)

		case <-backstop.C:
			w.mu.Lock()
			locked := w.gitLocked
			w.mu.Unlock()
			if !locked {
				w.reconcile(ctx)
			}
		}
	}
}

// recursiveAdd subscribes fsWatcher to dir and every non-ignored
// subdirectory beneath it, skipping any directory inside a nested
// repository. The root's own .git directory is watched (so index.lock
// creation and removal are seen) but not descended into.
func (w *Watcher) recursiveAdd(fsWatcher *fsnotify.Watcher, dir string) error {
	cfg := w.configFn()
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // a transient stat error skips the entry, not the walk
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			if filepath.Dir(path) == filepath.Clean(w.root) {
				if addErr := fsWatcher.Add(path); addErr != nil {
					return addErr
				}
			}
			return filepath.SkipDir
		}
		if path != w.root {
			rel, relErr := filepath.Rel(w.root, path)
			if relErr == nil && ignorefile.InNestedRepo(cfg, filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		return fsWatcher.Add(path)
	})
}

// handleEvent processes one fsnotify event: it detects the
// .git/index.lock pause/resume signal, adds newly created directories to
// the subscription, filters tracked paths, and debounces the rest.
func (w *Watcher) handleEvent(ctx context.Context, fsWatcher *fsnotify.Watcher, event fsnotify.Event) {
	if filepath.Base(event.Name) == "index.lock" && filepath.Base(filepath.Dir(event.Name)) == ".git" {
		w.handleGitLockEvent(event)
		return
	}

	w.mu.Lock()
	locked := w.gitLocked
	w.mu.Unlock()
	if locked {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, statErr := os.Lstat(event.Name); statErr == nil && info.IsDir() {
			if addErr := w.recursiveAdd(fsWatcher, event.Name); addErr != nil {
				w.logger.Error("watch new directory failed", "path", event.Name, "error", addErr)
			}
			return
		}
	}

	rel, relErr := filepath.Rel(w.root, event.Name)
	if relErr != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return
	}
	if strings.Count(rel, w.rootName) > maxRootOccurrences || strings.Count(rel, "/") >= depthLimit {
		return
	}

	cfg := w.configFn()
	if !ignorefile.ExtensionAllowed(cfg, rel) || ignorefile.InNestedRepo(cfg, rel) {
		return
	}

	now := time.Now()
	kind := core.EventModify
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		kind = core.EventRemove
	case event.Has(fsnotify.Create):
		kind = core.EventCreate
	}

	w.mu.Lock()
	if kind == core.EventRemove {
		delete(w.known, rel)
	} else {
		w.known[rel] = now
	}
	w.noteLocked(ctx, rel, kind, now)
	w.mu.Unlock()
}

// handleGitLockEvent pauses event processing while git holds its index
// lock and triggers a reconcile once it releases, picking up any change
// the paused window would otherwise have missed.
func (w *Watcher) handleGitLockEvent(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		w.mu.Lock()
		w.gitLocked = true
		w.mu.Unlock()
		w.logger.Debug("git operation detected, pausing watcher")
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		w.gitLocked = false
		w.mu.Unlock()
		w.logger.Debug("git operation finished, reconciling")
		w.reconcile(context.Background())
	}
}

type fileState struct {
	mtime time.Time
}

// reconcile walks the tree once, classifies settled changes missed by the
// event stream (or that occurred while git held its index lock), and
// feeds them to the debouncer. It also re-subscribes any directory the
// fsnotify subscription may have missed. It never returns an error: a
// walk failure is logged and retried on the next tick.
func (w *Watcher) reconcile(ctx context.Context) {
	cfg := w.configFn()
	current := make(map[string]fileState)

	w.mu.Lock()
	fsWatcher := w.fsWatcher
	w.mu.Unlock()

	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // a transient stat error skips the entry, not the walk
		}
		if path == w.root {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.Count(rel, w.rootName) > maxRootOccurrences {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if depth := strings.Count(rel, "/"); depth >= depthLimit {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if ignorefile.InNestedRepo(cfg, rel) {
				return filepath.SkipDir
			}
			if fsWatcher != nil {
				_ = fsWatcher.Add(path)
			}
			return nil
		}

		if !ignorefile.ExtensionAllowed(cfg, rel) {
			return nil
		}
		if ignorefile.InNestedRepo(cfg, rel) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		current[rel] = fileState{mtime: info.ModTime()}
		return nil
	})
	if err != nil {
		w.logger.Error("watcher reconcile failed", "error", err)
		return
	}

	now := time.Now()

	w.mu.Lock()
	for rel, st := range current {
		if now.Sub(st.mtime) < settleWindow {
			continue // still being written; revisit next pass
		}
		last, wasKnown := w.known[rel]
		if wasKnown && last.Equal(st.mtime) {
			continue // unchanged since last settled observation
		}
		w.known[rel] = st.mtime
		kind := core.EventModify
		if !wasKnown {
			kind = core.EventCreate
		}
		w.noteLocked(ctx, rel, kind, now)
	}
	for rel := range w.known {
		if _, stillPresent := current[rel]; !stillPresent {
			delete(w.known, rel)
			w.noteLocked(ctx, rel, core.EventRemove, now)
		}
	}
	w.mu.Unlock()
}

// noteLocked registers a settled event for rel, resetting its debounce
// timer. Caller must hold w.mu.
func (w *Watcher) noteLocked(ctx context.Context, rel string, kind core.EventKind, now time.Time) {
	if t, ok := w.timers[rel]; ok {
		t.Stop()
	}
	if intent, ok := w.pending[rel]; ok {
		intent.Extend(rel, now, w.debounce)
	} else {
		w.pending[rel] = core.NewCommitIntent(uuid.NewString(), rel, now, w.debounce)
	}

	w.logger.Debug("file event settled", "path", rel, "kind", kind.String())

	w.timers[rel] = time.AfterFunc(w.debounce, func() {
		w.fire(ctx, rel)
	})
}

// fire hands the pending intent for rel to the commit func and clears it.
func (w *Watcher) fire(ctx context.Context, rel string) {
	w.mu.Lock()
	intent := w.pending[rel]
	delete(w.pending, rel)
	delete(w.timers, rel)
	w.mu.Unlock()

	if intent == nil {
		return
	}
	w.commit(ctx, intent)
}
