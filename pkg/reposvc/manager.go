// Package reposvc is the Repository Manager: it runs the idempotent
// startup sequence that brings a config root under version control, owns
// the "ready" gate every other component checks before touching the
// repository, and exposes the tracked-file policy (ignorefile.Config) the
// Watcher and Commit Engine filter against.
package reposvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/gitdriver"
	"github.com/confvault/confvault/pkg/ignorefile"
	"github.com/confvault/confvault/pkg/message"
)

// CommitterName and CommitterEmail are the fixed process-wide identity used
// for every auto-generated commit.
const (
	CommitterName  = "confvault"
	CommitterEmail = "confvault@localhost"
)

// DefaultExtensions is the subset of extensions enabled out of the box.
var DefaultExtensions = []string{"yaml", "yml", "json"}

// Manager owns startup and readiness for one config root.
type Manager struct {
	Root   string
	Driver *gitdriver.Driver
	logger *slog.Logger

	mu  sync.RWMutex
	cfg ignorefile.Config

	ready atomic.Bool
}

// New creates a Repository Manager for root. extensions and hiddenFiles
// seed the initial tracked-file policy; Start reconciles nested-repo
// discovery into it.
func New(root string, extensions []string, hiddenFiles bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &Manager{
		Root:   root,
		Driver: gitdriver.New(root, logger),
		logger: logger,
		cfg:    ignorefile.Config{Extensions: extensions, HiddenFiles: hiddenFiles},
	}
}

// Config returns a snapshot of the current tracked-file policy.
func (m *Manager) Config() ignorefile.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Ready reports whether Start has completed successfully.
func (m *Manager) Ready() bool {
	return m.ready.Load()
}

// RequireReady returns core.ErrNotInitialised if Start has not completed.
func (m *Manager) RequireReady() error {
	if !m.Ready() {
		return core.ErrNotInitialised
	}
	return nil
}

// Start runs the idempotent startup sequence that brings the config root
// under version control.
func (m *Manager) Start(ctx context.Context) error {
	// 1. Resolve / create the config root.
	if err := os.MkdirAll(m.Root, 0755); err != nil {
		return fmt.Errorf("resolve config root: %w", err)
	}
	if err := m.checkWritable(); err != nil {
		return err
	}

	// 2. Committer identity + trusted directory.
	if err := m.Driver.ConfigureIdentity(ctx, CommitterName, CommitterEmail); err != nil {
		return fmt.Errorf("configure identity: %w", err)
	}

	// 3. Detect or initialise the repository.
	if !m.Driver.IsRepo(ctx) {
		if err := m.Driver.Init(ctx); err != nil {
			return fmt.Errorf("git init: %w", err)
		}
	}

	unlock := m.Driver.Lock()
	defer unlock()

	// 4. Discover nested sub-repositories.
	nested, err := ignorefile.DiscoverNestedRepos(m.Root)
	if err != nil {
		return fmt.Errorf("discover nested repos: %w", err)
	}
	if len(nested) > 0 {
		m.logger.Info("nested repository detected", "count", len(nested), "error_kind", core.ErrNestedRepoDetected)
	}

	m.mu.Lock()
	m.cfg.NestedRepos = nested
	cfg := m.cfg
	m.mu.Unlock()

	// 5. Reconcile the ignore-file.
	if _, err := ignorefile.Reconcile(ctx, m.Root, cfg); err != nil {
		return fmt.Errorf("reconcile ignore-file: %w", err)
	}

	// 6. Remove nested sub-repository paths from the index if present.
	for _, p := range nested {
		_ = m.Driver.RmCached(ctx, p)
	}

	// 7. Stage the whole tree, then unstage any path re-added from a nested
	// repo. This runs unconditionally after every Add("."), with no
	// exceptions, so a nested repository can never slip back into the index.
	if err := m.Driver.Add(ctx, "."); err != nil {
		return fmt.Errorf("stage working tree: %w", err)
	}
	for _, p := range nested {
		_ = m.Driver.ResetHead(ctx, p)
	}

	// 8. Commit only if the index differs from HEAD.
	status, err := m.Driver.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if !status.Clean {
		msg := message.Snapshot(stagedPaths(status))
		if msg == "" {
			msg = message.PreCleanupFallback
		}
		if err := m.Driver.Commit(ctx, msg); err != nil && !errors.Is(err, core.ErrNothingToCommit) {
			return fmt.Errorf("baseline commit: %w", err)
		}
	}

	// 9. Mark ready.
	m.ready.Store(true)
	return nil
}

// checkWritable verifies the process can write to Root before declaring
// readiness; a read-only root fails loudly with ErrWriteDenied.
func (m *Manager) checkWritable() error {
	probe := filepath.Join(m.Root, ".confvault-write-check")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrWriteDenied, err)
	}
	f.Close()
	_ = os.Remove(probe)
	return nil
}

func stagedPaths(status core.Status) []string {
	paths := make([]string, 0, len(status.Files))
	for _, f := range status.Files {
		if f.IndexStatus == ' ' || f.IndexStatus == '?' {
			continue
		}
		paths = append(paths, f.Path)
	}
	return paths
}
