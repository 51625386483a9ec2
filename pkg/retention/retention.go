// Package retention collapses history older than a configured cutoff into
// a single synthetic baseline commit while keeping newer history
// contiguous, with an automatic safety backup and abort-on-conflict
// recovery path.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/gitdriver"
	"github.com/confvault/confvault/pkg/ignorefile"
	"github.com/confvault/confvault/pkg/message"
)

// previewSampleSize caps how many merged commits a preview echoes back.
const previewSampleSize = 5

// Result summarizes one completed retention run.
type Result struct {
	CutoffInstant time.Time
	WithinWindow  bool // true when nothing needed merging
	MergedCount   int
	BaselineHash  string
	SafetyBranch  string
}

// Preview is the read-only dry run of steps 2-4: compute the cutoff and
// classify commits without mutating anything.
type Preview struct {
	CutoffInstant time.Time
	SplitFound    bool
	MergedCount   int
	SampleMerged  []core.Commit
}

// Engine runs retention passes against a single repository.
type Engine struct {
	driver   *gitdriver.Driver
	configFn func() ignorefile.Config
	logger   *slog.Logger
	now      func() time.Time

	group   singleflight.Group
	running atomic.Bool
}

// New creates a retention engine bound to driver.
func New(driver *gitdriver.Driver, configFn func() ignorefile.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{driver: driver, configFn: configFn, logger: logger, now: time.Now}
}

// SetClock overrides the engine's time source, used by tests that need
// deterministic cutoffs against commits with pinned author/committer dates.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Preview reports what a Run with the given window would do, without
// mutating the repository.
func (e *Engine) Preview(ctx context.Context, window core.RetentionWindow) (Preview, error) {
	cutoff := e.now().Add(-window.Duration())

	commits, err := e.driver.Log(ctx, core.LogFilter{})
	if err != nil {
		return Preview{}, err
	}

	split, found := splitIndex(commits, cutoff)
	if !found {
		return Preview{CutoffInstant: cutoff, SplitFound: false}, nil
	}

	merged := commits[split:]
	sample := merged
	if len(sample) > previewSampleSize {
		sample = sample[:previewSampleSize]
	}
	return Preview{
		CutoffInstant: cutoff,
		SplitFound:    true,
		MergedCount:   len(merged),
		SampleMerged:  sample,
	}, nil
}

// Run executes one retention pass. A call that joins an in-flight run (its
// own function is never executed by singleflight) fails with
// core.ErrCleanupInProgress instead of transparently sharing its result;
// the call that performed the run receives its own result.
func (e *Engine) Run(ctx context.Context, window core.RetentionWindow) (Result, error) {
	ran := false
	v, err, _ := e.group.Do("cleanup", func() (any, error) {
		ran = true
		return e.run(ctx, window)
	})
	if !ran {
		return Result{}, core.ErrCleanupInProgress
	}
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (e *Engine) run(ctx context.Context, window core.RetentionWindow) (Result, error) {
	e.running.Store(true)
	defer e.running.Store(false)

	unlock := e.driver.Lock()
	defer unlock()

	if err := e.ensureCleanWorkingTree(ctx); err != nil {
		return Result{}, err
	}

	cutoff := e.now().Add(-window.Duration())
	commits, err := e.driver.Log(ctx, core.LogFilter{})
	if err != nil {
		return Result{}, err
	}

	split, found := splitIndex(commits, cutoff)
	if !found {
		return Result{CutoffInstant: cutoff, WithinWindow: true}, nil
	}

	branch, err := e.driver.CurrentBranch(ctx)
	if err != nil {
		return Result{}, err
	}

	safetyBranch := fmt.Sprintf("backup-before-cleanup-%d", e.now().UnixMilli())
	if err := e.driver.Branch(ctx, safetyBranch); err != nil {
		return Result{}, err
	}

	merged := commits[split:]
	newestMerged := merged[0]
	oldestMerged := merged[len(merged)-1]

	treeHash, err := e.driver.TreeHash(ctx, newestMerged.Hash)
	if err != nil {
		return Result{}, err
	}
	baselineMsg := message.MergedHistory(oldestMerged.CommitterTime)
	baselineHash, err := e.driver.CommitTree(ctx, treeHash, baselineMsg, newestMerged.CommitterTime, newestMerged.CommitterTime)
	if err != nil {
		return Result{}, err
	}

	if split == 0 {
		// Everything on the branch is being merged: no kept commits to
		// splice, so the branch tip simply becomes the baseline.
		if err := e.driver.ResetHard(ctx, baselineHash); err != nil {
			return Result{}, err
		}
	} else {
		oldestKept := commits[split-1]
		var upstream string
		if len(oldestKept.ParentHashes) > 0 {
			upstream = oldestKept.ParentHashes[0]
		} else {
			upstream = oldestKept.Hash
		}
		if err := e.driver.Rebase(ctx, baselineHash, upstream, branch); err != nil {
			return Result{}, err
		}
	}

	if err := e.driver.ReflogExpireNow(ctx); err != nil {
		e.logger.Warn("reflog expire failed after retention splice", "error", err)
	}
	if err := e.driver.Gc(ctx); err != nil {
		e.logger.Warn("gc failed after retention splice", "error", err)
	}

	return Result{
		CutoffInstant: cutoff,
		MergedCount:   len(merged),
		BaselineHash:  baselineHash,
		SafetyBranch:  safetyBranch,
	}, nil
}

// ensureCleanWorkingTree implements the precondition: a dirty index is
// auto-committed using the normal message rule, or silently reset if
// nothing in the tracked path set matched.
func (e *Engine) ensureCleanWorkingTree(ctx context.Context) error {
	status, err := e.driver.Status(ctx)
	if err != nil {
		return err
	}
	if status.Clean {
		return nil
	}

	if err := e.driver.Add(ctx, "."); err != nil {
		return fmt.Errorf("%w: %v", core.ErrDirtyWorkingTree, err)
	}
	status, err = e.driver.Status(ctx)
	if err != nil {
		return err
	}

	cfg := e.configFn()
	var filtered []string
	for _, f := range status.Files {
		if f.IndexStatus == ' ' || f.IndexStatus == '?' {
			continue
		}
		if ignorefile.ExtensionAllowed(cfg, f.Path) && !ignorefile.InNestedRepo(cfg, f.Path) {
			filtered = append(filtered, f.Path)
		}
	}

	if len(filtered) == 0 {
		return e.driver.ResetHead(ctx, "")
	}

	msg := message.Snapshot(filtered)
	if msg == "" {
		msg = message.PreCleanupFallback
	}
	if err := e.driver.Commit(ctx, msg); err != nil && !errors.Is(err, core.ErrNothingToCommit) {
		return fmt.Errorf("%w: %v", core.ErrDirtyWorkingTree, err)
	}
	return nil
}

// splitIndex finds the first commit (newest-first order) at or older than
// cutoff. Commits above the split are kept; it and everything below are
// merged.
func splitIndex(commits []core.Commit, cutoff time.Time) (int, bool) {
	for i, c := range commits {
		if !c.CommitterTime.After(cutoff) {
			return i, true
		}
	}
	return 0, false
}
