package core

import "errors"

// Sentinel error kinds. Callers dispatch on these with errors.Is; wrapping
// with %w is always used when one is returned up the stack so the original
// subprocess/filesystem error is never lost.
var (
	// ErrNotInitialised is returned by any operation invoked before the
	// Repository Manager has completed its startup sequence. Retryable.
	ErrNotInitialised = errors.New("confvault: repository not initialised")

	// ErrNothingToCommit is returned by the Repo Driver when Commit is
	// called against an unchanged index. The Commit Engine treats this as a
	// silent drop, never a failure.
	ErrNothingToCommit = errors.New("confvault: nothing to commit")

	// ErrOutputOverflow is returned when a subprocess writes more than the
	// bounded output buffer can hold.
	ErrOutputOverflow = errors.New("confvault: subprocess output exceeded buffer")

	// ErrDirtyWorkingTree is returned by the Retention Engine when the
	// working tree could not be made clean before a run.
	ErrDirtyWorkingTree = errors.New("confvault: working tree is dirty")

	// ErrCleanupInProgress is returned when a retention run is requested
	// while another is already executing.
	ErrCleanupInProgress = errors.New("confvault: cleanup already in progress")

	// ErrRebaseConflict is returned when splicing kept commits onto the
	// synthetic baseline fails; the safety branch is left intact.
	ErrRebaseConflict = errors.New("confvault: rebase conflict during retention splice")

	// ErrNestedRepoDetected is an internal-only signal (never user-facing)
	// logged when a nested sub-repository is discovered during startup.
	ErrNestedRepoDetected = errors.New("confvault: nested repository detected")

	// ErrWriteDenied is a fatal startup error: the config root is not
	// writable by this process.
	ErrWriteDenied = errors.New("confvault: config root is not writable")

	// ErrRemoteUnauthorised / ErrRemoteUnreachable are recorded in Settings
	// by the mirror push path; they never propagate to local operations.
	ErrRemoteUnauthorised = errors.New("confvault: remote rejected credentials")
	ErrRemoteUnreachable  = errors.New("confvault: remote unreachable")

	// ErrTimeoutExceeded is returned by the Repo Driver when a subprocess
	// call exceeds its bounded timeout.
	ErrTimeoutExceeded = errors.New("confvault: subprocess timed out")
)
