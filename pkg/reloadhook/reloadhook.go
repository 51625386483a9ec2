// Package reloadhook defines the platform-integration calls the restore
// engine fires after touching UI-state files. The host automation platform
// itself is an external collaborator; these are fire-and-forget, bounded
// calls with non-fatal failures.
package reloadhook

import (
	"context"
	"log/slog"
	"time"
)

// Timeout bounds every hook call; a slow or unreachable platform must never
// stall a restore.
const Timeout = 5 * time.Second

// Hooks is the platform-integration surface the restore engine calls after
// restoring dashboard or automation state.
type Hooks interface {
	ReloadAutomations(ctx context.Context) error
	ReloadScripts(ctx context.Context) error
	RequestRestart(ctx context.Context) error
}

// NoopHooks implements Hooks as a no-op, used when no platform integration
// is configured.
type NoopHooks struct{}

func (NoopHooks) ReloadAutomations(ctx context.Context) error { return nil }
func (NoopHooks) ReloadScripts(ctx context.Context) error     { return nil }
func (NoopHooks) RequestRestart(ctx context.Context) error    { return nil }

// Fire invokes fn with a bounded context, logging (never propagating)
// failures, matching the restore engine's "never block beyond a short
// timeout, failures are non-fatal" contract.
func Fire(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) {
	if logger == nil {
		logger = slog.Default()
	}
	hookCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	if err := fn(hookCtx); err != nil {
		logger.Warn("reload hook failed", "hook", name, "error", err)
	}
}
