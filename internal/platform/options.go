package platform

import (
	"log/slog"

	"github.com/confvault/confvault/pkg/mirror"
	"github.com/confvault/confvault/pkg/reloadhook"
)

// options holds the Service's internal configuration.
type options struct {
	logger      *slog.Logger
	extensions  []string
	hiddenFiles bool
	branch      string
	pusher      mirror.Pusher
	hooks       reloadhook.Hooks
}

// Option configures a Service.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		branch: "main",
	}
}

// WithLogger sets the logger threaded through every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithExtensions overrides the default tracked-extension set.
func WithExtensions(extensions []string) Option {
	return func(o *options) { o.extensions = extensions }
}

// WithHiddenFiles enables tracking hidden dotfiles of an enabled extension.
func WithHiddenFiles(enabled bool) Option {
	return func(o *options) { o.hiddenFiles = enabled }
}

// WithBranch overrides the branch name retention and mirroring operate on.
func WithBranch(branch string) Option {
	return func(o *options) { o.branch = branch }
}

// WithMirrorPusher injects the remote-mirror collaborator. Defaults to
// mirror.NullPusher when not set.
func WithMirrorPusher(pusher mirror.Pusher) Option {
	return func(o *options) { o.pusher = pusher }
}

// WithReloadHooks injects the host-platform reload/restart collaborator.
// Defaults to reloadhook.NoopHooks when not set.
func WithReloadHooks(hooks reloadhook.Hooks) Option {
	return func(o *options) { o.hooks = hooks }
}
