// Package mirror defines the push interface the scheduler and commit engine
// depend on. The remote-mirror subsystem itself (device-flow auth, the
// actual transport) is an external collaborator; only the interface lives
// here.
package mirror

import (
	"context"
	"time"

	"github.com/confvault/confvault/pkg/core"
)

// Result records the outcome of one push attempt.
type Result struct {
	OK        bool
	Message   string
	PushedAt  time.Time
	ShortHash string
}

// Pusher force-pushes branch to the configured remote.
type Pusher interface {
	Push(ctx context.Context, branch string) (Result, error)
}

// NullPusher is the default Pusher when no remote is configured: every push
// fails with ErrRemoteUnreachable, matching what an unconfigured mirror
// would report.
type NullPusher struct{}

func (NullPusher) Push(ctx context.Context, branch string) (Result, error) {
	return Result{}, core.ErrRemoteUnreachable
}
