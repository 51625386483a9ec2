// Package reposummary reports the repository age summary operation: the
// oldest/newest commit timestamps, total commit count, and how many commits
// the next retention pass would collapse, paired with a human-readable
// relative duration for display.
package reposummary

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/gitdriver"
)

// Summary is the repository age summary operation's result.
type Summary struct {
	CommitCount     int
	OldestCommitAt  time.Time
	NewestCommitAt  time.Time
	OldestRelative  string
	NewestRelative  string
	CommitsOlderThanWindow int // commits older than the reference window, if one was given
}

// Build computes a Summary from the branch's full history. If window is
// non-zero, CommitsOlderThanWindow counts commits at or older than
// now-window; pass a
// zero core.RetentionWindow to skip that count.
func Build(ctx context.Context, driver *gitdriver.Driver, window core.RetentionWindow) (Summary, error) {
	commits, err := driver.Log(ctx, core.LogFilter{})
	if err != nil {
		return Summary{}, err
	}
	if len(commits) == 0 {
		return Summary{}, nil
	}

	newest := commits[0].CommitterTime
	oldest := commits[len(commits)-1].CommitterTime

	s := Summary{
		CommitCount:    len(commits),
		OldestCommitAt: oldest,
		NewestCommitAt: newest,
		OldestRelative: humanize.Time(oldest),
		NewestRelative: humanize.Time(newest),
	}

	if d := window.Duration(); d > 0 {
		cutoff := time.Now().Add(-d)
		for _, c := range commits {
			if !c.CommitterTime.After(cutoff) {
				s.CommitsOlderThanWindow++
			}
		}
	}
	return s, nil
}
