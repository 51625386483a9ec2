// Package message is the single source of truth for every auto-generated
// commit message shape, so the Repository Manager, Commit Engine, Retention
// Engine, and Restore Engine never diverge on formatting.
package message

import (
	"fmt"
	"sort"
	"time"
)

// humanLayout renders hard-reset messages as "Mon D, YYYY h:MM AM/PM".
const humanLayout = "Jan 2, 2006 3:04 PM"

// Snapshot composes the message for a normal commit capturing the given
// paths: one path verbatim, two as "a, b", three or more as "N files".
func Snapshot(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	switch len(sorted) {
	case 0:
		return ""
	case 1:
		return sorted[0]
	case 2:
		return sorted[0] + ", " + sorted[1]
	default:
		return fmt.Sprintf("%d files", len(sorted))
	}
}

// MergedHistory composes the retention baseline's message: the ISO-8601
// committer timestamp of the oldest commit it collapsed.
func MergedHistory(oldestMerged time.Time) string {
	return "Merged history " + oldestMerged.UTC().Format(time.RFC3339)
}

// RestoredAllFiles composes a hard-reset's final message: the human-
// formatted date of the commit that was restored to.
func RestoredAllFiles(target time.Time) string {
	return "Restored all files to " + target.Format(humanLayout)
}

// SafetyBackupBeforeHardReset composes a hard-reset's pre-reset safety
// commit message.
func SafetyBackupBeforeHardReset(shortHash string, at time.Time) string {
	return "Safety backup before hard reset to " + shortHash + " - " + at.UTC().Format(time.RFC3339)
}

// PreCleanupFallback is the message used when Snapshot returns "" because
// there is no staged path to name. (When no staged path is in the Tracked
// Path Set, the retention precondition resets the index instead of
// committing.)
const PreCleanupFallback = "pre-cleanup changes"
