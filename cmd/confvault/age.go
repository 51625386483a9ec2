package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/confvault/confvault/pkg/reposummary"
)

var ageCmd = &cobra.Command{
	Use:   "age",
	Short: "Summarize the repository's commit history age",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		window, err := parseRetentionWindow(retentionWindow)
		if err != nil {
			fatal("parse --window", err)
		}

		summary, err := reposummary.Build(ctx, mgr.Driver, window)
		if err != nil {
			fatal("build age summary", err)
		}

		fmt.Printf("Commits: %d\n", summary.CommitCount)
		if summary.CommitCount == 0 {
			return
		}
		fmt.Printf("Oldest: %s (%s)\n", summary.OldestCommitAt.Format("2006-01-02 15:04:05"), summary.OldestRelative)
		fmt.Printf("Newest: %s (%s)\n", summary.NewestCommitAt.Format("2006-01-02 15:04:05"), summary.NewestRelative)
		fmt.Printf("Older than retention window: %d\n", summary.CommitsOlderThanWindow)
	},
}

func init() {
	rootCmd.AddCommand(ageCmd)
	ageCmd.Flags().StringVar(&retentionWindow, "window", retentionWindow, "Retention window, e.g. 30d, 6m, 2w, 48h (default: 30d)")
}
