package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/confvault/confvault/pkg/commitengine"
)

var commitAllCmd = &cobra.Command{
	Use:   "commit-all",
	Short: "Force an immediate snapshot of every pending change",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		eng := commitengine.New(mgr.Driver, mgr.Config, nil, commitengine.Options{})
		if err := eng.CommitAll(ctx); err != nil {
			fatal("commit all", err)
		}
		fmt.Println("Committed all pending changes")
	},
}

func init() {
	rootCmd.AddCommand(commitAllCmd)
}
