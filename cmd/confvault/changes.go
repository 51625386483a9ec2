package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:   "changes <commit>",
	Short: "List the paths a commit changed, relative to its parent",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		changed, err := mgr.Driver.CommitDetails(ctx, args[0])
		if err != nil {
			fatal("read commit details", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(changed); err != nil {
			fatal("encode changed paths", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
}
