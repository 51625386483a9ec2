package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <commit> <path>",
	Short: "Print a path's content as it existed at a commit",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		commit, path := args[0], args[1]
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		content, err := mgr.Driver.FileAtCommit(ctx, commit, path)
		if err != nil {
			fatal("read file at commit", err)
		}
		fmt.Print(string(content))
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
