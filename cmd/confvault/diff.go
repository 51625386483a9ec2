package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <rangeA> <rangeB> [path...]",
	Short: "Show a unified diff between two commits, optionally scoped to paths",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		out, err := mgr.Driver.Diff(ctx, args[0], args[1], args[2:]...)
		if err != nil {
			fatal("compute diff", err)
		}
		fmt.Print(out)
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
