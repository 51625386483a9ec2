package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current working tree status",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		status, err := mgr.Driver.Status(ctx)
		if err != nil {
			fatal("read status", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(status); err != nil {
			fatal("encode status", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
