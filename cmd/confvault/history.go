package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/confvault/confvault/pkg/core"
)

var historyPath string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show branch history, or history for a single path",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		commits, err := mgr.Driver.Log(ctx, core.LogFilter{Path: historyPath})
		if err != nil {
			fatal("read history", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(commits); err != nil {
			fatal("encode history", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyPath, "path", "", "Limit history to a single path")
}
