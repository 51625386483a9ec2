package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/retention"
)

var retentionWindow string

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Inspect or run the retention policy that collapses aged history",
}

var retentionPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show what a retention run would collapse without changing anything",
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

		eng := retention.New(mgr.Driver, mgr.Config, nil)
		preview, err := eng.Preview(ctx, window)
		if err != nil {
			fatal("preview retention", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(preview); err != nil {
			fatal("encode preview", err)
		}
	},
}

var retentionCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Collapse history older than the retention window into one baseline commit",
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

		eng := retention.New(mgr.Driver, mgr.Config, nil)
		result, err := eng.Run(ctx, window)
		if err != nil {
			fatal("run retention", err)
		}
		if result.WithinWindow {
			fmt.Println("Nothing to collapse: all history is within the retention window")
			return
		}
		fmt.Printf("Collapsed %d commit(s) into baseline %s\n", result.MergedCount, result.BaselineHash)
	},
}

// parseRetentionWindow accepts the same unit suffixes the settings store
// documents: h (hours), d (days), w (weeks), m (months).
func parseRetentionWindow(s string) (core.RetentionWindow, error) {
	if s == "" {
		return core.RetentionWindow{Days: 30}, nil
	}
	var n int
	var unit byte
	if _, err := fmt.Sscanf(s, "%d%c", &n, &unit); err != nil {
		return core.RetentionWindow{}, fmt.Errorf("invalid window %q: want a number followed by h/d/w/m", s)
	}
	switch unit {
	case 'h':
		return core.RetentionWindow{Hours: n}, nil
	case 'd':
		return core.RetentionWindow{Days: n}, nil
	case 'w':
		return core.RetentionWindow{Weeks: n}, nil
	case 'm':
		return core.RetentionWindow{Months: n}, nil
	default:
		return core.RetentionWindow{}, fmt.Errorf("invalid window unit %q: want h/d/w/m", string(unit))
	}
}

func init() {
	retentionCmd.AddCommand(retentionPreviewCmd, retentionCleanupCmd)
	rootCmd.AddCommand(retentionCmd)

	retentionCmd.PersistentFlags().StringVar(&retentionWindow, "window", "", "Retention window, e.g. 30d, 6m, 2w, 48h (default: 30d)")
}
