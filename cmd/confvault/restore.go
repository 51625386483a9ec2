package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/confvault/confvault/pkg/reloadhook"
	"github.com/confvault/confvault/pkg/restore"
)

var restoreFileCmd = &cobra.Command{
	Use:   "restore-file <commit> <path>",
	Short: "Restore a single file to its content at a commit",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		commit, path := args[0], args[1]
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		eng := restore.New(mgr.Driver, mgr.Config, nil, reloadhook.NoopHooks{})
		if err := eng.RestoreFile(ctx, commit, path); err != nil {
			fatal("restore file", err)
		}
		fmt.Printf("Restored %s to its content at %s\n", path, commit)
	},
}

var restoreCommitCmd = &cobra.Command{
	Use:   "restore-commit <source-commit> <target-commit>",
	Short: "Restore the paths sourceCommit touched to their content at targetCommit",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		source, target := args[0], args[1]
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		eng := restore.New(mgr.Driver, mgr.Config, nil, reloadhook.NoopHooks{})
		restored, err := eng.RestoreCommit(ctx, source, target)
		if err != nil {
			fatal("restore commit", err)
		}
		fmt.Printf("Restored %d path(s): %v\n", len(restored), restored)
	},
}

var hardResetBackup bool

var hardResetCmd = &cobra.Command{
	Use:   "hard-reset <commit>",
	Short: "Rewrite every tracked path forward to its content at a commit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		eng := restore.New(mgr.Driver, mgr.Config, nil, reloadhook.NoopHooks{})
		if err := eng.HardReset(ctx, args[0], hardResetBackup); err != nil {
			fatal("hard reset", err)
		}
		fmt.Printf("Hard-reset the working tree to %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(restoreFileCmd, restoreCommitCmd, hardResetCmd)
	hardResetCmd.Flags().BoolVar(&hardResetBackup, "backup", true, "Commit a safety snapshot of any uncommitted changes before resetting")
}
