package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/confvault/confvault/pkg/core"
)

// blobEntry pairs a commit with the blob hash path had at that commit.
type blobEntry struct {
	Commit    string `json:"commit"`
	ShortHash string `json:"short_hash"`
	BlobHash  string `json:"blob_hash"`
}

var blobsCmd = &cobra.Command{
	Use:   "blobs <path>",
	Short: "List the blob hash a path had at each commit that touched it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			fatal("open repository", err)
		}

		commits, err := mgr.Driver.Log(ctx, core.LogFilter{Path: path})
		if err != nil {
			fatal("read history", err)
		}

		entries := make([]blobEntry, 0, len(commits))
		for _, c := range commits {
			hash, err := mgr.Driver.BlobHashAt(ctx, c.Hash, path)
			if err != nil {
				fatal("resolve blob hash", err)
			}
			entries = append(entries, blobEntry{Commit: c.Hash, ShortHash: c.ShortHash, BlobHash: hash})
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(entries); err != nil {
			fatal("encode blob hashes", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(blobsCmd)
}
