package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/confvault/confvault/pkg/reposvc"
)

// defaultConfigRoot is the conventional config root when neither the
// environment variable nor --config-root is set.
const (
	configRootEnvVar  = "CONFVAULT_CONFIG_ROOT"
	defaultConfigRoot = "/config"
)

var (
	verbose    bool
	configRoot string
)

var rootCmd = &cobra.Command{
	Use:   "confvault",
	Short: "Automatic, versioned history for a home-automation config directory",
	Long: `confvault observes a configuration directory, groups changes into
coherent snapshots in a backing git repository, enforces a retention policy
that collapses aged history into a single baseline, and restores individual
files or whole snapshots on demand.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called by main.main().
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configRoot, "config-root", "", "Config root directory (default: $"+configRootEnvVar+" or "+defaultConfigRoot+")")
}

// resolveConfigRoot applies the documented precedence: --config-root flag,
// then the environment variable, then the conventional default.
func resolveConfigRoot() string {
	if configRoot != "" {
		return configRoot
	}
	if v := os.Getenv(configRootEnvVar); v != "" {
		return v
	}
	return defaultConfigRoot
}

// openManager brings the config root under version control (idempotent) and
// returns the ready Repository Manager every other subcommand builds on.
func openManager(ctx context.Context) (*reposvc.Manager, error) {
	mgr := reposvc.New(resolveConfigRoot(), nil, false, slog.Default())
	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}
