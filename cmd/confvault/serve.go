package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/confvault/confvault/internal/platform"
)

const stopGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the watcher and scheduler as a long-lived process",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := platform.New(resolveConfigRoot(), platform.WithLogger(slog.Default()))
		if err != nil {
			return err
		}

		if err := svc.Start(ctx); err != nil {
			return err
		}
		slog.Info("confvault started", "root", resolveConfigRoot())

		go func() {
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
			defer cancel()
			if err := svc.Stop(stopCtx); err != nil {
				slog.Error("shutdown error", "error", err)
			}
		}()

		svc.Wait()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
