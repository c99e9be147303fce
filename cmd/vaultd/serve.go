package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	vaultdhttp "github.com/fyrsmithlabs/vaultd/internal/http"
	"github.com/fyrsmithlabs/vaultd/internal/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and keep the index in sync with the vault",
	Long: `Serve starts the vaultd HTTP API. When a vault directory is configured,
all documents are indexed at startup and a filesystem watcher keeps the
index current as files change.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.source != nil {
		indexed, err := a.indexAll(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("initial index complete", zap.Int("files", indexed))

		if a.cfg.Watcher.Enabled {
			watcher, err := source.NewWatcher(a.source, a.manager, a.logger,
				source.WithDebounce(a.cfg.Watcher.Debounce))
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			defer watcher.Stop()
		}
	}

	server, err := vaultdhttp.NewServer(a.manager, a.logger, vaultdhttp.Config{
		Host: a.cfg.HTTP.Host,
		Port: a.cfg.HTTP.Port,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		a.logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return a.manager.Flush(shutdownCtx)
}
