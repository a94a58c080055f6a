package main

import (
	"context"
	"errors"
	"fmt"
	"gbfs2osm/internal/api"
	"gbfs2osm/internal/platform/logging"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only JSON preview of the changeset",
		Long: `serve exposes the reconciliation pipeline over HTTP:

  GET  /health     liveness and version
  GET  /stations   normalized stations of the configured feed
  POST /plans      changeset preview, with optional per-request overrides

Nothing is written to disk and nothing is uploaded.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	ad, err := openAdapters(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ad.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("closing adapters failed")
		}
	}()

	router := api.NewRouter(ad.Source, ad.Fetcher, reconcileRequest(cfg), a.info.Version)

	// Write timeout covers a cold-cache Overpass query.
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.OverpassTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Listen).Msg("preview server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: shutdown: %w", err)
	}
	return nil
}
