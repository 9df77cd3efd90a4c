package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/parley/internal/cli"
	httpAdapter "github.com/aretw0/parley/pkg/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP turn API",
	Long:  `Starts the engine behind a JSON API. POST /v1/turns runs one turn.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.HTTPAddr = addr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}

		opts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
		if app.Metrics != nil {
			opts = append(opts, httpAdapter.WithMetrics(app.Metrics.Handler()))
		}
		srv := &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mountMetrics(httpAdapter.NewHandler(app.Engine, opts...), cfg.Metrics.Path),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "address", srv.Addr, "handlers", cfg.Handlers.Dir)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			_ = app.Close(context.Background())
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown did not complete", "timeout", shutdownGrace, "error", err)
			_ = srv.Close()
		}
		if err := app.Close(shutdownCtx); err != nil {
			logger.Error("Engine close failed", "error", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	},
}

// mountMetrics serves /metrics at path when the configured path differs.
func mountMetrics(h http.Handler, path string) http.Handler {
	if path == "" || path == "/metrics" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			r.URL.Path = "/metrics"
		}
		h.ServeHTTP(w, r)
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.http_addr)")
}
