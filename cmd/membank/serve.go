package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/membank/internal/http"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive hook events over HTTP",
	Long: `Run the webhook receiver for assistants that deliver hook events over
HTTP. Events are posted to /api/v1/hooks/<source>; when a webhook secret is
configured (MEMBANK_WEBHOOK_SECRET) Antigravity deliveries must carry an
HMAC-SHA256 signature in X-Hub-Signature-256 or X-Signature-256.

Endpoints:
  POST /api/v1/hooks/:source   log one hook event
  GET  /health                 liveness
  GET  /metrics                Prometheus metrics

Examples:
  membank serve
  MEMBANK_SERVER_HTTP_PORT=8088 membank serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		go func() {
			select {
			case sig := <-sigCh:
				a.logger.Info(ctx, "received signal, shutting down gracefully", zap.String("signal", sig.String()))
				cancel()
			case <-ctx.Done():
			}
		}()

		srv, err := httpserver.NewServer(a.hookHandler(), a.logger.Underlying().Named("http"), &httpserver.Config{
			Host:      a.cfg.Server.Host,
			Port:      a.cfg.Server.Port,
			RateLimit: a.cfg.Server.RateLimit,
			RateBurst: a.cfg.Server.RateBurst,

			MeterProvider: a.telemetry.MeterProvider(),
		})
		if err != nil {
			return fmt.Errorf("failed to create http server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		a.logger.Info(context.Background(), "server shutdown complete")
		return nil
	})
}
