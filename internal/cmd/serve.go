package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ecomonitor/ecomonitor-stack/internal/app"
	"github.com/ecomonitor/ecomonitor-stack/internal/handlers"
	"github.com/ecomonitor/ecomonitor-stack/internal/server"
)

var serveConsume bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP",
	Long: `Starts the HTTP API (POST /api/v1/events, /healthz, /readyz, /metrics).

With --consume (or server.consume_events) the JetStream notification
consumer runs next to the API and processes every object-created event.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveConsume, "consume", false, "also consume object-created notifications from JetStream")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveConsume || cfg.Server.ConsumeEvents {
		js, err := a.EnsureEventsStream(ctx)
		if err != nil {
			return err
		}
		consumer := handlers.NewEventConsumer(a.Processor, logger)
		stopConsuming, err := js.ConsumeMessages(ctx, cfg.NATS.EventsStream, cfg.NATS.Consumer, consumer.Handle)
		if err != nil {
			return err
		}
		defer stopConsuming()
		logger.Info("Consuming notifications", "stream", cfg.NATS.EventsStream, "consumer", cfg.NATS.Consumer)
	}

	var gatherer prometheus.Gatherer
	if a.Registry != nil {
		gatherer = a.Registry
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handlers.NewEventHandler(a.Processor, logger), gatherer),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Pipeline API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
