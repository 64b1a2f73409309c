package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/authplane/authplane/internal/app"
	"github.com/authplane/authplane/internal/server"
	"github.com/authplane/authplane/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the policy administration server",
	Long:  `Starts the HTTP admin API, the outbox relay, and the enforcer coordinator.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(ctx); err != nil {
				log.Printf("WARNING: telemetry shutdown failed: %v", err)
			}
		}()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to assemble application: %w", err)
		}
		defer a.Close()

		log.Printf("Connected to database")

		handler, err := server.NewH2CHandler(server.RouterOptions{App: a})
		if err != nil {
			return fmt.Errorf("failed to build router: %w", err)
		}

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// The relay drains committed events to the audit subscribers until
		// shutdown cancels it.
		relayCtx, cancelRelay := context.WithCancel(ctx)
		defer cancelRelay()
		go a.Relay.Run(relayCtx)

		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// SIGHUP forces an enforcer reload without restarting the server.
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)

		for {
			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)

			case sig := <-reload:
				reloadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				ok := a.Coordinator.Reload(reloadCtx)
				a.Metrics.RecordReload(reloadCtx, ok)
				cancel()
				if ok {
					log.Printf("INFO: enforcer reloaded via %v", sig)
				} else {
					log.Printf("WARNING: enforcer reload via %v failed; previous snapshot stays live", sig)
				}

			case sig := <-shutdown:
				log.Printf("Received signal %v, shutting down gracefully", sig)
				cancelRelay()

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := srv.Shutdown(ctx); err != nil {
					srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}

				log.Printf("Server stopped")
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
