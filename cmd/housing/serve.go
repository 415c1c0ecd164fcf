package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	httptransport "github.com/example/housing-allocator/internal/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides the configuration)")
	return cmd
}

// handler builds the routed API over the wired services.
func (a *app) handler() http.Handler {
	cfg := httptransport.RouterConfig{
		Buildings:   httptransport.NewBuildingHandler(a.inventory, a.logger),
		Rooms:       httptransport.NewRoomHandler(a.inventory, a.logger),
		Assignments: httptransport.NewAssignmentHandler(a.assignments, a.logger),
		AutoAssign:  httptransport.NewAutoAssignHandler(a.autoAssign, a.logger),
		Inventory:   httptransport.NewInventoryHandler(a.inventory, a.logger),
		Health:      a.store.Ping,
		Logger:      a.logger,
	}
	if a.cfg.Metrics.Enabled {
		cfg.Metrics = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	}
	return httptransport.NewRouter(cfg)
}

// serve listens until ctx is cancelled, then drains in-flight requests.
func (a *app) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	a.logger.Info("housing API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.logger.Info("housing API stopped")
	return nil
}
