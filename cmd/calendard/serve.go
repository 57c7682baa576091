package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hray3182/sharedcal/internal/api"
	"github.com/hray3182/sharedcal/internal/calendar"
	"github.com/hray3182/sharedcal/internal/database"
	"github.com/hray3182/sharedcal/internal/live"
	"github.com/hray3182/sharedcal/internal/repository"
)

type ServeOptions struct {
	*RootOptions
	Listen string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Connect to Postgres, apply pending migrations and serve the calendar API.

Example:
  DATABASE_URI=postgres://localhost/sharedcal calendard serve
  calendard serve --listen 127.0.0.1:8080 --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides LISTEN_ADDR)")

	return cmd
}

func runServe(parent context.Context, opts *ServeOptions) error {
	cfg := opts.cfg
	if cfg.DatabaseURI == "" {
		return errors.New("DATABASE_URI is required")
	}
	if opts.Listen != "" {
		cfg.ListenAddr = opts.Listen
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to database")

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("database migrations completed")

	hub := live.NewHub(slog.Default())
	hub.OriginPatterns = originPatterns(cfg.CORSOrigin)
	hub.Start()
	defer hub.Stop()

	svc := calendar.New(
		repository.NewUserRepository(db),
		repository.NewEventRepository(db),
		repository.NewCompletionRepository(db),
		calendar.WithLocation(loc),
		calendar.WithNotifier(hub),
	)

	server := api.NewServer(svc, api.Options{
		CORSOrigin: cfg.CORSOrigin,
		Live:       hub,
		Health:     db,
		Logger:     slog.Default(),
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.ListenAddr, "timezone", loc.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// originPatterns converts the CORS origin into the host patterns the
// websocket handshake checks. Same-origin requests are always allowed.
func originPatterns(origin string) []string {
	switch origin {
	case "":
		return nil
	case "*":
		return []string{"*"}
	}
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return []string{u.Host}
	}
	return []string{origin}
}
