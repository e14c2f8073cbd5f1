package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/glassbank/api"
	"github.com/jmcleod/glassbank/security"
	"github.com/jmcleod/glassbank/storage/sqlite"
)

var (
	port         int
	dataDir      string
	idleTimeout  time.Duration
	rateLimit    bool
	loginMax     int
	loginWindow  time.Duration
	defaultLevel string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the training bank server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		level, err := security.ParseLevel(defaultLevel)
		if err != nil {
			return fmt.Errorf("invalid --default-level: %w", err)
		}

		store, err := sqlite.Open(filepath.Join(dataDir, "glassbank.db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		sessions, err := security.NewBoltStore(filepath.Join(dataDir, "sessions.db"), 24*time.Hour)
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
		defer sessions.Close()

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		a := api.New(store, store.DB(), sessions,
			api.WithLogger(logger),
			api.WithIdleTimeout(idleTimeout),
			api.WithRateLimiting(rateLimit),
			api.WithLoginLimit(loginMax, loginWindow),
			api.WithDefaultLevel(level),
		)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (data: %s, default level: %s)...\n", port, dataDir, level)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().DurationVar(&idleTimeout, "idle-timeout", security.DefaultIdleTimeout, "Login idle timeout")
	serverCmd.Flags().BoolVar(&rateLimit, "rate-limit", true, "Rate limit login attempts")
	serverCmd.Flags().IntVar(&loginMax, "login-max", 5, "Login attempts allowed per window")
	serverCmd.Flags().DurationVar(&loginWindow, "login-window", time.Minute, "Login rate limit window")
	serverCmd.Flags().StringVar(&defaultLevel, "default-level", string(security.LevelImpossible), "Security level for unset vulnerabilities")
}
