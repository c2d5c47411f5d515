package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/slidegen/internal/api"
	"github.com/dgallion1/slidegen/internal/completion"
	"github.com/dgallion1/slidegen/internal/config"
	"github.com/dgallion1/slidegen/internal/generation"
	"github.com/dgallion1/slidegen/internal/metrics"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize clients.
	client := completion.NewClient(completion.Config{
		Provider:  cfg.Completion.Provider,
		BaseURL:   cfg.Completion.BaseURL,
		APIKey:    cfg.Completion.APIKey,
		Model:     cfg.Completion.Model,
		MaxTokens: cfg.Completion.MaxTokens,
		Timeout:   cfg.Completion.Timeout,
	}, completion.NewLLMStats(cfg.StatsWindow), log)
	defer client.Close()

	// Track in-flight generations and expire finished ones.
	generations := generation.NewRegistry(cfg.MaxConcurrentStreams, cfg.GenerationTTL)
	generations.Start(context.Background(), time.Minute)

	srv := api.NewServer(client, generations, metrics.New(), log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		// No write timeout: a generation stream lasts as long as the model
		// keeps producing slides.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		log.Error("failed to listen", "addr", httpServer.Addr, "error", err)
		os.Exit(1)
	}

	log.Info("starting slidegen",
		"port", cfg.Port,
		"provider", cfg.Completion.Provider,
		"model", cfg.Completion.Model,
	)
	if err := serve(ctx, httpServer, ln, generations, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// serve runs httpServer on ln until ctx is done, then shuts down gracefully
// and returns once every in-flight request has finished.
//
// Streaming generations are cancelled before the server drains, so each
// open stream ends with an error event instead of a dropped connection.
func serve(ctx context.Context, httpServer *http.Server, ln net.Listener, generations *generation.Registry, log *slog.Logger) error {
	errc := make(chan error, 1)
	go func() { errc <- httpServer.Serve(ln) }()

	select {
	case err := <-errc:
		generations.Stop()
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down...", "active_generations", generations.Active())

	generations.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
