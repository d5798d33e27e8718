package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mirror-labs/mirror/backend/internal/config"
	"github.com/mirror-labs/mirror/backend/internal/handler"
	chathandler "github.com/mirror-labs/mirror/backend/internal/handler/chat"
	"github.com/mirror-labs/mirror/backend/internal/service/generate"
	"github.com/mirror-labs/mirror/backend/internal/service/session"
	"github.com/mirror-labs/mirror/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	history, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open history store: %v", err)
	}
	defer history.Close()
	log.Printf("history store ready at %s", cfg.Database.Path)

	var gen chathandler.Generator
	if cfg.AI.Enabled() {
		client, err := generate.NewClient(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize generation backend: %v", err)
			log.Println("continuing without generation - every turn will use the fallback reply")
		} else {
			gen = client
			log.Printf("generation backend ready provider=%s model=%s", cfg.AI.Provider, cfg.AI.Model)
		}
	} else {
		log.Println("generation credentials missing - every turn will use the fallback reply")
	}

	registry := session.NewRegistry()
	log.Printf("detected mood for this run: %s", cfg.Mood.Label)

	router := handler.NewRouter(history, registry, gen, cfg.Mood.Label)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Mirror backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
