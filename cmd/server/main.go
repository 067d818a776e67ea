package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appauth "github.com/digitalnextlvl/agenda/internal/auth"
	"github.com/digitalnextlvl/agenda/internal/calendar"
	"github.com/digitalnextlvl/agenda/internal/config"
	"github.com/digitalnextlvl/agenda/internal/google"
	httpserver "github.com/digitalnextlvl/agenda/internal/http"
	"github.com/digitalnextlvl/agenda/internal/store"
)

func main() {
	log.Println("Starting Agenda server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	stor := store.New(pool)
	sessionManager := appauth.NewSessionManager(cfg)
	authService, err := appauth.NewService(ctx, cfg, stor, sessionManager)
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	tokenManager := google.NewTokenManager(cfg, stor.Tokens)
	provider := google.NewClient(tokenManager, cfg.Google.TimeZone)
	calendars := calendar.NewService(stor.Events, provider)

	r := httpserver.NewRouter(cfg, stor, authService, provider, calendars)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := stor.Sessions.DeleteExpired(ctx); err != nil {
					log.Printf("[WARN] expired session cleanup failed: %v", err)
				}
			}
		}
	}()

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
