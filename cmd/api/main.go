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

	"goencode/internal/api"
	"goencode/internal/config"
	"goencode/internal/container"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Enabled() {
		if err := c.InitWithDatabase(ctx); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := c.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	} else {
		c.Logger.Warn("DATABASE_URL is not set; serving an empty in-memory ledger")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewServer(c.Ledger, c.Reports, c.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		c.Logger.Info("results API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.Logger.Error("shutdown: %v", err)
	}
}
