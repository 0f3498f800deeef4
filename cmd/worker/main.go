package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sena168/AICENGHUB/internal/config"
	"github.com/sena168/AICENGHUB/internal/store"
	"github.com/sena168/AICENGHUB/internal/tools"
	"github.com/sena168/AICENGHUB/internal/worker"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		// missing .env is not fatal
	}

	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if err := config.Load(configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.AppConfig

	st, err := store.Open(cfg.Store.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	if err := st.EnsureReady(); err != nil {
		log.Fatalf("failed to migrate store: %v", err)
	}
	defer st.Close()

	tc := tools.New(cfg.Tools.BaseURL, cfg.Tools.APIKey, cfg.Tools.TimeoutMs)
	w := worker.New(st, tc, cfg.Worker.PollMs, cfg.Worker.MaxAttempts, cfg.Worker.BackoffBaseSec)

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("shutting down queue worker...")
		cancel()
	}()

	log.Printf("queue worker starting, poll interval %dms", cfg.Worker.PollMs)
	w.Run(ctx)
	log.Println("queue worker exited")
}
