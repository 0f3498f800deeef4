package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sena168/AICENGHUB/internal/config"
	"github.com/sena168/AICENGHUB/internal/scheduler"
	"github.com/sena168/AICENGHUB/internal/store"
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

	sch := scheduler.New(st, cfg.Scheduler.StaleHours, cfg.Scheduler.BatchSize)

	if len(os.Args) > 2 && os.Args[2] == "--once" {
		n, err := sch.RunOnce(context.Background())
		if err != nil {
			log.Fatalf("stale-refresh sweep failed: %v", err)
		}
		log.Printf("enqueued %d stale-refresh job(s)", n)
		return
	}

	if err := sch.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sch.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down scheduler...")
}
