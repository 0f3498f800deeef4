package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/sena168/AICENGHUB/internal/config"
	"github.com/sena168/AICENGHUB/internal/fetcher"
	"github.com/sena168/AICENGHUB/internal/pipeline"
	"github.com/sena168/AICENGHUB/internal/ratelimit"
	"github.com/sena168/AICENGHUB/internal/store"
	"github.com/sena168/AICENGHUB/internal/tools"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		// missing .env is not fatal, same as the teacher's loader
	}

	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if err := config.Load(configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.AppConfig

	// A missing or unreachable store degrades the pipeline rather than
	// taking down the API process: candidate capture and pending-enrichment
	// are skipped and the catalog snippet becomes a stub, but chat traffic
	// and /health keep serving.
	var st *store.Store
	opened, err := store.Open(cfg.Store.DatabaseURL)
	if err != nil {
		log.Printf("warning: failed to open store, continuing without it: %v", err)
	} else if err := opened.EnsureReady(); err != nil {
		log.Printf("warning: failed to migrate store, continuing without it: %v", err)
		opened.Close()
	} else {
		st = opened
		defer st.Close()
	}

	f := fetcher.New()
	limiter := ratelimit.New()
	limiter.SetMetrics(ratelimit.NewMetricsSink(ratelimit.RedisMetricsConfig{
		Enabled:  cfg.Redis.Enabled,
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	}))
	tc := tools.New(cfg.Tools.BaseURL, cfg.Tools.APIKey, cfg.Tools.TimeoutMs)
	p := pipeline.New(cfg, st, f, tc, limiter)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/juleha-chat", p.HandleChat)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Printf("api server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down api server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("api server forced to shutdown: %v", err)
	}
	log.Println("api server exited")
}
