package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"post-stats-service/backend/internal/config"
	"post-stats-service/backend/internal/server"
	"post-stats-service/backend/internal/stats"
	"post-stats-service/backend/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to statsConfig.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: %+v", cfg)
	if cfg.Running.Mode != "" {
		gin.SetMode(cfg.Running.Mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statsStore, closeStore, err := server.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s stats store failed: %v", cfg.Stats.Backend, err)
	}
	defer closeStore()

	hub := ws.NewHub()
	notifiers := []stats.Notifier{hub}

	dispatcher, closeKafka, err := server.OpenKafka(cfg)
	if err != nil {
		log.Fatalf("init kafka failed: %v", err)
	}
	defer closeKafka()
	if dispatcher != nil {
		notifiers = append(notifiers, dispatcher)
	}

	svc := stats.NewService(statsStore, stats.Options{Atomic: cfg.Stats.Atomic, Notifiers: notifiers})
	log.Printf("stats backend=%s atomic=%v", cfg.Stats.Backend, svc.Atomic())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Running.Port),
		Handler:           server.NewRouter(svc, server.RouterOptions{Cors: cfg.Cors.Enabled, Hub: hub}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("stats server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
