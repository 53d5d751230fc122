package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photoledger/internal/config"
	"photoledger/internal/db"
	"photoledger/internal/metrics"
	"photoledger/internal/store"
	"photoledger/internal/worker"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	metrics.Register()

	rec := &worker.Reconciler{
		Store:    store.New(pool),
		Interval: time.Duration(cfg.Worker.IntervalSeconds) * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	log.Printf("reconciler running every %ds", cfg.Worker.IntervalSeconds)
	rec.Run(ctx)
}
