package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photoledger/internal/config"
	"photoledger/internal/db"
	internalhttp "photoledger/internal/http"
	"photoledger/internal/metrics"
	"photoledger/internal/services"
	"photoledger/internal/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	metrics.Register()

	st := store.New(pool)
	photographerSvc := &services.PhotographerService{
		Store:      st,
		DefaultBps: cfg.Ledger.DefaultCommissionBps,
	}
	orderSvc := &services.OrderService{
		Store:      st,
		HoldPeriod: time.Duration(cfg.Ledger.HoldDays) * 24 * time.Hour,
	}
	balanceSvc := &services.BalanceService{Store: st}
	withdrawalSvc := &services.WithdrawalService{
		Store:     st,
		MinAmount: cfg.Ledger.MinWithdrawal,
	}

	h := internalhttp.NewHandler(photographerSvc, orderSvc, balanceSvc, withdrawalSvc)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Printf("api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
