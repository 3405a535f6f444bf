package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shopd/go-shop-orders/internal/cart"
	"github.com/shopd/go-shop-orders/internal/catalog"
	"github.com/shopd/go-shop-orders/internal/config"
	"github.com/shopd/go-shop-orders/internal/httpx"
	"github.com/shopd/go-shop-orders/internal/inventory"
	kafkax "github.com/shopd/go-shop-orders/internal/kafka"
	"github.com/shopd/go-shop-orders/internal/orders"
	"github.com/shopd/go-shop-orders/internal/postgres"
	"github.com/shopd/go-shop-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	createdProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	createdProd.Start(ctx)
	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatus, 1024, log)
	statusProd.Start(ctx)

	ledger := &inventory.Ledger{DB: db}
	cartStore := &cart.Store{DB: db, Ledger: ledger}
	orderRepo := &orders.Repo{DB: db}
	svc := &orders.Service{
		Pool:   db,
		Repo:   orderRepo,
		Cart:   cartStore,
		Ledger: ledger,
		Log:    log,
	}
	catalogRepo := &catalog.Repo{DB: db}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Svc:             svc,
		CreatedProducer: createdProd,
		StatusProducer:  statusProd,
		Redis:           rdb,
		Service:         cfg.ServiceName,
		Log:             log,
	}).Register(router)
	(&httpx.CartHandler{Cart: cartStore, Redis: rdb, Log: log}).Register(router)
	(&httpx.ProductsHandler{Catalog: catalogRepo, Ledger: ledger, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	createdProd.Close()
	statusProd.Close()
	cancel()
	createdProd.WaitClosed()
	statusProd.WaitClosed()
}
