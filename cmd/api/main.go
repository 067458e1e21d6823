package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/auth"
	"github.com/ariefcatur/go-cart-checkout/internal/cart"
	"github.com/ariefcatur/go-cart-checkout/internal/checkout"
	"github.com/ariefcatur/go-cart-checkout/internal/config"
	"github.com/ariefcatur/go-cart-checkout/internal/customer"
	"github.com/ariefcatur/go-cart-checkout/internal/httpx"
	"github.com/ariefcatur/go-cart-checkout/internal/inventory"
	kafkax "github.com/ariefcatur/go-cart-checkout/internal/kafka"
	"github.com/ariefcatur/go-cart-checkout/internal/logx"
	"github.com/ariefcatur/go-cart-checkout/internal/metrics"
	"github.com/ariefcatur/go-cart-checkout/internal/orders"
	"github.com/ariefcatur/go-cart-checkout/internal/outbox"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
	"github.com/ariefcatur/go-cart-checkout/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(os.Stdout, cfg.ServiceName, cfg.LogLevel)

	oracle, err := auth.NewOracle(cfg.JWTSecret)
	if err != nil {
		log.Error("JWT_SECRET is required", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("migrate", "err", err)
			os.Exit(1)
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := redisx.NewCache(rdb)

	// Kafka producer, fed by the outbox relay
	prod := kafkax.NewProducer(cfg.KafkaBrokers)
	tx := postgres.NewTxRunner(db, cfg.LockTimeout)
	relay := &outbox.Relay{
		Tx:          tx,
		Pub:         prod,
		Batch:       cfg.OutboxBatch,
		Interval:    cfg.OutboxPollInterval,
		SendTimeout: cfg.OutboxSendTimeout,
		Log:         log.With("component", "outbox-relay"),
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(ctx)
	}()

	// Domain
	m := metrics.NewServerMetrics("api")
	ledger := inventory.NewLedger(db)
	carts := cart.NewStore(db)
	orderRepo := orders.NewRepo(db)
	coordinator := &checkout.Coordinator{
		Tx:        tx,
		Carts:     carts,
		Ledger:    ledger,
		Builder:   orders.NewBuilder(),
		Orders:    orderRepo,
		Customers: customer.NewDirectory(db),
		Metrics:   m,
		Service:   cfg.ServiceName,
		Log:       log.With("component", "checkout"),
	}
	orderSvc := orders.NewService(orderRepo, tx, cfg.ServiceName)

	// HTTP
	router := httpx.NewRouter(m)
	(&httpx.CatalogHandler{Products: ledger, Log: log}).Register(router)
	(&httpx.CartHandler{Carts: cart.NewService(carts, ledger, tx), Auth: oracle, Log: log}).Register(router)
	(&httpx.OrdersHandler{Checkout: coordinator, Orders: orderSvc, Cache: cache, Auth: oracle, Log: log}).Register(router)
	(&httpx.AdminHandler{Orders: orderSvc, Cache: cache, Auth: oracle, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()  // stop relay loop
	wg.Wait() // relay selesai sebelum writer ditutup
	if err := prod.Close(); err != nil {
		log.Warn("close producer", "err", err)
	}
}
