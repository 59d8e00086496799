package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	appcart "github.com/Zhima-Mochi/shopcore/internal/application/cart"
	appcheckout "github.com/Zhima-Mochi/shopcore/internal/application/checkout"
	apppayment "github.com/Zhima-Mochi/shopcore/internal/application/payment"
	"github.com/Zhima-Mochi/shopcore/internal/application/sweeper"
	"github.com/Zhima-Mochi/shopcore/internal/config"
	domcatalog "github.com/Zhima-Mochi/shopcore/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/shopcore/internal/domain/order"
	"github.com/Zhima-Mochi/shopcore/internal/domain/stock"
	"github.com/Zhima-Mochi/shopcore/internal/infrastructure/gateway"
	httptransport "github.com/Zhima-Mochi/shopcore/internal/infrastructure/http"
	"github.com/Zhima-Mochi/shopcore/internal/infrastructure/id"
	"github.com/Zhima-Mochi/shopcore/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/shopcore/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/shopcore/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/shopcore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/shopcore/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/shopcore/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/shopcore/internal/infrastructure/postgres"
	infraredis "github.com/Zhima-Mochi/shopcore/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/shopcore/internal/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.MustLoad()

	logger := zaplogger.MustNew(cfg.LogFile,
		observability.F("service", cfg.Service),
		observability.F("env", cfg.Env),
	)

	registry := prometrics.New(cfg.Service, "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			observability.MUsecaseRequests,
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MStockReservations: registry.Counter(
			observability.MStockReservations,
			"Stock reservations attempted at checkout.",
			"outcome",
		),
		observability.MOrdersSwept: registry.Counter(
			observability.MOrdersSwept,
			"Pending orders cancelled by the expiry sweeper.",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			observability.MUsecaseDuration,
			"Duration of use case execution in seconds.",
			nil,
			"use_case",
		),
	}
	tel := infraobs.New(oteltrace.New(cfg.Service), logger, counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger := buildLedger(cfg, logger)
	orders := buildOrders(ctx, cfg)
	catalog := memory.NewCatalogRepository()
	sessions := memory.NewSessionStore()
	idGenerator := id.NewUUIDGenerator()

	if err := seedCatalog(ctx, cfg, catalog, ledger); err != nil {
		logger.Error("seed_failed", observability.F("error", err))
		os.Exit(1)
	}

	bus := outbox.NewBus(logger)
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	cartService := appcart.NewService(catalog, ledger, logger)
	placeOrder := appcheckout.NewPlaceOrderUseCase(orders, ledger, catalog, sessions, idGenerator, bus, tel)
	reportStatus := apppayment.NewReportStatusUseCase(orders, ledger, sessions, bus, tel)

	sweep := sweeper.New(orders, ledger, bus, cfg.Sweeper.Interval, cfg.Sweeper.PendingTimeout, tel)
	sweep.Start(ctx)
	defer sweep.Stop(context.Background())

	if cfg.Gateway.SimulatorEnabled {
		sim := gateway.NewSimulator(reportStatus, cfg.Gateway.SuccessRate, cfg.Gateway.Delay, logger)
		sim.Register(bus)
	}

	handler := httptransport.NewHandler(cartService, placeOrder, reportStatus, catalog, orders)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", observability.F("error", err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		logger.Info("http_server_stopped")
	}
}

func buildLedger(cfg *config.Config, logger observability.Logger) stock.Ledger {
	switch cfg.Ledger.Backend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Ledger.Redis})
		logger.Info("stock_ledger_backend", observability.F("backend", "redis"))
		return infraredis.NewStockLedger(client)
	default:
		logger.Info("stock_ledger_backend", observability.F("backend", "memory"))
		return memory.NewStockLedger()
	}
}

func buildOrders(ctx context.Context, cfg *config.Config) domorder.Repository {
	switch cfg.Orders.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Orders.URL)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		return postgres.NewOrderRepository(pool)
	default:
		return memory.NewOrderRepository()
	}
}

func seedCatalog(ctx context.Context, cfg *config.Config, catalog *memory.CatalogRepository, ledger stock.Ledger) error {
	for _, s := range cfg.Seed {
		product, err := domcatalog.NewProduct(s.ID, s.Name, s.Price, s.Stock)
		if err != nil {
			return err
		}
		if err := catalog.Save(ctx, product); err != nil {
			return err
		}
		if err := ledger.SetStock(ctx, s.ID, s.Stock); err != nil {
			return err
		}
	}
	return nil
}
