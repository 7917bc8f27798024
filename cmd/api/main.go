package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/pricing"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/gateway"
	"storefront/internal/infra/redisstore"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/server"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//.envは無くてもよい（本番は環境変数）
	_ = godotenv.Load(".env", "../.env")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, closer, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg.PostgresDSN(), log)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	//ゲストカート用Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	eventRepo := infraRepo.NewPaymentEventGormRepository(gormDB)
	guestCarts := redisstore.NewGuestCartStore(rdb, redisstore.DefaultGuestCartTTL)

	gw := gateway.NewClient(gateway.Config{
		BaseURL:         cfg.Gateway.BaseURL(),
		StoreID:         cfg.Gateway.StoreID,
		StorePassword:   cfg.Gateway.StorePassword,
		Timeout:         cfg.Gateway.Timeout,
		CallbackBaseURL: cfg.PublicAPIURL,
	}, log, m)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	calc := pricing.Calculator{
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		ShippingFee:           cfg.Pricing.ShippingFee,
		TaxRate:               cfg.Pricing.TaxRate,
	}

	//Usecase生成
	cartUC := usecase.NewCartUsecase(txm, cartItemRepo, guestCarts, productRepo, calc, log)
	orderUC := usecase.NewOrderUsecase(txm, validator.NewCheckoutValidator(), calc, cfg.Gateway.Currency, idGen, clock, log, m)
	paymentUC := usecase.NewPaymentUsecase(orderRepo, gw, log)
	settlementUC := usecase.NewSettlementUsecase(txm, orderRepo, eventRepo, gw, cfg.Gateway.Validate, clock, log, m)
	adminUC := usecase.NewAdminOrderUsecase(txm, eventRepo, clock, log)

	//Handler生成
	e := server.New(cfg, log, m, server.Handlers{
		Cart:       handler.NewCartHandler(cartUC, cfg.GoEnv == "prod"),
		Checkout:   handler.NewCheckoutHandler(orderUC, paymentUC),
		Payment:    handler.NewPaymentHandler(paymentUC, settlementUC, cfg.AppURL),
		Order:      handler.NewOrderHandler(orderUC),
		AdminOrder: handler.NewAdminOrderHandler(adminUC),
	})

	//Server起動
	addr := ":" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, e, addr, log)
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}
