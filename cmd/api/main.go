package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/owlscommerce/owls-backend/api/routes"
	"github.com/owlscommerce/owls-backend/internal/cart"
	"github.com/owlscommerce/owls-backend/internal/coupons"
	"github.com/owlscommerce/owls-backend/internal/notifications"
	"github.com/owlscommerce/owls-backend/internal/orders"
	"github.com/owlscommerce/owls-backend/internal/payments"
	"github.com/owlscommerce/owls-backend/pkg/config"
	"github.com/owlscommerce/owls-backend/pkg/db"
	"github.com/owlscommerce/owls-backend/pkg/gateway"
	"github.com/owlscommerce/owls-backend/pkg/logger"
	"github.com/owlscommerce/owls-backend/pkg/metrics"
	"github.com/owlscommerce/owls-backend/pkg/migrate"
	"github.com/owlscommerce/owls-backend/pkg/pubsub"
	"github.com/owlscommerce/owls-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	events := notifications.NewPublisher(nil, logg)
	if cfg.PubSub.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		events = notifications.NewPublisher(pubsubClient.OrdersPublisher(), logg)
	} else {
		logg.Warn(context.Background(), "pubsub project not configured, order events disabled")
	}

	gatewayHTTP := &http.Client{Timeout: cfg.Checkout.GatewayClientTimeout}
	gateways := gateway.NewRegistry(
		gateway.NewVNPay(cfg.VNPay, gatewayHTTP),
		gateway.NewMoMo(cfg.MoMo, gatewayHTTP),
		gateway.NewZaloPay(cfg.ZaloPay, gatewayHTTP),
		gateway.NewCOD(),
	)

	taxRate, err := cfg.Checkout.TaxRateValue()
	if err != nil {
		logg.Error(context.Background(), "invalid tax rate", err)
		os.Exit(1)
	}
	shippingFee, err := cfg.Checkout.ShippingFee()
	if err != nil {
		logg.Error(context.Background(), "invalid shipping fee", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	couponRepo := coupons.NewRepository(gormDB)
	couponRules := coupons.NewRules(couponRepo)
	couponSvc, err := coupons.NewService(couponRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}
	if err := couponRules.Refresh(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to warm coupon rules", err)
	}

	catalog := cart.NewCatalog(gormDB)
	cartSvc, err := cart.NewService(cart.NewRepository(gormDB), catalog, couponRepo, couponRules, dbClient, cart.Options{
		TaxRate:         taxRate,
		ShippingFee:     shippingFee,
		MaxItemQuantity: cfg.Checkout.MaxCartItemQuantity,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	// orders and payments call into each other for settlement and refunds;
	// the order service is built first with a late-bound payment marker.
	var paymentSvc *payments.Service
	ordersSvc, err := orders.NewService(ordersRepo, dbClient, cartSvc, couponSvc, catalog,
		orders.PaymentMarkerFunc(func(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
			return paymentSvc.MarkRefundedTx(ctx, tx, orderID, reason)
		}),
		events, logg, cfg.Checkout.OrderNumberPrefix)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	paymentSvc, err = payments.NewService(paymentsRepo, dbClient, ordersSvc, gateways, paymentMetrics, events, logg, cfg.Checkout.PaymentCeiling)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Gateways:  gateways,
		Cart:      cartSvc,
		Orders:    ordersSvc,
		OrderRepo: ordersRepo,
		Payments:  paymentSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	// keep the coupon rule snapshot warm; stale reads fall back to the table
	go func() {
		ticker := time.NewTicker(cfg.Checkout.CouponRefreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := couponRules.Refresh(ctx); err != nil {
					logg.Error(ctx, "refresh coupon rules", err)
				}
			}
		}
	}()

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down")
}
