package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/owlscommerce/owls-backend/internal/cart"
	"github.com/owlscommerce/owls-backend/internal/coupons"
	"github.com/owlscommerce/owls-backend/internal/cron"
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

const lockKeyFormat = "owls:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

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

	paymentSvc, err = payments.NewService(payments.NewRepository(gormDB), dbClient, ordersSvc, gateways, paymentMetrics, events, logg, cfg.Checkout.PaymentCeiling)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	reconcileJob, err := cron.NewReconcilePaymentsJob(cron.ReconcilePaymentsJobParams{
		Logger:   logg,
		Payments: paymentSvc,
		Metrics:  cronMetrics,
		Grace:    cfg.Checkout.ReconcileGrace,
		Batch:    cfg.Checkout.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
		Logger:   logg,
		Payments: paymentSvc,
		Metrics:  cronMetrics,
		Batch:    cfg.Checkout.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}
	unpaidJob, err := cron.NewUnpaidOrdersJob(cron.UnpaidOrdersJobParams{
		Logger:  logg,
		Reader:  ordersRepo,
		Orders:  ordersSvc,
		Metrics: cronMetrics,
		Timeout: cfg.Checkout.UnpaidOrderTimeout,
		Batch:   cfg.Checkout.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create unpaid orders job", err)
		os.Exit(1)
	}
	couponJob, err := cron.NewCouponRulesJob(logg, couponRules)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon rules job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob, expiryJob, unpaidJob, couponJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Checkout.CronTickInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
