package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/owlscommerce/owls-backend/api/controllers"
	webhookcontrollers "github.com/owlscommerce/owls-backend/api/controllers/webhooks"
	"github.com/owlscommerce/owls-backend/api/middleware"
	cartsvc "github.com/owlscommerce/owls-backend/internal/cart"
	ordersvc "github.com/owlscommerce/owls-backend/internal/orders"
	paymentsvc "github.com/owlscommerce/owls-backend/internal/payments"
	"github.com/owlscommerce/owls-backend/pkg/auth"
	"github.com/owlscommerce/owls-backend/pkg/config"
	"github.com/owlscommerce/owls-backend/pkg/db"
	"github.com/owlscommerce/owls-backend/pkg/enums"
	"github.com/owlscommerce/owls-backend/pkg/gateway"
	"github.com/owlscommerce/owls-backend/pkg/logger"
	"github.com/owlscommerce/owls-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. cmd/api builds one after
// wiring the services.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     *redis.Client
	Gateways  *gateway.Registry
	Cart      *cartsvc.Service
	Orders    *ordersvc.Service
	OrderRepo ordersvc.Repository
	Payments  *paymentsvc.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/webhooks", func(r chi.Router) {
		if adapter, ok := deps.Gateways.ForCode(enums.GatewayVNPay); ok {
			handler := webhookcontrollers.VNPayIPN(adapter, deps.Payments, logg)
			// VNPay sends IPNs as GETs with query parameters; POST is kept
			// for merchants configured the other way.
			r.Get("/vnpay/ipn", handler)
			r.Post("/vnpay/ipn", handler)
		}
		if adapter, ok := deps.Gateways.ForCode(enums.GatewayMoMo); ok {
			r.Post("/momo/ipn", webhookcontrollers.MoMoIPN(adapter, deps.Payments, logg))
		}
		if adapter, ok := deps.Gateways.ForCode(enums.GatewayZaloPay); ok {
			r.Post("/zalopay/callback", webhookcontrollers.ZaloPayCallback(adapter, deps.Payments, logg))
		}
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Cart, logg))
			r.Post("/coupon", controllers.CartApplyCoupon(deps.Cart, logg))
			r.Delete("/coupon", controllers.CartRemoveCoupon(deps.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.Checkout(deps.Orders, logg))
			r.Get("/", controllers.OrderList(deps.OrderRepo, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.OrderRepo, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(deps.OrderRepo, deps.Orders, logg))
			r.With(middleware.RequireRole(auth.RoleAdmin, logg)).
				Post("/{orderId}/refund", controllers.OrderRefund(deps.OrderRepo, deps.Orders, logg))
		})

		r.Get("/payment-methods", controllers.PaymentMethods(deps.Payments, logg))
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentCreate(deps.OrderRepo, deps.Payments, logg))
			r.Get("/{transactionId}", controllers.PaymentDetail(deps.OrderRepo, deps.Payments, logg))
		})
	})

	return r
}
