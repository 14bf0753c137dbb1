package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gasflowhq/gasflow-backend/api/controllers"
	webhookcontrollers "github.com/gasflowhq/gasflow-backend/api/controllers/webhooks"
	"github.com/gasflowhq/gasflow-backend/api/middleware"
	"github.com/gasflowhq/gasflow-backend/internal/customers"
	"github.com/gasflowhq/gasflow-backend/internal/deliveries"
	"github.com/gasflowhq/gasflow-backend/internal/ledger"
	"github.com/gasflowhq/gasflow-backend/internal/payments"
	"github.com/gasflowhq/gasflow-backend/internal/webhooks"
	"github.com/gasflowhq/gasflow-backend/pkg/config"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
	pkgredis "github.com/gasflowhq/gasflow-backend/pkg/redis"
)

type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.ReadinessPinger
	Redis *pkgredis.Client

	Customers  customers.Service
	Deliveries deliveries.Service
	Ledger     ledger.Service
	Payments   payments.Service
	Webhooks   webhooks.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	readiness := map[string]controllers.ReadinessPinger{}
	if deps.DB != nil {
		readiness["postgres"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/intasend", webhookcontrollers.IntaSendWebhook(deps.Webhooks, logg))
	})

	var idempotencyStore pkgredis.IdempotencyStore
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RequireStaff(logg),
			middleware.Idempotency(idempotencyStore, logg),
		)

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", controllers.CustomerCreate(deps.Customers, logg))
			r.Get("/", controllers.CustomerList(deps.Customers, logg))
			r.Route("/{customerID}", func(r chi.Router) {
				r.Get("/", controllers.CustomerGet(deps.Customers, logg))
				r.Patch("/", controllers.CustomerUpdate(deps.Customers, logg))
				r.Delete("/", controllers.CustomerRetire(deps.Customers, logg))
				r.Get("/balance", controllers.CustomerBalance(deps.Ledger, logg))
				r.Get("/deliveries", controllers.DeliveryListByCustomer(deps.Deliveries, logg))
				r.Get("/payments", controllers.PaymentListByCustomer(deps.Payments, logg))
			})
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Post("/", controllers.DeliveryCreate(deps.Deliveries, logg))
			r.Route("/{deliveryID}", func(r chi.Router) {
				r.Get("/", controllers.DeliveryGet(deps.Deliveries, logg))
				r.Delete("/", controllers.DeliveryDelete(deps.Deliveries, logg))
				r.Patch("/status", controllers.DeliveryUpdateStatus(deps.Deliveries, logg))
				r.Get("/lock", controllers.DeliveryCheckLock(deps.Deliveries, logg))
				r.Patch("/price", controllers.DeliveryUpdatePrice(deps.Deliveries, logg))
				r.Post("/checkout", controllers.PaymentInitiateCheckout(deps.Payments, logg))
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/cash", controllers.PaymentRecordCash(deps.Payments, logg))
			r.Get("/{paymentID}", controllers.PaymentGet(deps.Payments, logg))
		})
	})

	// Self-service surface for customer-scoped tokens. Everything is bound to
	// the customer scope in the token, never to request parameters.
	r.Route("/api/v1/portal", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RequireRole(enums.ActorRoleCustomer, logg),
			middleware.Idempotency(idempotencyStore, logg),
		)

		r.Get("/balance", controllers.PortalBalance(deps.Ledger, logg))
		r.Route("/deliveries", func(r chi.Router) {
			r.Post("/", controllers.PortalDeliveryCreate(deps.Deliveries, logg))
			r.Get("/", controllers.PortalDeliveryList(deps.Deliveries, logg))
		})
		r.Get("/payments", controllers.PortalPaymentList(deps.Payments, logg))
	})

	return r
}
