package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiranahub/kiranahub-backend/api/controllers"
	"github.com/kiranahub/kiranahub-backend/api/middleware"
	"github.com/kiranahub/kiranahub-backend/internal/grouporders"
	"github.com/kiranahub/kiranahub-backend/internal/quotes"
	"github.com/kiranahub/kiranahub-backend/pkg/config"
	"github.com/kiranahub/kiranahub-backend/pkg/db"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
	"github.com/kiranahub/kiranahub-backend/pkg/redis"
)

// Dependencies are the collaborators mounted by the router. Redis and
// Gatherer are optional.
type Dependencies struct {
	DB          db.Pinger
	Redis       *redis.Client
	Quotes      quotes.Service
	GroupOrders grouporders.Service
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var (
		redisPinger      redis.Pinger
		idempotencyStore redis.IdempotencyStore
	)
	if deps.Redis != nil {
		redisPinger = deps.Redis
		idempotencyStore = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Idempotency is attached per route so the chi route pattern is resolved
	// by the time the middleware inspects it.
	idempotent := middleware.Idempotency(idempotencyStore, idempotencyTTL(cfg), logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))

		r.Route("/pricing", func(r chi.Router) {
			r.Post("/quote", controllers.PricingQuote(deps.Quotes, logg))
			r.Post("/cart-quote", controllers.PricingCartQuote(deps.Quotes, logg))
		})

		r.Route("/group-orders", func(r chi.Router) {
			r.Get("/", controllers.GroupOrderList(deps.GroupOrders, logg))
			r.Post("/", controllers.GroupOrderCreate(deps.GroupOrders, logg))
			r.Get("/{orderID}", controllers.GroupOrderDetail(deps.GroupOrders, logg))
			r.With(idempotent).Put("/{orderID}/participations/{vendorID}", controllers.GroupOrderParticipationPut(deps.GroupOrders, logg))
			r.With(idempotent).Delete("/{orderID}/participations/{vendorID}", controllers.GroupOrderParticipationDelete(deps.GroupOrders, logg))
			r.With(idempotent).Post("/{orderID}/status", controllers.GroupOrderTransitionStatus(deps.GroupOrders, logg))
		})
	})

	return r
}

func idempotencyTTL(cfg *config.Config) time.Duration {
	if cfg == nil {
		return 0
	}
	return cfg.Idempotency.TTL
}
