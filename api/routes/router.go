package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quizlabhq/quizlab-backend/api/controllers"
	orderscontroller "github.com/quizlabhq/quizlab-backend/api/controllers/orders"
	reportscontroller "github.com/quizlabhq/quizlab-backend/api/controllers/reports"
	"github.com/quizlabhq/quizlab-backend/api/controllers/webhooks"
	"github.com/quizlabhq/quizlab-backend/api/middleware"
	"github.com/quizlabhq/quizlab-backend/internal/ratelimit"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
	"github.com/quizlabhq/quizlab-backend/pkg/metrics"
)

// Rules groups the fixed per-route throttling policies.
type Rules struct {
	AccessLink ratelimit.Rule
	Pending    ratelimit.Rule
	Redirect   ratelimit.Rule
}

type Deps struct {
	Logger *logger.Logger

	Health  *controllers.HealthController
	Webhook *webhooks.PaymentController
	Orders  *orderscontroller.Controller
	Reports *reportscontroller.Controller

	Limiter         *ratelimit.Limiter
	Rules           Rules
	RateLimitMetric *metrics.RateLimitMetrics

	MetricsRegistry *prometheus.Registry
}

// New assembles the service router. The webhook route is deliberately outside
// every rate limit: the provider retries aggressively and a throttled ack
// would only multiply deliveries.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/health/live", deps.Health.Live)
	r.Get("/health/ready", deps.Health.Ready)

	if deps.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/payment", deps.Webhook.Handle)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiter, deps.Rules.Pending, deps.RateLimitMetric))
			r.Post("/orders/{id}/pending", deps.Orders.MarkPending)
		})
		r.Get("/orders/session/{sessionID}", deps.Orders.GetBySession)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiter, deps.Rules.AccessLink, deps.RateLimitMetric))
			r.Post("/reports/access-link", deps.Reports.RequestAccessLink)
		})
		r.Get("/reports/{orderID}", deps.Reports.GetReport)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Limiter, deps.Rules.Redirect, deps.RateLimitMetric))
		r.Get("/r/access", deps.Reports.RedeemAccessLink)
	})

	return r
}
