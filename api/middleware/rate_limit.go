package middleware

import (
	"net/http"

	"github.com/quizlabhq/quizlab-backend/api/responses"
	"github.com/quizlabhq/quizlab-backend/internal/ratelimit"
	"github.com/quizlabhq/quizlab-backend/pkg/metrics"
)

// RateLimit applies a fixed per-route throttling rule before the handler
// runs. Every failure path inside the limiter resolves to a decision, so
// this middleware never panics on backend trouble.
func RateLimit(limiter *ratelimit.Limiter, rule ratelimit.Rule, rlMetrics *metrics.RateLimitMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			decision := limiter.Enforce(ctx, ratelimit.ClientIdentity(r), rule)
			if decision.Blocked {
				rlMetrics.IncBlocked(rule.Name)
				responses.WriteError(ctx, nil, w, decision.Err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
