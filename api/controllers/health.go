package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/quizlabhq/quizlab-backend/api/responses"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthControllerParams struct {
	DB     pinger
	Redis  pinger
	Logger *logger.Logger
}

type HealthController struct {
	db    pinger
	redis pinger
	logg  *logger.Logger
}

func NewHealthController(params HealthControllerParams) *HealthController {
	return &HealthController{db: params.DB, redis: params.Redis, logg: params.Logger}
}

func (c *HealthController) Live(w http.ResponseWriter, _ *http.Request) {
	responses.WriteSuccess(w, map[string]string{"status": "ok"})
}

// Ready pings the hard dependencies. Redis is optional outside production, so
// a nil client is simply reported as absent rather than failing readiness.
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}

	if c.db != nil {
		if err := c.db.Ping(ctx); err != nil {
			checks["database"] = "unreachable"
			responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
			return
		}
		checks["database"] = "ok"
	}

	if c.redis != nil {
		if err := c.redis.Ping(ctx); err != nil {
			checks["redis"] = "unreachable"
			responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable"))
			return
		}
		checks["redis"] = "ok"
	} else {
		checks["redis"] = "absent"
	}

	responses.WriteSuccess(w, checks)
}
