package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quizlabhq/quizlab-backend/api/responses"
	"github.com/quizlabhq/quizlab-backend/internal/orders"
	"github.com/quizlabhq/quizlab-backend/pkg/db/models"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
)

const anonymousIDHeader = "X-Anonymous-Id"

type ControllerParams struct {
	Service *orders.Service
	Logger  *logger.Logger
}

type Controller struct {
	service *orders.Service
	logg    *logger.Logger
}

func NewController(params ControllerParams) (*Controller, error) {
	if params.Service == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	return &Controller{service: params.Service, logg: params.Logger}, nil
}

// MarkPending records that the client handed the order off to the payment
// provider. Calling it on an order that already advanced returns the current
// row unchanged.
func (c *Controller) MarkPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
		return
	}

	order, err := c.service.MarkPending(ctx, orderID, r.Header.Get(anonymousIDHeader))
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	responses.WriteSuccess(w, orderPayload(order))
}

// GetBySession resolves an order from the provider session id handed back on
// the checkout redirect.
func (c *Controller) GetBySession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, err := c.service.FindBySession(ctx, chi.URLParam(r, "sessionID"), r.Header.Get(anonymousIDHeader))
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	responses.WriteSuccess(w, orderPayload(order))
}

func orderPayload(order *models.Order) map[string]any {
	return map[string]any{
		"id":       order.ID,
		"status":   order.Status,
		"amount":   order.Amount,
		"currency": order.Currency,
		"paid_at":  order.PaidAt,
	}
}
