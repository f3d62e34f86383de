package routes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/quizlabhq/quizlab-backend/api/controllers"
	orderscontroller "github.com/quizlabhq/quizlab-backend/api/controllers/orders"
	reportscontroller "github.com/quizlabhq/quizlab-backend/api/controllers/reports"
	"github.com/quizlabhq/quizlab-backend/api/controllers/webhooks"
	"github.com/quizlabhq/quizlab-backend/internal/credentials"
	"github.com/quizlabhq/quizlab-backend/internal/orders"
	"github.com/quizlabhq/quizlab-backend/internal/ratelimit"
	reportssvc "github.com/quizlabhq/quizlab-backend/internal/reports"
	"github.com/quizlabhq/quizlab-backend/internal/users"
	"github.com/quizlabhq/quizlab-backend/internal/webhooks/payment"
	"github.com/quizlabhq/quizlab-backend/pkg/db/models"
	"github.com/quizlabhq/quizlab-backend/pkg/enums"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
	"github.com/quizlabhq/quizlab-backend/pkg/metrics"
)

const routerTestSecret = "whsec_router"

type routerOrdersRepo struct {
	order   *models.Order
	applied bool
}

func (f *routerOrdersRepo) WithTx(_ *gorm.DB) orders.Repository { return f }

func (f *routerOrdersRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if f.order == nil || f.order.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return f.order, nil
}

func (f *routerOrdersRepo) FindByProviderOrderID(_ context.Context, _ string) (*models.Order, error) {
	if f.order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return f.order, nil
}

func (f *routerOrdersRepo) FindByProviderSessionID(_ context.Context, sessionID string) (*models.Order, error) {
	if f.order == nil || f.order.ProviderSessionID != sessionID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return f.order, nil
}

func (f *routerOrdersRepo) FindLatestPaidByEmail(_ context.Context, _ string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (f *routerOrdersRepo) TransitionStatus(_ context.Context, _ uuid.UUID, _, to enums.OrderStatus, _ orders.TransitionUpdate) (bool, error) {
	if f.applied {
		f.order.Status = to
	}
	return f.applied, nil
}

func (f *routerOrdersRepo) SetReportAccessTokenHash(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

type routerUsersRepo struct{}

func (f *routerUsersRepo) FindByID(_ context.Context, _ string) (*models.User, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

func (f *routerUsersRepo) SetEmailIfEmpty(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

var _ users.Repository = (*routerUsersRepo)(nil)

type routerLinksRepo struct{}

func (f *routerLinksRepo) CreateLink(_ context.Context, _ *models.ReportAccessLink) error {
	return nil
}

func (f *routerLinksRepo) FindLinkByHash(_ context.Context, _ string) (*models.ReportAccessLink, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "access link not found")
}

func (f *routerLinksRepo) ConsumeLink(_ context.Context, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func newTestRouter(t *testing.T, repo *routerOrdersRepo, accessLinkLimit int64) http.Handler {
	t.Helper()

	tokens, err := credentials.NewTokenIssuer("pepper")
	require.NoError(t, err)
	sessions, err := credentials.NewSessionIssuer("session-secret", 0)
	require.NoError(t, err)

	webhookService, err := payment.NewService(payment.ServiceParams{
		Orders: repo,
		Users:  &routerUsersRepo{},
	})
	require.NoError(t, err)

	ordersService, err := orders.NewService(orders.ServiceParams{Repo: repo})
	require.NoError(t, err)

	reportsService, err := reportssvc.NewService(reportssvc.ServiceParams{
		Orders:        repo,
		Links:         &routerLinksRepo{},
		Tokens:        tokens,
		Sessions:      sessions,
		PublicBaseURL: "https://quizlab.example",
	})
	require.NoError(t, err)

	webhookController, err := webhooks.NewPaymentController(webhooks.PaymentControllerParams{
		Service: webhookService,
		Secret:  routerTestSecret,
	})
	require.NoError(t, err)

	ordersController, err := orderscontroller.NewController(orderscontroller.ControllerParams{Service: ordersService})
	require.NoError(t, err)

	reportsController, err := reportscontroller.NewController(reportscontroller.ControllerParams{
		Service:       reportsService,
		PublicBaseURL: "https://quizlab.example",
	})
	require.NoError(t, err)

	registry := prometheus.NewRegistry()

	return New(Deps{
		Health:  controllers.NewHealthController(controllers.HealthControllerParams{}),
		Webhook: webhookController,
		Orders:  ordersController,
		Reports: reportsController,
		Limiter: ratelimit.New(ratelimit.NewMemoryStore(), nil),
		Rules: Rules{
			AccessLink: ratelimit.Rule{Name: "reports.access_link", Limit: accessLinkLimit, Window: time.Minute, Mode: ratelimit.FailClosed},
			Pending:    ratelimit.Rule{Name: "orders.mark_pending", Limit: 30, Window: time.Minute, Mode: ratelimit.FailOpen},
			Redirect:   ratelimit.Rule{Name: "reports.redeem", Limit: 10, Window: time.Minute, Mode: ratelimit.FailOpen},
		},
		RateLimitMetric: metrics.NewRateLimitMetrics(nil),
		MetricsRegistry: registry,
	})
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(t, &routerOrdersRepo{}, 5)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &routerOrdersRepo{}, 5)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterWebhookEndToEnd(t *testing.T) {
	repo := &routerOrdersRepo{
		order:   &models.Order{ID: uuid.New(), Status: enums.OrderStatusPendingWebhook},
		applied: true,
	}
	router := newTestRouter(t, repo, 5)

	body := []byte(`{"event_type":"payment.succeeded","data":{"transaction_id":"tx_r","metadata":{"order_id":"` + repo.order.ID.String() + `"}}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", payment.Sign(body, routerTestSecret, time.Now()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
	assert.Equal(t, enums.OrderStatusPaid, repo.order.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRouterAccessLinkRateLimited(t *testing.T) {
	router := newTestRouter(t, &routerOrdersRepo{}, 2)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/access-link", bytes.NewReader([]byte(`{"email":"buyer@example.com"}`)))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/access-link", bytes.NewReader([]byte(`{"email":"buyer@example.com"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRouterMarkPendingRoute(t *testing.T) {
	repo := &routerOrdersRepo{
		order:   &models.Order{ID: uuid.New(), Status: enums.OrderStatusCreated, UserID: "anon_1"},
		applied: true,
	}
	router := newTestRouter(t, repo, 5)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+repo.order.ID.String()+"/pending", nil)
	req.Header.Set("X-Anonymous-Id", "anon_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(enums.OrderStatusPendingWebhook))
}

func TestRouterRedeemRedirectsOnFailure(t *testing.T) {
	router := newTestRouter(t, &routerOrdersRepo{}, 5)

	req := httptest.NewRequest(http.MethodGet, "/r/access?token=bogus", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://quizlab.example/access/retry", rec.Header().Get("Location"))
}

func TestRouterSessionLookup(t *testing.T) {
	repo := &routerOrdersRepo{
		order: &models.Order{ID: uuid.New(), Status: enums.OrderStatusPendingWebhook, UserID: "anon_1", ProviderSessionID: "sess_42"},
	}
	router := newTestRouter(t, repo, 5)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/session/sess_42", nil)
	req.Header.Set("X-Anonymous-Id", "anon_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
