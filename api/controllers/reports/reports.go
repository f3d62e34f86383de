package reports

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quizlabhq/quizlab-backend/api/responses"
	"github.com/quizlabhq/quizlab-backend/api/validators"
	"github.com/quizlabhq/quizlab-backend/internal/reports"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
)

const (
	// SessionCookieName carries the signed guest session value.
	SessionCookieName = "ql_session"

	anonymousIDHeader = "X-Anonymous-Id"

	successRedirectPath = "/reports"
	retryRedirectPath   = "/access/retry"
)

type ControllerParams struct {
	Service       *reports.Service
	Logger        *logger.Logger
	PublicBaseURL string
	SecureCookies bool
}

type Controller struct {
	service       *reports.Service
	logg          *logger.Logger
	publicBaseURL string
	secureCookies bool
	now           func() time.Time
}

func NewController(params ControllerParams) (*Controller, error) {
	if params.Service == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reports service required")
	}
	return &Controller{
		service:       params.Service,
		logg:          params.Logger,
		publicBaseURL: strings.TrimRight(params.PublicBaseURL, "/"),
		secureCookies: params.SecureCookies,
		now:           time.Now,
	}, nil
}

type accessLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestAccessLink responds with the same generic acknowledgement whether or
// not a paid order exists for the email, so mailbox ownership cannot be probed.
func (c *Controller) RequestAccessLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req accessLinkRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	if err := c.service.IssueAccessLink(ctx, req.Email); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		// Internal failures get the generic acknowledgement too; the error is
		// logged here and the caller retries through the same route.
		if c.logg != nil {
			c.logg.Error(ctx, "reports.access_link_issue_failed", err)
		}
	}

	responses.WriteSuccess(w, map[string]string{
		"message": "If a matching purchase exists, an access link has been emailed.",
	})
}

// RedeemAccessLink spends a one-time token and converts it to a guest session
// cookie. Every failure path lands on the same retry redirect; the response
// never says why a token was rejected.
func (c *Controller) RedeemAccessLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := c.now().UTC()

	grant := c.service.ConsumeAccessLink(ctx, r.URL.Query().Get("token"), now)
	if grant == nil {
		http.Redirect(w, r, c.publicBaseURL+retryRedirectPath, http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    grant.CookieValue,
		Path:     "/",
		Expires:  grant.ExpiresAt,
		HttpOnly: true,
		Secure:   c.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, c.publicBaseURL+successRedirectPath, http.StatusFound)
}

// GetReport returns report metadata for a paid order the caller is authorized
// to read, by anonymous id header or guest session cookie.
func (c *Controller) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
		return
	}

	order, err := c.service.AuthorizeOrder(ctx, orderID, r.Header.Get(anonymousIDHeader), sessionCookieValue(r), c.now().UTC())
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	payload := map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
		"paid_at":  order.PaidAt,
	}
	if order.ReportFileKey != nil {
		payload["report_url"] = c.publicBaseURL + "/files/" + *order.ReportFileKey
	}
	responses.WriteSuccess(w, payload)
}

func sessionCookieValue(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
