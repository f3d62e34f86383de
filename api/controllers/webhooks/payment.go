package webhooks

import (
	"io"
	"net/http"

	"github.com/quizlabhq/quizlab-backend/api/responses"
	"github.com/quizlabhq/quizlab-backend/internal/webhooks/payment"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
	"github.com/quizlabhq/quizlab-backend/pkg/metrics"
)

const (
	signatureHeader = "X-Webhook-Signature"
	maxWebhookBody  = 1 << 20
)

type PaymentControllerParams struct {
	Service    *payment.Service
	Secret     string
	SkipVerify bool
	Metrics    *metrics.WebhookMetrics
	Logger     *logger.Logger
}

// PaymentController terminates the provider webhook route. The body is read
// raw before anything touches it: the signature covers the exact bytes.
type PaymentController struct {
	service    *payment.Service
	secret     string
	skipVerify bool
	metrics    *metrics.WebhookMetrics
	logg       *logger.Logger
}

func NewPaymentController(params PaymentControllerParams) (*PaymentController, error) {
	if params.Service == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment webhook service required")
	}
	if params.Secret == "" && !params.SkipVerify {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret required")
	}
	return &PaymentController{
		service:    params.Service,
		secret:     params.Secret,
		skipVerify: params.SkipVerify,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func (c *PaymentController) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		c.metrics.IncRejected("body_read")
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
		return
	}

	if c.skipVerify {
		if c.logg != nil {
			c.logg.Warn(ctx, "webhook.signature_check_bypassed")
		}
	} else {
		ok, scheme := payment.VerifyScheme(body, r.Header.Get(signatureHeader), c.secret)
		if !ok {
			c.metrics.IncRejected("bad_signature")
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature"))
			return
		}
		if scheme == payment.SchemeLegacy && c.logg != nil {
			c.logg.Warn(ctx, "webhook.legacy_signature_scheme")
		}
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		c.metrics.IncRejected("bad_event")
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	if c.logg != nil {
		ctx = c.logg.WithFields(ctx, map[string]any{"event_type": event.Type})
	}

	outcome, err := c.service.HandleEvent(ctx, event)
	if err != nil {
		c.metrics.IncRejected(rejectionReason(err))
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	if outcome == payment.OutcomeIgnored {
		c.metrics.IncIgnored(event.Type)
		responses.WriteRaw(w, http.StatusOK, map[string]any{"received": true, "ignored": true})
		return
	}

	c.metrics.IncProcessed(event.Type)
	responses.WriteRaw(w, http.StatusOK, map[string]any{"received": true})
}

func rejectionReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "internal"
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation:
		return "bad_event"
	case pkgerrors.CodeNotFound:
		return "order_not_found"
	default:
		return "internal"
	}
}
