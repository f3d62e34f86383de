package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quizlabhq/quizlab-backend/internal/orders"
	"github.com/quizlabhq/quizlab-backend/internal/users"
	"github.com/quizlabhq/quizlab-backend/pkg/db/models"
	"github.com/quizlabhq/quizlab-backend/pkg/enums"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
	"github.com/quizlabhq/quizlab-backend/pkg/mailer"
)

// Outcome summarizes what reconciliation did with an event.
type Outcome int

const (
	// OutcomeProcessed means a transition was applied.
	OutcomeProcessed Outcome = iota
	// OutcomeIgnored means the event was acknowledged without a write:
	// duplicate delivery, disallowed transition, or lost conditional update.
	OutcomeIgnored
)

// ReportPublisher triggers downstream report generation.
type ReportPublisher interface {
	PublishReportGenerate(ctx context.Context, orderID, quizResponseID uuid.UUID, email string) error
}

type ServiceParams struct {
	Orders    orders.Repository
	Users     users.Repository
	Mailer    mailer.Sender
	Publisher ReportPublisher
	Logger    *logger.Logger
}

// Service reconciles normalized webhook events against stored orders.
type Service struct {
	orders    orders.Repository
	users     users.Repository
	mail      mailer.Sender
	publisher ReportPublisher
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	return &Service{
		orders:    params.Orders,
		users:     params.Users,
		mail:      params.Mailer,
		publisher: params.Publisher,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// HandleEvent looks up the order, evaluates the transition predicate, and
// applies the conditional update. Side effects after a paid transition are
// best-effort: the financial state is already durable, so their failures are
// logged and left for out-of-band retry.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (Outcome, error) {
	if event == nil {
		return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}
	if event.TargetStatus == nil {
		return OutcomeIgnored, nil
	}
	if event.OrderID == "" && event.ProviderOrderID == "" {
		return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeValidation, "order identifier is required")
	}

	order, err := s.lookupOrder(ctx, event)
	if err != nil {
		return OutcomeIgnored, err
	}

	if !orders.ShouldTransition(order.Status, event.TargetStatus) {
		return OutcomeIgnored, nil
	}

	update := orders.TransitionUpdate{}
	if event.ProviderOrderID != "" {
		providerID := event.ProviderOrderID
		update.ProviderOrderID = &providerID
	}
	target := *event.TargetStatus
	if target == enums.OrderStatusPaid {
		paidAt := s.now().UTC()
		update.PaidAt = &paidAt
	}

	applied, err := s.orders.TransitionStatus(ctx, order.ID, order.Status, target, update)
	if err != nil {
		return OutcomeIgnored, err
	}
	if !applied {
		// A concurrent delivery won the conditional update. The desired end
		// state already holds, so this delivery is a duplicate.
		return OutcomeIgnored, nil
	}

	if target == enums.OrderStatusPaid {
		s.runPaidSideEffects(ctx, order, event.CustomerEmail)
	}

	return OutcomeProcessed, nil
}

func (s *Service) lookupOrder(ctx context.Context, event *Event) (*models.Order, error) {
	if event.OrderID != "" {
		id, err := uuid.Parse(event.OrderID)
		if err == nil {
			return s.orders.FindByID(ctx, id)
		}
		// Malformed metadata id; fall back to the provider identifier.
	}
	if event.ProviderOrderID != "" {
		return s.orders.FindByProviderOrderID(ctx, event.ProviderOrderID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

// runPaidSideEffects uses the order's email when present; the payload's
// customer email only fills the gap when the order row carries none.
func (s *Service) runPaidSideEffects(ctx context.Context, order *models.Order, eventEmail string) {
	email := order.Email
	if email == "" {
		email = eventEmail
	}

	s.reconcileUserEmail(ctx, order, email)

	if s.mail != nil && email != "" {
		body := "<p>Thanks for your purchase. Your report is being prepared and will be available shortly.</p>"
		if err := s.mail.Send(ctx, email, "Your QuizLab purchase is confirmed", body); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "webhook.confirmation_mail_failed", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReportGenerate(ctx, order.ID, order.QuizResponseID, email); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "webhook.report_trigger_failed", err)
		}
	}
}

// reconcileUserEmail backfills the linked user's email from the payment. A
// differing stored email is logged but never overwritten: the first-seen
// email stays authoritative so a webhook payload cannot hijack it.
func (s *Service) reconcileUserEmail(ctx context.Context, order *models.Order, email string) {
	if order.UserID == "" || email == "" {
		return
	}

	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id": order.ID.String(),
				"user_id":  order.UserID,
			}), "webhook.email_sync_user_missing")
		}
		return
	}

	if user.Email == nil || *user.Email == "" {
		if _, err := s.users.SetEmailIfEmpty(ctx, order.UserID, email); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "webhook.email_sync_failed", err)
		}
		return
	}

	if *user.Email != email && s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"user_id":  order.UserID,
		}), fmt.Sprintf("webhook.email_mismatch order=%s keeps stored user email", order.ID))
	}
}
