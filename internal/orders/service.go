package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/quizlabhq/quizlab-backend/pkg/db/models"
	"github.com/quizlabhq/quizlab-backend/pkg/enums"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
)

type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service owns the client-facing order transitions: the mark-pending step
// right after the checkout redirect and the session-id lookup on return.
type Service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// MarkPending moves a created order to pending_webhook on behalf of the
// client that owns it. Calls against an order that already advanced are
// idempotent no-ops returning the current row.
func (s *Service) MarkPending(ctx context.Context, orderID uuid.UUID, anonUserID string) (*models.Order, error) {
	order, err := s.authorizedOrder(ctx, orderID, anonUserID)
	if err != nil {
		return nil, err
	}

	if order.Status != enums.OrderStatusCreated {
		return order, nil
	}

	applied, err := s.repo.TransitionStatus(ctx, order.ID, enums.OrderStatusCreated, enums.OrderStatusPendingWebhook, TransitionUpdate{})
	if err != nil {
		return nil, err
	}
	if !applied {
		// A webhook raced us past created; the stored row is the truth.
		return s.repo.FindByID(ctx, order.ID)
	}

	order.Status = enums.OrderStatusPendingWebhook
	return order, nil
}

// FindBySession resolves an order from the opaque provider session id handed
// back on the checkout redirect.
func (s *Service) FindBySession(ctx context.Context, sessionID, anonUserID string) (*models.Order, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	order, err := s.repo.FindByProviderSessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ownerMatches(order, anonUserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *Service) authorizedOrder(ctx context.Context, orderID uuid.UUID, anonUserID string) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ownerMatches(order, anonUserID) {
		// Generic not-found keeps order ids unguessable across users.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func ownerMatches(order *models.Order, anonUserID string) bool {
	return anonUserID != "" && order.UserID == anonUserID
}
