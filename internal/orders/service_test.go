package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizlabhq/quizlab-backend/pkg/db/models"
	"github.com/quizlabhq/quizlab-backend/pkg/enums"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
)

type stubRepo struct {
	order       *models.Order
	applied     bool
	transitions int
}

func (s *stubRepo) WithTx(_ *gorm.DB) Repository { return s }

func (s *stubRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.Order, error) {
	if s.order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubRepo) FindByProviderOrderID(_ context.Context, _ string) (*models.Order, error) {
	return s.FindByID(context.Background(), uuid.Nil)
}

func (s *stubRepo) FindByProviderSessionID(_ context.Context, sessionID string) (*models.Order, error) {
	if s.order == nil || s.order.ProviderSessionID != sessionID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubRepo) FindLatestPaidByEmail(_ context.Context, _ string) (*models.Order, error) {
	return s.FindByID(context.Background(), uuid.Nil)
}

func (s *stubRepo) TransitionStatus(_ context.Context, _ uuid.UUID, from, to enums.OrderStatus, _ TransitionUpdate) (bool, error) {
	s.transitions++
	if s.applied {
		s.order.Status = to
	}
	return s.applied, nil
}

func (s *stubRepo) SetReportAccessTokenHash(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func TestMarkPendingTransitionsCreatedOrder(t *testing.T) {
	repo := &stubRepo{
		order:   &models.Order{ID: uuid.New(), Status: enums.OrderStatusCreated, UserID: "anon_1"},
		applied: true,
	}
	service, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	order, err := service.MarkPending(context.Background(), repo.order.ID, "anon_1")
	if err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	if order.Status != enums.OrderStatusPendingWebhook {
		t.Fatalf("expected pending_webhook, got %s", order.Status)
	}
	if repo.transitions != 1 {
		t.Fatalf("expected one transition call")
	}
}

func TestMarkPendingIsIdempotentPastCreated(t *testing.T) {
	repo := &stubRepo{
		order: &models.Order{ID: uuid.New(), Status: enums.OrderStatusPaid, UserID: "anon_1"},
	}
	service, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	order, err := service.MarkPending(context.Background(), repo.order.ID, "anon_1")
	if err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("expected current status returned, got %s", order.Status)
	}
	if repo.transitions != 0 {
		t.Fatalf("advanced order must not be written")
	}
}

func TestMarkPendingRejectsWrongOwner(t *testing.T) {
	repo := &stubRepo{
		order: &models.Order{ID: uuid.New(), Status: enums.OrderStatusCreated, UserID: "anon_1"},
	}
	service, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	_, err = service.MarkPending(context.Background(), repo.order.ID, "anon_2")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected generic not-found for wrong owner, got %v", err)
	}
}

func TestMarkPendingLostRaceRereads(t *testing.T) {
	repo := &stubRepo{
		order:   &models.Order{ID: uuid.New(), Status: enums.OrderStatusCreated, UserID: "anon_1"},
		applied: false,
	}
	service, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	// Simulate a webhook winning between the read and the write.
	repo.order.Status = enums.OrderStatusCreated
	order, err := service.MarkPending(context.Background(), repo.order.ID, "anon_1")
	if err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	if order == nil {
		t.Fatalf("expected re-read row on lost race")
	}
}

func TestFindBySessionChecksOwner(t *testing.T) {
	repo := &stubRepo{
		order: &models.Order{ID: uuid.New(), Status: enums.OrderStatusPendingWebhook, UserID: "anon_1", ProviderSessionID: "sess_1"},
	}
	service, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	if _, err := service.FindBySession(context.Background(), "sess_1", "anon_1"); err != nil {
		t.Fatalf("find by session: %v", err)
	}

	_, err = service.FindBySession(context.Background(), "sess_1", "anon_2")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for wrong owner, got %v", err)
	}

	_, err = service.FindBySession(context.Background(), "   ", "anon_1")
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for blank session id, got %v", err)
	}
}
