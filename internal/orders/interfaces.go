package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizlabhq/quizlab-backend/pkg/db/models"
	"github.com/quizlabhq/quizlab-backend/pkg/enums"
)

// TransitionUpdate carries the optional columns written alongside a status
// transition.
type TransitionUpdate struct {
	PaidAt          *time.Time
	ProviderOrderID *string
}

// Repository is the persistence surface for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error)
	FindByProviderSessionID(ctx context.Context, sessionID string) (*models.Order, error)
	FindLatestPaidByEmail(ctx context.Context, email string) (*models.Order, error)
	// TransitionStatus applies the status change as a single conditional
	// UPDATE guarded by the current status. It reports whether a row was
	// updated; zero rows means a concurrent writer got there first.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, update TransitionUpdate) (bool, error)
	SetReportAccessTokenHash(ctx context.Context, id uuid.UUID, hash string) error
}
